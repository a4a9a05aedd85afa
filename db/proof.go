package db

import "time"

// Proof links an asset to the transaction that registered its proof hash on chain. Rows are
// immutable once written.
type Proof struct {
	Id          int64
	AssetId     string `gorm:"NOT NULL;index:idx_proof_asset;size:36"`
	ProofHash   string `gorm:"NOT NULL;uniqueIndex:idx_proof_hash;size:66"`
	TxHash      string `gorm:"NOT NULL;index:idx_proof_tx_hash;size:66"`
	Signer      string `gorm:"NOT NULL;size:42"`
	MetadataUri string `gorm:"size:512"`
	Chain       string `gorm:"NOT NULL;size:32"`
	CreatedAt   time.Time
}

func (*Proof) TableName() string {
	return "proof"
}

type RegistrationState string

const (
	PreparePending       RegistrationState = "prepare_pending"
	AwaitingConfirmation RegistrationState = "awaiting_confirmation"
	RegistrationVerified RegistrationState = "verified"
	Rejected             RegistrationState = "rejected"
)

// ProofRegistration tracks the two-phase registration of one asset. No row means the asset is unverified.
type ProofRegistration struct {
	Id           int64
	AssetId      string            `gorm:"NOT NULL;uniqueIndex:idx_registration_asset;size:36"`
	ProofHash    string            `gorm:"NOT NULL;index:idx_registration_proof_hash;size:66"`
	MetadataUri  string            `gorm:"size:512"`
	Metadata     string            `gorm:"type:text"`
	Requester    string            `gorm:"NOT NULL;size:42"`
	State        RegistrationState `gorm:"NOT NULL;size:32"`
	RejectReason string            `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (*ProofRegistration) TableName() string {
	return "proof_registration"
}
