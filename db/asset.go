package db

import "time"

type HashStatus string

const (
	HashProvisional HashStatus = "provisional" // declared by the client, not yet checked against stored bytes
	HashValidated   HashStatus = "validated"
	HashMismatch    HashStatus = "mismatch"
)

type Asset struct {
	Id                 string `gorm:"primaryKey;size:36"`
	OwnerWallet        string `gorm:"NOT NULL;index:idx_asset_owner;size:42"`
	DisplayName        string `gorm:"NOT NULL;size:255"`
	MimeType           string `gorm:"size:64"`
	Size               int64
	Sha256             string     `gorm:"NOT NULL;uniqueIndex:idx_asset_sha256;size:64"`
	ActualSha256       string     `gorm:"index:idx_asset_actual_sha256;size:64"`
	HashStatus         HashStatus `gorm:"NOT NULL;size:16"`
	StorageLocator     string     `gorm:"size:512"`
	PinCid             string     `gorm:"size:128"`
	ThumbnailLocator   string     `gorm:"size:512"`
	PlaybackLocator    string     `gorm:"size:512"`
	DurationSec        float64
	Width              int
	Height             int
	Flagged            bool
	FlagReason         string `gorm:"size:255"`
	Verified           bool   `gorm:"NOT NULL;index:idx_asset_verified"`
	PipelineDispatched bool   `gorm:"NOT NULL;default:false"` // set once when the media pipeline is enqueued
	VerifiedAt         *time.Time
	VerifiedBy         string `gorm:"size:42"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (*Asset) TableName() string {
	return "asset"
}

func (a *Asset) Uploaded() bool {
	return a.StorageLocator != ""
}
