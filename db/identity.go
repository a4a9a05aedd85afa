package db

import "time"

type Identity struct {
	Id                string     `gorm:"primaryKey;size:36"`
	Wallet            string     `gorm:"NOT NULL;uniqueIndex:idx_identity_wallet;size:42"`
	Username          string     `gorm:"size:64"`
	Email             *string    `gorm:"uniqueIndex:idx_identity_email;size:255"`
	Bio               string     `gorm:"size:1024"`
	AvatarUrl         string     `gorm:"size:512"`
	RecoveryTokenHash string     `gorm:"index:idx_identity_recovery_token;size:64" json:"-"`
	RecoveryExpiresAt *time.Time `json:"-"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (*Identity) TableName() string {
	return "identity"
}

// EmailAddress returns the email or an empty string when none is set.
func (i *Identity) EmailAddress() string {
	if i.Email == nil {
		return ""
	}
	return *i.Email
}

// AuthChallenge is the single-use login challenge of a wallet. A challenge is pending while it is
// not consumed and not expired.
type AuthChallenge struct {
	Id         int64
	Wallet     string    `gorm:"NOT NULL;uniqueIndex:idx_challenge_wallet;size:42"`
	Nonce      string    `gorm:"NOT NULL;size:64"`
	ExpiresAt  time.Time `gorm:"NOT NULL"`
	ConsumedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (*AuthChallenge) TableName() string {
	return "auth_challenge"
}

func (c *AuthChallenge) Pending(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}
