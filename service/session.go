package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bnb-chain/verivid-hub/db"
)

type SessionClaims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// Session is a signed bearer credential bound to one identity and wallet.
type Session struct {
	Token      string    `json:"token"`
	Wallet     string    `json:"wallet"`
	IdentityID string    `json:"identityId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *SessionIssuer) Issue(identity *db.Identity) (*Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		Wallet: identity.Wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:      token,
		Wallet:     identity.Wallet,
		IdentityID: identity.Id,
		ExpiresAt:  expiresAt,
	}, nil
}

// Parse validates the token signature and expiry.
func (s *SessionIssuer) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidSession
	}
	if claims.Subject == "" || claims.Wallet == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
