package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-openapi/strfmt"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/util"
)

const (
	publicProfileAssets = 10
	maxUsernameLength   = 64
	maxBioLength        = 1024
)

type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarUrl *string `json:"avatarUrl,omitempty"`
}

type Profile struct {
	Identity *db.Identity `json:"identity"`
	Assets   []*db.Asset  `json:"assets"`
	Total    int64        `json:"total"`
}

type PublicProfile struct {
	Wallet         string      `json:"wallet"`
	Username       string      `json:"username"`
	Bio            string      `json:"bio"`
	AvatarUrl      string      `json:"avatarUrl"`
	VerifiedAssets []*db.Asset `json:"verifiedAssets"`
}

type ProfileService struct {
	dao db.VeriVidDao
}

func NewProfileService(dao db.VeriVidDao) *ProfileService {
	return &ProfileService{dao: dao}
}

func (s *ProfileService) GetProfile(ctx context.Context, identity *db.Identity) (*Profile, error) {
	assets, total, err := s.dao.ListAssetsByOwner(ctx, identity.Wallet, false, 0, maxPageSize)
	if err != nil {
		return nil, err
	}
	return &Profile{Identity: identity, Assets: assets, Total: total}, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, identity *db.Identity, update *ProfileUpdate) (*db.Identity, error) {
	updates := make(map[string]interface{})
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if len(username) > maxUsernameLength {
			return nil, ErrInvalidRequest.Enrich("username too long")
		}
		updates["username"] = username
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if email == "" {
			updates["email"] = nil
		} else {
			if !strfmt.Default.Validates("email", email) {
				return nil, ErrInvalidRequest.Enrich("invalid email")
			}
			updates["email"] = email
		}
	}
	if update.Bio != nil {
		if len(*update.Bio) > maxBioLength {
			return nil, ErrInvalidRequest.Enrich("bio too long")
		}
		updates["bio"] = *update.Bio
	}
	if update.AvatarUrl != nil {
		avatar := strings.TrimSpace(*update.AvatarUrl)
		if avatar != "" && !strfmt.Default.Validates("uri", avatar) {
			return nil, ErrInvalidRequest.Enrich("invalid avatar url")
		}
		updates["avatar_url"] = avatar
	}
	if len(updates) == 0 {
		return identity, nil
	}
	updated, err := s.dao.UpdateIdentity(ctx, identity.Id, updates)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateEntry) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound.Enrich("user")
	}
	return updated, nil
}

func (s *ProfileService) PublicProfile(ctx context.Context, wallet string) (*PublicProfile, error) {
	wallet, err := util.NormalizeWallet(wallet)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	identity, err := s.dao.GetIdentityByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrNotFound.Enrich("user")
	}
	assets, _, err := s.dao.ListAssetsByOwner(ctx, wallet, true, 0, publicProfileAssets)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{
		Wallet:         identity.Wallet,
		Username:       identity.Username,
		Bio:            identity.Bio,
		AvatarUrl:      identity.AvatarUrl,
		VerifiedAssets: assets,
	}, nil
}
