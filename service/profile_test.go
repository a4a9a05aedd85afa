package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wallet := newTestWallet(t)
	identity, err := f.auth.ResolveSession(ctx, f.login(t, wallet).Token)
	require.NoError(t, err)

	updated, err := f.profiles.UpdateProfile(ctx, identity, &ProfileUpdate{
		Username:  strPtr("alice"),
		Email:     strPtr("alice@example.com"),
		Bio:       strPtr("filmmaker"),
		AvatarUrl: strPtr("https://cdn.example.com/a.png"),
	})
	require.NoError(t, err)
	require.Equal(t, "alice", updated.Username)
	require.Equal(t, "alice@example.com", updated.EmailAddress())

	_, err = f.profiles.UpdateProfile(ctx, updated, &ProfileUpdate{Email: strPtr("not an email")})
	require.ErrorIs(t, err, ErrInvalidRequest)

	other, err := f.auth.ResolveSession(ctx, f.login(t, newTestWallet(t)).Token)
	require.NoError(t, err)
	_, err = f.profiles.UpdateProfile(ctx, other, &ProfileUpdate{Email: strPtr("ALICE@example.com")})
	require.ErrorIs(t, err, ErrEmailInUse)

	cleared, err := f.profiles.UpdateProfile(ctx, updated, &ProfileUpdate{Email: strPtr("")})
	require.NoError(t, err)
	require.Empty(t, cleared.EmailAddress())
}

func TestPublicProfileListsVerifiedAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t)
	f.login(t, owner)
	f.uploadValidated(t, owner.Address, []byte("draft"))
	verified, _ := f.verifiedAsset(t, owner, []byte("published"))

	profile, err := f.profiles.PublicProfile(ctx, owner.Address)
	require.NoError(t, err)
	require.Equal(t, owner.Address, profile.Wallet)
	require.Len(t, profile.VerifiedAssets, 1)
	require.Equal(t, verified.Id, profile.VerifiedAssets[0].Id)

	identity, err := f.dao.GetIdentityByWallet(ctx, owner.Address)
	require.NoError(t, err)
	mine, err := f.profiles.GetProfile(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, int64(2), mine.Total)

	_, err = f.profiles.PublicProfile(ctx, newTestWallet(t).Address)
	require.ErrorIs(t, err, ErrNotFound)
}
