package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/stretchr/testify/require"
)

func recoveryToken(t *testing.T, body string) string {
	idx := strings.Index(body, "http://verivid.local/recover?")
	require.GreaterOrEqual(t, idx, 0)
	link := strings.Fields(body[idx:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func (f *fixture) login(t *testing.T, wallet *testWallet) *Session {
	ctx := context.Background()
	challenge, err := f.auth.IssueNonce(ctx, wallet.Address)
	require.NoError(t, err)
	session, err := f.auth.Authenticate(ctx, wallet.Address, wallet.Sign(t, accounts.TextHash([]byte(challenge.Message))))
	require.NoError(t, err)
	return session
}

func TestWalletRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lost, replacement := newTestWallet(t), newTestWallet(t)

	session := f.login(t, lost)
	identity, err := f.auth.ResolveSession(ctx, session.Token)
	require.NoError(t, err)
	email := "Owner@Example.com"
	_, err = f.profiles.UpdateProfile(ctx, identity, &ProfileUpdate{Email: &email})
	require.NoError(t, err)
	asset := f.uploadValidated(t, lost.Address, []byte("survives recovery"))

	require.NoError(t, f.recovery.RequestRecovery(ctx, "owner@example.com"))
	messages := f.notifier.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "owner@example.com", messages[0].Address)
	token := recoveryToken(t, messages[0].Body)

	recovered, err := f.recovery.VerifyRecovery(ctx, token, replacement.Address)
	require.NoError(t, err)
	require.Equal(t, identity.Id, recovered.Id)
	require.Equal(t, replacement.Address, recovered.Wallet)

	// sessions of the old wallet no longer resolve
	_, err = f.auth.ResolveSession(ctx, session.Token)
	require.ErrorIs(t, err, ErrInvalidSession)

	moved, err := f.dao.GetAsset(ctx, asset.Id)
	require.NoError(t, err)
	require.Equal(t, replacement.Address, moved.OwnerWallet)

	// the token is single use
	_, err = f.recovery.VerifyRecovery(ctx, token, newTestWallet(t).Address)
	require.ErrorIs(t, err, ErrInvalidRequest)

	f.login(t, replacement)
}

func TestRecoveryForUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.recovery.RequestRecovery(context.Background(), "nobody@example.com"))
	require.Empty(t, f.notifier.Messages())
}

func TestExpiredRecoveryToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wallet := newTestWallet(t)
	identity, err := f.auth.ResolveSession(ctx, f.login(t, wallet).Token)
	require.NoError(t, err)
	email := "late@example.com"
	_, err = f.profiles.UpdateProfile(ctx, identity, &ProfileUpdate{Email: &email})
	require.NoError(t, err)

	require.NoError(t, f.recovery.RequestRecovery(ctx, email))
	token := recoveryToken(t, f.notifier.Messages()[0].Body)
	f.clock.Advance(25 * time.Hour)

	_, err = f.recovery.VerifyRecovery(ctx, token, newTestWallet(t).Address)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRecoveryToWalletInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wallet, taken := newTestWallet(t), newTestWallet(t)
	identity, err := f.auth.ResolveSession(ctx, f.login(t, wallet).Token)
	require.NoError(t, err)
	f.login(t, taken)
	email := "busy@example.com"
	_, err = f.profiles.UpdateProfile(ctx, identity, &ProfileUpdate{Email: &email})
	require.NoError(t, err)

	require.NoError(t, f.recovery.RequestRecovery(ctx, email))
	token := recoveryToken(t, f.notifier.Messages()[0].Body)
	_, err = f.recovery.VerifyRecovery(ctx, token, taken.Address)
	require.ErrorIs(t, err, ErrWalletInUse)
}
