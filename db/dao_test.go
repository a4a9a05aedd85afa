package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/db/dbtest"
	"github.com/bnb-chain/verivid-hub/types"
)

const (
	walletA = "0x00000000000000000000000000000000000000aa"
	walletB = "0x00000000000000000000000000000000000000bb"
	digest1 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
)

func newAsset(owner, digest string) *db.Asset {
	return &db.Asset{
		Id:          uuid.NewString(),
		OwnerWallet: owner,
		DisplayName: "clip.mp4",
		Sha256:      digest,
		HashStatus:  db.HashProvisional,
	}
}

func TestCreateAssetUniqueSha256(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()

	first := newAsset(walletA, digest1)
	require.NoError(t, dao.CreateAsset(ctx, first))
	err := dao.CreateAsset(ctx, newAsset(walletB, digest1))
	require.ErrorIs(t, err, db.ErrDuplicateEntry)

	stored, err := dao.GetAssetBySha256(ctx, digest1)
	require.NoError(t, err)
	require.Equal(t, first.Id, stored.Id)

	missing, err := dao.GetAsset(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestCreateAssetConcurrent(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dao.CreateAsset(ctx, newAsset(walletA, digest1))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if db.IsDuplicateErr(err) {
				duplicate++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, created)
	require.Equal(t, 7, duplicate)
}

func TestMarkPipelineDispatchedOnce(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()
	asset := newAsset(walletA, digest1)
	require.NoError(t, dao.CreateAsset(ctx, asset))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := dao.MarkPipelineDispatched(ctx, asset.Id)
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)

	require.NoError(t, dao.ClearPipelineDispatched(ctx, asset.Id))
	won, err := dao.MarkPipelineDispatched(ctx, asset.Id)
	require.NoError(t, err)
	require.True(t, won)

	won, err = dao.MarkPipelineDispatched(ctx, "missing")
	require.NoError(t, err)
	require.False(t, won)
}

func TestConsumeChallengeOnce(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, dao.UpsertChallenge(ctx, walletA, "n1", now.Add(time.Minute)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := dao.ConsumeChallenge(ctx, walletA, "n1", uuid.NewString(), now)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)

	challenge, err := dao.GetChallenge(ctx, walletA)
	require.NoError(t, err)
	require.NotEqual(t, "n1", challenge.Nonce)
	require.False(t, challenge.Pending(now))

	// a fresh nonce makes the challenge pending again
	require.NoError(t, dao.UpsertChallenge(ctx, walletA, "n2", now.Add(time.Minute)))
	challenge, err = dao.GetChallenge(ctx, walletA)
	require.NoError(t, err)
	require.Equal(t, "n2", challenge.Nonce)
	require.True(t, challenge.Pending(now))
}

func TestConsumeExpiredChallenge(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, dao.UpsertChallenge(ctx, walletA, "n1", now.Add(-time.Second)))
	ok, err := dao.ConsumeChallenge(ctx, walletA, "n1", "n2", now)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConfirmProofIdempotent(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()
	asset := newAsset(walletA, digest1)
	require.NoError(t, dao.CreateAsset(ctx, asset))
	require.NoError(t, dao.SaveRegistration(ctx, &db.ProofRegistration{
		AssetId:   asset.Id,
		ProofHash: "0x01",
		Requester: walletA,
		State:     db.AwaitingConfirmation,
	}))

	proof := &db.Proof{AssetId: asset.Id, ProofHash: "0x01", TxHash: "0x02", Signer: walletA, Chain: "eip155:97"}
	verified, stored, err := dao.ConfirmProof(ctx, proof, time.Now())
	require.NoError(t, err)
	require.True(t, verified.Verified)
	require.Equal(t, walletA, verified.VerifiedBy)

	again, storedAgain, err := dao.ConfirmProof(ctx, &db.Proof{AssetId: asset.Id, ProofHash: "0x01", TxHash: "0x02", Signer: walletA, Chain: "eip155:97"}, time.Now())
	require.NoError(t, err)
	require.Equal(t, stored.Id, storedAgain.Id)
	require.Equal(t, verified.VerifiedAt.Unix(), again.VerifiedAt.Unix())

	proofs, err := dao.ListProofsByAsset(ctx, asset.Id)
	require.NoError(t, err)
	require.Len(t, proofs, 1)

	registration, err := dao.GetRegistration(ctx, asset.Id)
	require.NoError(t, err)
	require.Equal(t, db.RegistrationVerified, registration.State)

	other := newAsset(walletB, "3"+digest1[1:])
	require.NoError(t, dao.CreateAsset(ctx, other))
	_, _, err = dao.ConfirmProof(ctx, &db.Proof{AssetId: other.Id, ProofHash: "0x01", TxHash: "0x03", Signer: walletB, Chain: "eip155:97"}, time.Now())
	require.ErrorIs(t, err, db.ErrProofAssetConflict)
}

func TestRebindWallet(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()
	now := time.Now()

	identity, err := dao.CreateIdentityIfAbsent(ctx, &db.Identity{Id: uuid.NewString(), Wallet: walletA})
	require.NoError(t, err)
	again, err := dao.CreateIdentityIfAbsent(ctx, &db.Identity{Id: uuid.NewString(), Wallet: walletA})
	require.NoError(t, err)
	require.Equal(t, identity.Id, again.Id)

	asset := newAsset(walletA, digest1)
	require.NoError(t, dao.CreateAsset(ctx, asset))
	require.NoError(t, dao.UpsertChallenge(ctx, walletA, "n1", now.Add(time.Minute)))
	require.NoError(t, dao.SetRecoveryToken(ctx, identity.Id, "tokenhash", now.Add(time.Hour)))

	_, err = dao.RebindWallet(ctx, "other", walletB, now)
	require.ErrorIs(t, err, db.ErrInvalidRecoveryToken)

	rebound, err := dao.RebindWallet(ctx, "tokenhash", walletB, now)
	require.NoError(t, err)
	require.Equal(t, identity.Id, rebound.Id)
	require.Equal(t, walletB, rebound.Wallet)
	require.Empty(t, rebound.RecoveryTokenHash)

	moved, err := dao.GetAsset(ctx, asset.Id)
	require.NoError(t, err)
	require.Equal(t, walletB, moved.OwnerWallet)

	challenge, err := dao.GetChallenge(ctx, walletA)
	require.NoError(t, err)
	require.Nil(t, challenge)

	// tokens are single use
	_, err = dao.RebindWallet(ctx, "tokenhash", walletA, now)
	require.ErrorIs(t, err, db.ErrInvalidRecoveryToken)
}

func TestJobClaim(t *testing.T) {
	dao := dbtest.NewDao(t)
	ctx := context.Background()
	now := time.Now()

	job := &db.Job{
		Id:          uuid.NewString(),
		Type:        types.JobPin,
		AssetId:     "a1",
		Status:      db.JobPending,
		NextRunAt:   now.Add(-time.Second),
		MaxAttempts: 5,
	}
	require.NoError(t, dao.CreateJob(ctx, job))

	due, err := dao.ListDueJobs(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := dao.ClaimJob(ctx, due[0], now, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)
	// the same observation cannot be claimed twice
	claimed, err = dao.ClaimJob(ctx, due[0], now, now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, claimed)

	due, err = dao.ListDueJobs(ctx, now, 10)
	require.NoError(t, err)
	require.Empty(t, due)

	// an expired lease makes the job due again
	due, err = dao.ListDueJobs(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, 1, due[0].Attempts)

	require.NoError(t, dao.CompleteJob(ctx, job.Id, now))
	stored, err := dao.GetJob(ctx, job.Id)
	require.NoError(t, err)
	require.Equal(t, db.JobCompleted, stored.Status)
	require.True(t, stored.Terminal())
}
