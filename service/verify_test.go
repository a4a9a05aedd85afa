package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/util"
)

func (f *fixture) verifiedAsset(t *testing.T, owner *testWallet, content []byte) (*db.Asset, *PreparedTx) {
	ctx := context.Background()
	asset := f.uploadValidated(t, owner.Address, content)
	prepared, err := f.proofs.Prepare(ctx, owner.Address, asset.Id)
	require.NoError(t, err)
	txHash := f.registerOnChain(t, prepared, owner)
	result, err := f.proofs.Confirm(ctx, owner.Address, &ConfirmRequest{
		AssetID: asset.Id, TxHash: txHash.Hex(), Signer: owner.Address, ProofHash: prepared.ProofHash,
	})
	require.NoError(t, err)
	return result.Asset, prepared
}

func TestVerifyByHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t)

	unknown, err := f.verify.VerifyByHash(ctx, util.GenerateChecksum([]byte("never uploaded")))
	require.NoError(t, err)
	require.False(t, unknown.Verified)
	require.Nil(t, unknown.Asset)

	pending := f.uploadValidated(t, owner.Address, []byte("not yet verified"))
	res, err := f.verify.VerifyByHash(ctx, pending.Sha256)
	require.NoError(t, err)
	require.False(t, res.Verified)
	require.Equal(t, pending.Id, res.Asset.Id)

	asset, _ := f.verifiedAsset(t, owner, []byte("verified content"))
	res, err = f.verify.VerifyByHash(ctx, asset.Sha256)
	require.NoError(t, err)
	require.True(t, res.Verified)
	require.Len(t, res.Proofs, 1)

	_, err = f.verify.VerifyByHash(ctx, "xyz")
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestVerifyByProofHashCachesOnChainRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t)
	_, prepared := f.verifiedAsset(t, owner, []byte("cached"))

	res, err := f.verify.VerifyByProofHash(ctx, prepared.ProofHash)
	require.NoError(t, err)
	require.Equal(t, owner.Address, res.OnChain.Signer)
	require.Equal(t, prepared.ProofHash, res.DBRecord.ProofHash)

	calls := f.registry.Calls()
	f.registry.SetError(errors.New("rpc down"))
	res, err = f.verify.VerifyByProofHash(ctx, prepared.ProofHash)
	require.NoError(t, err)
	require.NotNil(t, res.OnChain)
	require.Equal(t, calls, f.registry.Calls())
}

func TestVerifyByProofHashUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.verify.VerifyByProofHash(ctx, common.HexToHash("0x09").Hex())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.verify.VerifyByProofHash(ctx, "0x09")
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestVerifyAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t)
	asset, _ := f.verifiedAsset(t, owner, []byte("asset status"))

	res, err := f.verify.VerifyAsset(ctx, asset.Id)
	require.NoError(t, err)
	require.True(t, res.Verified)
	require.Equal(t, db.RegistrationVerified, res.RegistrationState)
	require.Len(t, res.Proofs, 1)

	_, err = f.verify.VerifyAsset(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeletedVerifiedAssetKeepsProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t)
	asset, prepared := f.verifiedAsset(t, owner, []byte("deleted later"))

	require.NoError(t, f.uploads.DeleteAsset(ctx, owner.Address, asset.Id))
	res, err := f.verify.VerifyByProofHash(ctx, prepared.ProofHash)
	require.NoError(t, err)
	require.NotNil(t, res.DBRecord)
	require.Equal(t, asset.Id, res.DBRecord.AssetId)
}
