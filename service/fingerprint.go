package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/storage"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/metrics"
	"github.com/bnb-chain/verivid-hub/util"
)

type DuplicateResult struct {
	Exists       bool   `json:"isDuplicate"`
	OwnerAssetID string `json:"existingAssetId,omitempty"`
}

type AssetMeta struct {
	DisplayName string
	MimeType    string
	Size        int64
}

// FingerprintRegistry binds content hashes to assets. The unique index on the asset hash is the
// only arbiter between concurrent registrations.
type FingerprintRegistry struct {
	dao     db.VeriVidDao
	storage storage.Storage
}

func NewFingerprintRegistry(dao db.VeriVidDao, store storage.Storage) *FingerprintRegistry {
	return &FingerprintRegistry{
		dao:     dao,
		storage: store,
	}
}

func (r *FingerprintRegistry) CheckDuplicate(ctx context.Context, hash string) (*DuplicateResult, error) {
	digest, ok := util.NormalizeSha256(hash)
	if !ok {
		return nil, ErrInvalidHash
	}
	existing, err := r.dao.FindDuplicateAsset(ctx, digest, "")
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &DuplicateResult{}, nil
	}
	return &DuplicateResult{Exists: true, OwnerAssetID: existing.Id}, nil
}

// RegisterAsset creates an asset for hash. Losing a race against another registration of the same
// hash returns a *DuplicateError naming the winner.
func (r *FingerprintRegistry) RegisterAsset(ctx context.Context, owner, hash string, meta AssetMeta) (*db.Asset, error) {
	owner, err := util.NormalizeWallet(owner)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	digest, ok := util.NormalizeSha256(hash)
	if !ok {
		return nil, ErrInvalidHash
	}
	if meta.DisplayName == "" {
		return nil, ErrMissingField.Enrich("filename")
	}
	asset := &db.Asset{
		Id:          uuid.NewString(),
		OwnerWallet: owner,
		DisplayName: meta.DisplayName,
		MimeType:    meta.MimeType,
		Size:        meta.Size,
		Sha256:      digest,
		HashStatus:  db.HashProvisional,
	}
	err = r.dao.CreateAsset(ctx, asset)
	if err == nil {
		metrics.AssetsRegisteredCounter.Inc()
		return asset, nil
	}
	if !errors.Is(err, db.ErrDuplicateEntry) {
		logging.Logger.Errorf("failed to create asset, sha256=%s, err=%s", digest, err.Error())
		return nil, err
	}
	metrics.DuplicateRejectionsCounter.Inc()
	winner, err := r.dao.GetAssetBySha256(ctx, digest)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		// the winner was deleted in between, the caller may simply retry
		return nil, Transient(ErrDuplicateContent.Enrich("conflicting asset vanished"))
	}
	return nil, &DuplicateError{ExistingAssetID: winner.Id}
}

// RevalidateAsset hashes the stored bytes of the asset. The asset only becomes validated when the
// stored bytes match both its declared hash and expected, if given.
func (r *FingerprintRegistry) RevalidateAsset(ctx context.Context, assetID, expected string) (*db.Asset, error) {
	if expected != "" {
		digest, ok := util.NormalizeSha256(expected)
		if !ok {
			return nil, ErrInvalidHash
		}
		expected = digest
	}
	asset, err := r.dao.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrNotFound.Enrich("asset")
	}
	if !asset.Uploaded() {
		return nil, ErrMissingField.Enrich("content not uploaded")
	}
	reader, err := r.storage.Get(ctx, asset.StorageLocator)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrMissingField.Enrich("content not uploaded")
		}
		return nil, Transient(err)
	}
	defer reader.Close()
	actual, size, err := util.HashReader(reader)
	if err != nil {
		return nil, Transient(err)
	}

	status := db.HashValidated
	if actual != asset.Sha256 || (expected != "" && actual != expected) {
		status = db.HashMismatch
	}
	err = r.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{
		"actual_sha256": actual,
		"hash_status":   status,
		"size":          size,
	})
	if err != nil {
		return nil, err
	}
	asset.ActualSha256, asset.HashStatus, asset.Size = actual, status, size
	if status == db.HashMismatch {
		logging.Logger.Warningf("stored content hash mismatch, asset=%s, declared=%s, actual=%s", asset.Id, asset.Sha256, actual)
		return asset, ErrHashMismatch.Enrich("actual " + actual)
	}
	return asset, nil
}
