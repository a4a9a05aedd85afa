package service

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bnb-chain/verivid-hub/cache"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/chain"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/util"
)

type HashVerification struct {
	Verified bool        `json:"verified"`
	Asset    *db.Asset   `json:"asset,omitempty"`
	Proofs   []*db.Proof `json:"proofs"`
}

type OnChainRecord struct {
	ProofHash   string `json:"proofHash"`
	Signer      string `json:"signer"`
	Timestamp   uint64 `json:"timestamp"`
	MetadataUri string `json:"metadataUri"`
}

type ProofVerification struct {
	OnChain  *OnChainRecord `json:"onChain"`
	DBRecord *db.Proof      `json:"dbRecord"`
}

type AssetVerification struct {
	AssetID           string               `json:"assetId"`
	Verified          bool                 `json:"verified"`
	HashStatus        db.HashStatus        `json:"hashStatus"`
	RegistrationState db.RegistrationState `json:"registrationState,omitempty"`
	Proofs            []*db.Proof          `json:"proofs"`
}

// VerifyService answers read-only verification queries.
type VerifyService struct {
	dao      db.VeriVidDao
	registry chain.IRegistryClient
	cache    cache.Cache
}

func NewVerifyService(dao db.VeriVidDao, registry chain.IRegistryClient, c cache.Cache) *VerifyService {
	return &VerifyService{
		dao:      dao,
		registry: registry,
		cache:    c,
	}
}

// VerifyByHash reports whether the content with digest sha256 carries a confirmed proof.
func (s *VerifyService) VerifyByHash(ctx context.Context, sha256 string) (*HashVerification, error) {
	digest, ok := util.NormalizeSha256(sha256)
	if !ok {
		return nil, ErrInvalidHash
	}
	asset, err := s.dao.GetAssetBySha256(ctx, digest)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return &HashVerification{Proofs: []*db.Proof{}}, nil
	}
	proofs, err := s.dao.ListProofsByAsset(ctx, asset.Id)
	if err != nil {
		return nil, err
	}
	return &HashVerification{
		Verified: asset.Verified && asset.HashStatus == db.HashValidated,
		Asset:    asset,
		Proofs:   proofs,
	}, nil
}

func (s *VerifyService) VerifyByProofHash(ctx context.Context, proofHash string) (*ProofVerification, error) {
	if !util.IsTxHash(proofHash) {
		return nil, ErrInvalidHash
	}
	proofHash = strings.ToLower(proofHash)
	record, err := s.dao.GetProofByHash(ctx, common.HexToHash(proofHash).Hex())
	if err != nil {
		return nil, err
	}
	onChain, err := s.onChainProof(ctx, common.HexToHash(proofHash))
	if err != nil {
		if record == nil {
			return nil, Transient(ErrChainUnavailable.Enrich(err.Error()))
		}
		// the local record still answers the query
		logging.Logger.Errorf("failed to read on-chain proof, proofHash=%s, err=%s", proofHash, err.Error())
	}
	if onChain == nil && record == nil {
		return nil, ErrNotFound.Enrich("proof")
	}
	return &ProofVerification{OnChain: onChain, DBRecord: record}, nil
}

// onChainProof reads through the cache. Only present proofs are cached since a registry record
// never changes once written.
func (s *VerifyService) onChainProof(ctx context.Context, proofHash common.Hash) (*OnChainRecord, error) {
	if value, ok := s.cache.Get(proofHash.Hex()); ok {
		return value.(*OnChainRecord), nil
	}
	proof, err := s.registry.GetProof(ctx, proofHash)
	if err != nil {
		return nil, err
	}
	if proof == nil {
		return nil, nil
	}
	record := &OnChainRecord{
		ProofHash:   proofHash.Hex(),
		Signer:      strings.ToLower(proof.Signer.Hex()),
		Timestamp:   proof.Timestamp,
		MetadataUri: proof.MetadataUri,
	}
	s.cache.Set(proofHash.Hex(), record)
	return record, nil
}

func (s *VerifyService) VerifyAsset(ctx context.Context, assetID string) (*AssetVerification, error) {
	asset, err := s.dao.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrNotFound.Enrich("asset")
	}
	proofs, err := s.dao.ListProofsByAsset(ctx, asset.Id)
	if err != nil {
		return nil, err
	}
	result := &AssetVerification{
		AssetID:    asset.Id,
		Verified:   asset.Verified && asset.HashStatus == db.HashValidated,
		HashStatus: asset.HashStatus,
		Proofs:     proofs,
	}
	registration, err := s.dao.GetRegistration(ctx, asset.Id)
	if err != nil {
		return nil, err
	}
	if registration != nil {
		result.RegistrationState = registration.State
	}
	return result, nil
}
