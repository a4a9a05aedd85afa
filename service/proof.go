package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/chain"
	"github.com/bnb-chain/verivid-hub/external/ipfs"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/metrics"
	"github.com/bnb-chain/verivid-hub/types"
	"github.com/bnb-chain/verivid-hub/util"
)

// ProofMetadata is the JSON document pinned for a proof. Every field derives from the stored asset,
// so preparing the same asset twice pins the same document.
type ProofMetadata struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Sha256    string `json:"sha256"`
	Uploader  string `json:"uploader"`
	Timestamp string `json:"timestamp"`
	IpfsUri   string `json:"ipfsUri,omitempty"`
}

type PreparedTx struct {
	AssetID           string         `json:"assetId"`
	ProofHash         string         `json:"proofHash"`
	MetadataUri       string         `json:"metadataUri"`
	Metadata          *ProofMetadata `json:"metadata,omitempty"`
	ContractAddress   string         `json:"contractAddress"`
	ChainID           int64          `json:"chainId"`
	AlreadyRegistered bool           `json:"alreadyRegistered"`
}

type ConfirmRequest struct {
	AssetID   string `json:"assetId"`
	TxHash    string `json:"txHash"`
	Signer    string `json:"signer"`
	ProofHash string `json:"proofHash"`
}

type ConfirmResult struct {
	Asset *db.Asset `json:"asset"`
	Proof *db.Proof `json:"proof"`
}

type ProofService struct {
	dao      db.VeriVidDao
	registry chain.IRegistryClient
	content  ipfs.ContentStore
	cfg      *config.ChainConfig
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewProofService(dao db.VeriVidDao, registry chain.IRegistryClient, content ipfs.ContentStore, cfg *config.ChainConfig) *ProofService {
	return &ProofService{
		dao:      dao,
		registry: registry,
		content:  content,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CanonicalProofHash returns the 0x-prefixed proof hash of a sha256 digest.
func CanonicalProofHash(sha256Hex string) string {
	return util.ProofHash(sha256Hex).Hex()
}

func (s *ProofService) ownedAsset(ctx context.Context, requester, assetID string) (*db.Asset, error) {
	asset, err := s.dao.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrNotFound.Enrich("asset")
	}
	if asset.OwnerWallet != strings.ToLower(requester) {
		return nil, ErrNotOwner
	}
	return asset, nil
}

func (s *ProofService) reject(ctx context.Context, assetID, reason string) {
	if err := s.dao.UpdateRegistrationState(ctx, assetID, db.Rejected, reason); err != nil {
		logging.Logger.Errorf("failed to reject registration, asset=%s, err=%s", assetID, err.Error())
	}
	logging.Logger.Warningf("proof registration rejected, asset=%s, reason=%s", assetID, reason)
}

// Prepare builds the payload the owner submits to the registry contract.
func (s *ProofService) Prepare(ctx context.Context, requester, assetID string) (*PreparedTx, error) {
	requester = strings.ToLower(requester)
	asset, err := s.ownedAsset(ctx, requester, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Verified {
		return nil, ErrAlreadyVerified
	}
	if asset.HashStatus != db.HashValidated {
		return nil, ErrHashNotValidated
	}

	proofHash := util.ProofHash(asset.Sha256)
	previous, err := s.dao.GetRegistration(ctx, asset.Id)
	if err != nil {
		return nil, err
	}
	registration := &db.ProofRegistration{
		AssetId:   asset.Id,
		ProofHash: proofHash.Hex(),
		Requester: requester,
		State:     db.PreparePending,
	}
	if previous != nil && previous.ProofHash == proofHash.Hex() {
		registration.MetadataUri = previous.MetadataUri
		registration.Metadata = previous.Metadata
	}
	if err = s.dao.SaveRegistration(ctx, registration); err != nil {
		return nil, err
	}

	prepared := &PreparedTx{
		AssetID:         asset.Id,
		ProofHash:       proofHash.Hex(),
		ContractAddress: s.registry.ContractAddress().Hex(),
		ChainID:         s.registry.ChainID(),
	}

	registered, err := s.registry.IsRegistered(ctx, proofHash)
	if err != nil {
		logging.Logger.Errorf("failed to query registry, proofHash=%s, err=%s", proofHash.Hex(), err.Error())
		return nil, Transient(ErrChainUnavailable.Enrich(err.Error()))
	}
	if registered {
		onChain, err := s.registry.GetProof(ctx, proofHash)
		if err != nil {
			return nil, Transient(ErrChainUnavailable.Enrich(err.Error()))
		}
		if onChain != nil {
			if strings.ToLower(onChain.Signer.Hex()) != requester {
				s.reject(ctx, asset.Id, "proof registered by "+strings.ToLower(onChain.Signer.Hex()))
				return nil, ErrProofConflict.Enrich("registered by another signer")
			}
			registration.MetadataUri = onChain.MetadataUri
			registration.State = db.AwaitingConfirmation
			if err = s.dao.SaveRegistration(ctx, registration); err != nil {
				return nil, err
			}
			prepared.MetadataUri = onChain.MetadataUri
			prepared.AlreadyRegistered = true
			return prepared, nil
		}
	}

	metadata := &ProofMetadata{
		VideoID:   asset.Id,
		Title:     asset.DisplayName,
		Sha256:    asset.Sha256,
		Uploader:  asset.OwnerWallet,
		Timestamp: asset.CreatedAt.UTC().Format(time.RFC3339),
	}
	if asset.PinCid != "" {
		metadata.IpfsUri = types.IPFSURI(asset.PinCid)
	}
	if registration.MetadataUri == "" || !sameMetadata(registration.Metadata, metadata) {
		cid, err := s.content.PinJSON(ctx, types.GetMetadataPinName(asset.Id), metadata)
		if err != nil {
			logging.Logger.Errorf("failed to pin proof metadata, asset=%s, err=%s", asset.Id, err.Error())
			return nil, Transient(err)
		}
		bz, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		registration.MetadataUri = types.IPFSURI(cid)
		registration.Metadata = string(bz)
	}
	registration.State = db.AwaitingConfirmation
	if err = s.dao.SaveRegistration(ctx, registration); err != nil {
		return nil, err
	}
	prepared.MetadataUri = registration.MetadataUri
	prepared.Metadata = metadata
	return prepared, nil
}

func sameMetadata(stored string, metadata *ProofMetadata) bool {
	if stored == "" {
		return false
	}
	var previous ProofMetadata
	if err := json.Unmarshal([]byte(stored), &previous); err != nil {
		return false
	}
	return previous == *metadata
}

// Confirm checks a mined registerProof transaction and marks the asset verified.
func (s *ProofService) Confirm(ctx context.Context, requester string, req *ConfirmRequest) (*ConfirmResult, error) {
	requester = strings.ToLower(requester)
	if !util.IsTxHash(req.TxHash) || !util.IsTxHash(req.ProofHash) {
		return nil, ErrInvalidHash
	}
	signer, err := util.NormalizeWallet(req.Signer)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	asset, err := s.ownedAsset(ctx, requester, req.AssetID)
	if err != nil {
		return nil, err
	}
	proofHash := util.ProofHash(asset.Sha256)
	if !strings.EqualFold(req.ProofHash, proofHash.Hex()) {
		return nil, ErrProofHashMismatch
	}

	if asset.Verified {
		existing, err := s.dao.GetProofByHash(ctx, proofHash.Hex())
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.AssetId == asset.Id {
			return &ConfirmResult{Asset: asset, Proof: existing}, nil
		}
		return nil, ErrAlreadyVerified
	}
	if asset.HashStatus != db.HashValidated {
		return nil, ErrHashNotValidated
	}
	registration, err := s.dao.GetRegistration(ctx, asset.Id)
	if err != nil {
		return nil, err
	}
	// a concurrent confirmation may have completed in between, ConfirmProof tolerates replays
	confirmable := registration != nil && registration.ProofHash == proofHash.Hex() &&
		(registration.State == db.AwaitingConfirmation || registration.State == db.RegistrationVerified)
	if !confirmable {
		return nil, ErrInvalidRequest.Enrich("prepare the transaction first")
	}

	txHash := common.HexToHash(req.TxHash)
	receipt, err := s.waitReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, ErrTxNotConfirmed.Enrich("transaction reverted")
	}
	to, err := s.registry.GetTransactionTo(ctx, txHash)
	if err != nil {
		return nil, Transient(ErrChainUnavailable.Enrich(err.Error()))
	}
	if to == nil || *to != s.registry.ContractAddress() {
		s.reject(ctx, asset.Id, "transaction not sent to the registry")
		return nil, ErrTxMismatch
	}

	onChain, err := s.registry.GetProof(ctx, proofHash)
	if err != nil {
		return nil, Transient(ErrChainUnavailable.Enrich(err.Error()))
	}
	if onChain == nil {
		return nil, ErrProofNotFound
	}
	onChainSigner := strings.ToLower(onChain.Signer.Hex())
	switch {
	case onChainSigner != signer, onChainSigner != asset.OwnerWallet:
		s.reject(ctx, asset.Id, "proof registered by "+onChainSigner)
		return nil, ErrProofConflict.Enrich("signer mismatch")
	case onChain.MetadataUri != registration.MetadataUri:
		s.reject(ctx, asset.Id, "metadata uri mismatch")
		return nil, ErrProofConflict.Enrich("metadata uri mismatch")
	}

	record := &db.Proof{
		AssetId:     asset.Id,
		ProofHash:   proofHash.Hex(),
		TxHash:      strings.ToLower(req.TxHash),
		Signer:      onChainSigner,
		MetadataUri: onChain.MetadataUri,
		Chain:       s.cfg.ChainName(),
	}
	verified, proof, err := s.dao.ConfirmProof(ctx, record, s.now())
	if errors.Is(err, db.ErrDuplicateEntry) {
		// a concurrent confirm inserted the proof first, the second pass picks up its row
		logging.Logger.Warningf("proof inserted concurrently, reloading, asset=%s, proofHash=%s", asset.Id, record.ProofHash)
		verified, proof, err = s.dao.ConfirmProof(ctx, record, s.now())
	}
	if err != nil {
		if errors.Is(err, db.ErrProofAssetConflict) {
			return nil, ErrProofConflict.Enrich("proof bound to another asset")
		}
		logging.Logger.Errorf("failed to confirm proof, asset=%s, err=%s", asset.Id, err.Error())
		return nil, err
	}
	metrics.ProofsConfirmedCounter.Inc()
	logging.Logger.Infof("asset verified, asset=%s, proofHash=%s, tx=%s", asset.Id, proof.ProofHash, proof.TxHash)
	return &ConfirmResult{Asset: verified, Proof: proof}, nil
}

// waitReceipt polls for the receipt of txHash until the confirm timeout.
func (s *ProofService) waitReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout())
	defer cancel()
	for {
		receipt, err := s.registry.GetReceipt(ctx, txHash)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrTxNotConfirmed
			}
			logging.Logger.Errorf("failed to get receipt, tx=%s, err=%s", txHash.Hex(), err.Error())
			return nil, Transient(ErrChainUnavailable.Enrich(err.Error()))
		}
		if receipt != nil {
			return receipt, nil
		}
		if err = s.sleep(ctx, s.cfg.ConfirmPollInterval()); err != nil {
			return nil, ErrTxNotConfirmed
		}
	}
}
