package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/storage"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/orchestrator"
	"github.com/bnb-chain/verivid-hub/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type InitUploadRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Sha256   string `json:"sha256"`
}

// InitUploadResult either names the existing asset holding the content or the freshly created one.
type InitUploadResult struct {
	IsDuplicate     bool   `json:"isDuplicate"`
	ExistingAssetID string `json:"existingAssetId,omitempty"`
	AssetID         string `json:"assetId,omitempty"`
	UploadURL       string `json:"uploadUrl,omitempty"`
}

type AssetDetail struct {
	Asset  *db.Asset   `json:"asset"`
	Proofs []*db.Proof `json:"proofs"`
}

type AssetPage struct {
	Assets []*db.Asset `json:"assets"`
	Total  int64       `json:"total"`
}

type UploadService struct {
	dao          db.VeriVidDao
	fingerprints *FingerprintRegistry
	storage      storage.Storage
	pipeline     *orchestrator.Orchestrator
	publicURL    string
	maxSize      int64
	presignTTL   time.Duration
}

func NewUploadService(dao db.VeriVidDao, fingerprints *FingerprintRegistry, store storage.Storage,
	pipeline *orchestrator.Orchestrator, serverCfg *config.ServerConfig, storageCfg *config.StorageConfig) *UploadService {
	return &UploadService{
		dao:          dao,
		fingerprints: fingerprints,
		storage:      store,
		pipeline:     pipeline,
		publicURL:    strings.TrimSuffix(serverCfg.PublicURL, "/"),
		maxSize:      serverCfg.MaxUploadSize,
		presignTTL:   time.Duration(storageCfg.PresignTTLMinute) * time.Minute,
	}
}

func (s *UploadService) InitUpload(ctx context.Context, owner string, req *InitUploadRequest) (*InitUploadResult, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, ErrMissingField.Enrich("filename")
	}
	if !types.AcceptedVideoTypes[req.MimeType] {
		return nil, ErrInvalidRequest.Enrich(fmt.Sprintf("unsupported mime type %s", req.MimeType))
	}
	if req.Size <= 0 || req.Size > s.maxSize {
		return nil, ErrInvalidRequest.Enrich(fmt.Sprintf("size should be between 1 and %d bytes", s.maxSize))
	}
	dup, err := s.fingerprints.CheckDuplicate(ctx, req.Sha256)
	if err != nil {
		return nil, err
	}
	if dup.Exists {
		return &InitUploadResult{IsDuplicate: true, ExistingAssetID: dup.OwnerAssetID}, nil
	}

	asset, err := s.fingerprints.RegisterAsset(ctx, owner, req.Sha256, AssetMeta{
		DisplayName: strings.TrimSpace(req.Filename),
		MimeType:    req.MimeType,
		Size:        req.Size,
	})
	if err != nil {
		var dupErr *DuplicateError
		if errors.As(err, &dupErr) {
			return &InitUploadResult{IsDuplicate: true, ExistingAssetID: dupErr.ExistingAssetID}, nil
		}
		return nil, err
	}

	uploadURL, err := s.uploadURL(asset)
	if err != nil {
		logging.Logger.Errorf("failed to presign upload, asset=%s, err=%s", asset.Id, err.Error())
		return nil, Transient(err)
	}
	logging.Logger.Infof("asset registered, asset=%s, owner=%s, sha256=%s", asset.Id, asset.OwnerWallet, asset.Sha256)
	return &InitUploadResult{AssetID: asset.Id, UploadURL: uploadURL}, nil
}

func (s *UploadService) uploadURL(asset *db.Asset) (string, error) {
	if presigner, ok := s.storage.(storage.Presigner); ok {
		return presigner.PresignPut(types.GetVideoKey(asset.Id, asset.DisplayName), s.presignTTL)
	}
	return fmt.Sprintf("%s/videos/%s/upload", s.publicURL, asset.Id), nil
}

// ownedAsset loads the asset and checks requester owns it.
func (s *UploadService) ownedAsset(ctx context.Context, requester, assetID string) (*db.Asset, error) {
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

// UploadContent stores the raw bytes of the asset. Any prior validation is reset before the bytes are
// written, and every upload lands under its own key so the previous object stays intact until the
// locator moves to the new one.
func (s *UploadService) UploadContent(ctx context.Context, requester, assetID string, body io.Reader) (*db.Asset, error) {
	asset, err := s.ownedAsset(ctx, requester, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Verified {
		return nil, ErrAlreadyVerified
	}
	err = s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{
		"hash_status":   db.HashProvisional,
		"actual_sha256": "",
	})
	if err != nil {
		logging.Logger.Errorf("failed to reset asset hash status, asset=%s, err=%s", asset.Id, err.Error())
		return nil, err
	}

	limited := &io.LimitedReader{R: body, N: s.maxSize + 1}
	locator, err := s.storage.Put(ctx, types.GetUploadKey(asset.Id, uuid.NewString(), asset.DisplayName), limited)
	if err != nil {
		logging.Logger.Errorf("failed to store asset content, asset=%s, err=%s", asset.Id, err.Error())
		return nil, Transient(err)
	}
	if limited.N <= 0 {
		s.deleteObject(ctx, asset.Id, locator)
		return nil, ErrInvalidRequest.Enrich("upload exceeds max size")
	}
	if err = s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{"storage_locator": locator}); err != nil {
		logging.Logger.Errorf("failed to update storage locator, asset=%s, err=%s", asset.Id, err.Error())
		s.deleteObject(ctx, asset.Id, locator)
		return nil, err
	}
	if asset.StorageLocator != "" && asset.StorageLocator != locator {
		s.deleteObject(ctx, asset.Id, asset.StorageLocator)
	}
	return s.dao.GetAsset(ctx, asset.Id)
}

func (s *UploadService) deleteObject(ctx context.Context, assetID, locator string) {
	if err := s.storage.Delete(ctx, locator); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logging.Logger.Errorf("failed to delete object, asset=%s, locator=%s, err=%s", assetID, locator, err.Error())
	}
}

// CompleteUpload validates the stored bytes and dispatches the media pipeline once.
func (s *UploadService) CompleteUpload(ctx context.Context, requester, assetID, expectedSha256 string) (*db.Asset, error) {
	asset, err := s.ownedAsset(ctx, requester, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.Uploaded() {
		presigner, ok := s.storage.(storage.Presigner)
		if !ok {
			return nil, ErrMissingField.Enrich("content not uploaded")
		}
		locator := presigner.Locator(types.GetVideoKey(asset.Id, asset.DisplayName))
		if err = s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{"storage_locator": locator}); err != nil {
			return nil, err
		}
	}

	asset, err = s.fingerprints.RevalidateAsset(ctx, asset.Id, expectedSha256)
	if err != nil {
		return nil, err
	}

	dispatch, err := s.dao.MarkPipelineDispatched(ctx, asset.Id)
	if err != nil {
		logging.Logger.Errorf("failed to mark pipeline dispatched, asset=%s, err=%s", asset.Id, err.Error())
		return nil, err
	}
	if dispatch {
		if _, err = s.pipeline.EnqueuePipeline(ctx, asset.Id); err != nil {
			logging.Logger.Errorf("failed to enqueue pipeline, asset=%s, err=%s", asset.Id, err.Error())
			if cerr := s.dao.ClearPipelineDispatched(ctx, asset.Id); cerr != nil {
				logging.Logger.Errorf("failed to clear pipeline dispatched, asset=%s, err=%s", asset.Id, cerr.Error())
			}
			return nil, err
		}
		asset.PipelineDispatched = true
	}
	return asset, nil
}

func (s *UploadService) GetAsset(ctx context.Context, assetID string) (*AssetDetail, error) {
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
	return &AssetDetail{Asset: asset, Proofs: proofs}, nil
}

// ListAssets pages through the assets of owner, newest first.
func (s *UploadService) ListAssets(ctx context.Context, owner string, verifiedOnly bool, page, pageSize int) (*AssetPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	assets, total, err := s.dao.ListAssetsByOwner(ctx, strings.ToLower(owner), verifiedOnly, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &AssetPage{Assets: assets, Total: total}, nil
}

func (s *UploadService) Jobs(ctx context.Context, requester, assetID string) (*orchestrator.Progress, error) {
	if _, err := s.ownedAsset(ctx, requester, assetID); err != nil {
		return nil, err
	}
	return s.pipeline.AssetProgress(ctx, assetID)
}

// DeleteAsset removes the asset and its derived objects. Proof rows outlive the asset.
func (s *UploadService) DeleteAsset(ctx context.Context, requester, assetID string) error {
	asset, err := s.ownedAsset(ctx, requester, assetID)
	if err != nil {
		return err
	}
	for _, locator := range []string{asset.StorageLocator, asset.ThumbnailLocator, asset.PlaybackLocator} {
		if locator == "" {
			continue
		}
		s.deleteObject(ctx, asset.Id, locator)
	}
	if err = s.dao.DeleteAsset(ctx, asset.Id); err != nil {
		logging.Logger.Errorf("failed to delete asset, asset=%s, err=%s", asset.Id, err.Error())
		return err
	}
	logging.Logger.Infof("asset deleted, asset=%s, owner=%s", asset.Id, asset.OwnerWallet)
	return nil
}
