package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/ipfs"
	"github.com/bnb-chain/verivid-hub/external/media"
	"github.com/bnb-chain/verivid-hub/external/notify"
	"github.com/bnb-chain/verivid-hub/external/storage"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/types"
)

// Stages holds the collaborators of the five pipeline stages. Every stage only writes its own
// asset fields, so stages of one asset can run in any order and concurrently.
type Stages struct {
	dao        db.VeriVidDao
	storage    storage.Storage
	prober     media.Prober
	transcoder media.Transcoder
	content    ipfs.ContentStore
	notifier   notify.Notifier
	tempDir    string
}

func NewStages(dao db.VeriVidDao, store storage.Storage, prober media.Prober, transcoder media.Transcoder,
	content ipfs.ContentStore, notifier notify.Notifier, tempDir string) *Stages {
	return &Stages{
		dao:        dao,
		storage:    store,
		prober:     prober,
		transcoder: transcoder,
		content:    content,
		notifier:   notifier,
		tempDir:    tempDir,
	}
}

// RegisterAll binds every stage handler to o.
func (s *Stages) RegisterAll(o *Orchestrator) {
	o.Register(types.JobDuplicateScan, s.DuplicateScan)
	o.Register(types.JobMetadataExtract, s.MetadataExtract)
	o.Register(types.JobThumbnail, s.Thumbnail)
	o.Register(types.JobTranscode, s.Transcode)
	o.Register(types.JobPin, s.Pin)
}

// loadAsset returns nil when the asset was deleted after the job was enqueued.
func (s *Stages) loadAsset(ctx context.Context, job *db.Job) (*db.Asset, error) {
	asset, err := s.dao.GetAsset(ctx, job.AssetId)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		logging.Logger.Infof("asset gone, skip job, job=%s, asset=%s", job.Id, job.AssetId)
		return nil, nil
	}
	if !asset.Uploaded() {
		return nil, fmt.Errorf("asset %s has no stored content: %w", asset.Id, ErrPermanent)
	}
	return asset, nil
}

func (s *Stages) DuplicateScan(ctx context.Context, job *db.Job) error {
	asset, err := s.loadAsset(ctx, job)
	if err != nil || asset == nil {
		return err
	}
	digest := asset.ActualSha256
	if digest == "" {
		digest = asset.Sha256
	}
	dup, err := s.dao.FindDuplicateAsset(ctx, digest, asset.Id)
	if err != nil {
		return err
	}
	// the earliest registrant of the content is the original
	if dup == nil || asset.Flagged || asset.CreatedAt.Before(dup.CreatedAt) {
		return nil
	}
	reason := fmt.Sprintf("duplicate of %s", dup.Id)
	if err = s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{
		"flagged":     true,
		"flag_reason": reason,
	}); err != nil {
		return err
	}
	logging.Logger.Warningf("asset flagged, asset=%s, reason=%s", asset.Id, reason)

	owner, err := s.dao.GetIdentityByWallet(ctx, asset.OwnerWallet)
	if err != nil || owner == nil || owner.EmailAddress() == "" {
		return nil
	}
	body := fmt.Sprintf("Your video \"%s\" has been flagged for review because its content matches an existing video.", asset.DisplayName)
	if err = s.notifier.Notify(ctx, owner.EmailAddress(), "Video Flagged for Moderation", body); err != nil {
		logging.Logger.Errorf("failed to notify owner, asset=%s, err=%s", asset.Id, err.Error())
	}
	return nil
}

func (s *Stages) MetadataExtract(ctx context.Context, job *db.Job) error {
	asset, err := s.loadAsset(ctx, job)
	if err != nil || asset == nil {
		return err
	}
	path, cleanup, err := s.download(ctx, asset)
	if err != nil {
		return err
	}
	defer cleanup()
	result, err := s.prober.Probe(ctx, path)
	if err != nil {
		return err
	}
	return s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{
		"duration_sec": result.DurationSec,
		"width":        result.Width,
		"height":       result.Height,
	})
}

func (s *Stages) Thumbnail(ctx context.Context, job *db.Job) error {
	asset, err := s.loadAsset(ctx, job)
	if err != nil || asset == nil {
		return err
	}
	locator, err := s.derive(ctx, asset, types.GetThumbnailKey(asset.Id), s.transcoder.Thumbnail)
	if err != nil {
		return err
	}
	return s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{"thumbnail_locator": locator})
}

func (s *Stages) Transcode(ctx context.Context, job *db.Job) error {
	asset, err := s.loadAsset(ctx, job)
	if err != nil || asset == nil {
		return err
	}
	locator, err := s.derive(ctx, asset, types.GetRenditionKey(asset.Id), s.transcoder.Transcode)
	if err != nil {
		return err
	}
	return s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{"playback_locator": locator})
}

func (s *Stages) Pin(ctx context.Context, job *db.Job) error {
	asset, err := s.loadAsset(ctx, job)
	if err != nil || asset == nil {
		return err
	}
	if asset.PinCid != "" {
		return nil
	}
	r, err := s.open(ctx, asset)
	if err != nil {
		return err
	}
	defer r.Close()
	cid, err := s.content.Pin(ctx, types.GetVideoPinName(asset.Id), r)
	if err != nil {
		return err
	}
	return s.dao.UpdateAsset(ctx, asset.Id, map[string]interface{}{"pin_cid": cid})
}

// derive runs fn from a local copy of the asset into a temp file and stores the result under key.
func (s *Stages) derive(ctx context.Context, asset *db.Asset, key string, fn func(ctx context.Context, src, dst string) error) (string, error) {
	src, cleanup, err := s.download(ctx, asset)
	if err != nil {
		return "", err
	}
	defer cleanup()
	dst := src + filepath.Ext(key)
	defer os.Remove(dst)
	if err = fn(ctx, src, dst); err != nil {
		return "", err
	}
	f, err := os.Open(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.storage.Put(ctx, key, f)
}

func (s *Stages) open(ctx context.Context, asset *db.Asset) (io.ReadCloser, error) {
	r, err := s.storage.Get(ctx, asset.StorageLocator)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("stored content of asset %s missing: %w", asset.Id, ErrPermanent)
		}
		return nil, err
	}
	return r, nil
}

func (s *Stages) download(ctx context.Context, asset *db.Asset) (string, func(), error) {
	r, err := s.open(ctx, asset)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()
	f, err := os.CreateTemp(s.tempDir, "verivid-"+asset.Id+"-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err = f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
