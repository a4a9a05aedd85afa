package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/external/storage"
	"github.com/bnb-chain/verivid-hub/types"
	"github.com/bnb-chain/verivid-hub/util"
)

func initRequest(content []byte) *InitUploadRequest {
	return &InitUploadRequest{
		Filename: "clip.mp4",
		MimeType: "video/mp4",
		Size:     int64(len(content)),
		Sha256:   util.GenerateChecksum(content),
	}
}

func TestConcurrentUploadOfSameContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := []byte("the same bytes")
	alice, bob := newTestWallet(t), newTestWallet(t)

	var (
		wg      sync.WaitGroup
		results = make([]*InitUploadResult, 2)
	)
	for i, wallet := range []*testWallet{alice, bob} {
		wg.Add(1)
		go func(i int, owner string) {
			defer wg.Done()
			res, err := f.uploads.InitUpload(ctx, owner, initRequest(content))
			assert.NoError(t, err)
			results[i] = res
		}(i, wallet.Address)
	}
	wg.Wait()
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	winner, loser := results[0], results[1]
	if winner.IsDuplicate {
		winner, loser = loser, winner
	}
	require.False(t, winner.IsDuplicate)
	require.True(t, loser.IsDuplicate)
	require.Equal(t, winner.AssetID, loser.ExistingAssetID)

	asset, err := f.dao.GetAssetBySha256(ctx, util.GenerateChecksum(content))
	require.NoError(t, err)
	require.Equal(t, winner.AssetID, asset.Id)
}

func TestInitUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address

	req := initRequest([]byte("x"))
	req.MimeType = "image/png"
	_, err := f.uploads.InitUpload(ctx, owner, req)
	require.ErrorIs(t, err, ErrInvalidRequest)

	req = initRequest([]byte("x"))
	req.Size = 2 << 20
	_, err = f.uploads.InitUpload(ctx, owner, req)
	require.ErrorIs(t, err, ErrInvalidRequest)

	req = initRequest([]byte("x"))
	req.Sha256 = "abc"
	_, err = f.uploads.InitUpload(ctx, owner, req)
	require.ErrorIs(t, err, ErrInvalidHash)

	req = initRequest([]byte("x"))
	req.Filename = " "
	_, err = f.uploads.InitUpload(ctx, owner, req)
	require.ErrorIs(t, err, ErrMissingField)
}

func TestInitUploadReturnsApiUploadURL(t *testing.T) {
	f := newFixture(t)
	res, err := f.uploads.InitUpload(context.Background(), newTestWallet(t).Address, initRequest([]byte("x")))
	require.NoError(t, err)
	require.Equal(t, "http://api.verivid.local/videos/"+res.AssetID+"/upload", res.UploadURL)
}

func TestCompleteUploadDispatchesPipelineOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address
	asset := f.uploadValidated(t, owner, []byte("video bytes"))

	_, err := f.uploads.CompleteUpload(ctx, owner, asset.Id, "")
	require.NoError(t, err)

	progress, err := f.uploads.Jobs(ctx, owner, asset.Id)
	require.NoError(t, err)
	require.Len(t, progress.Stages, len(types.PipelineStages))
	for i, stage := range progress.Stages {
		require.Equal(t, types.PipelineStages[i], stage.Type)
		require.Equal(t, db.JobPending, stage.Status)
	}
	require.False(t, progress.Complete)
}

func TestConcurrentCompleteUploadDispatchesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address
	content := []byte("completed twice")

	res, err := f.uploads.InitUpload(ctx, owner, initRequest(content))
	require.NoError(t, err)
	_, err = f.uploads.UploadContent(ctx, owner, res.AssetID, bytes.NewReader(content))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uploads.CompleteUpload(ctx, owner, res.AssetID, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	progress, err := f.uploads.Jobs(ctx, owner, res.AssetID)
	require.NoError(t, err)
	require.Len(t, progress.Stages, len(types.PipelineStages))

	asset, err := f.dao.GetAsset(ctx, res.AssetID)
	require.NoError(t, err)
	require.True(t, asset.PipelineDispatched)
}

func TestCompleteUploadDetectsHashMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address

	res, err := f.uploads.InitUpload(ctx, owner, initRequest([]byte("declared")))
	require.NoError(t, err)
	_, err = f.uploads.UploadContent(ctx, owner, res.AssetID, bytes.NewReader([]byte("something else")))
	require.NoError(t, err)

	_, err = f.uploads.CompleteUpload(ctx, owner, res.AssetID, "")
	require.ErrorIs(t, err, ErrHashMismatch)

	asset, err := f.dao.GetAsset(ctx, res.AssetID)
	require.NoError(t, err)
	require.Equal(t, db.HashMismatch, asset.HashStatus)
	require.Equal(t, util.GenerateChecksum([]byte("something else")), asset.ActualSha256)

	// a mismatched asset can never be prepared for verification
	_, err = f.proofs.Prepare(ctx, owner, res.AssetID)
	require.ErrorIs(t, err, ErrHashNotValidated)
}

func TestCompleteUploadChecksExpectedHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address
	content := []byte("declared")

	res, err := f.uploads.InitUpload(ctx, owner, initRequest(content))
	require.NoError(t, err)
	_, err = f.uploads.UploadContent(ctx, owner, res.AssetID, bytes.NewReader(content))
	require.NoError(t, err)

	_, err = f.uploads.CompleteUpload(ctx, owner, res.AssetID, util.GenerateChecksum([]byte("other")))
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestOversizedReuploadKeepsValidatedObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address
	content := []byte("validated bytes")
	asset := f.uploadValidated(t, owner, content)

	_, err := f.uploads.UploadContent(ctx, owner, asset.Id, bytes.NewReader(make([]byte, (1<<20)+10)))
	require.ErrorIs(t, err, ErrInvalidRequest)

	stored, err := f.dao.GetAsset(ctx, asset.Id)
	require.NoError(t, err)
	require.Equal(t, db.HashProvisional, stored.HashStatus)
	require.Empty(t, stored.ActualSha256)
	require.Equal(t, asset.StorageLocator, stored.StorageLocator)

	rc, err := f.storage.Get(ctx, stored.StorageLocator)
	require.NoError(t, err)
	defer rc.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	require.Equal(t, content, buf.Bytes())

	_, err = f.proofs.Prepare(ctx, owner, asset.Id)
	require.ErrorIs(t, err, ErrHashNotValidated)

	// completing again restores validation from the untouched object
	revalidated, err := f.uploads.CompleteUpload(ctx, owner, asset.Id, "")
	require.NoError(t, err)
	require.Equal(t, db.HashValidated, revalidated.HashStatus)
}

func TestReuploadResetsValidationAndSwapsObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address
	asset := f.uploadValidated(t, owner, []byte("first cut"))

	f.storage.SetPutError(errors.New("bucket unavailable"))
	_, err := f.uploads.UploadContent(ctx, owner, asset.Id, bytes.NewReader([]byte("second cut")))
	require.Error(t, err)
	require.True(t, IsTransient(err))
	stored, err := f.dao.GetAsset(ctx, asset.Id)
	require.NoError(t, err)
	require.Equal(t, db.HashProvisional, stored.HashStatus)

	f.storage.SetPutError(nil)
	updated, err := f.uploads.UploadContent(ctx, owner, asset.Id, bytes.NewReader([]byte("second cut")))
	require.NoError(t, err)
	require.NotEqual(t, asset.StorageLocator, updated.StorageLocator)
	require.Equal(t, db.HashProvisional, updated.HashStatus)

	_, err = f.storage.Get(ctx, asset.StorageLocator)
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestUploadRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, other := newTestWallet(t).Address, newTestWallet(t).Address

	res, err := f.uploads.InitUpload(ctx, owner, initRequest([]byte("mine")))
	require.NoError(t, err)
	_, err = f.uploads.UploadContent(ctx, other, res.AssetID, bytes.NewReader([]byte("mine")))
	require.ErrorIs(t, err, ErrNotOwner)
	require.ErrorIs(t, f.uploads.DeleteAsset(ctx, other, res.AssetID), ErrNotOwner)
}

func TestDeleteAssetRemovesObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address
	asset := f.uploadValidated(t, owner, []byte("to delete"))

	require.NoError(t, f.uploads.DeleteAsset(ctx, owner, asset.Id))
	_, err := f.storage.Get(ctx, asset.StorageLocator)
	require.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, err = f.uploads.GetAsset(ctx, asset.Id)
	require.ErrorIs(t, err, ErrNotFound)

	// the content can be registered again
	res, err := f.uploads.InitUpload(ctx, owner, initRequest([]byte("to delete")))
	require.NoError(t, err)
	require.False(t, res.IsDuplicate)
}

func TestListAssetsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := newTestWallet(t).Address
	first := f.uploadValidated(t, owner, []byte("first"))
	second := f.uploadValidated(t, owner, []byte("second"))

	page, err := f.uploads.ListAssets(ctx, owner, false, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	require.Len(t, page.Assets, 2)
	ids := []string{page.Assets[0].Id, page.Assets[1].Id}
	require.ElementsMatch(t, []string{first.Id, second.Id}, ids)

	page, err = f.uploads.ListAssets(ctx, owner, true, 1, 10)
	require.NoError(t, err)
	require.Empty(t, page.Assets)
}
