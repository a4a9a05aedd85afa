package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutGetDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	locator, err := s.Put(ctx, "videos/a1/clip.mp4", strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, "local://videos/a1/clip.mp4", locator)

	r, err := s.Get(ctx, locator)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "hello", string(content))

	require.NoError(t, s.Delete(ctx, locator))
	_, err = s.Get(ctx, locator)
	require.ErrorIs(t, err, ErrObjectNotFound)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, locator))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../outside", strings.NewReader("x"))
	require.Error(t, err)
	_, err = s.Get(context.Background(), "s3://bucket/key")
	require.Error(t, err)
}

func TestLocalStorageCanceledPut(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Put(ctx, "videos/a1/clip.mp4", strings.NewReader("hello"))
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.Get(context.Background(), "local://videos/a1/clip.mp4")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestParseGreenfieldLocator(t *testing.T) {
	bucket, name, object, err := parseGreenfieldLocator("greenfield://bkt/verivid_videos_a1_clip_mp4/videos/a1/clip.mp4")
	require.NoError(t, err)
	require.Equal(t, "bkt", bucket)
	require.Equal(t, "verivid_videos_a1_clip_mp4", name)
	require.Equal(t, "videos/a1/clip.mp4", object)
	require.Equal(t, name, bundleName(object))

	_, _, _, err = parseGreenfieldLocator("local://x")
	require.Error(t, err)
}
