package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetVideoKeyStripsPath(t *testing.T) {
	require.Equal(t, "videos/a1/clip.mp4", GetVideoKey("a1", "../../etc/clip.mp4"))
	require.Equal(t, "videos/a1/clip.mp4", GetVideoKey("a1", `C:\users\me\clip.mp4`))
	require.Equal(t, "videos/a1/original", GetVideoKey("a1", ""))
}

func TestGetUploadKeyIsPerUpload(t *testing.T) {
	require.Equal(t, "videos/a1/u1/clip.mp4", GetUploadKey("a1", "u1", "../clip.mp4"))
	require.NotEqual(t, GetUploadKey("a1", "u1", "clip.mp4"), GetUploadKey("a1", "u2", "clip.mp4"))
}

func TestPipelineStagesOrder(t *testing.T) {
	require.Equal(t, []JobType{JobDuplicateScan, JobMetadataExtract, JobThumbnail, JobTranscode, JobPin}, PipelineStages)
	require.True(t, JobPin.Valid())
	require.False(t, JobType("upload").Valid())
}
