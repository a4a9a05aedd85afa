package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/bnb-chain/verivid-hub/config"
)

type ProbeResult struct {
	DurationSec float64
	Width       int
	Height      int
}

// Prober reads technical metadata of a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// Transcoder derives artifacts from a local media file into dst.
type Transcoder interface {
	Thumbnail(ctx context.Context, src, dst string) error
	Transcode(ctx context.Context, src, dst string) error
}

// FFmpeg shells out to the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpeg(cfg *config.PipelineConfig) *FFmpeg {
	f := &FFmpeg{ffmpegPath: cfg.FFmpegPath, ffprobePath: cfg.FFprobePath}
	if f.ffmpegPath == "" {
		f.ffmpegPath = "ffmpeg"
	}
	if f.ffprobePath == "" {
		f.ffprobePath = "ffprobe"
	}
	return f
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	out, err := f.run(ctx, f.ffprobePath, "-v", "error", "-print_format", "json", "-show_format", "-show_streams", path)
	if err != nil {
		return nil, err
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (*ProbeResult, error) {
	parsed := ffprobeOutput{}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	result := &ProbeResult{}
	if parsed.Format.Duration != "" {
		duration, err := strconv.ParseFloat(parsed.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %s: %w", parsed.Format.Duration, err)
		}
		result.DurationSec = duration
	}
	for _, stream := range parsed.Streams {
		if stream.CodecType == "video" {
			result.Width, result.Height = stream.Width, stream.Height
			break
		}
	}
	return result, nil
}

func (f *FFmpeg) Thumbnail(ctx context.Context, src, dst string) error {
	_, err := f.run(ctx, f.ffmpegPath, "-y", "-v", "error", "-ss", "00:00:01", "-i", src, "-frames:v", "1", "-vf", "scale=640:-2", dst)
	return err
}

func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	_, err := f.run(ctx, f.ffmpegPath, "-y", "-v", "error", "-i", src,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-movflags", "+faststart", dst)
	return err
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w, stderr=%s", bin, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
