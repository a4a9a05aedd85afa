package mock

import (
	"context"
	"os"
	"sync"

	"github.com/bnb-chain/verivid-hub/external/media"
)

// Media returns a fixed probe result and writes marker files for derived artifacts.
type Media struct {
	mu         sync.RWMutex
	Result     media.ProbeResult
	probeErr   error
	probeCalls int
}

func NewMedia() *Media {
	return &Media{Result: media.ProbeResult{DurationSec: 12.5, Width: 1280, Height: 720}}
}

// FailProbes makes Probe return err until reset with nil.
func (m *Media) FailProbes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
}

func (m *Media) ProbeCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.probeCalls
}

func (m *Media) Probe(_ context.Context, path string) (*media.ProbeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeCalls++
	if m.probeErr != nil {
		return nil, m.probeErr
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	result := m.Result
	return &result, nil
}

func (m *Media) Thumbnail(_ context.Context, _, dst string) error {
	return os.WriteFile(dst, []byte("thumbnail"), 0o644)
}

func (m *Media) Transcode(_ context.Context, _, dst string) error {
	return os.WriteFile(dst, []byte("rendition"), 0o644)
}
