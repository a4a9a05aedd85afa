package mock

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bnb-chain/verivid-hub/external/storage"
)

const memoryScheme = "mem://"

// Storage keeps objects in memory.
type Storage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	putErr  error
}

func NewStorage() *Storage {
	return &Storage{objects: make(map[string][]byte)}
}

func (s *Storage) SetPutError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err = ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.objects[key] = content
	return memoryScheme + key, nil
}

func (s *Storage) Get(_ context.Context, locator string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[strings.TrimPrefix(locator, memoryScheme)]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *Storage) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, strings.TrimPrefix(locator, memoryScheme))
	return nil
}

// Object returns the stored bytes under key.
func (s *Storage) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[key]
	return content, ok
}

// PresignStorage is a Storage that also hands out fake presigned urls.
type PresignStorage struct {
	*Storage
}

func NewPresignStorage() *PresignStorage {
	return &PresignStorage{Storage: NewStorage()}
}

func (s *PresignStorage) PresignPut(key string, ttl time.Duration) (string, error) {
	return "https://presigned.example/" + key + "?ttl=" + ttl.String(), nil
}

func (s *PresignStorage) Locator(key string) string {
	return memoryScheme + key
}
