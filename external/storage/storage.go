package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnb-chain/verivid-hub/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage keeps the raw bytes of assets and their derived artifacts. Put returns an opaque
// locator that is later handed back to Get and Delete.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Get(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
}

// Presigner is implemented by backends that let clients upload directly. Locator reports where
// an object uploaded that way can be read back from.
type Presigner interface {
	PresignPut(key string, ttl time.Duration) (string, error)
	Locator(key string) string
}

func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.StorageType {
	case config.StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir)
	case config.StorageTypeS3:
		return NewS3Storage(cfg)
	case config.StorageTypeGreenfield:
		return NewGreenfieldStorage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type %s", cfg.StorageType)
	}
}
