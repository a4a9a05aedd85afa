package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
)

// ContentStore derives a fake cid from the content hash, so equal content pins to equal cids.
type ContentStore struct {
	mu      sync.RWMutex
	pinned  map[string][]byte
	pinErr  error
	pinCall int
}

func NewContentStore() *ContentStore {
	return &ContentStore{pinned: make(map[string][]byte)}
}

func (c *ContentStore) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinErr = err
}

func (c *ContentStore) PinCalls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pinCall
}

func (c *ContentStore) Pinned(cid string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.pinned[cid]
	return content, ok
}

func (c *ContentStore) Pin(_ context.Context, _ string, r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return c.store(content)
}

func (c *ContentStore) PinJSON(_ context.Context, _ string, v interface{}) (string, error) {
	content, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return c.store(content)
}

func (c *ContentStore) GatewayURL(cid string) string {
	return "https://gateway.example/ipfs/" + cid
}

func (c *ContentStore) store(content []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinCall++
	if c.pinErr != nil {
		return "", c.pinErr
	}
	sum := sha256.Sum256(content)
	cid := "bafy" + hex.EncodeToString(sum[:16])
	c.pinned[cid] = content
	return cid, nil
}
