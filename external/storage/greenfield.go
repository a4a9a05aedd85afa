package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	bundlesdk "github.com/bnb-chain/greenfield-bundle-sdk/bundle"
	bundlesdktypes "github.com/bnb-chain/greenfield-bundle-sdk/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/node-real/greenfield-bundle-service/types"

	"github.com/bnb-chain/verivid-hub/config"
)

const (
	pathDeleteBundle    = "/v1/deleteBundle"
	pathUploadBundle    = "/v1/uploadBundle"
	pathGetBundleObject = "/v1/view/%s/%s/%s" // {bucketName}/{bundleName}/{objectName}

	greenfieldScheme  = "greenfield://"
	bundleExpiredTime = 24 * time.Hour
)

// GreenfieldStorage stores every object as a single-object bundle through the Greenfield bundle service.
type GreenfieldStorage struct {
	hc      *http.Client
	host    string
	bucket  string
	privKey []byte
	addr    common.Address
}

func NewGreenfieldStorage(cfg *config.StorageConfig) (*GreenfieldStorage, error) {
	privKey, err := hex.DecodeString(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, err
	}
	privateKey, err := crypto.ToECDSA(privKey)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		DisableCompression:  true,
		MaxIdleConnsPerHost: 1000,
		MaxConnsPerHost:     1000,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{
		Timeout:   time.Hour,
		Transport: transport,
	}
	return &GreenfieldStorage{
		hc:      client,
		host:    cfg.BundleServiceEndpoint,
		bucket:  cfg.BucketName,
		privKey: privKey,
		addr:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

func bundleName(key string) string {
	return "verivid_" + strings.NewReplacer("/", "_", ".", "_").Replace(key)
}

func (s *GreenfieldStorage) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	// the object hash is part of the bundle header, so spool the body before bundling
	spool, err := os.CreateTemp("", "verivid-object-*")
	if err != nil {
		return "", err
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()
	hasher := sha256.New()
	if _, err = io.Copy(io.MultiWriter(spool, hasher), r); err != nil {
		return "", err
	}
	if _, err = spool.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	b, err := bundlesdk.NewBundle()
	if err != nil {
		return "", err
	}
	options := &bundlesdktypes.AppendObjectOptions{
		ContentType: mime.TypeByExtension(path.Ext(key)),
		HashAlgo:    bundlesdktypes.HashAlgo_SHA256,
		Hash:        hasher.Sum(nil),
	}
	if _, err = b.AppendObject(key, spool, options); err != nil {
		return "", err
	}
	bundleObject, _, err := b.FinalizeBundle()
	if err != nil {
		return "", err
	}
	defer bundleObject.Close()

	bundleHash := sha256.New()
	if _, err = io.Copy(bundleHash, bundleObject); err != nil {
		return "", err
	}
	if _, err = bundleObject.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	name := bundleName(key)
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		filePart, err := writer.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err = io.Copy(filePart, bundleObject); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()
	headers := map[string]string{
		"Content-Type":              writer.FormDataContentType(),
		"X-Bundle-Bucket-Name":      s.bucket,
		"X-Bundle-Name":             name,
		"X-Bundle-File-Sha256":      hex.EncodeToString(bundleHash.Sum(nil)),
		"X-Bundle-Expiry-Timestamp": fmt.Sprintf("%d", time.Now().Add(bundleExpiredTime).Unix()),
	}
	resp, err := s.sendRequest(ctx, s.host+pathUploadBundle, http.MethodPost, headers, pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-OK response status: %s, err %s", resp.Status, string(body))
	}
	return fmt.Sprintf("%s%s/%s/%s", greenfieldScheme, s.bucket, name, key), nil
}

func (s *GreenfieldStorage) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, name, object, err := parseGreenfieldLocator(locator)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.host+fmt.Sprintf(pathGetBundleObject, bucket, name, object), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("received non-OK response status: %s", resp.Status)
	}
	return resp.Body, nil
}

func (s *GreenfieldStorage) Delete(ctx context.Context, locator string) error {
	bucket, name, _, err := parseGreenfieldLocator(locator)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"Content-Type":              "application/json",
		"X-Bundle-Bucket-Name":      bucket,
		"X-Bundle-Name":             name,
		"X-Bundle-Expiry-Timestamp": fmt.Sprintf("%d", time.Now().Add(bundleExpiredTime).Unix()),
	}
	resp, err := s.sendRequest(ctx, s.host+pathDeleteBundle, http.MethodPost, headers, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("received non-OK response status: %s, err %s", resp.Status, string(body))
	}
	return nil
}

func parseGreenfieldLocator(locator string) (bucket, name, object string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(locator, greenfieldScheme), "/", 3)
	if !strings.HasPrefix(locator, greenfieldScheme) || len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid greenfield locator %s", locator)
	}
	return parts[0], parts[1], parts[2], nil
}

func (s *GreenfieldStorage) sendRequest(ctx context.Context, url, method string, headers map[string]string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	signature, err := s.signMessage(types.TextHash(crypto.Keccak256([]byte(types.GetCanonicalRequest(req)))))
	if err != nil {
		return nil, err
	}
	req.Header.Set(types.HTTPHeaderAuthorization, hex.EncodeToString(signature))
	return s.hc.Do(req)
}

func (s *GreenfieldStorage) signMessage(message []byte) ([]byte, error) {
	privateKey, err := crypto.ToECDSA(s.privKey)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(message, privateKey)
}
