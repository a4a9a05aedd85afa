package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/entity"
	"github.com/bnb-chain/verivid-hub/orchestrator"
	"github.com/bnb-chain/verivid-hub/service"
)

const (
	pathNonce          = "/auth/nonce"
	pathLogin          = "/auth/login"
	pathLogout         = "/auth/logout"
	pathRecoverRequest = "/auth/recover/request"
	pathRecoverVerify  = "/auth/recover/verify"
	pathMe             = "/users/me"
	pathUser           = "/users/%s"
	pathVideos         = "/videos"
	pathVideo          = "/videos/%s"
	pathUploadInit     = "/videos/upload-init"
	pathUploadComplete = "/videos/%s/upload-complete"
	pathVideoJobs      = "/videos/%s/jobs"
	pathCheckDuplicate = "/videos/check-duplicate"
	pathVerifyHash     = "/videos/verify-hash"
	pathPrepareTx      = "/verify/prepare-tx"
	pathConfirmTx      = "/verify/confirm-tx"
	pathVerifyProof    = "/verify/%s"
	pathVerifyVideo    = "/verify/video/%s"
	pathHealth         = "/health"
)

// APIError is a non-ok envelope returned by the hub.
type APIError struct {
	Status  int
	Code    string
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verivid api error, status=%d, code=%s, message=%s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Code  string          `json:"code"`
	Error *string         `json:"error"`
	Data  json.RawMessage `json:"data"`
}

type VeriVidClient struct {
	hc    *http.Client
	host  string
	token string
}

func NewVeriVidClient(host string) *VeriVidClient {
	transport := &http.Transport{
		DisableCompression:  true,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{
		Timeout:   10 * time.Minute,
		Transport: transport,
	}
	return &VeriVidClient{hc: client, host: strings.TrimSuffix(host, "/")}
}

// SetToken sets the session token sent as bearer credential.
func (c *VeriVidClient) SetToken(token string) {
	c.token = token
}

func (c *VeriVidClient) do(ctx context.Context, method, target string, body io.Reader, contentType string, out interface{}) error {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.host + target
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	bz, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading http response body %s", err)
	}
	var env envelope
	if err = json.Unmarshal(bz, &env); err != nil {
		return fmt.Errorf("unexpected response, status=%s, err=%s", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Data: env.Data}
		if env.Error != nil {
			apiErr.Message = *env.Error
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *VeriVidClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		bz, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(bz)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *VeriVidClient) Health(ctx context.Context) (*entity.Health, error) {
	var res entity.Health
	return &res, c.doJSON(ctx, http.MethodGet, pathHealth, nil, &res)
}

func (c *VeriVidClient) Nonce(ctx context.Context, wallet string) (*service.NonceChallenge, error) {
	var res service.NonceChallenge
	return &res, c.doJSON(ctx, http.MethodPost, pathNonce, &entity.NonceRequest{Wallet: wallet}, &res)
}

// Login exchanges a signed nonce for a session and keeps the token for later calls.
func (c *VeriVidClient) Login(ctx context.Context, wallet, signature string) (*entity.LoginResponse, error) {
	var res entity.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, pathLogin, &entity.LoginRequest{Wallet: wallet, Signature: signature}, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

func (c *VeriVidClient) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, pathLogout, nil, nil)
	c.token = ""
	return err
}

func (c *VeriVidClient) RequestRecovery(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, pathRecoverRequest, &entity.RecoverRequest{Email: email}, nil)
}

func (c *VeriVidClient) VerifyRecovery(ctx context.Context, token, newWallet string) (*db.Identity, error) {
	var res db.Identity
	return &res, c.doJSON(ctx, http.MethodPost, pathRecoverVerify, &entity.RecoverVerifyRequest{Token: token, NewWallet: newWallet}, &res)
}

func (c *VeriVidClient) Me(ctx context.Context) (*service.Profile, error) {
	var res service.Profile
	return &res, c.doJSON(ctx, http.MethodGet, pathMe, nil, &res)
}

func (c *VeriVidClient) UpdateMe(ctx context.Context, req *entity.ProfileRequest) (*db.Identity, error) {
	var res db.Identity
	return &res, c.doJSON(ctx, http.MethodPost, pathMe, req, &res)
}

func (c *VeriVidClient) PublicProfile(ctx context.Context, wallet string) (*service.PublicProfile, error) {
	var res service.PublicProfile
	return &res, c.doJSON(ctx, http.MethodGet, fmt.Sprintf(pathUser, url.PathEscape(wallet)), nil, &res)
}

func (c *VeriVidClient) UploadInit(ctx context.Context, req *entity.UploadInitRequest) (*service.InitUploadResult, error) {
	var res service.InitUploadResult
	return &res, c.doJSON(ctx, http.MethodPost, pathUploadInit, req, &res)
}

// Upload puts the raw content to the url handed out by UploadInit.
func (c *VeriVidClient) Upload(ctx context.Context, uploadURL string, content io.Reader) (*db.Asset, error) {
	var res db.Asset
	return &res, c.do(ctx, http.MethodPut, uploadURL, content, "application/octet-stream", &res)
}

func (c *VeriVidClient) UploadComplete(ctx context.Context, assetID, expectedSha256 string) (*db.Asset, error) {
	var res db.Asset
	return &res, c.doJSON(ctx, http.MethodPost, fmt.Sprintf(pathUploadComplete, assetID), &entity.UploadCompleteRequest{ExpectedSha256: expectedSha256}, &res)
}

func (c *VeriVidClient) CheckDuplicate(ctx context.Context, sha256 string) (*entity.DuplicateResponse, error) {
	var res entity.DuplicateResponse
	return &res, c.doJSON(ctx, http.MethodPost, pathCheckDuplicate, &entity.HashRequest{Sha256: sha256}, &res)
}

func (c *VeriVidClient) VerifyHash(ctx context.Context, sha256 string) (*service.HashVerification, error) {
	var res service.HashVerification
	return &res, c.doJSON(ctx, http.MethodPost, pathVerifyHash, &entity.HashRequest{Sha256: sha256}, &res)
}

func (c *VeriVidClient) ListVideos(ctx context.Context, verifiedOnly bool, page, pageSize int) (*service.AssetPage, error) {
	query := url.Values{}
	query.Set("verified", strconv.FormatBool(verifiedOnly))
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))
	var res service.AssetPage
	return &res, c.doJSON(ctx, http.MethodGet, pathVideos+"?"+query.Encode(), nil, &res)
}

func (c *VeriVidClient) GetVideo(ctx context.Context, assetID string) (*service.AssetDetail, error) {
	var res service.AssetDetail
	return &res, c.doJSON(ctx, http.MethodGet, fmt.Sprintf(pathVideo, assetID), nil, &res)
}

func (c *VeriVidClient) VideoJobs(ctx context.Context, assetID string) (*orchestrator.Progress, error) {
	var res orchestrator.Progress
	return &res, c.doJSON(ctx, http.MethodGet, fmt.Sprintf(pathVideoJobs, assetID), nil, &res)
}

func (c *VeriVidClient) DeleteVideo(ctx context.Context, assetID string) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf(pathVideo, assetID), nil, nil)
}

func (c *VeriVidClient) PrepareTx(ctx context.Context, assetID string) (*service.PreparedTx, error) {
	var res service.PreparedTx
	return &res, c.doJSON(ctx, http.MethodPost, pathPrepareTx, &entity.PrepareTxRequest{AssetID: assetID}, &res)
}

func (c *VeriVidClient) ConfirmTx(ctx context.Context, req *entity.ConfirmTxRequest) (*service.ConfirmResult, error) {
	var res service.ConfirmResult
	return &res, c.doJSON(ctx, http.MethodPost, pathConfirmTx, req, &res)
}

func (c *VeriVidClient) VerifyProof(ctx context.Context, proofHash string) (*service.ProofVerification, error) {
	var res service.ProofVerification
	return &res, c.doJSON(ctx, http.MethodGet, fmt.Sprintf(pathVerifyProof, proofHash), nil, &res)
}

func (c *VeriVidClient) VerifyVideo(ctx context.Context, assetID string) (*service.AssetVerification, error) {
	var res service.AssetVerification
	return &res, c.doJSON(ctx, http.MethodGet, fmt.Sprintf(pathVerifyVideo, assetID), nil, &res)
}
