package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bnb-chain/verivid-hub/config"
)

const (
	pathPinFile = "/pinning/pinFileToIPFS"
	pathPinJSON = "/pinning/pinJSONToIPFS"
)

// ContentStore pins content and addresses it by CID.
type ContentStore interface {
	Pin(ctx context.Context, name string, r io.Reader) (string, error)
	PinJSON(ctx context.Context, name string, v interface{}) (string, error)
	GatewayURL(cid string) string
}

// PinningClient talks to a Pinata compatible pinning API.
type PinningClient struct {
	hc      *http.Client
	host    string
	jwt     string
	gateway string
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinJSONRequest struct {
	PinataContent  interface{} `json:"pinataContent"`
	PinataMetadata pinMetadata `json:"pinataMetadata"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func NewPinningClient(cfg *config.IPFSConfig) *PinningClient {
	transport := &http.Transport{
		DisableCompression:  true,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{
		Timeout:   time.Hour,
		Transport: transport,
	}
	return &PinningClient{
		hc:      client,
		host:    strings.TrimSuffix(cfg.PinningEndpoint, "/"),
		jwt:     cfg.JWT,
		gateway: strings.TrimSuffix(cfg.GatewayURL, "/"),
	}
}

func (c *PinningClient) Pin(ctx context.Context, name string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		filePart, err := writer.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err = io.Copy(filePart, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		meta, _ := json.Marshal(pinMetadata{Name: name})
		if err = writer.WriteField("pinataMetadata", string(meta)); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()
	cid, err := c.send(ctx, pathPinFile, writer.FormDataContentType(), pr)
	if err != nil {
		pr.CloseWithError(err)
	}
	return cid, err
}

func (c *PinningClient) PinJSON(ctx context.Context, name string, v interface{}) (string, error) {
	body, err := json.Marshal(pinJSONRequest{
		PinataContent:  v,
		PinataMetadata: pinMetadata{Name: name},
	})
	if err != nil {
		return "", err
	}
	return c.send(ctx, pathPinJSON, "application/json", bytes.NewReader(body))
}

func (c *PinningClient) GatewayURL(cid string) string {
	return fmt.Sprintf("%s/ipfs/%s", c.gateway, cid)
}

func (c *PinningClient) send(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-OK response status: %s, err %s", resp.Status, string(respBody))
	}
	pinned := pinResponse{}
	if err = json.Unmarshal(respBody, &pinned); err != nil {
		return "", err
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("pinning service returned no cid")
	}
	return pinned.IpfsHash, nil
}
