package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/config"
)

func TestPinningClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case pathPinJSON:
			req := pinJSONRequest{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "meta.json", req.PinataMetadata.Name)
			_, _ = w.Write([]byte(`{"IpfsHash":"bafyjson","PinSize":10}`))
		case pathPinFile:
			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			content, _ := io.ReadAll(file)
			assert.Equal(t, "clip.mp4", header.Filename)
			assert.Equal(t, "video-bytes", string(content))
			assert.Contains(t, r.FormValue("pinataMetadata"), "clip.mp4")
			_, _ = w.Write([]byte(`{"IpfsHash":"bafyfile","PinSize":11}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewPinningClient(&config.IPFSConfig{PinningEndpoint: server.URL + "/", JWT: "secret", GatewayURL: "https://gw.example/"})
	ctx := context.Background()

	cid, err := client.PinJSON(ctx, "meta.json", map[string]string{"a": "b"})
	require.NoError(t, err)
	require.Equal(t, "bafyjson", cid)

	cid, err = client.Pin(ctx, "clip.mp4", strings.NewReader("video-bytes"))
	require.NoError(t, err)
	require.Equal(t, "bafyfile", cid)

	require.Equal(t, "https://gw.example/ipfs/bafyfile", client.GatewayURL(cid))
}

func TestPinningClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad jwt"))
	}))
	defer server.Close()

	client := NewPinningClient(&config.IPFSConfig{PinningEndpoint: server.URL})
	_, err := client.PinJSON(context.Background(), "x", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad jwt")
}
