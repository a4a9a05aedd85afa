package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openapierrors "github.com/go-openapi/errors"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/verivid-hub/entity"
	"github.com/bnb-chain/verivid-hub/service"
)

func TestError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"nil", nil, http.StatusOK, "ok"},
		{"service error", service.ErrNotOwner, http.StatusForbidden, "not_owner"},
		{"enriched", service.ErrNotFound.Enrich("asset"), http.StatusNotFound, "not_found"},
		{"wrapped", fmt.Errorf("prepare: %w", service.ErrProofConflict), http.StatusConflict, "proof_conflict"},
		{"duplicate", &service.DuplicateError{ExistingAssetID: "a1"}, http.StatusConflict, "duplicate_content"},
		{"validation", openapierrors.New(http.StatusBadRequest, "wallet in body is required"), http.StatusBadRequest, "invalid_request"},
		{"composite validation", openapierrors.CompositeValidationError(openapierrors.New(http.StatusBadRequest, "a"), openapierrors.New(http.StatusBadRequest, "b")), http.StatusBadRequest, "invalid_request"},
		{"transient chain", service.Transient(service.ErrChainUnavailable), http.StatusServiceUnavailable, "chain_unavailable"},
		{"transient unknown", service.Transient(errors.New("connection reset")), http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := Error(tt.err)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.code, code)
		})
	}
}

func TestErrorHidesInternalMessage(t *testing.T) {
	_, _, message := Error(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	require.Equal(t, service.InternalErr.Message, message)
}

func TestRespondDuplicate(t *testing.T) {
	w := httptest.NewRecorder()
	Respond(w, nil, &service.DuplicateError{ExistingAssetID: "a1"})

	require.Equal(t, http.StatusConflict, w.Code)
	var res struct {
		Code  string                   `json:"code"`
		Error string                   `json:"error"`
		Data  entity.DuplicateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, "duplicate_content", res.Code)
	require.True(t, res.Data.IsDuplicate)
	require.Equal(t, "a1", res.Data.ExistingAssetID)
}

func TestDecodeBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/nonce", strings.NewReader(`{"wallet":""}`))
	var nonce entity.NonceRequest
	err := decode(req, &nonce)
	status, _, _ := Error(err)
	require.Equal(t, http.StatusBadRequest, status)

	req = httptest.NewRequest(http.MethodPost, "/videos/x/upload-complete", http.NoBody)
	var complete entity.UploadCompleteRequest
	require.NoError(t, decodeOptional(req, &complete))
	require.Empty(t, complete.ExpectedSha256)

	req = httptest.NewRequest(http.MethodPost, "/auth/nonce", http.NoBody)
	require.ErrorIs(t, decode(req, &nonce), service.ErrMissingField)
}
