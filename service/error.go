package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Verify Interface Compliance
var _ error = (*Err)(nil)

const (
	CategoryAuth       = "auth"
	CategoryConflict   = "conflict"
	CategoryChain      = "chain"
	CategoryValidation = "validation"
	CategoryInternal   = "internal"
)

// Err defines service errors. Code is stable and machine readable, Status is the http status it maps to.
type Err struct {
	Code     string `json:"code"`
	Status   int    `json:"-"`
	Message  string `json:"error"`
	category string
}

var (
	NoErr       = Err{Code: "ok", Status: http.StatusOK}
	InternalErr = Err{Code: "internal_error", Status: http.StatusInternalServerError, Message: "internal error", category: CategoryInternal}

	ErrNoPendingNonce     = Err{Code: "no_pending_nonce", Status: http.StatusUnauthorized, Message: "no pending nonce for wallet", category: CategoryAuth}
	ErrSignatureMismatch  = Err{Code: "signature_mismatch", Status: http.StatusUnauthorized, Message: "signature does not match wallet", category: CategoryAuth}
	ErrMalformedSignature = Err{Code: "malformed_signature", Status: http.StatusUnauthorized, Message: "malformed signature", category: CategoryAuth}
	ErrSessionExpired     = Err{Code: "session_expired", Status: http.StatusUnauthorized, Message: "session expired", category: CategoryAuth}
	ErrInvalidSession     = Err{Code: "invalid_session", Status: http.StatusUnauthorized, Message: "invalid session", category: CategoryAuth}
	ErrNotOwner           = Err{Code: "not_owner", Status: http.StatusForbidden, Message: "caller does not own the asset", category: CategoryAuth}

	ErrDuplicateContent = Err{Code: "duplicate_content", Status: http.StatusConflict, Message: "content already registered", category: CategoryConflict}
	ErrProofConflict    = Err{Code: "proof_conflict", Status: http.StatusConflict, Message: "proof registered by another signer", category: CategoryConflict}
	ErrAlreadyVerified  = Err{Code: "already_verified", Status: http.StatusConflict, Message: "asset already verified", category: CategoryConflict}
	ErrWalletInUse      = Err{Code: "wallet_in_use", Status: http.StatusConflict, Message: "wallet bound to another identity", category: CategoryConflict}
	ErrEmailInUse       = Err{Code: "email_in_use", Status: http.StatusConflict, Message: "email bound to another identity", category: CategoryConflict}

	ErrTxNotConfirmed   = Err{Code: "tx_not_confirmed", Status: http.StatusUnprocessableEntity, Message: "transaction not confirmed", category: CategoryChain}
	ErrProofNotFound    = Err{Code: "proof_not_found", Status: http.StatusUnprocessableEntity, Message: "proof not found on chain", category: CategoryChain}
	ErrTxMismatch       = Err{Code: "tx_mismatch", Status: http.StatusUnprocessableEntity, Message: "transaction does not target the registry", category: CategoryChain}
	ErrChainUnavailable = Err{Code: "chain_unavailable", Status: http.StatusBadGateway, Message: "chain rpc unavailable", category: CategoryChain}

	ErrInvalidWallet     = Err{Code: "invalid_wallet", Status: http.StatusBadRequest, Message: "invalid wallet address", category: CategoryValidation}
	ErrInvalidHash       = Err{Code: "invalid_hash", Status: http.StatusBadRequest, Message: "invalid hash", category: CategoryValidation}
	ErrMissingField      = Err{Code: "missing_field", Status: http.StatusBadRequest, Message: "missing field", category: CategoryValidation}
	ErrHashMismatch      = Err{Code: "hash_mismatch", Status: http.StatusBadRequest, Message: "stored content hash does not match", category: CategoryValidation}
	ErrHashNotValidated  = Err{Code: "hash_not_validated", Status: http.StatusBadRequest, Message: "content hash not validated", category: CategoryValidation}
	ErrProofHashMismatch = Err{Code: "proof_hash_mismatch", Status: http.StatusBadRequest, Message: "proof hash does not match content", category: CategoryValidation}
	ErrNotFound          = Err{Code: "not_found", Status: http.StatusNotFound, Message: "not found", category: CategoryValidation}
	ErrInvalidRequest    = Err{Code: "invalid_request", Status: http.StatusBadRequest, Message: "invalid request", category: CategoryValidation}
	ErrTooManyRequests   = Err{Code: "too_many_requests", Status: http.StatusTooManyRequests, Message: "too many requests", category: CategoryValidation}
	ErrServiceBusy       = Err{Code: "service_unavailable", Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable", category: CategoryInternal}
)

func (e Err) Enrich(message string) Err {
	return Err{
		Code:     e.Code,
		Status:   e.Status,
		Message:  fmt.Sprintf("%s: %s", e.Message, message),
		category: e.category,
	}
}

func (e Err) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on the code so enriched errors still match their sentinel.
func (e Err) Is(target error) bool {
	t, ok := target.(Err)
	return ok && t.Code == e.Code
}

func (e Err) Category() string {
	if e.category == "" {
		return CategoryInternal
	}
	return e.category
}

// DuplicateError reports the asset that already owns a content hash.
type DuplicateError struct {
	ExistingAssetID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: existing asset %s", ErrDuplicateContent.Message, e.ExistingAssetID)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateContent
}

type transientErr struct {
	err error
}

func (e *transientErr) Error() string {
	return e.err.Error()
}

func (e *transientErr) Unwrap() error {
	return e.err
}

// Transient marks err as a temporary collaborator failure that is worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientErr{err: err}
}

func IsTransient(err error) bool {
	var t *transientErr
	return errors.As(err, &t)
}

// AsErr extracts the service error carried by err.
func AsErr(err error) (Err, bool) {
	var e Err
	if errors.As(err, &e) {
		return e, true
	}
	return Err{}, false
}
