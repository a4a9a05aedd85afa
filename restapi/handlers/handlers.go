package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	openapierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/swag"

	"github.com/bnb-chain/verivid-hub/db"
	"github.com/bnb-chain/verivid-hub/entity"
	"github.com/bnb-chain/verivid-hub/logging"
	"github.com/bnb-chain/verivid-hub/service"
)

const (
	SessionCookie = "verivid_token"

	maxJSONBody = 1 << 20
)

type contextKey struct{}

// WithIdentity stores the authenticated identity of the request.
func WithIdentity(ctx context.Context, identity *db.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func IdentityFrom(ctx context.Context) *db.Identity {
	identity, _ := ctx.Value(contextKey{}).(*db.Identity)
	return identity
}

type Services struct {
	Auth         service.Auth
	Recovery     *service.RecoveryService
	Uploads      *service.UploadService
	Fingerprints *service.FingerprintRegistry
	Proofs       *service.ProofService
	Verify       *service.VerifyService
	Profiles     *service.ProfileService
}

type Handlers struct {
	Services
	cookieSecure bool
	now          func() time.Time
}

func NewHandlers(services Services, cookieSecure bool) *Handlers {
	return &Handlers{
		Services:     services,
		cookieSecure: cookieSecure,
		now:          time.Now,
	}
}

// Error maps err to the http status, the machine readable code and the message of the envelope.
func Error(err error) (int, string, string) {
	if err == nil {
		return service.NoErr.Status, service.NoErr.Code, ""
	}
	var dup *service.DuplicateError
	if errors.As(err, &dup) {
		return service.ErrDuplicateContent.Status, service.ErrDuplicateContent.Code, dup.Error()
	}
	// request body validation, composite failures carry 422 which is reported as a bad request
	var apiErr openapierrors.Error
	if errors.As(err, &apiErr) {
		return service.ErrInvalidRequest.Status, service.ErrInvalidRequest.Code, apiErr.Error()
	}
	e, ok := service.AsErr(err)
	switch {
	case service.IsTransient(err) && ok:
		return service.ErrServiceBusy.Status, e.Code, e.Message
	case service.IsTransient(err):
		return service.ErrServiceBusy.Status, service.ErrServiceBusy.Code, service.ErrServiceBusy.Message
	case ok:
		return e.Status, e.Code, e.Message
	default:
		return service.InternalErr.Status, service.InternalErr.Code, service.InternalErr.Message
	}
}

func writeJSON(w http.ResponseWriter, status int, payload *entity.Response) {
	bz, err := swag.WriteJSON(payload)
	if err != nil {
		logging.Logger.Errorf("failed to encode response, err=%s", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bz)
}

// Respond writes data on success or the mapped error envelope.
func Respond(w http.ResponseWriter, data interface{}, err error) {
	status, code, message := Error(err)
	payload := &entity.Response{Code: code}
	if err != nil {
		if status >= http.StatusInternalServerError {
			logging.Logger.Errorf("request failed, code=%s, err=%s", code, err.Error())
		}
		payload.Error = &message
		var dup *service.DuplicateError
		if errors.As(err, &dup) {
			payload.Data = entity.DuplicateResponse{IsDuplicate: true, ExistingAssetID: dup.ExistingAssetID}
		}
	} else {
		payload.Data = data
	}
	writeJSON(w, status, payload)
}

func decode(r *http.Request, v interface{}) error {
	return decodeBody(r, v, false)
}

// decodeOptional accepts an empty body and leaves v untouched.
func decodeOptional(r *http.Request, v interface{}) error {
	return decodeBody(r, v, true)
}

func decodeBody(r *http.Request, v interface{}, optional bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return service.ErrInvalidRequest.Enrich(err.Error())
	}
	if len(body) == 0 {
		if optional {
			return nil
		}
		return service.ErrMissingField.Enrich("request body")
	}
	if err = json.Unmarshal(body, v); err != nil {
		return service.ErrInvalidRequest.Enrich("malformed json")
	}
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return nil
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	Respond(w, entity.Health{Timestamp: h.now().UTC().Format(time.RFC3339)}, nil)
}
