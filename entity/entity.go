package entity

import (
	"net/http"
	"strings"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
)

// Response is the envelope of every API answer. Error is null on success.
type Response struct {
	Code  string      `json:"code"`
	Error *string     `json:"error"`
	Data  interface{} `json:"data"`
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(http.StatusBadRequest, "%s in body is required", field)
	}
	return nil
}

func validate(errs ...error) error {
	res := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			res = append(res, err)
		}
	}
	if len(res) == 0 {
		return nil
	}
	return errors.CompositeValidationError(res...)
}

type NonceRequest struct {
	Wallet string `json:"wallet"`
}

func (r *NonceRequest) Validate() error {
	return validate(required("wallet", r.Wallet))
}

type LoginRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
}

func (r *LoginRequest) Validate() error {
	return validate(required("wallet", r.Wallet), required("signature", r.Signature))
}

type LoginResponse struct {
	Token     string `json:"token"`
	Wallet    string `json:"wallet"`
	ExpiresAt int64  `json:"expiresAt"`
}

type RecoverRequest struct {
	Email string `json:"email"`
}

func (r *RecoverRequest) Validate() error {
	if err := required("email", r.Email); err != nil {
		return validate(err)
	}
	if !strfmt.Default.Validates("email", strings.TrimSpace(r.Email)) {
		return validate(errors.New(http.StatusBadRequest, "email in body must be of type email"))
	}
	return nil
}

type RecoverVerifyRequest struct {
	Token     string `json:"token"`
	NewWallet string `json:"newWallet"`
}

func (r *RecoverVerifyRequest) Validate() error {
	return validate(required("token", r.Token), required("newWallet", r.NewWallet))
}

type UploadInitRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Sha256   string `json:"sha256"`
}

func (r *UploadInitRequest) Validate() error {
	var sizeErr error
	if r.Size <= 0 {
		sizeErr = errors.New(http.StatusBadRequest, "size in body should be greater than 0")
	}
	return validate(required("filename", r.Filename), required("mimeType", r.MimeType), required("sha256", r.Sha256), sizeErr)
}

type UploadCompleteRequest struct {
	ExpectedSha256 string `json:"expectedSha256"`
}

type HashRequest struct {
	Sha256 string `json:"sha256"`
}

func (r *HashRequest) Validate() error {
	return validate(required("sha256", r.Sha256))
}

type PrepareTxRequest struct {
	AssetID string `json:"assetId"`
}

func (r *PrepareTxRequest) Validate() error {
	return validate(required("assetId", r.AssetID))
}

type ConfirmTxRequest struct {
	AssetID   string `json:"assetId"`
	TxHash    string `json:"txHash"`
	Signer    string `json:"signer"`
	ProofHash string `json:"proofHash"`
}

func (r *ConfirmTxRequest) Validate() error {
	return validate(required("assetId", r.AssetID), required("txHash", r.TxHash), required("signer", r.Signer), required("proofHash", r.ProofHash))
}

type ProfileRequest struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarUrl *string `json:"avatarUrl,omitempty"`
}

type DuplicateResponse struct {
	IsDuplicate     bool   `json:"isDuplicate"`
	ExistingAssetID string `json:"existingAssetId,omitempty"`
}

type Health struct {
	Timestamp string `json:"timestamp"`
}
