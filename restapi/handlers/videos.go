package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/gorilla/mux"

	"github.com/bnb-chain/verivid-hub/entity"
	"github.com/bnb-chain/verivid-hub/service"
)

// assetID reads the {id} route variable. Asset ids are uuids, anything else cannot exist.
func assetID(r *http.Request) (string, error) {
	id := mux.Vars(r)["id"]
	if !strfmt.IsUUID(id) {
		return "", service.ErrNotFound.Enrich("asset")
	}
	return id, nil
}

func (h *Handlers) UploadInit(w http.ResponseWriter, r *http.Request) {
	var req entity.UploadInitRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	identity := IdentityFrom(r.Context())
	res, err := h.Uploads.InitUpload(r.Context(), identity.Wallet, &service.InitUploadRequest{
		Filename: req.Filename,
		MimeType: req.MimeType,
		Size:     req.Size,
		Sha256:   req.Sha256,
	})
	Respond(w, res, err)
}

func (h *Handlers) UploadContent(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	defer r.Body.Close()
	asset, err := h.Uploads.UploadContent(r.Context(), IdentityFrom(r.Context()).Wallet, id, r.Body)
	Respond(w, asset, err)
}

func (h *Handlers) UploadComplete(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	var req entity.UploadCompleteRequest
	if err = decodeOptional(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	asset, err := h.Uploads.CompleteUpload(r.Context(), IdentityFrom(r.Context()).Wallet, id, req.ExpectedSha256)
	Respond(w, asset, err)
}

func (h *Handlers) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req entity.HashRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Fingerprints.CheckDuplicate(r.Context(), req.Sha256)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	Respond(w, entity.DuplicateResponse{IsDuplicate: res.Exists, ExistingAssetID: res.OwnerAssetID}, nil)
}

func (h *Handlers) VerifyHash(w http.ResponseWriter, r *http.Request) {
	var req entity.HashRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Verify.VerifyByHash(r.Context(), req.Sha256)
	Respond(w, res, err)
}

func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("pageSize"))
	verifiedOnly, _ := strconv.ParseBool(query.Get("verified"))
	res, err := h.Uploads.ListAssets(r.Context(), IdentityFrom(r.Context()).Wallet, verifiedOnly, page, pageSize)
	Respond(w, res, err)
}

func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Uploads.GetAsset(r.Context(), id)
	Respond(w, res, err)
}

func (h *Handlers) VideoJobs(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Uploads.Jobs(r.Context(), IdentityFrom(r.Context()).Wallet, id)
	Respond(w, res, err)
}

func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	err = h.Uploads.DeleteAsset(r.Context(), IdentityFrom(r.Context()).Wallet, id)
	Respond(w, struct{}{}, err)
}
