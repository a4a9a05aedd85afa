package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bnb-chain/verivid-hub/entity"
	"github.com/bnb-chain/verivid-hub/service"
)

func (h *Handlers) PrepareTx(w http.ResponseWriter, r *http.Request) {
	var req entity.PrepareTxRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Proofs.Prepare(r.Context(), IdentityFrom(r.Context()).Wallet, req.AssetID)
	Respond(w, res, err)
}

func (h *Handlers) ConfirmTx(w http.ResponseWriter, r *http.Request) {
	var req entity.ConfirmTxRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Proofs.Confirm(r.Context(), IdentityFrom(r.Context()).Wallet, &service.ConfirmRequest{
		AssetID:   req.AssetID,
		TxHash:    req.TxHash,
		Signer:    req.Signer,
		ProofHash: req.ProofHash,
	})
	Respond(w, res, err)
}

func (h *Handlers) VerifyProof(w http.ResponseWriter, r *http.Request) {
	res, err := h.Verify.VerifyByProofHash(r.Context(), mux.Vars(r)["proofHash"])
	Respond(w, res, err)
}

func (h *Handlers) VerifyVideo(w http.ResponseWriter, r *http.Request) {
	id, err := assetID(r)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Verify.VerifyAsset(r.Context(), id)
	Respond(w, res, err)
}
