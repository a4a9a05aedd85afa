package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bnb-chain/verivid-hub/entity"
	"github.com/bnb-chain/verivid-hub/service"
)

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	res, err := h.Profiles.GetProfile(r.Context(), IdentityFrom(r.Context()))
	Respond(w, res, err)
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req entity.ProfileRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	res, err := h.Profiles.UpdateProfile(r.Context(), IdentityFrom(r.Context()), &service.ProfileUpdate{
		Username:  req.Username,
		Email:     req.Email,
		Bio:       req.Bio,
		AvatarUrl: req.AvatarUrl,
	})
	Respond(w, res, err)
}

func (h *Handlers) PublicProfile(w http.ResponseWriter, r *http.Request) {
	res, err := h.Profiles.PublicProfile(r.Context(), mux.Vars(r)["wallet"])
	Respond(w, res, err)
}
