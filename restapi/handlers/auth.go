package handlers

import (
	"net/http"
	"time"

	"github.com/bnb-chain/verivid-hub/entity"
)

func (h *Handlers) Nonce(w http.ResponseWriter, r *http.Request) {
	var req entity.NonceRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	challenge, err := h.Auth.IssueNonce(r.Context(), req.Wallet)
	Respond(w, challenge, err)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	session, err := h.Auth.Authenticate(r.Context(), req.Wallet, req.Signature)
	if err != nil {
		Respond(w, nil, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	Respond(w, entity.LoginResponse{
		Token:     session.Token,
		Wallet:    session.Wallet,
		ExpiresAt: session.ExpiresAt.Unix(),
	}, nil)
}

func (h *Handlers) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	Respond(w, struct{}{}, nil)
}

func (h *Handlers) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req entity.RecoverRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	err := h.Recovery.RequestRecovery(r.Context(), req.Email)
	Respond(w, struct{}{}, err)
}

func (h *Handlers) VerifyRecovery(w http.ResponseWriter, r *http.Request) {
	var req entity.RecoverVerifyRequest
	if err := decode(r, &req); err != nil {
		Respond(w, nil, err)
		return
	}
	identity, err := h.Recovery.VerifyRecovery(r.Context(), req.Token, req.NewWallet)
	Respond(w, identity, err)
}
