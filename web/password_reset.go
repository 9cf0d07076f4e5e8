package web

import (
	"net/http"

	"github.com/afromart/gate"
	"github.com/afromart/gate/form"
	"github.com/afromart/gate/middleware"
	"github.com/go-chi/chi/v5"
)

// Reset page variants.
const (
	resetLive    = "live"
	resetExpired = "expired"
	resetDone    = "done"
	resetSent    = "sent"
)

func (h *Handler) resetRequestPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageResetRequest, page{Title: "Reset password"})
}

func (h *Handler) resetRequest(w http.ResponseWriter, r *http.Request) {
	base, ok := h.linkBase(w, r)
	if !ok {
		return
	}
	email := r.PostFormValue(form.FieldEmail)
	res, err := h.engine.RequestPasswordReset(r.Context(), gate.ResetRequest{
		Email:   email,
		BaseURL: base,
	})
	if err != nil {
		h.fail(w, r, "password reset request", err)
		return
	}
	if !res.Errors.Valid() {
		h.render(w, r, http.StatusOK, pageResetRequest, page{
			Title:  "Reset password",
			Values: map[string]string{form.FieldEmail: email},
			Errors: h.fieldErrors(r, res.Errors),
		})
		return
	}
	h.render(w, r, http.StatusOK, pageResetRequest, page{Title: "Reset password", State: resetSent})
}

// guardReset renders the expired view and reports false when an anonymous
// requester holds no live link.
func (h *Handler) guardReset(w http.ResponseWriter, r *http.Request, id *gate.Identity, hash string) bool {
	ok, err := h.engine.PasswordResetLinkValid(r.Context(), id, hash)
	if err != nil {
		h.fail(w, r, "password reset link check", err)
		return false
	}
	if !ok {
		h.render(w, r, http.StatusOK, pageReset, page{Title: "Reset password", State: resetExpired})
		return false
	}
	return true
}

func (h *Handler) resetPage(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	hash := chi.URLParam(r, "hash")
	if !h.guardReset(w, r, id, hash) {
		return
	}
	h.render(w, r, http.StatusOK, pageReset, page{Title: "Reset password", Hash: hash, State: resetLive})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	hash := chi.URLParam(r, "hash")
	if !h.guardReset(w, r, id, hash) {
		return
	}

	res, err := h.engine.ResetPassword(r.Context(), id, gate.ResetAction{
		TokenHash: hash,
		Password1: r.PostFormValue(form.FieldPassword1),
		Password2: r.PostFormValue(form.FieldPassword2),
	})
	if err != nil {
		h.fail(w, r, "password reset", err)
		return
	}

	switch res.Outcome {
	case gate.ResetSignedOut:
		middleware.ClearSessionCookie(w, h.config.Cookie)
		http.Redirect(w, r, h.config.Routes.SignIn, http.StatusFound)
	case gate.ResetDone:
		h.render(w, r, http.StatusOK, pageReset, page{Title: "Reset password", State: resetDone})
	case gate.ResetLinkExpired:
		h.render(w, r, http.StatusOK, pageReset, page{Title: "Reset password", State: resetExpired})
	default:
		h.render(w, r, http.StatusOK, pageReset, page{
			Title:  "Reset password",
			Hash:   hash,
			State:  resetLive,
			Errors: h.fieldErrors(r, res.Errors),
		})
	}
}
