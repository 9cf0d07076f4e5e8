package web

import (
	"net/http"
	"strings"

	"github.com/afromart/gate"
	"github.com/afromart/gate/form"
	"github.com/afromart/gate/middleware"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) signUpPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, h.config.Routes.Home, http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, pageSignUp, page{Title: "Sign up"})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, h.config.Routes.Home, http.StatusFound)
		return
	}

	base, ok := h.linkBase(w, r)
	if !ok {
		return
	}
	req := gate.SignupRequest{
		Username: r.PostFormValue(form.FieldUsername),
		Email:    r.PostFormValue(form.FieldEmail),
		Password: r.PostFormValue(form.FieldPassword),
		BaseURL:  base,
	}
	res, err := h.engine.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, "sign up", err)
		return
	}
	if !res.Errors.Valid() {
		h.render(w, r, http.StatusOK, pageSignUp, page{
			Title: "Sign up",
			Values: map[string]string{
				form.FieldUsername: req.Username,
				form.FieldEmail:    req.Email,
			},
			Errors: h.fieldErrors(r, res.Errors),
		})
		return
	}

	h.render(w, r, http.StatusOK, pageSignUpVerify, page{
		Title:  "Check your email",
		Values: map[string]string{form.FieldEmail: strings.TrimSpace(req.Email)},
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Verify(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.fail(w, r, "verify", err)
		return
	}

	switch status {
	case gate.VerifyVerified:
		h.render(w, r, http.StatusOK, pageSignUpVerified, page{Title: "Email verified"})
	case gate.VerifyAlreadyVerified:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Customer already verified."))
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not Found."))
	}
}
