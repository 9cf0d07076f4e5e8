package web

import (
	"net/http"

	"github.com/afromart/gate/form"
	"github.com/afromart/gate/middleware"
)

func (h *Handler) signInPage(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, h.home(id), http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, pageSignIn, page{Title: "Sign in"})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, h.home(id), http.StatusFound)
		return
	}

	username := r.PostFormValue(form.FieldUsername)
	res, err := h.engine.SignIn(r.Context(), username, r.PostFormValue(form.FieldPassword))
	if err != nil {
		h.fail(w, r, "sign in", err)
		return
	}
	if !res.Errors.Valid() {
		h.render(w, r, http.StatusOK, pageSignIn, page{
			Title:  "Sign in",
			Values: map[string]string{form.FieldUsername: username},
			Errors: h.fieldErrors(r, res.Errors),
		})
		return
	}

	middleware.SetSessionCookie(w, h.config.Cookie, res.Token, res.ExpiresAt)
	http.Redirect(w, r, h.config.Routes.Home, http.StatusFound)
}

// signOut runs behind RequireAuth, so an identity is always present.
func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := h.engine.SignOut(r.Context(), id); err != nil {
		h.fail(w, r, "sign out", err)
		return
	}
	middleware.ClearSessionCookie(w, h.config.Cookie)
	http.Redirect(w, r, h.config.Routes.SignIn, http.StatusFound)
}
