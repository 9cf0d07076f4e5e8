package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/afromart/gate"
	"github.com/afromart/gate/form"
	"github.com/afromart/gate/internal/logging"
	"github.com/afromart/gate/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page templates. Each is parsed together with layout.html.
const (
	pageSignIn         = "signin.html"
	pageSignUp         = "signup.html"
	pageSignUpVerify   = "signup_verify.html"
	pageSignUpVerified = "signup_verified.html"
	pageResetRequest   = "password_reset_request.html"
	pageReset          = "password_reset.html"
	pageError          = "error.html"
)

var pageNames = []string{
	pageSignIn,
	pageSignUp,
	pageSignUpVerify,
	pageSignUpVerified,
	pageResetRequest,
	pageReset,
	pageError,
}

// Engine is the part of *gate.Engine the pages use.
type Engine interface {
	middleware.Authenticator
	Config() gate.Config
	Register(ctx context.Context, req gate.SignupRequest) (gate.SignupResult, error)
	Verify(ctx context.Context, tokenHash string) (gate.VerifyStatus, error)
	SignIn(ctx context.Context, username, password string) (gate.SignInResult, error)
	SignOut(ctx context.Context, id *gate.Identity) error
	RequestPasswordReset(ctx context.Context, req gate.ResetRequest) (gate.ResetRequestResult, error)
	PasswordResetLinkValid(ctx context.Context, id *gate.Identity, tokenHash string) (bool, error)
	ResetPassword(ctx context.Context, id *gate.Identity, action gate.ResetAction) (gate.ResetResult, error)
}

// Handler renders the account pages.
type Handler struct {
	engine Engine
	config gate.Config
	log    logging.Logger
	pages  map[string]*template.Template
	// mount is the path prefix Routes is mounted under; it builds form
	// actions and in-page links.
	mount string
}

// New parses the page templates. mount is the prefix the router will be
// mounted under, usually "/gate".
func New(engine Engine, mount string, log logging.Logger) (*Handler, error) {
	if engine == nil {
		return nil, gate.ErrEngineNotReady
	}
	if log == nil {
		log = logging.Discard()
	}
	cfg := engine.Config()
	if err := checkRoutes(cfg.Routes, mount); err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Handler{
		engine: engine,
		config: cfg,
		log:    log,
		pages:  pages,
		mount:  mount,
	}, nil
}

// checkRoutes makes sure the paths the engine links and redirects to are
// the ones Routes serves under mount.
func checkRoutes(routes gate.RoutesConfig, mount string) error {
	mount = strings.TrimRight(mount, "/")
	for _, rt := range []struct{ name, got, want string }{
		{"SignIn", routes.SignIn, mount + "/signin/"},
		{"VerifyBase", routes.VerifyBase, mount + "/signup_verify/"},
		{"ResetBase", routes.ResetBase, mount + "/password_reset/"},
	} {
		if rt.got != rt.want {
			return fmt.Errorf("web: Routes.%s is %q, want %q for mount %q", rt.name, rt.got, rt.want, mount)
		}
	}
	return nil
}

// Routes returns the account router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.LoadSession(h.engine, h.config.Cookie))

	r.Get("/signin/", h.signInPage)
	r.Post("/signin/", h.signIn)
	r.With(middleware.RequireAuth(h.config.Routes.SignIn)).HandleFunc("/signout/", h.signOut)
	r.Get("/password_reset_request/", h.resetRequestPage)
	r.Post("/password_reset_request/", h.resetRequest)
	r.Get("/password_reset/{hash}", h.resetPage)
	r.Post("/password_reset/{hash}", h.reset)
	r.Get("/signup/", h.signUpPage)
	r.Post("/signup/", h.signUp)
	r.Get("/signup_verify/{hash}", h.verify)

	return r
}

// page is the data every template receives.
type page struct {
	Title  string
	Mount  string
	Values map[string]string
	Errors map[string][]template.HTML
	// Hash is the reset link token echoed into the reset form action.
	Hash string
	// State selects a variant of pages that have several, such as the
	// reset page's form, expired and success views.
	State string
}

// FieldError joins the messages of one field.
func (p page) FieldError(field string) template.HTML {
	return joinMessages(p.Errors[field])
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	t, ok := h.pages[name]
	if !ok {
		h.fail(w, r, "render", fmt.Errorf("unknown page %q", name))
		return
	}
	data.Mount = h.mount

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		h.fail(w, r, "render "+name, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// fail logs err with the request id and shows a generic error page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	reqID := chimw.GetReqID(r.Context())
	h.log.Error(r.Context(), "web: "+op+" failed", "request_id", reqID, "path", r.URL.Path, "error", err)

	t, ok := h.pages[pageError]
	var buf bytes.Buffer
	if !ok || t.ExecuteTemplate(&buf, "layout.html", page{Title: "Error", Mount: h.mount, State: reqID}) != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) msgArgs() messageArgs {
	return messageArgs{
		UsernameMin:  strconv.Itoa(h.config.Policy.UsernameMinLen),
		UsernameMax:  strconv.Itoa(h.config.Policy.UsernameMaxLen),
		SignIn:       h.config.Routes.SignIn,
		ResetRequest: h.mount + "/password_reset_request/",
	}
}

// fieldErrors translates errs for the requester's language.
func (h *Handler) fieldErrors(r *http.Request, errs form.Errors) map[string][]template.HTML {
	return fieldMessages(printerFor(r.Header.Get("Accept-Language")), errs, h.msgArgs())
}

// home is where an already signed-in visitor is sent.
func (h *Handler) home(id *gate.Identity) string {
	if id != nil && id.Staff {
		return h.config.Routes.StaffHome
	}
	return h.config.Routes.Home
}

// linkBase is the scheme and host emailed links are built on. Without a
// configured base URL the request host must be one of Mail.AllowedHosts;
// otherwise the request gets a 400 and false is returned.
func (h *Handler) linkBase(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.config.Mail.BaseURL == "" && !h.config.Mail.AllowsHost(r.Host) {
		h.log.Warn(r.Context(), "web: host not allowed for links",
			"request_id", chimw.GetReqID(r.Context()), "host", r.Host)
		http.Error(w, "Bad Request.", http.StatusBadRequest)
		return "", false
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host, true
}
