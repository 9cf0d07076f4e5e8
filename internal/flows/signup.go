package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/afromart/gate/form"
	"github.com/afromart/gate/mail"
)

// RegisterRequest is a submitted signup form. BaseURL is the scheme and host
// the verification link is built on.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	BaseURL  string
}

// RegisterResult carries either field errors or the created account.
type RegisterResult struct {
	Errors     form.Errors
	UserID     int64
	TokenHash  string
	MailQueued bool
}

// RegisterMetrics carries metric IDs needed by the registration flow.
type RegisterMetrics struct {
	Created  int
	Rejected int
	MailDrop int
}

// RegisterEvents carries audit event names used by the registration flow.
type RegisterEvents struct {
	Created  string
	Rejected string
}

// RegisterErrors carries host-level sentinel errors used by the registration flow.
type RegisterErrors struct {
	EngineNotReady error
	UsernameTaken  error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Rules     FieldRules
	SignupTTL time.Duration

	CheckPassword  PasswordPolicy
	UsernameExists func(context.Context, string) (bool, error)
	EmailExists    func(context.Context, string) (bool, error)
	HashPassword   func(string) (string, error)
	CreateUser     func(context.Context, NewUserRecord) (int64, error)

	TokenHash     func(int64) string
	SetToken      func(context.Context, string, int64, time.Duration) error
	VerifyLink    func(baseURL, hash string) string
	ComposeSignup func(email, link string, validFor time.Duration) (mail.Message, error)
	Submit        func(context.Context, mail.Message) bool

	Hooks
	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister validates the signup form, creates an inactive account,
// stores its verification token and queues the welcome email.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (RegisterResult, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.UsernameExists == nil ||
		deps.EmailExists == nil ||
		deps.HashPassword == nil ||
		deps.CreateUser == nil ||
		deps.TokenHash == nil ||
		deps.SetToken == nil ||
		deps.VerifyLink == nil ||
		deps.ComposeSignup == nil ||
		deps.Submit == nil {
		return RegisterResult{}, deps.Errors.EngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	var errs form.Errors
	CheckUsername(username, deps.Rules, &errs)
	CheckPassword(form.FieldPassword, req.Password, deps.Rules.PasswordMaxLen, deps.CheckPassword, &errs,
		userAttributes(username, email)...)
	if CheckEmailSyntax(email, &errs) {
		CheckEmailDomain(email, deps.Rules, &errs)
	}
	if !errs.Valid() {
		return deps.reject(ctx, errs, username, "invalid_form"), nil
	}

	taken, err := deps.UsernameExists(ctx, username)
	if err != nil {
		return RegisterResult{}, err
	}
	if taken {
		errs.Add(form.FieldUsername, form.CodeUsernameTaken)
		return deps.reject(ctx, errs, username, "username_taken"), nil
	}

	inUse, err := deps.EmailExists(ctx, email)
	if err != nil {
		return RegisterResult{}, err
	}
	if inUse {
		errs.Add(form.FieldEmail, form.CodeEmailTaken)
		return deps.reject(ctx, errs, username, "email_taken"), nil
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	userID, err := deps.CreateUser(ctx, NewUserRecord{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		// The store's unique index catches a username claimed since the check.
		if deps.Errors.UsernameTaken != nil && errors.Is(err, deps.Errors.UsernameTaken) {
			errs.Add(form.FieldUsername, form.CodeUsernameTaken)
			return deps.reject(ctx, errs, username, "username_taken"), nil
		}
		return RegisterResult{}, err
	}

	tokenHash := deps.TokenHash(userID)
	if err := deps.SetToken(ctx, tokenHash, userID, deps.SignupTTL); err != nil {
		return RegisterResult{}, err
	}

	msg, err := deps.ComposeSignup(email, deps.VerifyLink(req.BaseURL, tokenHash), deps.SignupTTL)
	if err != nil {
		return RegisterResult{}, err
	}
	queued := deps.Submit(ctx, msg)
	if !queued {
		deps.MetricInc(deps.Metrics.MailDrop)
		deps.Warn(ctx, "gate: verification email not queued", "user_id", userID)
	}

	deps.MetricInc(deps.Metrics.Created)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Created,
		Success:  true,
		UserID:   userID,
		Username: username,
	})

	return RegisterResult{
		UserID:     userID,
		TokenHash:  tokenHash,
		MailQueued: queued,
	}, nil
}

func (deps RegisterDeps) reject(ctx context.Context, errs form.Errors, username, reason string) RegisterResult {
	deps.MetricInc(deps.Metrics.Rejected)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Rejected,
		Username: username,
		Reason:   reason,
	})
	return RegisterResult{Errors: errs}
}

// VerifyOutcome classifies a verification link visit.
type VerifyOutcome int

const (
	VerifyNotFound VerifyOutcome = iota
	VerifyAlreadyActive
	VerifyActivated
)

// VerifyMetrics carries metric IDs needed by the verification flow.
type VerifyMetrics struct {
	Activated int
	Repeated  int
	NotFound  int
}

// VerifyErrors carries host-level sentinel errors used by the verification flow.
type VerifyErrors struct {
	EngineNotReady error
	TokenNotFound  error
	UserNotFound   error
}

// VerifyDeps captures verification dependencies.
type VerifyDeps struct {
	GetToken    func(context.Context, string) (int64, error)
	GetUserByID func(context.Context, int64) (UserRecord, error)
	Activate    func(context.Context, int64) error

	Hooks
	Metrics VerifyMetrics
	Event   string
	Errors  VerifyErrors
}

// RunVerify activates the account behind a signup token. The token is left
// in place, so repeated visits report VerifyAlreadyActive until it expires.
func RunVerify(ctx context.Context, tokenHash string, deps VerifyDeps) (VerifyOutcome, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.GetToken == nil || deps.GetUserByID == nil || deps.Activate == nil {
		return VerifyNotFound, deps.Errors.EngineNotReady
	}

	if tokenHash == "" {
		deps.MetricInc(deps.Metrics.NotFound)
		return VerifyNotFound, nil
	}

	userID, err := deps.GetToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, deps.Errors.TokenNotFound) {
			deps.MetricInc(deps.Metrics.NotFound)
			return VerifyNotFound, nil
		}
		return VerifyNotFound, err
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			deps.MetricInc(deps.Metrics.NotFound)
			return VerifyNotFound, nil
		}
		return VerifyNotFound, err
	}

	if user.Active {
		deps.MetricInc(deps.Metrics.Repeated)
		return VerifyAlreadyActive, nil
	}

	if err := deps.Activate(ctx, user.ID); err != nil {
		return VerifyNotFound, err
	}

	deps.MetricInc(deps.Metrics.Activated)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Event,
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
	})
	return VerifyActivated, nil
}
