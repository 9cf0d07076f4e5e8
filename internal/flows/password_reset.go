package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/afromart/gate/form"
	"github.com/afromart/gate/mail"
)

// ResetRequest is a submitted "forgot password" form.
type ResetRequest struct {
	Email   string
	BaseURL string
}

// ResetRequestResult is either a form with errors or a sent link.
type ResetRequestResult struct {
	Errors     form.Errors
	UserID     int64
	TokenHash  string
	MailQueued bool
}

// ResetRequestMetrics carries metric IDs needed by the reset request flow.
type ResetRequestMetrics struct {
	Issued    int
	Rejected  int
	Duplicate int
	MailDrop  int
}

// ResetRequestErrors carries host-level sentinel errors used by the reset request flow.
type ResetRequestErrors struct {
	EngineNotReady error
	UserNotFound   error
}

// ResetRequestDeps captures reset request dependencies.
type ResetRequestDeps struct {
	ResetTTL time.Duration

	FindActiveUserByEmail func(context.Context, string) (UserRecord, error)
	TokenHash             func(int64) string
	TokenExists           func(context.Context, string) (bool, error)
	SetToken              func(context.Context, string, int64, time.Duration) error
	DeleteToken           func(context.Context, string) error
	ResetLink             func(baseURL, hash string) string
	ComposeReset          func(email, link string, validFor time.Duration) (mail.Message, error)
	Submit                func(context.Context, mail.Message) bool

	Hooks
	Metrics ResetRequestMetrics
	Event   string
	Errors  ResetRequestErrors
}

// RunRequestPasswordReset issues a reset link for an active account unless
// a previous link is still live.
func RunRequestPasswordReset(ctx context.Context, req ResetRequest, deps ResetRequestDeps) (ResetRequestResult, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.FindActiveUserByEmail == nil ||
		deps.TokenHash == nil ||
		deps.TokenExists == nil ||
		deps.SetToken == nil ||
		deps.DeleteToken == nil ||
		deps.ResetLink == nil ||
		deps.ComposeReset == nil ||
		deps.Submit == nil {
		return ResetRequestResult{}, deps.Errors.EngineNotReady
	}

	email := strings.TrimSpace(req.Email)

	var errs form.Errors
	if !CheckEmailSyntax(email, &errs) {
		return ResetRequestResult{Errors: errs}, nil
	}

	user, err := deps.FindActiveUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			return ResetRequestResult{}, err
		}
		errs.Add(form.FieldEmail, form.CodeNoActiveAccount)
		deps.MetricInc(deps.Metrics.Rejected)
		deps.EmitAudit(ctx, AuditRecord{Event: deps.Event, Reason: "no_active_account"})
		return ResetRequestResult{Errors: errs}, nil
	}

	tokenHash := deps.TokenHash(user.ID)
	live, err := deps.TokenExists(ctx, tokenHash)
	if err != nil {
		return ResetRequestResult{}, err
	}
	if live {
		errs.Add(form.FieldEmail, form.CodeResetLinkStillValid)
		deps.MetricInc(deps.Metrics.Duplicate)
		deps.EmitAudit(ctx, AuditRecord{Event: deps.Event, UserID: user.ID, Reason: "link_still_valid"})
		return ResetRequestResult{Errors: errs}, nil
	}

	msg, err := deps.ComposeReset(email, deps.ResetLink(req.BaseURL, tokenHash), deps.ResetTTL)
	if err != nil {
		return ResetRequestResult{}, err
	}
	if err := deps.SetToken(ctx, tokenHash, user.ID, deps.ResetTTL); err != nil {
		return ResetRequestResult{}, err
	}

	queued := deps.Submit(ctx, msg)
	if !queued {
		// Nobody will receive this link; do not block a retry for the TTL.
		deps.MetricInc(deps.Metrics.MailDrop)
		deps.Warn(ctx, "gate: password reset email not queued", "user_id", user.ID)
		if err := deps.DeleteToken(ctx, tokenHash); err != nil {
			return ResetRequestResult{}, err
		}
	}

	deps.MetricInc(deps.Metrics.Issued)
	deps.EmitAudit(ctx, AuditRecord{Event: deps.Event, Success: true, UserID: user.ID, Username: user.Username})

	return ResetRequestResult{
		UserID:     user.ID,
		TokenHash:  tokenHash,
		MailQueued: queued,
	}, nil
}

// ResetOutcome is the page the reset action leads to.
type ResetOutcome int

const (
	// ResetForm means the form is re-rendered, with errors when present.
	ResetForm ResetOutcome = iota
	// ResetExpired means the link is unknown or no longer live.
	ResetExpired
	// ResetCompleted means an anonymous token reset succeeded.
	ResetCompleted
	// ResetSignedOut means a signed-in user changed their password and was
	// signed out.
	ResetSignedOut
)

// ResetPasswordRequest is a submitted new-password form.
type ResetPasswordRequest struct {
	TokenHash string
	Password1 string
	Password2 string
	// Actor is the signed-in requester. When set the token is not consulted.
	Actor *SessionRef
}

// ResetPasswordResult carries the outcome and any field errors.
type ResetPasswordResult struct {
	Outcome ResetOutcome
	Errors  form.Errors
	UserID  int64
}

// ResetPasswordMetrics carries metric IDs needed by the reset action flow.
type ResetPasswordMetrics struct {
	Success         int
	Failure         int
	Expired         int
	SessionsRevoked int
}

// ResetPasswordErrors carries host-level sentinel errors used by the reset action flow.
type ResetPasswordErrors struct {
	EngineNotReady error
	TokenNotFound  error
	UserNotFound   error
}

// ResetPasswordDeps captures reset action dependencies.
type ResetPasswordDeps struct {
	CheckPassword PasswordPolicy

	GetToken          func(context.Context, string) (int64, error)
	DeleteToken       func(context.Context, string) error
	GetUserByID       func(context.Context, int64) (UserRecord, error)
	HashPassword      func(string) (string, error)
	SetPasswordHash   func(context.Context, int64, string) error
	DeleteAllSessions func(context.Context, int64) error

	Hooks
	Metrics ResetPasswordMetrics
	Event   string
	Errors  ResetPasswordErrors
}

// RunResetLinkValid is the access guard for the reset page: a signed-in
// requester always passes, an anonymous one needs a live token.
func RunResetLinkValid(ctx context.Context, tokenHash string, actor *SessionRef, deps ResetPasswordDeps) (bool, error) {
	if actor != nil {
		return true, nil
	}
	if deps.GetToken == nil {
		return false, deps.Errors.EngineNotReady
	}
	if tokenHash == "" {
		return false, nil
	}
	if _, err := deps.GetToken(ctx, tokenHash); err != nil {
		if errors.Is(err, deps.Errors.TokenNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RunResetPassword sets a new password for the token holder or the
// signed-in requester. A token is consumed on success; a signed-in
// requester is signed out everywhere.
func RunResetPassword(ctx context.Context, req ResetPasswordRequest, deps ResetPasswordDeps) (ResetPasswordResult, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.GetToken == nil ||
		deps.DeleteToken == nil ||
		deps.GetUserByID == nil ||
		deps.HashPassword == nil ||
		deps.SetPasswordHash == nil ||
		deps.DeleteAllSessions == nil {
		return ResetPasswordResult{}, deps.Errors.EngineNotReady
	}

	var userID int64
	if req.Actor != nil {
		userID = req.Actor.UserID
	} else {
		if req.TokenHash == "" {
			return deps.expired(), nil
		}
		id, err := deps.GetToken(ctx, req.TokenHash)
		if err != nil {
			if errors.Is(err, deps.Errors.TokenNotFound) {
				return deps.expired(), nil
			}
			return ResetPasswordResult{}, err
		}
		userID = id
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return deps.expired(), nil
		}
		return ResetPasswordResult{}, err
	}

	var errs form.Errors
	if req.Password1 == "" {
		errs.Add(form.FieldPassword1, form.CodeRequired)
	}
	switch {
	case req.Password2 == "":
		errs.Add(form.FieldPassword2, form.CodeRequired)
	case req.Password1 != "" && req.Password1 != req.Password2:
		errs.Add(form.FieldPassword2, form.CodePasswordMismatch)
	case req.Password1 != "":
		CheckPassword(form.FieldPassword2, req.Password2, 0, deps.CheckPassword, &errs,
			userAttributes(user.Username, user.Email)...)
	}
	if !errs.Valid() {
		deps.MetricInc(deps.Metrics.Failure)
		return ResetPasswordResult{Outcome: ResetForm, Errors: errs}, nil
	}

	hash, err := deps.HashPassword(req.Password2)
	if err != nil {
		return ResetPasswordResult{}, err
	}
	if err := deps.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return ResetPasswordResult{}, err
	}

	outcome := ResetSignedOut
	if req.Actor == nil {
		outcome = ResetCompleted
		if err := deps.DeleteToken(ctx, req.TokenHash); err != nil {
			return ResetPasswordResult{}, err
		}
	}
	if err := deps.DeleteAllSessions(ctx, user.ID); err != nil {
		deps.Warn(ctx, "gate: session revocation after password reset failed", "user_id", user.ID, "error", err)
	} else {
		deps.MetricInc(deps.Metrics.SessionsRevoked)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, AuditRecord{Event: deps.Event, Success: true, UserID: user.ID, Username: user.Username})

	return ResetPasswordResult{Outcome: outcome, UserID: user.ID}, nil
}

func (deps ResetPasswordDeps) expired() ResetPasswordResult {
	deps.MetricInc(deps.Metrics.Expired)
	return ResetPasswordResult{Outcome: ResetExpired}
}
