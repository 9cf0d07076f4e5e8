package gate

import (
	"context"
	"time"

	"github.com/afromart/gate/internal"
	"github.com/afromart/gate/internal/flows"
	"github.com/afromart/gate/internal/stores"
)

// RequestPasswordReset emails a reset link to an active account. A second
// request while the first link is live is refused with a form error.
func (e *Engine) RequestPasswordReset(ctx context.Context, req ResetRequest) (ResetRequestResult, error) {
	if e == nil || !e.flow.Initialized() {
		return ResetRequestResult{}, ErrEngineNotReady
	}
	res, err := e.flow.RequestPasswordReset(ctx, flows.ResetRequest{
		Email:   req.Email,
		BaseURL: req.BaseURL,
	})
	if err != nil {
		return ResetRequestResult{}, e.fatal(ctx, "password reset request", err)
	}
	return ResetRequestResult{Errors: res.Errors, MailQueued: res.MailQueued}, nil
}

// PasswordResetLinkValid decides whether the reset form may be shown. A
// signed-in requester always may; anyone else needs a live link.
func (e *Engine) PasswordResetLinkValid(ctx context.Context, id *Identity, tokenHash string) (bool, error) {
	if e == nil || !e.flow.Initialized() {
		return false, ErrEngineNotReady
	}
	ok, err := e.flow.ResetLinkValid(ctx, tokenHash, toSessionRef(id))
	if err != nil {
		return false, e.fatal(ctx, "password reset link check", err)
	}
	return ok, nil
}

// ResetPassword applies a new password for the link holder or, when id is
// set, for the signed-in requester. Every session of the account is revoked.
func (e *Engine) ResetPassword(ctx context.Context, id *Identity, action ResetAction) (ResetResult, error) {
	if e == nil || !e.flow.Initialized() {
		return ResetResult{}, ErrEngineNotReady
	}
	res, err := e.flow.ResetPassword(ctx, flows.ResetPasswordRequest{
		TokenHash: action.TokenHash,
		Password1: action.Password1,
		Password2: action.Password2,
		Actor:     toSessionRef(id),
	})
	if err != nil {
		return ResetResult{}, e.fatal(ctx, "password reset", err)
	}

	out := ResetResult{Errors: res.Errors}
	switch res.Outcome {
	case flows.ResetExpired:
		out.Outcome = ResetLinkExpired
	case flows.ResetCompleted:
		out.Outcome = ResetDone
	case flows.ResetSignedOut:
		out.Outcome = ResetSignedOut
	default:
		out.Outcome = ResetShowForm
	}
	return out, nil
}

func (e *Engine) resetRequestDeps(hooks flows.Hooks) flows.ResetRequestDeps {
	return flows.ResetRequestDeps{
		ResetTTL: e.config.Tokens.ResetTTL,
		FindActiveUserByEmail: func(ctx context.Context, email string) (flows.UserRecord, error) {
			u, err := e.users.FindActiveUserByEmail(ctx, email)
			if err != nil {
				return flows.UserRecord{}, err
			}
			return toUserRecord(u), nil
		},
		TokenHash: internal.UserTokenHash,
		TokenExists: func(ctx context.Context, hash string) (bool, error) {
			return e.tokens.Exists(ctx, stores.NamespacePasswordReset, hash)
		},
		SetToken: func(ctx context.Context, hash string, id int64, ttl time.Duration) error {
			return e.tokens.Set(ctx, stores.NamespacePasswordReset, hash, id, ttl)
		},
		DeleteToken: func(ctx context.Context, hash string) error {
			return e.tokens.Delete(ctx, stores.NamespacePasswordReset, hash)
		},
		ResetLink: func(base, hash string) string {
			return e.link(base, e.config.Routes.ResetBase, hash)
		},
		ComposeReset: e.composer.PasswordReset,
		Submit:       e.notifier.Submit,
		Hooks:        hooks,
		Metrics: flows.ResetRequestMetrics{
			Issued:    int(MetricPasswordResetRequest),
			Rejected:  int(MetricPasswordResetRejected),
			Duplicate: int(MetricPasswordResetDuplicate),
			MailDrop:  int(MetricPasswordResetMailDropped),
		},
		Event: AuditPasswordResetRequested,
		Errors: flows.ResetRequestErrors{
			EngineNotReady: ErrEngineNotReady,
			UserNotFound:   ErrUserNotFound,
		},
	}
}

func (e *Engine) resetPasswordDeps(hooks flows.Hooks) flows.ResetPasswordDeps {
	return flows.ResetPasswordDeps{
		CheckPassword: e.policy.Validate,
		GetToken: func(ctx context.Context, hash string) (int64, error) {
			return e.tokens.Get(ctx, stores.NamespacePasswordReset, hash)
		},
		DeleteToken: func(ctx context.Context, hash string) error {
			return e.tokens.Delete(ctx, stores.NamespacePasswordReset, hash)
		},
		GetUserByID:       e.getUserByID,
		HashPassword:      e.hasher.Hash,
		SetPasswordHash:   e.users.SetPasswordHash,
		DeleteAllSessions: e.sessions.DeleteAllForUser,
		Hooks:             hooks,
		Metrics: flows.ResetPasswordMetrics{
			Success:         int(MetricPasswordResetSuccess),
			Failure:         int(MetricPasswordResetFailure),
			Expired:         int(MetricPasswordResetExpired),
			SessionsRevoked: int(MetricSessionInvalidated),
		},
		Event: AuditPasswordResetCompleted,
		Errors: flows.ResetPasswordErrors{
			EngineNotReady: ErrEngineNotReady,
			TokenNotFound:  stores.ErrTokenNotFound,
			UserNotFound:   ErrUserNotFound,
		},
	}
}
