package gate

import (
	"context"
	"errors"
	"time"

	"github.com/afromart/gate/internal"
	"github.com/afromart/gate/internal/flows"
	"github.com/afromart/gate/internal/rate"
	"github.com/afromart/gate/session"
)

// SignIn checks credentials and opens a session. The returned token goes
// into the session cookie.
func (e *Engine) SignIn(ctx context.Context, username, password string) (SignInResult, error) {
	if e == nil || !e.flow.Initialized() {
		return SignInResult{}, ErrEngineNotReady
	}
	res, err := e.flow.SignIn(ctx, username, password)
	if err != nil {
		return SignInResult{}, e.fatal(ctx, "sign in", err)
	}
	return SignInResult{
		Errors:    res.Errors,
		Token:     res.Token,
		UserID:    res.UserID,
		Staff:     res.Staff,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// Authenticate resolves a session cookie token. It returns
// ErrInvalidToken or ErrSessionNotFound for anonymous requesters.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	ref, err := e.flow.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, e.fatal(ctx, "authenticate", err)
	}
	return &Identity{UserID: ref.UserID, SessionID: ref.SessionID, Staff: ref.Staff}, nil
}

// SignOut destroys the requester's session.
func (e *Engine) SignOut(ctx context.Context, id *Identity) error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	if err := e.flow.SignOut(ctx, toSessionRef(id)); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		return e.fatal(ctx, "sign out", err)
	}
	return nil
}

func (e *Engine) signInDeps(hooks flows.Hooks) flows.SignInDeps {
	deps := flows.SignInDeps{
		Now:             time.Now,
		SessionLifetime: e.config.Session.Lifetime,
		GetUserByUsername: func(ctx context.Context, username string) (flows.UserRecord, error) {
			u, err := e.users.GetUserByUsername(ctx, username)
			if err != nil {
				return flows.UserRecord{}, err
			}
			return toUserRecord(u), nil
		},
		VerifyPassword: e.hasher.Verify,
		DummyHash:      e.dummyHash,
		TouchLastLogin: e.users.TouchLastLogin,
		NewSessionID: func() (string, error) {
			sid, err := internal.NewSessionID()
			if err != nil {
				return "", err
			}
			return sid.String(), nil
		},
		SaveSession: e.sessions.Save,
		IssueToken:  e.jwt.Issue,
		Hooks:       hooks,
		Metrics: flows.SignInMetrics{
			Success:        int(MetricSignInSuccess),
			Failure:        int(MetricSignInFailure),
			Unverified:     int(MetricSignInUnverified),
			Throttled:      int(MetricSignInThrottled),
			SessionCreated: int(MetricSessionCreated),
		},
		Events: flows.SignInEvents{
			Success: AuditSignInSuccess,
			Failure: AuditSignInFailure,
		},
		Errors: flows.SignInErrors{
			EngineNotReady: ErrEngineNotReady,
			UserNotFound:   ErrUserNotFound,
		},
	}

	if e.config.Password.UpgradeOnLogin {
		deps.PasswordNeedsUpgrade = e.hasher.NeedsUpgrade
		deps.HashPassword = e.hasher.Hash
		deps.UpdatePasswordHash = e.users.SetPasswordHash
	}

	if e.limiter != nil {
		deps.Throttled = func(ctx context.Context, username string) (bool, error) {
			err := e.limiter.Check(ctx, username, clientIPFromContext(ctx))
			if errors.Is(err, rate.ErrRateLimited) {
				return true, nil
			}
			return false, err
		}
		deps.RecordFailure = func(ctx context.Context, username string) {
			if err := e.limiter.RecordFailure(ctx, username, clientIPFromContext(ctx)); err != nil {
				e.log.Warn(ctx, "gate: sign-in throttle update failed", "error", err)
			}
		}
		deps.ResetThrottle = func(ctx context.Context, username string) {
			if err := e.limiter.Reset(ctx, username); err != nil {
				e.log.Warn(ctx, "gate: sign-in throttle reset failed", "error", err)
			}
		}
	}

	return deps
}

func (e *Engine) authenticateDeps() flows.AuthenticateDeps {
	return flows.AuthenticateDeps{
		ParseToken: func(token string) (int64, string, error) {
			claims, err := e.jwt.Parse(token)
			if err != nil {
				return 0, "", err
			}
			return claims.UID, claims.SID, nil
		},
		GetSession: func(ctx context.Context, sid string) (*session.Session, error) {
			sess, err := e.sessions.Get(ctx, sid)
			if errors.Is(err, session.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return sess, err
		},
		ObserveLatency: func(d time.Duration) {
			if e.metrics != nil {
				e.metrics.Observe(MetricSessionLoadLatency, d)
			}
		},
		Errors: flows.AuthenticateErrors{
			EngineNotReady:  ErrEngineNotReady,
			SessionNotFound: ErrSessionNotFound,
			InvalidToken:    ErrInvalidToken,
		},
	}
}

func (e *Engine) signOutDeps(hooks flows.Hooks) flows.SignOutDeps {
	return flows.SignOutDeps{
		DeleteSession: e.sessions.Delete,
		Hooks:         hooks,
		Metric:        int(MetricSignOut),
		Event:         AuditSignOut,
		Errors: flows.SignOutErrors{
			EngineNotReady: ErrEngineNotReady,
			Unauthorized:   ErrUnauthorized,
		},
	}
}
