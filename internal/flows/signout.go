package flows

import (
	"context"
	"time"

	"github.com/afromart/gate/session"
)

// AuthenticateMetrics carries metric IDs needed by session loading.
type AuthenticateMetrics struct {
	Latency int
}

// AuthenticateErrors carries host-level sentinel errors used by session loading.
type AuthenticateErrors struct {
	EngineNotReady  error
	SessionNotFound error
	InvalidToken    error
}

// AuthenticateDeps captures the dependencies that turn a cookie into a
// signed-in requester.
type AuthenticateDeps struct {
	ParseToken     func(string) (uid int64, sid string, err error)
	GetSession     func(context.Context, string) (*session.Session, error)
	ObserveLatency func(time.Duration)
	Now            func() time.Time

	Errors AuthenticateErrors
}

// RunAuthenticate resolves a cookie token to its live session.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) (SessionRef, error) {
	if deps.ParseToken == nil || deps.GetSession == nil {
		return SessionRef{}, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ObserveLatency != nil {
		start := deps.Now()
		defer func() { deps.ObserveLatency(deps.Now().Sub(start)) }()
	}

	if token == "" {
		return SessionRef{}, deps.Errors.InvalidToken
	}
	uid, sid, err := deps.ParseToken(token)
	if err != nil {
		return SessionRef{}, deps.Errors.InvalidToken
	}

	sess, err := deps.GetSession(ctx, sid)
	if err != nil {
		return SessionRef{}, err
	}
	// A token must not be replayed against another user's session id.
	if sess.UserID != uid {
		return SessionRef{}, deps.Errors.SessionNotFound
	}

	return SessionRef{UserID: sess.UserID, SessionID: sid, Staff: sess.Staff}, nil
}

// SignOutErrors carries host-level sentinel errors used by the sign-out flow.
type SignOutErrors struct {
	EngineNotReady error
	Unauthorized   error
}

// SignOutDeps captures sign-out dependencies.
type SignOutDeps struct {
	DeleteSession func(context.Context, string) error

	Hooks
	Metric int
	Event  string
	Errors SignOutErrors
}

// RunSignOut destroys the requester's session.
func RunSignOut(ctx context.Context, ref *SessionRef, deps SignOutDeps) error {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.DeleteSession == nil {
		return deps.Errors.EngineNotReady
	}
	if ref == nil || ref.SessionID == "" {
		return deps.Errors.Unauthorized
	}
	if err := deps.DeleteSession(ctx, ref.SessionID); err != nil {
		return err
	}
	deps.MetricInc(deps.Metric)
	deps.EmitAudit(ctx, AuditRecord{Event: deps.Event, Success: true, UserID: ref.UserID})
	return nil
}
