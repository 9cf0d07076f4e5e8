package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/afromart/gate/form"
	"github.com/afromart/gate/session"
)

// SignInResult is either a form with errors or an issued session.
type SignInResult struct {
	Errors    form.Errors
	Token     string
	UserID    int64
	Staff     bool
	ExpiresAt time.Time
}

// SignInMetrics carries metric IDs needed by the sign-in flow.
type SignInMetrics struct {
	Success        int
	Failure        int
	Unverified     int
	Throttled      int
	SessionCreated int
}

// SignInEvents carries audit event names used by the sign-in flow.
type SignInEvents struct {
	Success string
	Failure string
}

// SignInErrors carries host-level sentinel errors used by the sign-in flow.
type SignInErrors struct {
	EngineNotReady error
	UserNotFound   error
}

// SignInDeps captures sign-in dependencies.
type SignInDeps struct {
	Now             func() time.Time
	SessionLifetime time.Duration

	GetUserByUsername func(context.Context, string) (UserRecord, error)
	VerifyPassword    func(password, hash string) (bool, error)
	// DummyHash is verified against when the username is unknown so the
	// response takes as long as a real check.
	DummyHash            string
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordHash   func(context.Context, int64, string) error
	TouchLastLogin       func(context.Context, int64, time.Time) error

	// Throttled reports whether username has spent its failure budget.
	// RecordFailure and ResetThrottle keep the budget current. All three
	// are optional.
	Throttled     func(context.Context, string) (bool, error)
	RecordFailure func(context.Context, string)
	ResetThrottle func(context.Context, string)

	NewSessionID func() (string, error)
	SaveSession  func(context.Context, *session.Session, time.Duration) error
	IssueToken   func(uid int64, sid string) (string, error)

	Hooks
	Metrics SignInMetrics
	Events  SignInEvents
	Errors  SignInErrors
}

// RunSignIn checks credentials and opens a session. Unknown usernames and
// wrong passwords produce the same form error.
func RunSignIn(ctx context.Context, username, pw string, deps SignInDeps) (SignInResult, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GetUserByUsername == nil ||
		deps.VerifyPassword == nil ||
		deps.NewSessionID == nil ||
		deps.SaveSession == nil ||
		deps.IssueToken == nil {
		return SignInResult{}, deps.Errors.EngineNotReady
	}

	username = strings.TrimSpace(username)

	var errs form.Errors
	if username == "" {
		errs.Add(form.FieldUsername, form.CodeRequired)
	}
	if pw == "" {
		errs.Add(form.FieldPassword, form.CodeRequired)
	}
	if !errs.Valid() {
		return SignInResult{Errors: errs}, nil
	}

	if deps.Throttled != nil {
		throttled, err := deps.Throttled(ctx, username)
		if err != nil {
			return SignInResult{}, err
		}
		if throttled {
			errs.Add(form.FieldUsername, form.CodeTooManyAttempts)
			deps.MetricInc(deps.Metrics.Throttled)
			deps.EmitAudit(ctx, AuditRecord{Event: deps.Events.Failure, Username: username, Reason: "throttled"})
			return SignInResult{Errors: errs}, nil
		}
	}

	user, err := deps.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			return SignInResult{}, err
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(pw, deps.DummyHash)
		}
		return deps.fail(ctx, errs, 0, username, "user_not_found"), nil
	}

	ok, err := deps.VerifyPassword(pw, user.PasswordHash)
	if err != nil || !ok {
		return deps.fail(ctx, errs, user.ID, username, "password_mismatch"), nil
	}

	if !user.Active {
		errs.Add(form.FieldUsername, form.CodeAccountUnverified)
		deps.MetricInc(deps.Metrics.Unverified)
		deps.EmitAudit(ctx, AuditRecord{
			Event:    deps.Events.Failure,
			UserID:   user.ID,
			Username: username,
			Reason:   "pending_verification",
		})
		return SignInResult{Errors: errs}, nil
	}

	if deps.ResetThrottle != nil {
		deps.ResetThrottle(ctx, username)
	}
	deps.maybeUpgradeHash(ctx, user, pw)

	sid, err := deps.NewSessionID()
	if err != nil {
		return SignInResult{}, err
	}
	now := deps.Now()
	expires := now.Add(deps.SessionLifetime)
	sess := &session.Session{
		SessionID: sid,
		UserID:    user.ID,
		Staff:     user.Staff,
		CreatedAt: now.Unix(),
		ExpiresAt: expires.Unix(),
	}
	if err := deps.SaveSession(ctx, sess, deps.SessionLifetime); err != nil {
		return SignInResult{}, err
	}
	token, err := deps.IssueToken(user.ID, sid)
	if err != nil {
		return SignInResult{}, err
	}

	if deps.TouchLastLogin != nil {
		if err := deps.TouchLastLogin(ctx, user.ID, now); err != nil {
			deps.Warn(ctx, "gate: last login update failed", "user_id", user.ID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Success,
		Success:  true,
		UserID:   user.ID,
		Username: username,
	})

	return SignInResult{
		Token:     token,
		UserID:    user.ID,
		Staff:     user.Staff,
		ExpiresAt: expires,
	}, nil
}

func (deps SignInDeps) fail(ctx context.Context, errs form.Errors, userID int64, username, reason string) SignInResult {
	errs.Add(form.FieldUsername, form.CodeCredentialsMismatch)
	if deps.RecordFailure != nil {
		deps.RecordFailure(ctx, username)
	}
	deps.MetricInc(deps.Metrics.Failure)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Failure,
		UserID:   userID,
		Username: username,
		Reason:   reason,
	})
	return SignInResult{Errors: errs}
}

func (deps SignInDeps) maybeUpgradeHash(ctx context.Context, user UserRecord, pw string) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needsUpgrade {
		return
	}
	upgraded, err := deps.HashPassword(pw)
	if err != nil {
		deps.Warn(ctx, "gate: password hash upgrade generation failed", "user_id", user.ID)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
		deps.Warn(ctx, "gate: password hash upgrade update failed", "user_id", user.ID)
	}
}
