package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/afromart/gate/internal"
	"github.com/afromart/gate/internal/audit"
	"github.com/afromart/gate/internal/flows"
	"github.com/afromart/gate/internal/logging"
	"github.com/afromart/gate/internal/rate"
	"github.com/afromart/gate/internal/stores"
	"github.com/afromart/gate/jwt"
	"github.com/afromart/gate/mail"
	"github.com/afromart/gate/password"
	"github.com/afromart/gate/session"
)

// Engine runs the account lifecycle: registration, verification, sign-in,
// sign-out and password reset. It is safe for concurrent use once built.
type Engine struct {
	config    Config
	users     UserStore
	notifier  Notifier
	tokens    *stores.TokenCache
	sessions  *session.Store
	limiter   *rate.Limiter
	audit     *audit.Dispatcher
	metrics   *Metrics
	hasher    *password.Argon2
	dummyHash string
	policy    *password.Policy
	jwt       *jwt.Manager
	composer  *mail.Composer
	log       logging.Logger
	flow      flows.Service
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return DefaultConfig()
	}
	return cloneConfig(e.config)
}

// Close drains the audit dispatcher. The notifier is owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the credential store and Redis.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.users == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if err := e.users.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.tokens.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// fatal logs an infrastructure error and maps it onto the root sentinels.
func (e *Engine) fatal(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, stores.ErrTokenRedisUnavailable),
		errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable):
		err = fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	e.log.Error(ctx, "gate: "+op+" failed", "error", err)
	return err
}

func (e *Engine) link(requestBase, routeBase, hash string) string {
	base := e.config.Mail.BaseURL
	if base == "" {
		base = requestBase
	}
	return strings.TrimRight(base, "/") + routeBase + hash
}

func toUserRecord(u User) flows.UserRecord {
	return flows.UserRecord{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		Staff:        u.Staff,
	}
}

func toSessionRef(id *Identity) *flows.SessionRef {
	if id == nil {
		return nil
	}
	return &flows.SessionRef{UserID: id.UserID, SessionID: id.SessionID, Staff: id.Staff}
}

func (e *Engine) fieldRules() flows.FieldRules {
	return flows.FieldRules{
		UsernameMinLen:      e.config.Policy.UsernameMinLen,
		UsernameMaxLen:      e.config.Policy.UsernameMaxLen,
		PasswordMaxLen:      e.config.Policy.PasswordMaxLen,
		AllowedEmailDomains: e.config.Policy.AllowedEmailDomains,
	}
}

func (e *Engine) hooks() flows.Hooks {
	return flows.Hooks{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn:      e.log.Warn,
	}
}

func (e *Engine) getUserByID(ctx context.Context, id int64) (flows.UserRecord, error) {
	u, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toUserRecord(u), nil
}

func (e *Engine) buildFlows() flows.Service {
	hooks := e.hooks()
	rules := e.fieldRules()

	return flows.New(flows.Deps{
		Register: flows.RegisterDeps{
			Rules:          rules,
			SignupTTL:      e.config.Tokens.SignupTTL,
			CheckPassword:  e.policy.Validate,
			UsernameExists: e.users.UsernameExists,
			EmailExists:    e.users.EmailExists,
			HashPassword:   e.hasher.Hash,
			CreateUser: func(ctx context.Context, rec flows.NewUserRecord) (int64, error) {
				return e.users.CreateUser(ctx, NewUser{
					Username:     rec.Username,
					Email:        rec.Email,
					PasswordHash: rec.PasswordHash,
					Active:       rec.Active,
					Staff:        rec.Staff,
				})
			},
			TokenHash: internal.UserTokenHash,
			SetToken: func(ctx context.Context, hash string, id int64, ttl time.Duration) error {
				return e.tokens.Set(ctx, stores.NamespaceSignup, hash, id, ttl)
			},
			VerifyLink: func(base, hash string) string {
				return e.link(base, e.config.Routes.VerifyBase, hash)
			},
			ComposeSignup: e.composer.SignupVerification,
			Submit:        e.notifier.Submit,
			Hooks:         hooks,
			Metrics: flows.RegisterMetrics{
				Created:  int(MetricSignupCreated),
				Rejected: int(MetricSignupRejected),
				MailDrop: int(MetricSignupMailDropped),
			},
			Events: flows.RegisterEvents{
				Created:  AuditSignupCreated,
				Rejected: AuditSignupRejected,
			},
			Errors: flows.RegisterErrors{
				EngineNotReady: ErrEngineNotReady,
				UsernameTaken:  ErrUsernameTaken,
			},
		},
		Verify: flows.VerifyDeps{
			GetToken: func(ctx context.Context, hash string) (int64, error) {
				return e.tokens.Get(ctx, stores.NamespaceSignup, hash)
			},
			GetUserByID: e.getUserByID,
			Activate:    e.users.Activate,
			Hooks:       hooks,
			Metrics: flows.VerifyMetrics{
				Activated: int(MetricVerifyActivated),
				Repeated:  int(MetricVerifyRepeated),
				NotFound:  int(MetricVerifyNotFound),
			},
			Event: AuditSignupVerified,
			Errors: flows.VerifyErrors{
				EngineNotReady: ErrEngineNotReady,
				TokenNotFound:  stores.ErrTokenNotFound,
				UserNotFound:   ErrUserNotFound,
			},
		},
		SignIn:        e.signInDeps(hooks),
		Authenticate:  e.authenticateDeps(),
		SignOut:       e.signOutDeps(hooks),
		ResetRequest:  e.resetRequestDeps(hooks),
		ResetPassword: e.resetPasswordDeps(hooks),
	})
}
