package gate

import (
	"fmt"

	"github.com/afromart/gate/internal/audit"
	"github.com/afromart/gate/internal/logging"
	"github.com/afromart/gate/internal/rate"
	"github.com/afromart/gate/internal/stores"
	"github.com/afromart/gate/jwt"
	"github.com/afromart/gate/mail"
	"github.com/afromart/gate/password"
	"github.com/afromart/gate/session"
	"github.com/redis/go-redis/v9"
)

// Builder collects the engine's collaborators. It is single use: configure
// it during startup, call Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	notifier  Notifier
	auditSink AuditSink
	log       logging.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing tokens, sessions and the throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the credential store.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithNotifier sets the background email queue.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets where audit events end up. Without one, events are
// dropped.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Without one, logs are discarded.
func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.log = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, ErrRedisRequired
	}
	if b.users == nil {
		return nil, ErrUserStoreRequired
	}
	if b.notifier == nil {
		return nil, ErrNotifierRequired
	}

	log := b.log
	if log == nil {
		log = logging.Discard()
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	// Verified against for unknown usernames so both paths cost one hash.
	dummy, err := ph.Hash("gate-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	jm, err := jwt.NewManager(jwt.Config{
		TTL:             cfg.Session.Lifetime,
		Secret:          cloneBytes(cfg.JWT.Secret),
		FallbackSecrets: cfg.JWT.FallbackSecrets,
		Issuer:          cfg.JWT.Issuer,
		Leeway:          cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		notifier:  b.notifier,
		tokens:    stores.NewTokenCache(b.redis, cfg.KeyPrefix),
		sessions:  session.NewStore(b.redis, cfg.KeyPrefix),
		audit:     audit.NewDispatcher(audit.Config(cfg.Audit), b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		hasher:    ph,
		dummyHash: dummy,
		policy:    password.DefaultPolicy(cfg.Policy.PasswordMinLen, cfg.Policy.MaxSimilarity),
		jwt:       jm,
		composer:  mail.NewComposer(cfg.Mail.From),
		log:       log,
	}
	if cfg.Throttle.Enabled {
		engine.limiter = rate.New(b.redis, cfg.KeyPrefix, rate.Config{
			MaxAttempts:      cfg.Throttle.MaxAttempts,
			Window:           cfg.Throttle.Window,
			EnableIPThrottle: cfg.Throttle.EnableIPThrottle,
		})
	}
	engine.flow = engine.buildFlows()

	b.built = true

	return engine, nil
}
