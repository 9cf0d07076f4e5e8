package gate

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// Config holds every tunable of the identity subsystem. Build it from
// [DefaultConfig] and override what the deployment needs.
type Config struct {
	// KeyPrefix namespaces every Redis key the engine writes.
	KeyPrefix string
	Session   SessionConfig
	Cookie    CookieConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Policy    PolicyConfig
	Tokens    TokenConfig
	Throttle  ThrottleConfig
	Routes    RoutesConfig
	Mail      MailConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
SESSION / COOKIE CONFIG
====================================
*/

// SessionConfig controls server-side session records.
type SessionConfig struct {
	Lifetime time.Duration
}

// CookieConfig shapes the session cookie the web layer writes.
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// JWTConfig configures the signed token carried in the session cookie.
// FallbackSecrets are accepted for verification only, so a secret can be
// rotated without signing everybody out.
type JWTConfig struct {
	Secret          []byte
	FallbackSecrets [][]byte
	Issuer          string
	Leeway          time.Duration
}

/*
====================================
PASSWORD / POLICY CONFIG
====================================
*/

// PasswordConfig holds the argon2id cost parameters.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// PolicyConfig holds the account field rules and password strength rules.
type PolicyConfig struct {
	UsernameMinLen      int
	UsernameMaxLen      int
	PasswordMinLen      int
	PasswordMaxLen      int
	MaxSimilarity       float64
	AllowedEmailDomains []string
}

/*
====================================
TOKEN / THROTTLE CONFIG
====================================
*/

// TokenConfig sets the lifetime of emailed capability links.
type TokenConfig struct {
	SignupTTL time.Duration
	ResetTTL  time.Duration
}

// ThrottleConfig limits failed sign-ins per username and client IP.
type ThrottleConfig struct {
	Enabled          bool
	MaxAttempts      int
	Window           time.Duration
	EnableIPThrottle bool
}

/*
====================================
ROUTES / MAIL CONFIG
====================================
*/

// RoutesConfig names the paths the engine links to and redirects to.
type RoutesConfig struct {
	Home       string
	StaffHome  string
	SignIn     string
	VerifyBase string
	ResetBase  string
}

// MailConfig controls outgoing account email.
type MailConfig struct {
	From string

	// BaseURL, when set, is used for links instead of the request host.
	BaseURL string

	// AllowedHosts are the request hosts links may be built on when BaseURL
	// is unset. A leading dot matches the domain and its subdomains; "*"
	// matches any host.
	AllowedHosts []string
}

// AllowsHost reports whether links may be built on host, a Host header
// value with or without a port.
func (m MailConfig) AllowsHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "" {
		return false
	}
	for _, pattern := range m.AllowedHosts {
		pattern = strings.ToLower(strings.Trim(pattern, "[]"))
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the production defaults. JWT.Secret is left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "afromart_",
		Session: SessionConfig{
			Lifetime: 14 * 24 * time.Hour,
		},
		Cookie: CookieConfig{
			Name:     "gate_session",
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
			SameSite: http.SameSiteStrictMode,
		},
		JWT: JWTConfig{
			Issuer: "afromart-gate",
			Leeway: 30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Policy: PolicyConfig{
			UsernameMinLen:      8,
			UsernameMaxLen:      21,
			PasswordMinLen:      8,
			PasswordMaxLen:      21,
			MaxSimilarity:       0.7,
			AllowedEmailDomains: []string{"gmail.com", "googlemail.com"},
		},
		Tokens: TokenConfig{
			SignupTTL: 72 * time.Hour,
			ResetTTL:  5 * time.Minute,
		},
		Throttle: ThrottleConfig{
			Enabled:          true,
			MaxAttempts:      10,
			Window:           15 * time.Minute,
			EnableIPThrottle: true,
		},
		Routes: RoutesConfig{
			Home:       "/",
			StaffHome:  "/sa/",
			SignIn:     "/gate/signin/",
			VerifyBase: "/gate/signup_verify/",
			ResetBase:  "/gate/password_reset/",
		},
		Mail: MailConfig{
			From:         "Afromart <afromart@afromart.trade>",
			AllowedHosts: []string{"localhost"},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.JWT.FallbackSecrets != nil {
		out.JWT.FallbackSecrets = make([][]byte, len(cfg.JWT.FallbackSecrets))
		for i, s := range cfg.JWT.FallbackSecrets {
			out.JWT.FallbackSecrets[i] = cloneBytes(s)
		}
	}
	if cfg.Policy.AllowedEmailDomains != nil {
		out.Policy.AllowedEmailDomains = append([]string(nil), cfg.Policy.AllowedEmailDomains...)
	}
	if cfg.Mail.AllowedHosts != nil {
		out.Mail.AllowedHosts = append([]string(nil), cfg.Mail.AllowedHosts...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.KeyPrefix == "" {
		return errors.New("KeyPrefix must not be empty")
	}

	// Session / cookie
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// JWT
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	for _, s := range c.JWT.FallbackSecrets {
		if len(s) < 32 {
			return errors.New("JWT FallbackSecrets must each be at least 32 bytes")
		}
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Policy
	if c.Policy.UsernameMinLen < 1 || c.Policy.UsernameMaxLen < c.Policy.UsernameMinLen {
		return errors.New("Policy username length bounds are invalid")
	}
	if c.Policy.PasswordMinLen < 1 {
		return errors.New("Policy PasswordMinLen must be >= 1")
	}
	if c.Policy.PasswordMaxLen != 0 && c.Policy.PasswordMaxLen < c.Policy.PasswordMinLen {
		return errors.New("Policy PasswordMaxLen must be 0 or >= PasswordMinLen")
	}
	if c.Policy.MaxSimilarity < 0.1 || c.Policy.MaxSimilarity > 1 {
		return errors.New("Policy MaxSimilarity must be within [0.1, 1]")
	}
	if len(c.Policy.AllowedEmailDomains) == 0 {
		return errors.New("Policy AllowedEmailDomains must not be empty")
	}
	for _, d := range c.Policy.AllowedEmailDomains {
		if strings.TrimSpace(d) == "" || strings.Contains(d, "@") {
			return errors.New("Policy AllowedEmailDomains entries must be bare domains")
		}
	}

	// Tokens
	if c.Tokens.SignupTTL <= 0 {
		return errors.New("Tokens SignupTTL must be > 0")
	}
	if c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens ResetTTL must be > 0")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts < 1 {
			return errors.New("Throttle MaxAttempts must be >= 1")
		}
		if c.Throttle.Window <= 0 {
			return errors.New("Throttle Window must be > 0")
		}
	}

	// Routes
	for _, p := range []string{c.Routes.Home, c.Routes.StaffHome, c.Routes.SignIn, c.Routes.VerifyBase, c.Routes.ResetBase} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Routes paths must be absolute")
		}
	}

	// Mail
	if strings.TrimSpace(c.Mail.From) == "" {
		return errors.New("Mail From must not be empty")
	}
	if c.Mail.BaseURL != "" && !strings.HasPrefix(c.Mail.BaseURL, "http://") && !strings.HasPrefix(c.Mail.BaseURL, "https://") {
		return errors.New("Mail BaseURL must start with http:// or https://")
	}
	if c.Mail.BaseURL == "" && len(c.Mail.AllowedHosts) == 0 {
		return errors.New("Mail needs a BaseURL or at least one AllowedHosts entry")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
