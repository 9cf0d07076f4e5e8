package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 32

// Config holds the cookie token settings. Secret signs new tokens; tokens
// signed with any of FallbackSecrets are still accepted so the secret can be
// rotated without signing everyone out.
type Config struct {
	TTL             time.Duration
	Secret          []byte
	FallbackSecrets [][]byte
	Issuer          string
	Leeway          time.Duration
}

// Manager issues and verifies HS256 session tokens.
type Manager struct {
	config Config
	keys   [][]byte
	now    func() time.Time
}

// SessionClaims binds a cookie to one stored session.
type SessionClaims struct {
	UID int64  `json:"uid"`
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minSecretLen)
	}

	keys := [][]byte{cfg.Secret}
	for i, k := range cfg.FallbackSecrets {
		if len(k) < minSecretLen {
			return nil, fmt.Errorf("fallback secret %d must be at least %d bytes", i, minSecretLen)
		}
		keys = append(keys, k)
	}

	return &Manager{config: cfg, keys: keys, now: time.Now}, nil
}

// Issue signs a token for session sid of user uid.
func (j *Manager) Issue(uid int64, sid string) (string, error) {
	if uid <= 0 || sid == "" {
		return "", errors.New("uid and sid are required")
	}
	now := j.now()
	claims := SessionClaims{
		UID: uid,
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.config.Secret)
}

// Parse verifies the signature, expiry and issuer of tokenStr.
func (j *Manager) Parse(tokenStr string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)

	var (
		token *jwt.Token
		err   error
	)
	// Only a signature mismatch moves on to the next key; any other failure
	// is final.
	for _, key := range j.keys {
		token, err = parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UID <= 0 || claims.SID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
