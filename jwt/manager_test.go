package jwt

import (
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	secretA = []byte("0123456789abcdef0123456789abcdef")
	secretB = []byte("fedcba9876543210fedcba9876543210")
)

func TestIssueAndParse(t *testing.T) {
	m, err := NewManager(Config{TTL: time.Hour, Secret: secretA, Issuer: "gate"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Issue(42, "sid-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != 42 || claims.SID != "sid-1" || claims.Issuer != "gate" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseExpired(t *testing.T) {
	m, err := NewManager(Config{TTL: time.Minute, Secret: secretA})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	tok, err := m.Issue(1, "s")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.now = time.Now
	if _, err := m.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongAlgorithmAndTampering(t *testing.T) {
	m, err := NewManager(Config{TTL: time.Hour, Secret: secretA})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SessionClaims{UID: 1, SID: "s", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(secretA)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(hs512); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}

	tok, err := m.Issue(1, "s")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(tok, ".")
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.Parse(forged); err == nil {
		t.Fatal("expected forged signature to be rejected")
	}
}

func TestParseAcceptsFallbackSecret(t *testing.T) {
	old, err := NewManager(Config{TTL: time.Hour, Secret: secretB})
	if err != nil {
		t.Fatalf("old manager: %v", err)
	}
	tok, err := old.Issue(9, "sid-old")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, err := NewManager(Config{TTL: time.Hour, Secret: secretA, FallbackSecrets: [][]byte{secretB}})
	if err != nil {
		t.Fatalf("rotated manager: %v", err)
	}
	claims, err := rotated.Parse(tok)
	if err != nil {
		t.Fatalf("expected fallback secret to verify: %v", err)
	}
	if claims.UID != 9 {
		t.Fatalf("uid = %d", claims.UID)
	}

	strict, err := NewManager(Config{TTL: time.Hour, Secret: secretA})
	if err != nil {
		t.Fatalf("strict manager: %v", err)
	}
	if _, err := strict.Parse(tok); err == nil {
		t.Fatal("expected token signed with retired secret to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := map[string]Config{
		"zero ttl":       {Secret: secretA},
		"short secret":   {TTL: time.Hour, Secret: []byte("short")},
		"short fallback": {TTL: time.Hour, Secret: secretA, FallbackSecrets: [][]byte{[]byte("x")}},
		"big leeway":     {TTL: time.Hour, Secret: secretA, Leeway: time.Hour},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
