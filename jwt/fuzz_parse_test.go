package jwt

import (
	"testing"
	"time"
)

// FuzzJWTParse exercises the parser with arbitrary token strings.
func FuzzJWTParse(f *testing.F) {
	mgr, err := NewManager(Config{
		TTL:    time.Hour,
		Secret: []byte("fuzz-secret-fuzz-secret-fuzz-secret!"),
		Issuer: "gate",
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := mgr.Issue(1, "sid")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOjF9.")
	f.Add(valid[:len(valid)/2])

	f.Fuzz(func(t *testing.T, tok string) {
		claims, err := mgr.Parse(tok)
		if err != nil {
			return
		}
		if claims.UID <= 0 || claims.SID == "" {
			t.Fatal("parsed claims missing uid or sid")
		}
	})
}
