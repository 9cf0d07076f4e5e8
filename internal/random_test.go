package internal

import "testing"

func TestUserTokenHash(t *testing.T) {
	// sha256("1")
	const want = "6b86b273ff34fce19d6b804eff5a3f5747ada4eaa22f1d49c01e52ddb7875b4b"
	if got := UserTokenHash(1); got != want {
		t.Fatalf("UserTokenHash(1) = %s, want %s", got, want)
	}
	if UserTokenHash(2) == UserTokenHash(1) {
		t.Fatal("expected distinct hashes for distinct ids")
	}
}

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	parsed, err := ParseSessionID(sid.String())
	if err != nil {
		t.Fatalf("ParseSessionID: %v", err)
	}
	if parsed != sid {
		t.Fatal("round trip mismatch")
	}
	if _, err := ParseSessionID("c2hvcnQ"); err == nil {
		t.Fatal("expected size error")
	}
}
