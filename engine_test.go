package gate_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/afromart/gate"
	"github.com/afromart/gate/form"
	"github.com/afromart/gate/mail"
	"github.com/afromart/gate/storage/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testBaseURL  = "https://afromart.trade"
	testPassword = "Tr0ub4dor&3x"
	newPassword  = "N3w-Pass!word"
)

type outbox struct {
	mu   sync.Mutex
	msgs []mail.Message
	drop bool
}

func (o *outbox) Submit(_ context.Context, msg mail.Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.drop {
		return false
	}
	o.msgs = append(o.msgs, msg)
	return true
}

func (o *outbox) last(t *testing.T) mail.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.msgs) == 0 {
		t.Fatal("expected a queued message")
	}
	return o.msgs[len(o.msgs)-1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

type harness struct {
	engine *gate.Engine
	mr     *miniredis.Miniredis
	users  *memory.Store
	mail   *outbox
}

func testConfig() gate.Config {
	cfg := gate.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

func newHarness(t *testing.T, mutate func(*gate.Config)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{mr: mr, users: memory.New(), mail: &outbox{}}
	engine, err := gate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(h.users).
		WithNotifier(h.mail).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func tokenFor(id int64) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(id, 10)))
	return hex.EncodeToString(sum[:])
}

func (h *harness) register(t *testing.T, username, email string) int64 {
	t.Helper()
	res, err := h.engine.Register(context.Background(), gate.SignupRequest{
		Username: username,
		Email:    email,
		Password: testPassword,
		BaseURL:  testBaseURL,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !res.Errors.Valid() {
		t.Fatalf("unexpected form errors: %v", res.Errors)
	}
	return res.UserID
}

func (h *harness) activeUser(t *testing.T, username, email string) int64 {
	t.Helper()
	id := h.register(t, username, email)
	status, err := h.engine.Verify(context.Background(), tokenFor(id))
	if err != nil || status != gate.VerifyVerified {
		t.Fatalf("Verify = %v, %v", status, err)
	}
	return id
}

func TestBuildRequiresCollaborators(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cases := []struct {
		name string
		b    *gate.Builder
		want error
	}{
		{"redis", gate.New().WithConfig(testConfig()).WithUserStore(memory.New()).WithNotifier(&outbox{}), gate.ErrRedisRequired},
		{"users", gate.New().WithConfig(testConfig()).WithRedis(rdb).WithNotifier(&outbox{}), gate.ErrUserStoreRequired},
		{"notifier", gate.New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(memory.New()), gate.ErrNotifierRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.b.Build(); !errors.Is(err, tc.want) {
				t.Fatalf("Build error = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := gate.New().WithRedis(rdb).WithUserStore(memory.New()).WithNotifier(&outbox{}).Build(); err == nil {
		t.Fatal("expected missing JWT secret to fail validation")
	}

	b := gate.New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(memory.New()).WithNotifier(&outbox{})
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); !errors.Is(err, gate.ErrBuilderUsed) {
		t.Fatalf("second Build error = %v, want ErrBuilderUsed", err)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *gate.Engine
	ctx := context.Background()

	if _, err := e.Register(ctx, gate.SignupRequest{}); !errors.Is(err, gate.ErrEngineNotReady) {
		t.Fatalf("Register error = %v", err)
	}
	if _, err := e.SignIn(ctx, "alice001", testPassword); !errors.Is(err, gate.ErrEngineNotReady) {
		t.Fatalf("SignIn error = %v", err)
	}
	if _, err := e.ResetPassword(ctx, nil, gate.ResetAction{}); !errors.Is(err, gate.ErrEngineNotReady) {
		t.Fatalf("ResetPassword error = %v", err)
	}
	if err := e.Ping(ctx); !errors.Is(err, gate.ErrEngineNotReady) {
		t.Fatalf("Ping error = %v", err)
	}
}

func TestRegisterAndVerify(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	id := h.register(t, "alice001", "alice@gmail.com")

	key := "afromart_signup_" + tokenFor(id)
	if got, err := h.mr.Get(key); err != nil || got != strconv.FormatInt(id, 10) {
		t.Fatalf("signup token %q = %q, %v", key, got, err)
	}
	if ttl := h.mr.TTL(key); ttl <= 71*time.Hour || ttl > 72*time.Hour {
		t.Fatalf("signup token ttl = %s, want about 72h", ttl)
	}

	msg := h.mail.last(t)
	if len(msg.To) != 1 || msg.To[0] != "alice@gmail.com" {
		t.Fatalf("verification mail to %v", msg.To)
	}
	if !strings.Contains(msg.Body, testBaseURL+"/gate/signup_verify/"+tokenFor(id)) {
		t.Fatalf("verification mail missing link:\n%s", msg.Body)
	}

	u, err := h.users.GetUserByID(ctx, id)
	if err != nil || u.Active {
		t.Fatalf("new account should be inactive: %+v, %v", u, err)
	}

	status, err := h.engine.Verify(ctx, tokenFor(id))
	if err != nil || status != gate.VerifyVerified {
		t.Fatalf("first Verify = %v, %v", status, err)
	}
	status, err = h.engine.Verify(ctx, tokenFor(id))
	if err != nil || status != gate.VerifyAlreadyVerified {
		t.Fatalf("second Verify = %v, %v", status, err)
	}
	status, err = h.engine.Verify(ctx, "deadbeef")
	if err != nil || status != gate.VerifyNotFound {
		t.Fatalf("unknown Verify = %v, %v", status, err)
	}

	if u, _ := h.users.GetUserByID(ctx, id); !u.Active {
		t.Fatal("account should be active after verification")
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[gate.MetricSignupCreated] != 1 ||
		snap.Counters[gate.MetricVerifyActivated] != 1 ||
		snap.Counters[gate.MetricVerifyRepeated] != 1 ||
		snap.Counters[gate.MetricVerifyNotFound] != 1 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}
}

func TestRegisterRejectsDuplicatesAndDomains(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.register(t, "alice001", "alice@gmail.com")

	res, err := h.engine.Register(ctx, gate.SignupRequest{
		Username: "alice001",
		Email:    "alice@gmail.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !res.Errors.Has(form.FieldUsername, form.CodeUsernameTaken) {
		t.Fatalf("expected username taken, got %v", res.Errors)
	}

	res, err = h.engine.Register(ctx, gate.SignupRequest{
		Username: "alice002",
		Email:    "alice@gmail.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !res.Errors.Has(form.FieldEmail, form.CodeEmailTaken) {
		t.Fatalf("expected email taken, got %v", res.Errors)
	}

	res, err = h.engine.Register(ctx, gate.SignupRequest{
		Username: "bobby0001",
		Email:    "bob@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !res.Errors.Has(form.FieldEmail, form.CodeEmailDomain) {
		t.Fatalf("expected email domain error, got %v", res.Errors)
	}
	if h.mail.count() != 1 {
		t.Fatalf("rejected signups must not queue mail, outbox has %d", h.mail.count())
	}
}

func TestSignInLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	id := h.register(t, "alice001", "alice@gmail.com")

	res, err := h.engine.SignIn(ctx, "alice001", testPassword)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !res.Errors.Has(form.FieldUsername, form.CodeAccountUnverified) || res.Token != "" {
		t.Fatalf("inactive account should not sign in: %+v", res)
	}

	if _, err := h.engine.Verify(ctx, tokenFor(id)); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	res, err = h.engine.SignIn(ctx, "alice001", "wrong-password")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !res.Errors.Has(form.FieldUsername, form.CodeCredentialsMismatch) {
		t.Fatalf("expected credentials mismatch, got %v", res.Errors)
	}

	res, err = h.engine.SignIn(ctx, "alice001", testPassword)
	if err != nil || !res.Errors.Valid() || res.Token == "" {
		t.Fatalf("SignIn = %+v, %v", res, err)
	}
	if res.UserID != id || res.Staff {
		t.Fatalf("unexpected sign-in result %+v", res)
	}

	ident, err := h.engine.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ident.UserID != id {
		t.Fatalf("identity user = %d, want %d", ident.UserID, id)
	}
	if u, _ := h.users.GetUserByID(ctx, id); u.LastLogin == nil {
		t.Fatal("expected last login to be recorded")
	}

	if err := h.engine.SignOut(ctx, ident); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, res.Token); !errors.Is(err, gate.ErrSessionNotFound) {
		t.Fatalf("Authenticate after sign out = %v, want ErrSessionNotFound", err)
	}
	if err := h.engine.SignOut(ctx, nil); !errors.Is(err, gate.ErrUnauthorized) {
		t.Fatalf("anonymous SignOut = %v, want ErrUnauthorized", err)
	}
	if _, err := h.engine.Authenticate(ctx, "not-a-token"); !errors.Is(err, gate.ErrInvalidToken) {
		t.Fatalf("Authenticate garbage = %v, want ErrInvalidToken", err)
	}
}

func TestSignInThrottle(t *testing.T) {
	h := newHarness(t, func(cfg *gate.Config) {
		cfg.Throttle.MaxAttempts = 3
	})
	ctx := gate.WithClientIP(context.Background(), "203.0.113.9")
	h.activeUser(t, "alice001", "alice@gmail.com")

	for i := 0; i < 3; i++ {
		res, err := h.engine.SignIn(ctx, "alice001", "wrong-password")
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if !res.Errors.Has(form.FieldUsername, form.CodeCredentialsMismatch) {
			t.Fatalf("attempt %d: expected mismatch, got %v", i, res.Errors)
		}
	}

	res, err := h.engine.SignIn(ctx, "alice001", testPassword)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !res.Errors.Has(form.FieldUsername, form.CodeTooManyAttempts) || res.Token != "" {
		t.Fatalf("expected throttle, got %+v", res)
	}
	if got := h.engine.MetricsSnapshot().Counters[gate.MetricSignInThrottled]; got != 1 {
		t.Fatalf("throttled counter = %d", got)
	}

	h.mr.FastForward(16 * time.Minute)

	res, err = h.engine.SignIn(ctx, "alice001", testPassword)
	if err != nil || res.Token == "" {
		t.Fatalf("SignIn after window = %+v, %v", res, err)
	}
}

func TestPasswordResetAnonymous(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	id := h.activeUser(t, "alice001", "alice@gmail.com")

	signedIn, err := h.engine.SignIn(ctx, "alice001", testPassword)
	if err != nil || signedIn.Token == "" {
		t.Fatalf("SignIn = %+v, %v", signedIn, err)
	}

	pending := h.register(t, "bobby001", "bob@gmail.com")

	for _, email := range []string{"nobody@gmail.com", "bob@gmail.com"} {
		res, err := h.engine.RequestPasswordReset(ctx, gate.ResetRequest{Email: email, BaseURL: testBaseURL})
		if err != nil {
			t.Fatalf("RequestPasswordReset failed: %v", err)
		}
		if !res.Errors.Has(form.FieldEmail, form.CodeNoActiveAccount) {
			t.Fatalf("%s: expected no active account, got %v", email, res.Errors)
		}
	}
	if h.mr.Exists("afromart_passwordreset_" + tokenFor(pending)) {
		t.Fatal("inactive account got a reset token")
	}
	for _, key := range h.mr.Keys() {
		if strings.HasPrefix(key, "afromart_passwordreset_") {
			t.Fatalf("unexpected reset key %s", key)
		}
	}

	res, err := h.engine.RequestPasswordReset(ctx, gate.ResetRequest{Email: "alice@gmail.com", BaseURL: testBaseURL})
	if err != nil || !res.Errors.Valid() || !res.MailQueued {
		t.Fatalf("RequestPasswordReset = %+v, %v", res, err)
	}
	key := "afromart_passwordreset_" + tokenFor(id)
	if ttl := h.mr.TTL(key); ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Fatalf("reset token ttl = %s, want about 5m", ttl)
	}
	if !strings.Contains(h.mail.last(t).Body, testBaseURL+"/gate/password_reset/"+tokenFor(id)) {
		t.Fatalf("reset mail missing link:\n%s", h.mail.last(t).Body)
	}

	res, err = h.engine.RequestPasswordReset(ctx, gate.ResetRequest{Email: "alice@gmail.com"})
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if !res.Errors.Has(form.FieldEmail, form.CodeResetLinkStillValid) {
		t.Fatalf("expected still valid, got %v", res.Errors)
	}

	ok, err := h.engine.PasswordResetLinkValid(ctx, nil, tokenFor(id))
	if err != nil || !ok {
		t.Fatalf("PasswordResetLinkValid = %v, %v", ok, err)
	}

	out, err := h.engine.ResetPassword(ctx, nil, gate.ResetAction{
		TokenHash: tokenFor(id),
		Password1: newPassword,
		Password2: "something-else",
	})
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if out.Outcome != gate.ResetShowForm || !out.Errors.Has(form.FieldPassword2, form.CodePasswordMismatch) {
		t.Fatalf("expected mismatch form, got %+v", out)
	}

	out, err = h.engine.ResetPassword(ctx, nil, gate.ResetAction{
		TokenHash: tokenFor(id),
		Password1: newPassword,
		Password2: newPassword,
	})
	if err != nil || out.Outcome != gate.ResetDone {
		t.Fatalf("ResetPassword = %+v, %v", out, err)
	}
	if h.mr.Exists(key) {
		t.Fatal("reset token should be consumed")
	}

	out, err = h.engine.ResetPassword(ctx, nil, gate.ResetAction{
		TokenHash: tokenFor(id),
		Password1: newPassword,
		Password2: newPassword,
	})
	if err != nil || out.Outcome != gate.ResetLinkExpired {
		t.Fatalf("reused link = %+v, %v", out, err)
	}
	if ok, _ := h.engine.PasswordResetLinkValid(ctx, nil, tokenFor(id)); ok {
		t.Fatal("consumed link should not be valid")
	}

	if _, err := h.engine.Authenticate(ctx, signedIn.Token); !errors.Is(err, gate.ErrSessionNotFound) {
		t.Fatalf("old session after reset = %v, want ErrSessionNotFound", err)
	}

	if res, _ := h.engine.SignIn(ctx, "alice001", testPassword); res.Token != "" {
		t.Fatal("old password should no longer work")
	}
	if res, err := h.engine.SignIn(ctx, "alice001", newPassword); err != nil || res.Token == "" {
		t.Fatalf("SignIn with new password = %+v, %v", res, err)
	}
}

func TestPasswordResetSignedIn(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	id := h.activeUser(t, "alice001", "alice@gmail.com")
	resetKey := "afromart_passwordreset_" + tokenFor(id)

	issued, err := h.engine.RequestPasswordReset(ctx, gate.ResetRequest{Email: "alice@gmail.com", BaseURL: testBaseURL})
	if err != nil || !issued.MailQueued || !h.mr.Exists(resetKey) {
		t.Fatalf("RequestPasswordReset = %+v, %v", issued, err)
	}

	signedIn, err := h.engine.SignIn(ctx, "alice001", testPassword)
	if err != nil || signedIn.Token == "" {
		t.Fatalf("SignIn = %+v, %v", signedIn, err)
	}
	ident, err := h.engine.Authenticate(ctx, signedIn.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	ok, err := h.engine.PasswordResetLinkValid(ctx, ident, "whatever")
	if err != nil || !ok {
		t.Fatalf("signed-in link check = %v, %v", ok, err)
	}

	out, err := h.engine.ResetPassword(ctx, ident, gate.ResetAction{
		TokenHash: "whatever",
		Password1: newPassword,
		Password2: newPassword,
	})
	if err != nil || out.Outcome != gate.ResetSignedOut {
		t.Fatalf("ResetPassword = %+v, %v", out, err)
	}
	if _, err := h.engine.Authenticate(ctx, signedIn.Token); !errors.Is(err, gate.ErrSessionNotFound) {
		t.Fatalf("session after reset = %v, want ErrSessionNotFound", err)
	}
	if !h.mr.Exists(resetKey) {
		t.Fatal("signed-in reset should leave the emailed token alone")
	}
}

func TestDroppedVerificationMail(t *testing.T) {
	h := newHarness(t, nil)
	h.mail.drop = true

	res, err := h.engine.Register(context.Background(), gate.SignupRequest{
		Username: "alice001",
		Email:    "alice@gmail.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.UserID == 0 || res.MailQueued {
		t.Fatalf("expected created account without queued mail, got %+v", res)
	}
	if got := h.engine.MetricsSnapshot().Counters[gate.MetricSignupMailDropped]; got != 1 {
		t.Fatalf("mail dropped counter = %d", got)
	}
}

func TestProvisionUser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	u, err := h.engine.ProvisionUser(ctx, gate.ProvisionRequest{
		Username: "staff0001",
		Email:    "ops@afromart.trade",
		Password: testPassword,
		Staff:    true,
	})
	if err != nil {
		t.Fatalf("ProvisionUser failed: %v", err)
	}
	if !u.Active || !u.Staff {
		t.Fatalf("provisioned user should be active staff: %+v", u)
	}
	if h.mail.count() != 0 {
		t.Fatal("provisioning must not send mail")
	}

	res, err := h.engine.SignIn(ctx, "staff0001", testPassword)
	if err != nil || res.Token == "" || !res.Staff {
		t.Fatalf("staff SignIn = %+v, %v", res, err)
	}

	if _, err := h.engine.ProvisionUser(ctx, gate.ProvisionRequest{
		Username: "staff0001",
		Email:    "ops@afromart.trade",
		Password: testPassword,
	}); !errors.Is(err, gate.ErrUsernameTaken) {
		t.Fatalf("duplicate provision = %v, want ErrUsernameTaken", err)
	}

	_, err = h.engine.ProvisionUser(ctx, gate.ProvisionRequest{Username: "x", Email: "bad", Password: "1"})
	var perr *gate.ProvisionError
	if !errors.As(err, &perr) || !errors.Is(err, gate.ErrProvisionInvalid) {
		t.Fatalf("invalid provision = %v", err)
	}
	if !perr.Errors.Has(form.FieldUsername, form.CodeUsernameLength) ||
		!perr.Errors.Has(form.FieldEmail, form.CodeEmailInvalid) {
		t.Fatalf("unexpected provision errors %v", perr.Errors)
	}
}

func TestPingReportsCacheOutage(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	h.mr.Close()
	if err := h.engine.Ping(context.Background()); !errors.Is(err, gate.ErrCacheUnavailable) {
		t.Fatalf("Ping after redis stop = %v, want ErrCacheUnavailable", err)
	}
}
