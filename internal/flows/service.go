package flows

import (
	"context"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.ParseToken != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Verify(ctx context.Context, tokenHash string) (VerifyOutcome, error) {
	return RunVerify(ctx, tokenHash, s.deps.Verify)
}

func (s Service) SignIn(ctx context.Context, username, password string) (SignInResult, error) {
	return RunSignIn(ctx, username, password, s.deps.SignIn)
}

func (s Service) Authenticate(ctx context.Context, token string) (SessionRef, error) {
	return RunAuthenticate(ctx, token, s.deps.Authenticate)
}

func (s Service) SignOut(ctx context.Context, ref *SessionRef) error {
	return RunSignOut(ctx, ref, s.deps.SignOut)
}

func (s Service) RequestPasswordReset(ctx context.Context, req ResetRequest) (ResetRequestResult, error) {
	return RunRequestPasswordReset(ctx, req, s.deps.ResetRequest)
}

func (s Service) ResetLinkValid(ctx context.Context, tokenHash string, actor *SessionRef) (bool, error) {
	return RunResetLinkValid(ctx, tokenHash, actor, s.deps.ResetPassword)
}

func (s Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (ResetPasswordResult, error) {
	return RunResetPassword(ctx, req, s.deps.ResetPassword)
}
