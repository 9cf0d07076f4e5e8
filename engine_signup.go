package gate

import (
	"context"

	"github.com/afromart/gate/internal/flows"
)

// Register validates a signup form and creates an inactive account. Form
// problems come back in SignupResult.Errors; only infrastructure failures
// are returned as errors. The verification email is queued, not sent.
func (e *Engine) Register(ctx context.Context, req SignupRequest) (SignupResult, error) {
	if e == nil || !e.flow.Initialized() {
		return SignupResult{}, ErrEngineNotReady
	}
	res, err := e.flow.Register(ctx, flows.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		BaseURL:  req.BaseURL,
	})
	if err != nil {
		return SignupResult{}, e.fatal(ctx, "register", err)
	}
	return SignupResult{
		Errors:     res.Errors,
		UserID:     res.UserID,
		MailQueued: res.MailQueued,
	}, nil
}

// Verify follows a verification link. The link stays usable until it
// expires, so a second visit reports VerifyAlreadyVerified.
func (e *Engine) Verify(ctx context.Context, tokenHash string) (VerifyStatus, error) {
	if e == nil || !e.flow.Initialized() {
		return VerifyNotFound, ErrEngineNotReady
	}
	outcome, err := e.flow.Verify(ctx, tokenHash)
	if err != nil {
		return VerifyNotFound, e.fatal(ctx, "verify", err)
	}
	switch outcome {
	case flows.VerifyActivated:
		return VerifyVerified, nil
	case flows.VerifyAlreadyActive:
		return VerifyAlreadyVerified, nil
	default:
		return VerifyNotFound, nil
	}
}
