package flows

import (
	"context"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Register      RegisterDeps
	Verify        VerifyDeps
	SignIn        SignInDeps
	Authenticate  AuthenticateDeps
	SignOut       SignOutDeps
	ResetRequest  ResetRequestDeps
	ResetPassword ResetPasswordDeps
}

// UserRecord is the flow-local view of a stored customer.
type UserRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Staff        bool
}

// NewUserRecord is what the registration flow asks the store to create.
type NewUserRecord struct {
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Staff        bool
}

// SessionRef identifies the signed-in requester, if any.
type SessionRef struct {
	UserID    int64
	SessionID string
	Staff     bool
}

// AuditRecord is what a flow reports; the engine adds request metadata.
type AuditRecord struct {
	Event    string
	Success  bool
	UserID   int64
	Username string
	Reason   string
}

// Hooks carries the observability callbacks shared by every flow. Any of
// them may be nil.
type Hooks struct {
	MetricInc func(int)
	EmitAudit func(context.Context, AuditRecord)
	Warn      func(context.Context, string, ...any)
}

func (h Hooks) withDefaults() Hooks {
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, AuditRecord) {}
	}
	if h.Warn == nil {
		h.Warn = func(context.Context, string, ...any) {}
	}
	return h
}
