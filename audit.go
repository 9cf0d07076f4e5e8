package gate

import (
	"context"

	"github.com/afromart/gate/internal/audit"
	"github.com/afromart/gate/internal/flows"
)

// Audit types are defined in internal/audit and re-exported here.
type (
	AuditEvent     = audit.Event
	AuditSink      = audit.Sink
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	LogSink        = audit.LogSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewLogSink        = audit.NewLogSink
)

// Audit event types.
const (
	AuditSignupCreated          = "signup_created"
	AuditSignupRejected         = "signup_rejected"
	AuditSignupVerified         = "signup_verified"
	AuditSignInSuccess          = "signin_success"
	AuditSignInFailure          = "signin_failure"
	AuditSignOut                = "signout"
	AuditPasswordResetRequested = "password_reset_requested"
	AuditPasswordResetCompleted = "password_reset_completed"
	AuditUserProvisioned        = "user_provisioned"
)

func (e *Engine) emitAudit(ctx context.Context, rec flows.AuditRecord) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		EventType: rec.Event,
		UserID:    rec.UserID,
		Username:  rec.Username,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   rec.Success,
		Reason:    rec.Reason,
	})
}
