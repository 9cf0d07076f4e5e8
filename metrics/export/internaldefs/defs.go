package internaldefs

import (
	"github.com/afromart/gate"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   gate.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   gate.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: gate.MetricSignupCreated, Name: "gate_signup_created_total", Help: "Accounts created by the signup form."},
	{ID: gate.MetricSignupRejected, Name: "gate_signup_rejected_total", Help: "Signup submissions rejected with form errors."},
	{ID: gate.MetricSignupMailDropped, Name: "gate_signup_mail_dropped_total", Help: "Verification emails the mail queue refused."},
	{ID: gate.MetricVerifyActivated, Name: "gate_verify_activated_total", Help: "Accounts activated through a verification link."},
	{ID: gate.MetricVerifyRepeated, Name: "gate_verify_repeated_total", Help: "Verification links followed for an already active account."},
	{ID: gate.MetricVerifyNotFound, Name: "gate_verify_not_found_total", Help: "Verification links that were unknown or expired."},
	{ID: gate.MetricSignInSuccess, Name: "gate_signin_success_total", Help: "Successful sign-ins."},
	{ID: gate.MetricSignInFailure, Name: "gate_signin_failure_total", Help: "Sign-ins with credentials that did not match."},
	{ID: gate.MetricSignInUnverified, Name: "gate_signin_unverified_total", Help: "Sign-ins refused because the email is not verified."},
	{ID: gate.MetricSignInThrottled, Name: "gate_signin_throttled_total", Help: "Sign-ins refused by the failure throttle."},
	{ID: gate.MetricSessionCreated, Name: "gate_session_created_total", Help: "Created sessions."},
	{ID: gate.MetricSessionInvalidated, Name: "gate_session_invalidated_total", Help: "Session revocations after a password reset."},
	{ID: gate.MetricSignOut, Name: "gate_signout_total", Help: "Sign-outs."},
	{ID: gate.MetricPasswordResetRequest, Name: "gate_password_reset_request_total", Help: "Password reset links issued."},
	{ID: gate.MetricPasswordResetRejected, Name: "gate_password_reset_rejected_total", Help: "Reset requests for an email with no active account."},
	{ID: gate.MetricPasswordResetDuplicate, Name: "gate_password_reset_duplicate_total", Help: "Reset requests refused while a link is still valid."},
	{ID: gate.MetricPasswordResetMailDropped, Name: "gate_password_reset_mail_dropped_total", Help: "Reset emails the mail queue refused."},
	{ID: gate.MetricPasswordResetSuccess, Name: "gate_password_reset_success_total", Help: "Passwords changed through the reset form."},
	{ID: gate.MetricPasswordResetFailure, Name: "gate_password_reset_failure_total", Help: "Reset form submissions with errors."},
	{ID: gate.MetricPasswordResetExpired, Name: "gate_password_reset_expired_total", Help: "Reset submissions with an expired or unknown link."},
	{ID: gate.MetricUserProvisioned, Name: "gate_user_provisioned_total", Help: "Accounts created by an operator."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: gate.MetricSessionLoadLatency, Name: "gate_session_load_latency_seconds", Help: "Time to resolve a session cookie."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
