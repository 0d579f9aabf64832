package internaldefs

import (
	shopAuth "github.com/MrEthical07/shopAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   shopAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   shopAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: shopAuth.MetricRegisterSuccess, Name: "shopauth_register_success_total", Help: "Successful registrations."},
	{ID: shopAuth.MetricRegisterFailure, Name: "shopauth_register_failure_total", Help: "Rejected registrations."},
	{ID: shopAuth.MetricLoginSuccess, Name: "shopauth_login_success_total", Help: "Successful login attempts."},
	{ID: shopAuth.MetricLoginFailure, Name: "shopauth_login_failure_total", Help: "Failed login attempts."},
	{ID: shopAuth.MetricLoginUnverified, Name: "shopauth_login_unverified_total", Help: "Login attempts refused for an unverified email."},
	{ID: shopAuth.MetricRefreshSuccess, Name: "shopauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: shopAuth.MetricRefreshFailure, Name: "shopauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: shopAuth.MetricRateLimitHit, Name: "shopauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: shopAuth.MetricAccountLocked, Name: "shopauth_account_locked_total", Help: "Login attempts refused during a lockout."},
	{ID: shopAuth.MetricSessionCreated, Name: "shopauth_session_created_total", Help: "Created sessions."},
	{ID: shopAuth.MetricSessionRevoked, Name: "shopauth_session_revoked_total", Help: "Revoked sessions."},
	{ID: shopAuth.MetricPasswordResetRequest, Name: "shopauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: shopAuth.MetricPasswordResetSuccess, Name: "shopauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: shopAuth.MetricPasswordResetFailure, Name: "shopauth_password_reset_failure_total", Help: "Failed password resets."},
	{ID: shopAuth.MetricPasswordChangeSuccess, Name: "shopauth_password_change_success_total", Help: "Successful password changes."},
	{ID: shopAuth.MetricPasswordChangeFailure, Name: "shopauth_password_change_failure_total", Help: "Failed password changes."},
	{ID: shopAuth.MetricEmailVerificationRequest, Name: "shopauth_email_verification_request_total", Help: "Verification emails issued."},
	{ID: shopAuth.MetricEmailVerificationSuccess, Name: "shopauth_email_verification_success_total", Help: "Successful email verifications."},
	{ID: shopAuth.MetricEmailVerificationFailure, Name: "shopauth_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: shopAuth.MetricLogout, Name: "shopauth_logout_total", Help: "Single-session logout operations."},
	{ID: shopAuth.MetricLogoutAll, Name: "shopauth_logout_all_total", Help: "Logout-all operations."},
	{ID: shopAuth.MetricSuspiciousFlagged, Name: "shopauth_suspicious_flagged_total", Help: "Identities flagged by the maintenance sweep."},
	{ID: shopAuth.MetricInternalError, Name: "shopauth_internal_error_total", Help: "Operations that failed with an internal error."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: shopAuth.MetricLoginLatency, Name: "shopauth_login_latency_seconds", Help: "Login latency histogram."},
	{ID: shopAuth.MetricValidateLatency, Name: "shopauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters that
// flatten buckets into separate instruments.
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

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "shopauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

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
