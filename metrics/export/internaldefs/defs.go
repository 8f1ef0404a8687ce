package internaldefs

import "github.com/mentorloop/authcore"

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events lost to a full dispatcher buffer.
const AuditDroppedName = "authcore_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Logins that issued a session directly."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Rejected login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins refused by the attempt limiter."},
	{ID: authcore.MetricSecondFactorRequired, Name: "authcore_second_factor_required_total", Help: "Logins that issued a pending second-factor token."},
	{ID: authcore.MetricSecondFactorSuccess, Name: "authcore_second_factor_success_total", Help: "Pending tokens promoted to sessions."},
	{ID: authcore.MetricSecondFactorFailure, Name: "authcore_second_factor_failure_total", Help: "Rejected second-factor attempts."},
	{ID: authcore.MetricPendingReplay, Name: "authcore_pending_replay_total", Help: "Reuse of an already claimed pending token."},
	{ID: authcore.MetricEnrollmentStarted, Name: "authcore_enrollment_started_total", Help: "Generated enrollment secrets."},
	{ID: authcore.MetricEnrollmentConfirmed, Name: "authcore_enrollment_confirmed_total", Help: "Confirmed second-factor enrollments."},
	{ID: authcore.MetricEnrollmentFailure, Name: "authcore_enrollment_failure_total", Help: "Enrollment confirmations with a wrong code."},
	{ID: authcore.MetricSecondFactorDisabled, Name: "authcore_second_factor_disabled_total", Help: "Removed second-factor enrollments."},
	{ID: authcore.MetricSessionRejected, Name: "authcore_session_rejected_total", Help: "Session tokens that failed verification."},
	{ID: authcore.MetricForbidden, Name: "authcore_forbidden_total", Help: "Verified principals refused by a role check."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Attempt limiter refusals."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout calls."},
	{ID: authcore.MetricPasswordRehashed, Name: "authcore_password_rehashed_total", Help: "Password hashes upgraded on login."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_session_verify_latency_seconds", Help: "Session token verification latency."},
}

// BucketCount matches the engine histogram layout; the last bucket is +Inf.
const BucketCount = 8

// UpperBounds are the finite bucket bounds in seconds.
var UpperBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BoundSuffix names each bucket in instrument names.
var BoundSuffix = [BucketCount]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
