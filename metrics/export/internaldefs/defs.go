package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/identityauth"
)

// Def binds an engine metric to its exported name.
type Def struct {
	ID   identityauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []Def{
	{identityauth.MetricLoginSuccess, "identityauth_login_success_total", "Successful logins."},
	{identityauth.MetricLoginFailure, "identityauth_login_failure_total", "Failed logins."},
	{identityauth.MetricLoginRateLimited, "identityauth_login_rate_limited_total", "Logins refused by the throttle."},
	{identityauth.MetricRefreshSuccess, "identityauth_refresh_success_total", "Successful refresh rotations."},
	{identityauth.MetricRefreshFailure, "identityauth_refresh_failure_total", "Rejected refresh attempts."},
	{identityauth.MetricRefreshReuseDetected, "identityauth_refresh_reuse_detected_total", "Superseded refresh values presented."},
	{identityauth.MetricRegisterSuccess, "identityauth_register_success_total", "Successful registrations."},
	{identityauth.MetricRegisterFailure, "identityauth_register_failure_total", "Failed registrations."},
	{identityauth.MetricRegisterDuplicate, "identityauth_register_duplicate_total", "Registrations rejected for a taken email."},
	{identityauth.MetricValidateSuccess, "identityauth_validate_success_total", "Accepted access tokens."},
	{identityauth.MetricValidateFailure, "identityauth_validate_failure_total", "Rejected access tokens."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []Def{
	{identityauth.MetricValidateLatency, "identityauth_validate_latency_seconds", "Access token validation latency."},
}

// AuditDropped is exported alongside the engine counters.
var AuditDropped = Def{Name: "identityauth_audit_dropped_total", Help: "Audit events dropped because the dispatcher buffer was full."}

// Bucket is one histogram upper bound, as a Prometheus "le" label and as a
// metric-name suffix for backends without labels.
type Bucket struct {
	Label  string
	Suffix string
}

// Buckets returns the exported histogram buckets, ending with +Inf.
func Buckets() []Bucket {
	out := make([]Bucket, 0, len(identityauth.LatencyBucketBounds)+1)
	for _, d := range identityauth.LatencyBucketBounds {
		label := strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
		out = append(out, Bucket{Label: label, Suffix: strings.ReplaceAll(label, ".", "_")})
	}
	return append(out, Bucket{Label: "+Inf", Suffix: "inf"})
}

// Cumulative turns per-bucket counts into running totals over len(Buckets())
// entries, zero-filling missing buckets.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(identityauth.LatencyBucketBounds)+1)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
