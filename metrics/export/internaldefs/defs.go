package internaldefs

import (
	"github.com/wellbuilt/hubauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   hubauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   hubauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: hubauth.MetricLoginSuccess, Name: "hubauth_login_success_total", Help: "Successful driver logins."},
	{ID: hubauth.MetricLoginFailure, Name: "hubauth_login_failure_total", Help: "Rejected driver logins."},
	{ID: hubauth.MetricLoginConnectionError, Name: "hubauth_login_connection_error_total", Help: "Logins that could not reach the directory."},
	{ID: hubauth.MetricRegistrationSubmitted, Name: "hubauth_registration_submitted_total", Help: "Registration requests filed."},
	{ID: hubauth.MetricRegistrationConflict, Name: "hubauth_registration_conflict_total", Help: "Registrations refused because the passcode is taken."},
	{ID: hubauth.MetricRegistrationApproved, Name: "hubauth_registration_approved_total", Help: "Registrations completed after approval."},
	{ID: hubauth.MetricRegistrationRejected, Name: "hubauth_registration_rejected_total", Help: "Status checks that inferred a rejection."},
	{ID: hubauth.MetricRegistrationCancelled, Name: "hubauth_registration_cancelled_total", Help: "Registrations cancelled on the device."},
	{ID: hubauth.MetricRegistrationConnectionError, Name: "hubauth_registration_connection_error_total", Help: "Registration steps that could not reach the directory."},
	{ID: hubauth.MetricSessionCreated, Name: "hubauth_session_created_total", Help: "Sessions persisted."},
	{ID: hubauth.MetricSessionRevoked, Name: "hubauth_session_revoked_total", Help: "Sessions cleared by revalidation."},
	{ID: hubauth.MetricSessionKeptOffline, Name: "hubauth_session_kept_offline_total", Help: "Revalidations that kept the session because the directory was unreachable."},
	{ID: hubauth.MetricLogout, Name: "hubauth_logout_total", Help: "Logouts."},
	{ID: hubauth.MetricEntitlementCacheHit, Name: "hubauth_entitlement_cache_hit_total", Help: "Company configs served from a fresh cache entry."},
	{ID: hubauth.MetricEntitlementFetched, Name: "hubauth_entitlement_fetched_total", Help: "Company configs fetched from the document store."},
	{ID: hubauth.MetricEntitlementFallback, Name: "hubauth_entitlement_fallback_total", Help: "Company configs served stale after a failed fetch."},
	{ID: hubauth.MetricEntitlementUnavailable, Name: "hubauth_entitlement_unavailable_total", Help: "Company config lookups with neither cache nor network."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: hubauth.MetricDirectoryLatency, Name: "hubauth_directory_latency_seconds", Help: "Directory round-trip latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's eight
// latency buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket for exporters that need one
// instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
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
