package gorbac

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint8

// Counter identifiers. The string names in metricNames are what
// exporters publish.
const (
	MetricSignupSuccess MetricID = iota
	MetricSignupFailure
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginTwoFactorRequired
	MetricTwoFactorLoginSuccess
	MetricTwoFactorLoginFailure
	MetricPasswordlessSent
	MetricPasswordlessLoginSuccess
	MetricPasswordlessLoginFailure
	MetricLogout
	MetricLogoutAll
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshConflict
	MetricPasswordForgot
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricEmailVerifySent
	MetricEmailVerifySuccess
	MetricEmailVerifyFailure
	MetricEmailChange
	MetricEnrollBegin
	MetricEnrollConfirm
	MetricTwoFactorDisabled
	MetricAuthenticateSuccess
	MetricAuthenticateFailure

	metricCount
)

var metricNames = [metricCount]string{
	MetricSignupSuccess:            "gorbac_signup_success_total",
	MetricSignupFailure:            "gorbac_signup_failure_total",
	MetricLoginSuccess:             "gorbac_login_success_total",
	MetricLoginFailure:             "gorbac_login_failure_total",
	MetricLoginTwoFactorRequired:   "gorbac_login_two_factor_required_total",
	MetricTwoFactorLoginSuccess:    "gorbac_two_factor_login_success_total",
	MetricTwoFactorLoginFailure:    "gorbac_two_factor_login_failure_total",
	MetricPasswordlessSent:         "gorbac_passwordless_sent_total",
	MetricPasswordlessLoginSuccess: "gorbac_passwordless_login_success_total",
	MetricPasswordlessLoginFailure: "gorbac_passwordless_login_failure_total",
	MetricLogout:                   "gorbac_logout_total",
	MetricLogoutAll:                "gorbac_logout_all_total",
	MetricRefreshSuccess:           "gorbac_refresh_success_total",
	MetricRefreshFailure:           "gorbac_refresh_failure_total",
	MetricRefreshConflict:          "gorbac_refresh_conflict_total",
	MetricPasswordForgot:           "gorbac_password_forgot_total",
	MetricPasswordResetSuccess:     "gorbac_password_reset_success_total",
	MetricPasswordResetFailure:     "gorbac_password_reset_failure_total",
	MetricPasswordChangeSuccess:    "gorbac_password_change_success_total",
	MetricPasswordChangeFailure:    "gorbac_password_change_failure_total",
	MetricEmailVerifySent:          "gorbac_email_verify_sent_total",
	MetricEmailVerifySuccess:       "gorbac_email_verify_success_total",
	MetricEmailVerifyFailure:       "gorbac_email_verify_failure_total",
	MetricEmailChange:              "gorbac_email_change_total",
	MetricEnrollBegin:              "gorbac_two_factor_enroll_begin_total",
	MetricEnrollConfirm:            "gorbac_two_factor_enroll_confirm_total",
	MetricTwoFactorDisabled:        "gorbac_two_factor_disabled_total",
	MetricAuthenticateSuccess:      "gorbac_authenticate_success_total",
	MetricAuthenticateFailure:      "gorbac_authenticate_failure_total",
}

// Name returns the exported counter name for id.
func (id MetricID) Name() string {
	if id >= metricCount {
		return "gorbac_unknown"
	}
	return metricNames[id]
}

// AuthenticateLatencyBounds are the upper bucket bounds of the
// Authenticate latency histogram; counts above the last bound land in
// an overflow bucket.
var AuthenticateLatencyBounds = [...]time.Duration{
	1 * time.Millisecond,
	2 * time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
}

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	v atomic.Uint64
	_ [56]byte
}

type metricRegistry struct {
	enabled  bool
	latency  bool
	counters [metricCount]paddedCounter
	buckets  [len(AuthenticateLatencyBounds) + 1]atomic.Uint64
}

func newMetricRegistry(cfg MetricsConfig) *metricRegistry {
	return &metricRegistry{enabled: cfg.Enabled, latency: cfg.EnableLatencyHistogram}
}

func (m *metricRegistry) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].v.Add(1)
}

func (m *metricRegistry) Observe(d time.Duration) {
	if m == nil || !m.enabled || !m.latency {
		return
	}
	for i, bound := range AuthenticateLatencyBounds {
		if d <= bound {
			m.buckets[i].Add(1)
			return
		}
	}
	m.buckets[len(AuthenticateLatencyBounds)].Add(1)
}

// MetricsSnapshot is a point-in-time copy of the engine counters,
// suitable for exporters. Counters are keyed by exported name.
// AuthenticateLatency holds per-bucket counts aligned with
// AuthenticateLatencyBounds plus one overflow bucket; it is nil when
// the histogram is disabled.
type MetricsSnapshot struct {
	Counters            map[string]uint64
	AuthenticateLatency []uint64
	AuditDropped        uint64
}

func (m *metricRegistry) snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[string]uint64, metricCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[metricNames[id]] = m.counters[id].v.Load()
	}
	if m.latency {
		snap.AuthenticateLatency = make([]uint64, len(m.buckets))
		for i := range m.buckets {
			snap.AuthenticateLatency[i] = m.buckets[i].Load()
		}
	}
	return snap
}
