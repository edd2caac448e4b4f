package hubauth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/entitlement"
	"github.com/wellbuilt/hubauth/internal/audit"
	"github.com/wellbuilt/hubauth/internal/flows"
	"github.com/wellbuilt/hubauth/passcode"
	"github.com/wellbuilt/hubauth/profile"
	"github.com/wellbuilt/hubauth/session"
)

// Engine runs driver login, registration and session revalidation against
// the remote directory, and resolves company entitlement. It holds no
// per-driver state of its own: the session lives in the session store.
// Engine methods are safe for concurrent use.
type Engine struct {
	config   Config
	log      zerolog.Logger
	now      func() time.Time
	policy   passcode.Policy
	drivers  *directory.Drivers
	sessions *session.Store
	resolver *entitlement.Resolver
	profiles *profile.Service
	audit    *audit.Dispatcher
	metrics  *Metrics
	flows    flows.Deps
}

// Close drains the audit queue and stops background profile refreshes.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.profiles != nil {
		e.profiles.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config.clone()
}

// AuditDropped counts audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Profiles exposes the driver profile mirror.
func (e *Engine) Profiles() *profile.Service {
	return e.profiles
}

func (e *Engine) metricInc(id int) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(MetricID(id))
}

func (e *Engine) warn(msg string, kv ...any) {
	e.log.Warn().Fields(kv).Msg(msg)
}

func (e *Engine) validatePasscode(p string) error {
	return passcodeError(e.policy.Validate(p), e.policy)
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Login: flows.LoginDeps{
			Hash:        passcode.Hash,
			Approved:    e.drivers.Approved,
			SaveSession: e.sessions.Save,
			MetricInc:   e.metricInc,
			EmitAudit:   e.emitAudit,
			Warn:        e.warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:         int(MetricLoginSuccess),
				LoginFailure:         int(MetricLoginFailure),
				LoginConnectionError: int(MetricLoginConnectionError),
				SessionCreated:       int(MetricSessionCreated),
			},
			Events: flows.LoginEvents{
				LoginSuccess: auditEventLoginSuccess,
				LoginFailure: auditEventLoginFailure,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:        ErrEngineNotReady,
				InvalidCredentials:    ErrInvalidCredentials,
				Connection:            ErrConnection,
				SessionCreationFailed: ErrSessionCreationFailed,
			},
		},
		Registration: flows.RegistrationDeps{
			MinDisplayName:   e.config.Registration.MinDisplayName,
			Hash:             passcode.Hash,
			ValidatePasscode: e.validatePasscode,
			Now:              e.now,
			Approved:         e.drivers.Approved,
			HasPending:       e.drivers.HasPending,
			SubmitPending:    e.drivers.SubmitPending,
			LoadPending:      e.sessions.LoadPending,
			SavePending:      e.sessions.SavePending,
			ClearPending:     e.sessions.ClearPending,
			SaveSession:      e.sessions.Save,
			MetricInc:        e.metricInc,
			EmitAudit:        e.emitAudit,
			Warn:             e.warn,
			Metrics: flows.RegistrationMetrics{
				Submitted:       int(MetricRegistrationSubmitted),
				Conflict:        int(MetricRegistrationConflict),
				Approved:        int(MetricRegistrationApproved),
				Rejected:        int(MetricRegistrationRejected),
				Cancelled:       int(MetricRegistrationCancelled),
				SessionCreated:  int(MetricSessionCreated),
				ConnectionError: int(MetricRegistrationConnectionError),
			},
			Events: flows.RegistrationEvents{
				Submitted: auditEventRegistrationSubmitted,
				Completed: auditEventRegistrationCompleted,
				Cancelled: auditEventRegistrationCancelled,
			},
			Errors: flows.RegistrationErrors{
				EngineNotReady:        ErrEngineNotReady,
				DisplayNameRequired:   ErrDisplayNameRequired,
				DisplayNameTooShort:   ErrDisplayNameTooShort,
				PasscodeInUse:         ErrPasscodeInUse,
				PasscodePending:       ErrPasscodePending,
				Connection:            ErrConnection,
				NoPending:             ErrNoPendingRegistration,
				NotApproved:           ErrNotApproved,
				SessionCreationFailed: ErrSessionCreationFailed,
			},
		},
		Revalidate: flows.RevalidateDeps{
			LoadSession:  e.sessions.Load,
			Approved:     e.drivers.Approved,
			SaveSession:  e.sessions.Save,
			ClearSession: e.sessions.Clear,
			MetricInc:    e.metricInc,
			EmitAudit:    e.emitAudit,
			Warn:         e.warn,
			Metrics: flows.RevalidateMetrics{
				SessionRevoked:     int(MetricSessionRevoked),
				SessionKeptOffline: int(MetricSessionKeptOffline),
			},
			Events: flows.RevalidateEvents{
				SessionRevoked: auditEventSessionRevoked,
			},
			Errors: flows.RevalidateErrors{
				EngineNotReady: ErrEngineNotReady,
				Revoked:        ErrSessionRevoked,
			},
		},
		Logout: flows.LogoutDeps{
			LoadSession:  e.sessions.Load,
			ClearSession: e.sessions.Clear,
			ClearCaches: []func(context.Context) error{
				e.resolver.ClearCache,
				e.profiles.ClearCache,
			},
			MetricInc: e.metricInc,
			EmitAudit: e.emitAudit,
			Warn:      e.warn,
			Metrics:   flows.LogoutMetrics{Logout: int(MetricLogout)},
			Events:    flows.LogoutEvents{Logout: auditEventLogout},
			Errors:    flows.LogoutErrors{EngineNotReady: ErrEngineNotReady},
		},
	}
}
