package flows

import (
	"context"

	"github.com/wellbuilt/hubauth/session"
)

// LogoutMetrics carries metric IDs needed by the logout flow.
type LogoutMetrics struct {
	Logout int
}

// LogoutEvents carries audit event names used by the logout flow.
type LogoutEvents struct {
	Logout string
}

// LogoutErrors carries host-level sentinel errors used by the logout flow.
type LogoutErrors struct {
	EngineNotReady error
}

// LogoutDeps captures logout dependencies. ClearCaches run after the
// session is gone; their failures are logged, not returned.
type LogoutDeps struct {
	LoadSession  func(context.Context) (*session.Session, error)
	ClearSession func(context.Context) error
	ClearCaches  []func(context.Context) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout clears the session, the pending mirror and every cache that
// could leak one driver's data to the next. It never touches the network.
func RunLogout(ctx context.Context, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.ClearSession == nil {
		return deps.Errors.EngineNotReady
	}

	var hash, company string
	if deps.LoadSession != nil {
		if sess, err := deps.LoadSession(ctx); err == nil && sess != nil {
			hash, company = sess.PasscodeHash, sess.CompanyID
		}
	}

	if err := deps.ClearSession(ctx); err != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, false, hash, company, err, nil)
		return err
	}
	for _, fn := range deps.ClearCaches {
		if fn == nil {
			continue
		}
		if err := fn(ctx); err != nil {
			deps.Warn("clear cache on logout failed", "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, hash, company, nil, nil)
	return nil
}
