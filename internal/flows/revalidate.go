package flows

import (
	"context"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/session"
)

// Revalidation is the outcome of re-checking a stored session.
type Revalidation string

const (
	// RevalidationValid means the directory still approves the identity.
	RevalidationValid Revalidation = "valid"
	// RevalidationRevoked means the directory answered that the identity is
	// gone or deactivated; the session has been cleared.
	RevalidationRevoked Revalidation = "revoked"
	// RevalidationOffline means the directory could not be reached; the
	// session is kept unchanged.
	RevalidationOffline Revalidation = "offline"
	// RevalidationAbsent means there was no stored session to check.
	RevalidationAbsent Revalidation = "absent"
)

// RevalidateMetrics carries metric IDs needed by the revalidation flow.
type RevalidateMetrics struct {
	SessionRevoked     int
	SessionKeptOffline int
}

// RevalidateEvents carries audit event names used by the revalidation flow.
type RevalidateEvents struct {
	SessionRevoked string
}

// RevalidateErrors carries host-level sentinel errors used by the
// revalidation flow.
type RevalidateErrors struct {
	EngineNotReady error
	Revoked        error
}

// RevalidateDeps captures revalidation dependencies.
type RevalidateDeps struct {
	LoadSession  func(context.Context) (*session.Session, error)
	Approved     func(context.Context, string) (*directory.DriverDocument, error)
	SaveSession  func(context.Context, session.Session) error
	ClearSession func(context.Context) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics RevalidateMetrics
	Events  RevalidateEvents
	Errors  RevalidateErrors
}

// RunRevalidate re-checks the stored session against the directory. Only an
// authoritative negative answer clears it; a failed lookup leaves it alone.
// When the record's flags or company changed, the session is replaced whole.
func RunRevalidate(ctx context.Context, deps RevalidateDeps) (Revalidation, *session.Session, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.LoadSession == nil || deps.Approved == nil || deps.ClearSession == nil {
		return "", nil, deps.Errors.EngineNotReady
	}

	sess, err := deps.LoadSession(ctx)
	if err != nil || sess == nil {
		return RevalidationAbsent, nil, nil
	}

	doc, err := deps.Approved(ctx, sess.PasscodeHash)
	if err != nil {
		deps.MetricInc(deps.Metrics.SessionKeptOffline)
		deps.Warn("revalidation lookup failed, keeping session", "error", err)
		return RevalidationOffline, sess, nil
	}

	rec, standing := doc.Standing(sess.DisplayName)
	if standing != directory.StandingActive {
		reason := ReasonNotFound
		if standing == directory.StandingDeactivated {
			reason = ReasonDeactivated
		}
		if err := deps.ClearSession(ctx); err != nil {
			return RevalidationRevoked, nil, err
		}
		deps.MetricInc(deps.Metrics.SessionRevoked)
		deps.EmitAudit(ctx, deps.Events.SessionRevoked, true, sess.PasscodeHash, sess.CompanyID, deps.Errors.Revoked, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return RevalidationRevoked, nil, nil
	}

	fresh := SessionFromRecord(sess.PasscodeHash, rec, sess.DisplayName)
	fresh.VerifiedAt = sess.VerifiedAt
	if sameIdentity(*sess, fresh) {
		return RevalidationValid, sess, nil
	}
	if deps.SaveSession == nil {
		return RevalidationValid, sess, nil
	}
	if err := deps.SaveSession(ctx, fresh); err != nil {
		deps.Warn("refresh session failed, keeping previous copy", "error", err)
		return RevalidationValid, sess, nil
	}
	return RevalidationValid, &fresh, nil
}
