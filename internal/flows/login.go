package flows

import (
	"context"
	"strings"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/session"
)

// Reasons recorded in audit metadata for a rejected login. They never reach
// the caller, which only sees the generic invalid-credentials result.
const (
	ReasonNotFound     = "not_found"
	ReasonNameMismatch = "name_mismatch"
	ReasonDeactivated  = "deactivated"
	ReasonBlankInput   = "blank_input"
)

// VerifyResult is the outcome of checking a name and passcode against the
// approved directory.
type VerifyResult struct {
	Valid  bool
	Hash   string
	Record directory.DriverRecord
	Reason string
}

// LoginMetrics carries metric IDs needed by the login flows.
type LoginMetrics struct {
	LoginSuccess         int
	LoginFailure         int
	LoginConnectionError int
	SessionCreated       int
}

// LoginEvents carries audit event names used by the login flows.
type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level sentinel errors used by the login flows.
type LoginErrors struct {
	EngineNotReady        error
	InvalidCredentials    error
	Connection            error
	SessionCreationFailed error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hash        func(string) string
	Approved    func(context.Context, string) (*directory.DriverDocument, error)
	SaveSession func(context.Context, session.Session) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func (d *LoginDeps) defaults() bool {
	if d.MetricInc == nil {
		d.MetricInc = noopInc
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noopAudit
	}
	if d.Warn == nil {
		d.Warn = noopWarn
	}
	return d.Hash != nil && d.Approved != nil
}

// RunVerifyLogin looks the passcode hash up and checks the display name
// case-insensitively. Wrong name, unknown passcode and deactivated record
// all produce the same invalid result with a nil error; only a failed
// lookup returns an error.
func RunVerifyLogin(ctx context.Context, name, code string, deps LoginDeps) (*VerifyResult, error) {
	if !deps.defaults() {
		return nil, deps.Errors.EngineNotReady
	}

	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if name == "" || code == "" {
		return rejectLogin(ctx, "", ReasonBlankInput, deps), nil
	}

	hash := deps.Hash(code)
	doc, err := deps.Approved(ctx, hash)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginConnectionError)
		deps.Warn("login lookup failed", "error", err)
		connErr := connectionError(deps.Errors.Connection, err)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, hash, "", connErr, nil)
		return nil, connErr
	}
	if doc == nil {
		return rejectLogin(ctx, hash, ReasonNotFound, deps), nil
	}

	rec, ok := doc.Match(name)
	if !ok {
		reason := ReasonNameMismatch
		if _, standing := doc.Standing(name); standing == directory.StandingDeactivated {
			reason = ReasonDeactivated
		}
		return rejectLogin(ctx, hash, reason, deps), nil
	}

	return &VerifyResult{Valid: true, Hash: hash, Record: rec}, nil
}

func rejectLogin(ctx context.Context, hash, reason string, deps LoginDeps) *VerifyResult {
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, hash, "", deps.Errors.InvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return &VerifyResult{Hash: hash, Reason: reason}
}

// RunLogin verifies the credentials and persists a session built from the
// approved record.
func RunLogin(ctx context.Context, name, code string, deps LoginDeps) (*session.Session, error) {
	if deps.SaveSession == nil {
		return nil, deps.Errors.EngineNotReady
	}
	res, err := RunVerifyLogin(ctx, name, code, deps)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, deps.Errors.InvalidCredentials
	}

	sess := SessionFromRecord(res.Hash, res.Record, strings.TrimSpace(name))
	if err := deps.SaveSession(ctx, sess); err != nil {
		deps.Warn("persist session failed", "error", err)
		failure := connectionError(deps.Errors.SessionCreationFailed, err)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, res.Hash, sess.CompanyID, failure, nil)
		return nil, failure
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, res.Hash, sess.CompanyID, nil, func() map[string]string {
		return map[string]string{"driver": sess.DisplayName}
	})
	return &sess, nil
}
