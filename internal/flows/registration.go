package flows

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/session"
)

// RegistrationStatus is the remote state of the registration mirrored on
// this device.
type RegistrationStatus string

const (
	StatusNone     RegistrationStatus = "none"
	StatusPending  RegistrationStatus = "pending"
	StatusApproved RegistrationStatus = "approved"
	StatusRejected RegistrationStatus = "rejected"
)

// requestedAtLayout matches the millisecond ISO-8601 timestamps already
// stored in the pending collection.
const requestedAtLayout = "2006-01-02T15:04:05.000Z"

// RegistrationInput is the flow-local registration request.
type RegistrationInput struct {
	DisplayName string
	Passcode    string
	CompanyName string
}

// RegistrationMetrics carries metric IDs needed by the registration flows.
type RegistrationMetrics struct {
	Submitted       int
	Conflict        int
	Approved        int
	Rejected        int
	Cancelled       int
	SessionCreated  int
	ConnectionError int
}

// RegistrationEvents carries audit event names used by the registration flows.
type RegistrationEvents struct {
	Submitted string
	Completed string
	Cancelled string
}

// RegistrationErrors carries host-level sentinel errors used by the
// registration flows.
type RegistrationErrors struct {
	EngineNotReady        error
	DisplayNameRequired   error
	DisplayNameTooShort   error
	PasscodeInUse         error
	PasscodePending       error
	Connection            error
	NoPending             error
	NotApproved           error
	SessionCreationFailed error
}

// RegistrationDeps captures registration dependencies.
type RegistrationDeps struct {
	MinDisplayName int

	Hash             func(string) string
	ValidatePasscode func(string) error
	Now              func() time.Time

	Approved      func(context.Context, string) (*directory.DriverDocument, error)
	HasPending    func(context.Context, string) (bool, error)
	SubmitPending func(context.Context, directory.PendingRecord) (string, error)

	LoadPending  func(context.Context) (*session.PendingRegistration, error)
	SavePending  func(context.Context, session.PendingRegistration) error
	ClearPending func(context.Context) error
	SaveSession  func(context.Context, session.Session) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics RegistrationMetrics
	Events  RegistrationEvents
	Errors  RegistrationErrors
}

func (d *RegistrationDeps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = noopInc
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noopAudit
	}
	if d.Warn == nil {
		d.Warn = noopWarn
	}
}

// RunCheckAvailability reports whether hash is free: not approved and not
// waiting in the pending collection.
func RunCheckAvailability(ctx context.Context, hash string, deps RegistrationDeps) error {
	deps.defaults()
	if deps.Approved == nil || deps.HasPending == nil {
		return deps.Errors.EngineNotReady
	}

	doc, err := deps.Approved(ctx, hash)
	if err != nil {
		deps.MetricInc(deps.Metrics.ConnectionError)
		return connectionError(deps.Errors.Connection, err)
	}
	if doc != nil {
		return deps.Errors.PasscodeInUse
	}

	pending, err := deps.HasPending(ctx, hash)
	if err != nil {
		deps.MetricInc(deps.Metrics.ConnectionError)
		return connectionError(deps.Errors.Connection, err)
	}
	if pending {
		return deps.Errors.PasscodePending
	}
	return nil
}

// ValidateRegistration checks the passcode first, then the display name.
// The passcode is checked exactly as typed; surrounding whitespace is an
// invalid character, not padding. It does no I/O.
func ValidateRegistration(in RegistrationInput, deps RegistrationDeps) error {
	if deps.ValidatePasscode == nil {
		return deps.Errors.EngineNotReady
	}
	if err := deps.ValidatePasscode(in.Passcode); err != nil {
		return err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return deps.Errors.DisplayNameRequired
	}
	if utf8.RuneCountInString(name) < deps.MinDisplayName {
		return deps.Errors.DisplayNameTooShort
	}
	return nil
}

// RunSubmitRegistration validates the request, checks the passcode is free,
// posts it to the pending collection and mirrors it locally.
func RunSubmitRegistration(ctx context.Context, in RegistrationInput, deps RegistrationDeps) (*session.PendingRegistration, error) {
	deps.defaults()
	if deps.Hash == nil || deps.ValidatePasscode == nil || deps.SubmitPending == nil || deps.SavePending == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := ValidateRegistration(in, deps); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.DisplayName)
	company := strings.TrimSpace(in.CompanyName)

	hash := deps.Hash(in.Passcode)
	if err := RunCheckAvailability(ctx, hash, deps); err != nil {
		if errors.Is(err, deps.Errors.PasscodeInUse) || errors.Is(err, deps.Errors.PasscodePending) {
			deps.MetricInc(deps.Metrics.Conflict)
			deps.EmitAudit(ctx, deps.Events.Submitted, false, hash, "", err, nil)
		}
		return nil, err
	}

	now := deps.Now()
	rec := directory.PendingRecord{
		DisplayName:  name,
		PasscodeHash: hash,
		RequestedAt:  now.UTC().Format(requestedAtLayout),
		CompanyName:  company,
	}
	key, err := deps.SubmitPending(ctx, rec)
	if err != nil {
		deps.MetricInc(deps.Metrics.ConnectionError)
		connErr := connectionError(deps.Errors.Connection, err)
		deps.EmitAudit(ctx, deps.Events.Submitted, false, hash, "", connErr, nil)
		return nil, connErr
	}

	pending := session.PendingRegistration{
		PasscodeHash: hash,
		DisplayName:  name,
		CompanyName:  company,
		RequestedAt:  now,
	}
	if err := deps.SavePending(ctx, pending); err != nil {
		deps.Warn("mirror pending registration failed", "error", err)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Submitted)
	deps.EmitAudit(ctx, deps.Events.Submitted, true, hash, "", nil, func() map[string]string {
		return map[string]string{"driver": name, "pending_key": key}
	})
	return &pending, nil
}

// RunCheckRegistrationStatus resolves the mirrored registration against the
// directory. There is no rejected marker remotely: a request that is
// neither approved nor pending is reported as rejected. Lookup failures
// report pending so a flaky connection never looks like a decision.
//
// A pending record removed and re-created between two reads is misread as
// a rejection. Nothing in the remote schema can tell those apart.
func RunCheckRegistrationStatus(ctx context.Context, deps RegistrationDeps) RegistrationStatus {
	deps.defaults()
	if deps.LoadPending == nil || deps.Approved == nil || deps.HasPending == nil {
		return StatusPending
	}

	pending, err := deps.LoadPending(ctx)
	if err != nil {
		deps.Warn("read pending registration failed", "error", err)
		return StatusPending
	}
	if pending == nil {
		return StatusNone
	}

	doc, err := deps.Approved(ctx, pending.PasscodeHash)
	if err != nil {
		deps.Warn("registration status lookup failed", "error", err)
		return StatusPending
	}
	if doc != nil {
		return StatusApproved
	}

	waiting, err := deps.HasPending(ctx, pending.PasscodeHash)
	if err != nil {
		deps.Warn("registration status lookup failed", "error", err)
		return StatusPending
	}
	if waiting {
		return StatusPending
	}

	deps.MetricInc(deps.Metrics.Rejected)
	return StatusRejected
}

// RunCompleteRegistration turns an approved registration into a session.
// Identity fields come from the approved record; the requested display
// name is used when the record has none. A legacy document contributes
// the entry matching the requested name.
func RunCompleteRegistration(ctx context.Context, deps RegistrationDeps) (*session.Session, error) {
	deps.defaults()
	if deps.LoadPending == nil || deps.Approved == nil || deps.SaveSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	pending, err := deps.LoadPending(ctx)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, deps.Errors.NoPending
	}

	doc, err := deps.Approved(ctx, pending.PasscodeHash)
	if err != nil {
		deps.MetricInc(deps.Metrics.ConnectionError)
		return nil, connectionError(deps.Errors.Connection, err)
	}
	if doc == nil {
		return nil, deps.Errors.NotApproved
	}

	var rec directory.DriverRecord
	switch doc.Shape {
	case directory.ShapeFlat:
		if doc.Flat.Deactivated() {
			return nil, deps.Errors.NotApproved
		}
		rec = doc.Flat
	default:
		rec, _ = doc.Match(pending.DisplayName)
	}

	sess := SessionFromRecord(pending.PasscodeHash, rec, pending.DisplayName)
	if err := deps.SaveSession(ctx, sess); err != nil {
		deps.Warn("persist session failed", "error", err)
		return nil, connectionError(deps.Errors.SessionCreationFailed, err)
	}

	deps.MetricInc(deps.Metrics.Approved)
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.EmitAudit(ctx, deps.Events.Completed, true, sess.PasscodeHash, sess.CompanyID, nil, func() map[string]string {
		return map[string]string{"driver": sess.DisplayName}
	})
	return &sess, nil
}

// RunCancelRegistration forgets the mirrored registration. The remote
// request is left for an administrator to discard.
func RunCancelRegistration(ctx context.Context, deps RegistrationDeps) error {
	deps.defaults()
	if deps.ClearPending == nil {
		return deps.Errors.EngineNotReady
	}

	var hash string
	if deps.LoadPending != nil {
		if pending, err := deps.LoadPending(ctx); err == nil && pending != nil {
			hash = pending.PasscodeHash
		}
	}
	if err := deps.ClearPending(ctx); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Cancelled)
	deps.EmitAudit(ctx, deps.Events.Cancelled, true, hash, "", nil, nil)
	return nil
}
