package hubauth

import (
	"context"

	"github.com/wellbuilt/hubauth/internal/flows"
	"github.com/wellbuilt/hubauth/passcode"
	"github.com/wellbuilt/hubauth/session"
)

// CheckPasscodeAvailable reports whether code can be registered. Conflicts
// are answered through Availability; the error is set only when the
// directory could not be asked.
func (e *Engine) CheckPasscodeAvailable(ctx context.Context, code string) (Availability, error) {
	err := flows.RunCheckAvailability(ctx, passcode.Hash(code), e.flows.Registration)
	switch {
	case err == nil:
		return Availability{Available: true}, nil
	case IsConflict(err):
		return Availability{Reason: UserMessage(err)}, nil
	default:
		return Availability{Reason: "Connection error"}, err
	}
}

// ValidateRegistration checks in without any I/O: passcode policy first,
// then the display name.
func (e *Engine) ValidateRegistration(in RegistrationInput) error {
	err := flows.ValidateRegistration(flows.RegistrationInput{
		DisplayName: in.DisplayName,
		Passcode:    in.Passcode,
		CompanyName: in.CompanyName,
	}, e.flows.Registration)
	return displayNameError(err, e.config.Registration.MinDisplayName)
}

// SubmitRegistration validates in, checks the passcode is free, files the
// request with the directory and mirrors it locally. Validation failures
// unwrap to the validation sentinels and carry their UI message.
func (e *Engine) SubmitRegistration(ctx context.Context, in RegistrationInput) error {
	_, err := flows.RunSubmitRegistration(ctx, flows.RegistrationInput{
		DisplayName: in.DisplayName,
		Passcode:    in.Passcode,
		CompanyName: in.CompanyName,
	}, e.flows.Registration)
	return displayNameError(err, e.config.Registration.MinDisplayName)
}

// PendingRegistration returns the registration mirrored on this device, or nil.
func (e *Engine) PendingRegistration(ctx context.Context) (*session.PendingRegistration, error) {
	return e.sessions.LoadPending(ctx)
}

// CheckRegistrationStatus resolves the mirrored registration. It reports
// RegistrationNone without one and RegistrationPending when the directory
// cannot be reached.
func (e *Engine) CheckRegistrationStatus(ctx context.Context) RegistrationStatus {
	return flows.RunCheckRegistrationStatus(ctx, e.flows.Registration)
}

// CompleteRegistration builds and persists a session from the approved
// record and clears the pending mirror.
func (e *Engine) CompleteRegistration(ctx context.Context) (*session.Session, error) {
	return flows.RunCompleteRegistration(ctx, e.flows.Registration)
}

// CancelRegistration forgets the mirrored registration.
func (e *Engine) CancelRegistration(ctx context.Context) error {
	return flows.RunCancelRegistration(ctx, e.flows.Registration)
}
