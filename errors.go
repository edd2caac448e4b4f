package hubauth

import (
	"errors"
	"strconv"

	"github.com/wellbuilt/hubauth/passcode"
)

var (
	// ErrEngineNotReady is returned when the engine was not built with all
	// of its collaborators.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrInvalidCredentials covers an unknown passcode, a wrong name and a
	// deactivated driver alike.
	ErrInvalidCredentials = errors.New("invalid name or passcode")

	ErrPasscodeRequired          = errors.New("passcode required")
	ErrPasscodeTooShort          = errors.New("passcode too short")
	ErrPasscodeTooLong           = errors.New("passcode too long")
	ErrPasscodeInvalidCharacters = errors.New("passcode contains invalid characters")
	ErrDisplayNameRequired       = errors.New("display name required")
	ErrDisplayNameTooShort       = errors.New("display name too short")

	// ErrPasscodeInUse means the passcode already belongs to an approved driver.
	ErrPasscodeInUse = errors.New("passcode already in use")
	// ErrPasscodePending means another registration with the passcode awaits approval.
	ErrPasscodePending = errors.New("passcode has a pending registration")

	// ErrConnection wraps every failure to reach the directory. The
	// directory error stays in the chain, so directory.IsTimeout works.
	ErrConnection = errors.New("connection error")

	ErrNoPendingRegistration = errors.New("no pending registration")
	// ErrNotApproved means the pending registration has no approved record yet.
	ErrNotApproved = errors.New("driver not found in approved list")

	// ErrSessionCreationFailed means the directory approved the driver but
	// the session could not be persisted.
	ErrSessionCreationFailed = errors.New("session creation failed")

	// ErrSessionRevoked is recorded when revalidation clears a session.
	ErrSessionRevoked = errors.New("session revoked")
)

// ValidationError is a rejected input together with the message shown to
// the driver. It unwraps to one of the validation sentinels.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a rejected passcode or display name.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrPasscodeRequired),
		errors.Is(err, ErrPasscodeTooShort),
		errors.Is(err, ErrPasscodeTooLong),
		errors.Is(err, ErrPasscodeInvalidCharacters),
		errors.Is(err, ErrDisplayNameRequired),
		errors.Is(err, ErrDisplayNameTooShort):
		return true
	}
	return false
}

// IsConflict reports whether err means the passcode is already taken.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPasscodeInUse) || errors.Is(err, ErrPasscodePending)
}

const (
	msgInvalidCredentials = "Invalid name or passcode"
	msgLoginConnection    = "Connection error. Please check your internet."
	msgRetryConnection    = "Connection error. Please try again."
	msgGeneric            = "Something went wrong. Please try again."
)

// UserMessage returns the fixed text shown to a driver for err. Raw error
// text never reaches the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, ErrPasscodeRequired):
		return "Please create a passcode"
	case errors.Is(err, ErrPasscodeTooShort):
		return "Passcode is too short"
	case errors.Is(err, ErrPasscodeTooLong):
		return "Passcode is too long"
	case errors.Is(err, ErrPasscodeInvalidCharacters):
		return "Passcode contains invalid characters"
	case errors.Is(err, ErrDisplayNameRequired):
		return "Please enter your display name"
	case errors.Is(err, ErrDisplayNameTooShort):
		return "Display name must be at least 2 characters"
	case errors.Is(err, ErrPasscodeInUse):
		return "This passcode is already in use"
	case errors.Is(err, ErrPasscodePending):
		return "This passcode has a pending registration"
	case errors.Is(err, ErrConnection):
		return msgLoginConnection
	case errors.Is(err, ErrNoPendingRegistration):
		return "No pending registration"
	case errors.Is(err, ErrNotApproved):
		return "Driver not found in approved list"
	default:
		return msgGeneric
	}
}

// passcodeError maps a policy failure to the host taxonomy with a message
// naming the configured limits.
func passcodeError(err error, pol passcode.Policy) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, passcode.ErrEmpty):
		return &ValidationError{Err: ErrPasscodeRequired, Message: "Please create a passcode"}
	case errors.Is(err, passcode.ErrTooShort):
		return &ValidationError{Err: ErrPasscodeTooShort, Message: "Passcode must be at least " + strconv.Itoa(pol.MinLength) + " characters"}
	case errors.Is(err, passcode.ErrTooLong):
		return &ValidationError{Err: ErrPasscodeTooLong, Message: "Passcode must be " + strconv.Itoa(pol.MaxLength) + " characters or less"}
	case errors.Is(err, passcode.ErrInvalidCharacters):
		return &ValidationError{Err: ErrPasscodeInvalidCharacters, Message: "Passcode contains invalid characters"}
	default:
		return err
	}
}

func displayNameError(err error, minLen int) error {
	if errors.Is(err, ErrDisplayNameTooShort) {
		return &ValidationError{Err: ErrDisplayNameTooShort, Message: "Display name must be at least " + strconv.Itoa(minLen) + " characters"}
	}
	return err
}
