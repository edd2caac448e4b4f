package hubauth

import (
	"github.com/wellbuilt/hubauth/internal/audit"
	"github.com/wellbuilt/hubauth/internal/flows"
	"github.com/wellbuilt/hubauth/session"
)

// Role is the coarse permission level derived from a session.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
	RoleDriver Role = "driver"
)

// AuthUser is the view of the signed-in driver handed to the UI.
type AuthUser struct {
	DriverID     string
	DisplayName  string
	PasscodeHash string
	IsAdmin      bool
	IsViewer     bool
	CompanyID    string
	CompanyName  string
	Role         Role
}

// RoleFor returns admin before viewer before driver.
func RoleFor(isAdmin, isViewer bool) Role {
	switch {
	case isAdmin:
		return RoleAdmin
	case isViewer:
		return RoleViewer
	default:
		return RoleDriver
	}
}

// UserFromSession converts a stored session to an AuthUser. An invalid
// session yields nil.
func UserFromSession(s *session.Session) *AuthUser {
	if !s.Valid() {
		return nil
	}
	return &AuthUser{
		DriverID:     s.DriverID,
		DisplayName:  s.DisplayName,
		PasscodeHash: s.PasscodeHash,
		IsAdmin:      s.IsAdmin,
		IsViewer:     s.IsViewer,
		CompanyID:    s.CompanyID,
		CompanyName:  s.CompanyName,
		Role:         RoleFor(s.IsAdmin, s.IsViewer),
	}
}

// LoginResult is the outcome of VerifyLogin. Error holds the user-facing
// message when Valid is false.
type LoginResult struct {
	Valid   bool
	Error   string
	Session *session.Session
}

// Availability answers whether a passcode can be used for a new registration.
type Availability struct {
	Available bool
	Reason    string
}

// RegistrationInput is what a driver enters on the register screen.
type RegistrationInput struct {
	DisplayName string
	Passcode    string
	CompanyName string
}

// RegistrationStatus is the remote state of this device's registration.
type RegistrationStatus = flows.RegistrationStatus

const (
	RegistrationNone     = flows.StatusNone
	RegistrationPending  = flows.StatusPending
	RegistrationApproved = flows.StatusApproved
	RegistrationRejected = flows.StatusRejected
)

// RevalidationOutcome is the result of re-checking a stored session.
type RevalidationOutcome = flows.Revalidation

const (
	RevalidationValid   = flows.RevalidationValid
	RevalidationRevoked = flows.RevalidationRevoked
	RevalidationOffline = flows.RevalidationOffline
	RevalidationAbsent  = flows.RevalidationAbsent
)

// ActionResult is the {success, error} shape returned to the UI. Error is
// a human-readable message, never raw error text.
type ActionResult struct {
	Success bool
	Error   string
}

func resultFrom(err error) ActionResult {
	if err != nil {
		return ActionResult{Error: UserMessage(err)}
	}
	return ActionResult{Success: true}
}

type (
	// AuditEvent is one audited auth action.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the dispatcher goroutine.
	AuditSink = audit.Sink
	// NoOpSink discards audit events.
	NoOpSink = audit.NoOpSink
	// ChannelSink buffers audit events on a channel.
	ChannelSink = audit.ChannelSink
	// JSONWriterSink writes audit events as JSON lines.
	JSONWriterSink = audit.JSONWriterSink
	// LogSink writes audit events through a zerolog logger.
	LogSink = audit.LogSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewLogSink        = audit.NewLogSink
)
