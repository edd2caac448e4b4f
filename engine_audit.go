package hubauth

import (
	"context"
	"errors"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/internal/audit"
	"github.com/wellbuilt/hubauth/passcode"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventRegistrationSubmitted = "registration_submitted"
	auditEventRegistrationCompleted = "registration_completed"
	auditEventRegistrationCancelled = "registration_cancelled"
	auditEventSessionRevoked        = "session_revoked"
	auditEventLogout                = "logout"
)

var auditEventTypes = []string{
	auditEventLoginSuccess,
	auditEventLoginFailure,
	auditEventRegistrationSubmitted,
	auditEventRegistrationCompleted,
	auditEventRegistrationCancelled,
	auditEventSessionRevoked,
	auditEventLogout,
}

func knownAuditEvent(name string) bool {
	for _, ev := range auditEventTypes {
		if ev == name {
			return true
		}
	}
	return false
}

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrValidation            AuditErrorCode = "validation"
	auditErrConflict              AuditErrorCode = "conflict"
	auditErrConnection            AuditErrorCode = "connection"
	auditErrTimeout               AuditErrorCode = "timeout"
	auditErrNoPending             AuditErrorCode = "no_pending_registration"
	auditErrNotApproved           AuditErrorCode = "not_approved"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrSessionRevoked        AuditErrorCode = "session_revoked"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

// emitAudit records one event. driverID is a full passcode hash and is
// truncated here, so the full hash never leaves the process.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	driverID string,
	companyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		DriverID:  passcode.Short(driverID),
		CompanyID: companyID,
		Success:   success,
		Metadata:  metadata,
	}
	if name, ok := metadata["driver"]; ok {
		event.Driver = name
		delete(metadata, "driver")
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case IsValidation(err):
		return auditErrValidation
	case IsConflict(err):
		return auditErrConflict
	case errors.Is(err, ErrConnection) && directory.IsTimeout(err):
		return auditErrTimeout
	case errors.Is(err, ErrConnection):
		return auditErrConnection
	case errors.Is(err, ErrNoPendingRegistration):
		return auditErrNoPending
	case errors.Is(err, ErrNotApproved):
		return auditErrNotApproved
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
