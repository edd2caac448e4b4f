package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/session"
)

// AuditFunc emits one audit event. driverID is the full passcode hash; the
// host truncates it before it leaves the process.
type AuditFunc func(ctx context.Context, eventType string, success bool, driverID, companyID string, err error, metadata func() map[string]string)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each method to the matching flow.
type Deps struct {
	Login        LoginDeps
	Registration RegistrationDeps
	Revalidate   RevalidateDeps
	Logout       LogoutDeps
}

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopWarn(string, ...any) {}

func noopInc(int) {}

// connectionError keeps both the host sentinel and the directory failure
// visible to errors.Is.
func connectionError(sentinel, cause error) error {
	if sentinel == nil {
		return cause
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// SessionFromRecord builds the session persisted for an approved record.
// fallbackName is used when the record carries no display name.
func SessionFromRecord(hash string, rec directory.DriverRecord, fallbackName string) session.Session {
	name := strings.TrimSpace(rec.DisplayName)
	if name == "" {
		name = fallbackName
	}
	return session.Session{
		DriverID:     hash,
		DisplayName:  name,
		PasscodeHash: hash,
		IsAdmin:      rec.IsAdmin,
		IsViewer:     rec.IsViewer,
		CompanyID:    rec.CompanyID,
		CompanyName:  rec.CompanyName,
	}
}

// sameIdentity reports whether two sessions carry the same identity fields,
// ignoring VerifiedAt.
func sameIdentity(a, b session.Session) bool {
	return a.DriverID == b.DriverID &&
		a.DisplayName == b.DisplayName &&
		a.PasscodeHash == b.PasscodeHash &&
		a.IsAdmin == b.IsAdmin &&
		a.IsViewer == b.IsViewer &&
		a.CompanyID == b.CompanyID &&
		a.CompanyName == b.CompanyName
}
