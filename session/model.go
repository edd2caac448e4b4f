package session

import "time"

// Session is the locally persisted identity of the signed-in driver.
type Session struct {
	DriverID     string
	DisplayName  string
	PasscodeHash string
	IsAdmin      bool
	IsViewer     bool
	CompanyID    string
	CompanyName  string
	VerifiedAt   time.Time
}

// Valid reports whether the session carries the fields an identity needs.
// An invalid session is treated as absent.
func (s *Session) Valid() bool {
	return s != nil && s.DriverID != "" && s.DisplayName != "" && s.PasscodeHash != ""
}

// PendingRegistration mirrors a registration request submitted from this device.
type PendingRegistration struct {
	PasscodeHash string
	DisplayName  string
	CompanyName  string
	RequestedAt  time.Time
}
