package hubauth

import (
	"context"

	"github.com/wellbuilt/hubauth/internal/flows"
	"github.com/wellbuilt/hubauth/session"
)

// VerifyLogin checks name and passcode against the approved directory
// without persisting anything. A rejected login is reported through the
// result with the generic message; the error is reserved for a lookup that
// could not complete, and wraps ErrConnection in that case.
func (e *Engine) VerifyLogin(ctx context.Context, name, code string) (*LoginResult, error) {
	res, err := flows.RunVerifyLogin(ctx, name, code, e.flows.Login)
	if err != nil {
		return &LoginResult{Error: "Connection error"}, err
	}
	if !res.Valid {
		return &LoginResult{Error: msgInvalidCredentials}, nil
	}
	sess := flows.SessionFromRecord(res.Hash, res.Record, name)
	return &LoginResult{Valid: true, Session: &sess}, nil
}

// Login verifies the credentials and persists the session. A rejected
// login returns ErrInvalidCredentials whatever the cause.
func (e *Engine) Login(ctx context.Context, name, code string) (*session.Session, error) {
	return flows.RunLogin(ctx, name, code, e.flows.Login)
}
