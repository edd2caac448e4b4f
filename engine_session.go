package hubauth

import (
	"context"

	"github.com/wellbuilt/hubauth/entitlement"
	"github.com/wellbuilt/hubauth/internal/flows"
	"github.com/wellbuilt/hubauth/session"
)

// CurrentSession returns the stored session, or nil. Reads are bounded by
// the session read timeout and degrade to nil.
func (e *Engine) CurrentSession(ctx context.Context) (*session.Session, error) {
	return e.sessions.Load(ctx)
}

// Revalidate re-checks the stored session against the directory. Only an
// authoritative negative answer clears it; when the directory cannot be
// reached the outcome is RevalidationOffline and the session is kept.
func (e *Engine) Revalidate(ctx context.Context) (RevalidationOutcome, error) {
	outcome, _, err := flows.RunRevalidate(ctx, e.flows.Revalidate)
	if err != nil {
		return outcome, err
	}
	e.log.Debug().Str("outcome", string(outcome)).Msg("session revalidated")
	return outcome, nil
}

// Logout clears the session, the pending mirror and every cache holding
// driver or company data. It never touches the network.
func (e *Engine) Logout(ctx context.Context) error {
	return flows.RunLogout(ctx, e.flows.Logout)
}

// CompanyConfig resolves entitlement for companyID. It returns nil for an
// empty id, and nil when nothing was ever cached and the fetch fails;
// entitlement.IsAppEnabled treats nil as unrestricted.
func (e *Engine) CompanyConfig(ctx context.Context, companyID string) *entitlement.CompanyConfig {
	return e.resolver.FetchCompanyConfig(ctx, companyID)
}

// RequiredApps lists apps the company requires on every device.
func (e *Engine) RequiredApps(ctx context.Context, companyID string) []string {
	return e.resolver.RequiredApps(ctx, companyID)
}

// IsAppEnabled resolves the company of the stored session and checks app.
// Without a session or company every app is enabled.
func (e *Engine) IsAppEnabled(ctx context.Context, app entitlement.AppID) bool {
	sess, _ := e.sessions.Load(ctx)
	if sess == nil || sess.CompanyID == "" {
		return true
	}
	return entitlement.IsAppEnabled(e.resolver.FetchCompanyConfig(ctx, sess.CompanyID), app)
}
