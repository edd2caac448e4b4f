package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrNotConfigured = errors.New("app has no launch scheme")
	ErrNotInstalled  = errors.New("app is not installed")
	ErrLaunchFailed  = errors.New("app launch failed")
)

// SSO carries the signed-in driver to the launched app so it can skip its
// own login screen.
type SSO struct {
	Hash string
	Name string
}

// Opener opens URLs on the host platform.
type Opener interface {
	CanOpen(ctx context.Context, rawURL string) bool
	Open(ctx context.Context, rawURL string) error
}

// LaunchURL builds "scheme://", or "scheme://login?hash=..&name=.." when
// sso is set.
func LaunchURL(scheme string, sso *SSO) string {
	if sso == nil {
		return scheme + "://"
	}
	q := url.Values{}
	q.Set("hash", sso.Hash)
	q.Set("name", sso.Name)
	return scheme + "://login?" + q.Encode()
}

// IntentURL is the Android package intent used when the scheme is not
// registered.
func IntentURL(androidPackage string) string {
	return "intent://#Intent;package=" + androidPackage + ";end"
}

// Launch opens app through its deep link. On Android the package intent is
// tried when the scheme cannot be opened.
func Launch(ctx context.Context, opener Opener, app App, sso *SSO, android bool) error {
	if app.Scheme == "" {
		return fmt.Errorf("%w: %s", ErrNotConfigured, app.Name)
	}

	target := LaunchURL(app.Scheme, sso)
	if !opener.CanOpen(ctx, target) {
		if !android || app.AndroidPackage == "" {
			return fmt.Errorf("%w: %s", ErrNotInstalled, app.Name)
		}
		target = IntentURL(app.AndroidPackage)
		if !opener.CanOpen(ctx, target) {
			return fmt.Errorf("%w: %s", ErrNotInstalled, app.Name)
		}
	}

	if err := opener.Open(ctx, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailed, app.Name, err)
	}
	return nil
}

// LaunchExternal opens rawURL, falling back to webURL when rawURL cannot be
// opened or fails. An empty webURL disables the fallback.
func LaunchExternal(ctx context.Context, opener Opener, rawURL, webURL string) error {
	if opener.CanOpen(ctx, rawURL) {
		err := opener.Open(ctx, rawURL)
		if err == nil || webURL == "" {
			return err
		}
	}
	if webURL == "" {
		return nil
	}
	return opener.Open(ctx, webURL)
}
