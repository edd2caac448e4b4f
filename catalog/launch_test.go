package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOpener struct {
	openable map[string]bool
	failing  map[string]bool
	opened   []string
}

func (f *fakeOpener) CanOpen(_ context.Context, rawURL string) bool {
	return f.openable[rawURL]
}

func (f *fakeOpener) Open(_ context.Context, rawURL string) error {
	if f.failing[rawURL] {
		return errors.New("boom")
	}
	f.opened = append(f.opened, rawURL)
	return nil
}

func mustFind(t *testing.T, id string) App {
	t.Helper()
	app, ok := Find(id)
	require.True(t, ok, id)
	return app
}

func TestLaunchURL(t *testing.T) {
	require.Equal(t, "wellbuiltmobile://", LaunchURL("wellbuiltmobile", nil))
	require.Equal(t,
		"wellbuilt-tickets://login?hash=abc123&name=J+Smith",
		LaunchURL("wellbuilt-tickets", &SSO{Hash: "abc123", Name: "J Smith"}))
	require.Equal(t, "intent://#Intent;package=com.wellbuiltmobile.app;end", IntentURL("com.wellbuiltmobile.app"))
}

func TestLaunchUsesDeepLink(t *testing.T) {
	app := mustFind(t, "wellbuilt-mobile")
	target := LaunchURL(app.Scheme, &SSO{Hash: "h", Name: "A"})
	opener := &fakeOpener{openable: map[string]bool{target: true}}

	require.NoError(t, Launch(context.Background(), opener, app, &SSO{Hash: "h", Name: "A"}, true))
	require.Equal(t, []string{target}, opener.opened)
}

func TestLaunchAndroidIntentFallback(t *testing.T) {
	app := mustFind(t, "water-ticket")
	intent := IntentURL(app.AndroidPackage)
	opener := &fakeOpener{openable: map[string]bool{intent: true}}

	require.NoError(t, Launch(context.Background(), opener, app, nil, true))
	require.Equal(t, []string{intent}, opener.opened)

	err := Launch(context.Background(), &fakeOpener{openable: map[string]bool{intent: true}}, app, nil, false)
	require.ErrorIs(t, err, ErrNotInstalled)
}

func TestLaunchErrors(t *testing.T) {
	ctx := context.Background()

	require.ErrorIs(t, Launch(ctx, &fakeOpener{}, mustFind(t, "wellbuilt-dashboard"), nil, true), ErrNotConfigured)
	require.ErrorIs(t, Launch(ctx, &fakeOpener{}, mustFind(t, "wellbuilt-mobile"), nil, true), ErrNotInstalled)

	app := mustFind(t, "wellbuilt-mobile")
	url := LaunchURL(app.Scheme, nil)
	opener := &fakeOpener{openable: map[string]bool{url: true}, failing: map[string]bool{url: true}}
	require.ErrorIs(t, Launch(ctx, opener, app, nil, false), ErrLaunchFailed)
}

func TestLaunchExternal(t *testing.T) {
	ctx := context.Background()

	opener := &fakeOpener{openable: map[string]bool{"whatsapp://": true}}
	require.NoError(t, LaunchExternal(ctx, opener, "whatsapp://", "https://web.whatsapp.com"))
	require.Equal(t, []string{"whatsapp://"}, opener.opened)

	opener = &fakeOpener{}
	require.NoError(t, LaunchExternal(ctx, opener, "whatsapp://", "https://web.whatsapp.com"))
	require.Equal(t, []string{"https://web.whatsapp.com"}, opener.opened)

	opener = &fakeOpener{openable: map[string]bool{"maps://": true}, failing: map[string]bool{"maps://": true}}
	require.NoError(t, LaunchExternal(ctx, opener, "maps://", "https://maps.test"))
	require.Equal(t, []string{"https://maps.test"}, opener.opened)

	opener = &fakeOpener{}
	require.NoError(t, LaunchExternal(ctx, opener, "maps://", ""))
	require.Empty(t, opener.opened)
}

func TestBundledCatalog(t *testing.T) {
	require.Len(t, Bundled, 4)
	_, ok := Find("nope")
	require.False(t, ok)
	require.Empty(t, mustFind(t, "wellbuilt-jsa").Scheme)
}
