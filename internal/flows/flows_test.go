package flows

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/session"
)

var (
	errNotReady    = errors.New("not ready")
	errInvalid     = errors.New("invalid")
	errConnection  = errors.New("connection")
	errSessionFail = errors.New("session failed")
	errInUse       = errors.New("in use")
	errPending     = errors.New("pending")
	errNameReq     = errors.New("name required")
	errNameShort   = errors.New("name short")
	errBadChars    = errors.New("bad characters")
	errNoPending   = errors.New("no pending")
	errNotApproved = errors.New("not approved")
	errRevoked     = errors.New("revoked")
)

type fakeDirectory struct {
	approved map[string]string
	pending  map[string]bool
	err      error
	posted   []directory.PendingRecord
}

func (f *fakeDirectory) Approved(_ context.Context, hash string) (*directory.DriverDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.approved[hash]
	if !ok {
		return nil, nil
	}
	return directory.DecodeDriverDocument(json.RawMessage(raw))
}

func (f *fakeDirectory) HasPending(_ context.Context, hash string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.pending[hash], nil
}

func (f *fakeDirectory) SubmitPending(_ context.Context, rec directory.PendingRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.posted = append(f.posted, rec)
	return "key-1", nil
}

type recorder struct {
	metrics []int
	events  []string
}

func (r *recorder) inc(id int) { r.metrics = append(r.metrics, id) }

func (r *recorder) audit(_ context.Context, event string, _ bool, _, _ string, _ error, _ func() map[string]string) {
	r.events = append(r.events, event)
}

func (r *recorder) count(id int) int {
	n := 0
	for _, m := range r.metrics {
		if m == id {
			n++
		}
	}
	return n
}

func identity(s string) string { return "h-" + s }

func loginDeps(dir *fakeDirectory, store *session.Store, rec *recorder) LoginDeps {
	return LoginDeps{
		Hash:        identity,
		Approved:    dir.Approved,
		SaveSession: store.Save,
		MetricInc:   rec.inc,
		EmitAudit:   rec.audit,
		Metrics:     LoginMetrics{LoginSuccess: 1, LoginFailure: 2, LoginConnectionError: 3, SessionCreated: 4},
		Events:      LoginEvents{LoginSuccess: "login_success", LoginFailure: "login_failure"},
		Errors: LoginErrors{
			EngineNotReady:        errNotReady,
			InvalidCredentials:    errInvalid,
			Connection:            errConnection,
			SessionCreationFailed: errSessionFail,
		},
	}
}

func TestRunVerifyLoginReasons(t *testing.T) {
	dir := &fakeDirectory{approved: map[string]string{
		"h-abcd": `{"displayName":"J Smith","active":true}`,
		"h-off":  `{"displayName":"J Smith","active":false}`,
		"h-leg":  `{"d1":{"displayName":"A Jones","active":false},"d2":{"displayName":"B Brown"}}`,
	}}
	rec := &recorder{}
	deps := loginDeps(dir, session.NewStore(session.NewMemoryKV()), rec)

	tests := []struct {
		name, driver, code string
		valid              bool
		reason             string
	}{
		{"match ignores case", "j smith", "abcd", true, ""},
		{"wrong passcode", "J Smith", "wrong", false, ReasonNotFound},
		{"wrong name", "K Smith", "abcd", false, ReasonNameMismatch},
		{"deactivated flat", "J Smith", "off", false, ReasonDeactivated},
		{"deactivated legacy", "A Jones", "leg", false, ReasonDeactivated},
		{"active legacy", "b brown", "leg", true, ""},
		{"blank name", "  ", "abcd", false, ReasonBlankInput},
	}
	for _, tc := range tests {
		res, err := RunVerifyLogin(context.Background(), tc.driver, tc.code, deps)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if res.Valid != tc.valid || res.Reason != tc.reason {
			t.Fatalf("%s: got valid=%v reason=%q", tc.name, res.Valid, res.Reason)
		}
	}
	if got := rec.count(2); got != 5 {
		t.Fatalf("expected 5 failure metrics, got %d", got)
	}
}

func TestRunVerifyLoginConnectionError(t *testing.T) {
	cause := directory.ErrTimeout
	dir := &fakeDirectory{err: cause}
	rec := &recorder{}
	deps := loginDeps(dir, session.NewStore(session.NewMemoryKV()), rec)

	_, err := RunVerifyLogin(context.Background(), "J Smith", "abcd", deps)
	if !errors.Is(err, errConnection) || !errors.Is(err, directory.ErrTimeout) {
		t.Fatalf("expected connection error wrapping timeout, got %v", err)
	}
	if rec.count(3) != 1 {
		t.Fatalf("expected connection metric")
	}
}

func TestRunVerifyLoginNotReady(t *testing.T) {
	_, err := RunVerifyLogin(context.Background(), "a", "b", LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestRunLoginPersistsRecordFields(t *testing.T) {
	dir := &fakeDirectory{approved: map[string]string{
		"h-abcd": `{"displayName":"J Smith","isViewer":true,"companyId":"acme","companyName":"Acme"}`,
	}}
	kv := session.NewMemoryKV()
	store := session.NewStore(kv)
	rec := &recorder{}

	sess, err := RunLogin(context.Background(), "  j smith ", " abcd ", loginDeps(dir, store, rec))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.DisplayName != "J Smith" || !sess.IsViewer || sess.IsAdmin || sess.CompanyID != "acme" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.DriverID != "h-abcd" || sess.PasscodeHash != "h-abcd" {
		t.Fatalf("driver id must equal passcode hash, got %+v", sess)
	}
	stored, _ := store.Load(context.Background())
	if stored == nil || stored.DisplayName != "J Smith" {
		t.Fatalf("session not persisted: %+v", stored)
	}
	if len(rec.events) != 1 || rec.events[0] != "login_success" {
		t.Fatalf("unexpected events %v", rec.events)
	}
}

func TestRunLoginInvalid(t *testing.T) {
	dir := &fakeDirectory{approved: map[string]string{}}
	store := session.NewStore(session.NewMemoryKV())
	_, err := RunLogin(context.Background(), "J Smith", "wrong", loginDeps(dir, store, &recorder{}))
	if !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if sess, _ := store.Load(context.Background()); sess != nil {
		t.Fatalf("no session expected")
	}
}

func registrationDeps(dir *fakeDirectory, store *session.Store, rec *recorder) RegistrationDeps {
	return RegistrationDeps{
		MinDisplayName: 2,
		Hash:           identity,
		ValidatePasscode: func(p string) error {
			if len(p) < 4 {
				return errors.New("too short")
			}
			if strings.ContainsAny(p, " \t\r\n") {
				return errBadChars
			}
			return nil
		},
		Now:           func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		Approved:      dir.Approved,
		HasPending:    dir.HasPending,
		SubmitPending: dir.SubmitPending,
		LoadPending:   store.LoadPending,
		SavePending:   store.SavePending,
		ClearPending:  store.ClearPending,
		SaveSession:   store.Save,
		MetricInc:     rec.inc,
		EmitAudit:     rec.audit,
		Metrics:       RegistrationMetrics{Submitted: 1, Conflict: 2, Approved: 3, Rejected: 4, Cancelled: 5, SessionCreated: 6, ConnectionError: 7},
		Events:        RegistrationEvents{Submitted: "registration_submitted", Completed: "registration_completed", Cancelled: "registration_cancelled"},
		Errors: RegistrationErrors{
			EngineNotReady:        errNotReady,
			DisplayNameRequired:   errNameReq,
			DisplayNameTooShort:   errNameShort,
			PasscodeInUse:         errInUse,
			PasscodePending:       errPending,
			Connection:            errConnection,
			NoPending:             errNoPending,
			NotApproved:           errNotApproved,
			SessionCreationFailed: errSessionFail,
		},
	}
}

func TestRunSubmitRegistrationValidationOrder(t *testing.T) {
	dir := &fakeDirectory{}
	deps := registrationDeps(dir, session.NewStore(session.NewMemoryKV()), &recorder{})

	if _, err := RunSubmitRegistration(context.Background(), RegistrationInput{Passcode: "ab"}, deps); err == nil || errors.Is(err, errNameReq) {
		t.Fatalf("passcode must be validated before name, got %v", err)
	}
	if _, err := RunSubmitRegistration(context.Background(), RegistrationInput{Passcode: "abcd", DisplayName: " "}, deps); !errors.Is(err, errNameReq) {
		t.Fatalf("expected name required, got %v", err)
	}
	if _, err := RunSubmitRegistration(context.Background(), RegistrationInput{Passcode: "abcd", DisplayName: " J "}, deps); !errors.Is(err, errNameShort) {
		t.Fatalf("expected name too short, got %v", err)
	}
	for _, code := range []string{"abcd ", " abcd", "\tabcd\n", " abc"} {
		if _, err := RunSubmitRegistration(context.Background(), RegistrationInput{Passcode: code, DisplayName: "J Smith"}, deps); !errors.Is(err, errBadChars) {
			t.Fatalf("passcode %q: expected bad characters, got %v", code, err)
		}
	}
	if len(dir.posted) != 0 {
		t.Fatalf("invalid input must not reach the directory")
	}
}

func TestRunSubmitRegistrationConflicts(t *testing.T) {
	dir := &fakeDirectory{
		approved: map[string]string{"h-used": `{"displayName":"X"}`},
		pending:  map[string]bool{"h-wait": true},
	}
	rec := &recorder{}
	deps := registrationDeps(dir, session.NewStore(session.NewMemoryKV()), rec)

	if _, err := RunSubmitRegistration(context.Background(), RegistrationInput{Passcode: "used", DisplayName: "J Smith"}, deps); !errors.Is(err, errInUse) {
		t.Fatalf("expected in use, got %v", err)
	}
	if _, err := RunSubmitRegistration(context.Background(), RegistrationInput{Passcode: "wait", DisplayName: "J Smith"}, deps); !errors.Is(err, errPending) {
		t.Fatalf("expected pending conflict, got %v", err)
	}
	if rec.count(2) != 2 {
		t.Fatalf("expected two conflict metrics, got %d", rec.count(2))
	}
}

func TestRegistrationLifecycle(t *testing.T) {
	dir := &fakeDirectory{approved: map[string]string{}, pending: map[string]bool{}}
	store := session.NewStore(session.NewMemoryKV())
	rec := &recorder{}
	deps := registrationDeps(dir, store, rec)
	ctx := context.Background()

	if got := RunCheckRegistrationStatus(ctx, deps); got != StatusNone {
		t.Fatalf("expected none, got %s", got)
	}

	pending, err := RunSubmitRegistration(ctx, RegistrationInput{Passcode: "abcd", DisplayName: "J Smith", CompanyName: "Acme"}, deps)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if pending.PasscodeHash != "h-abcd" || len(dir.posted) != 1 {
		t.Fatalf("unexpected pending %+v posted=%d", pending, len(dir.posted))
	}
	if dir.posted[0].RequestedAt != "2024-05-01T12:00:00.000Z" || dir.posted[0].CompanyName != "Acme" {
		t.Fatalf("unexpected posted record %+v", dir.posted[0])
	}

	dir.pending["h-abcd"] = true
	if got := RunCheckRegistrationStatus(ctx, deps); got != StatusPending {
		t.Fatalf("expected pending, got %s", got)
	}

	dir.err = directory.ErrNetwork
	if got := RunCheckRegistrationStatus(ctx, deps); got != StatusPending {
		t.Fatalf("lookup failure must read as pending, got %s", got)
	}
	dir.err = nil

	delete(dir.pending, "h-abcd")
	dir.approved["h-abcd"] = `{"displayName":"J Smith","isAdmin":true,"companyId":"acme"}`
	if got := RunCheckRegistrationStatus(ctx, deps); got != StatusApproved {
		t.Fatalf("expected approved, got %s", got)
	}

	sess, err := RunCompleteRegistration(ctx, deps)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if sess.DisplayName != "J Smith" || !sess.IsAdmin || sess.CompanyID != "acme" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if p, _ := store.LoadPending(ctx); p != nil {
		t.Fatalf("pending mirror must be cleared after completion")
	}
	if _, err := RunCompleteRegistration(ctx, deps); !errors.Is(err, errNoPending) {
		t.Fatalf("expected no pending, got %v", err)
	}
}

func TestRegistrationRejectedInference(t *testing.T) {
	dir := &fakeDirectory{approved: map[string]string{}, pending: map[string]bool{}}
	store := session.NewStore(session.NewMemoryKV())
	deps := registrationDeps(dir, store, &recorder{})
	ctx := context.Background()

	if _, err := RunSubmitRegistration(ctx, RegistrationInput{Passcode: "abcd", DisplayName: "J Smith"}, deps); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := RunCheckRegistrationStatus(ctx, deps); got != StatusRejected {
		t.Fatalf("absent from both collections reads as rejected, got %s", got)
	}
	if _, err := RunCompleteRegistration(ctx, deps); !errors.Is(err, errNotApproved) {
		t.Fatalf("expected not approved, got %v", err)
	}
}

func TestRunCompleteRegistrationLegacyUsesMatchingEntry(t *testing.T) {
	dir := &fakeDirectory{approved: map[string]string{
		"h-abcd": `{"a":{"displayName":"Other","isAdmin":true},"b":{"displayName":"j smith","isViewer":true}}`,
	}}
	store := session.NewStore(session.NewMemoryKV())
	ctx := context.Background()
	if err := store.SavePending(ctx, session.PendingRegistration{PasscodeHash: "h-abcd", DisplayName: "J Smith", RequestedAt: time.Now()}); err != nil {
		t.Fatalf("save pending: %v", err)
	}

	sess, err := RunCompleteRegistration(ctx, registrationDeps(dir, store, &recorder{}))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if sess.DisplayName != "j smith" || sess.IsAdmin || !sess.IsViewer {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestRunCancelRegistration(t *testing.T) {
	store := session.NewStore(session.NewMemoryKV())
	rec := &recorder{}
	ctx := context.Background()
	_ = store.SavePending(ctx, session.PendingRegistration{PasscodeHash: "h", DisplayName: "J Smith", RequestedAt: time.Now()})

	if err := RunCancelRegistration(ctx, registrationDeps(&fakeDirectory{}, store, rec)); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if p, _ := store.LoadPending(ctx); p != nil {
		t.Fatalf("pending must be cleared")
	}
	if rec.count(5) != 1 {
		t.Fatalf("expected cancel metric")
	}
}

func revalidateDeps(dir *fakeDirectory, store *session.Store, rec *recorder) RevalidateDeps {
	return RevalidateDeps{
		LoadSession:  store.Load,
		Approved:     dir.Approved,
		SaveSession:  store.Save,
		ClearSession: store.Clear,
		MetricInc:    rec.inc,
		EmitAudit:    rec.audit,
		Metrics:      RevalidateMetrics{SessionRevoked: 1, SessionKeptOffline: 2},
		Events:       RevalidateEvents{SessionRevoked: "session_revoked"},
		Errors:       RevalidateErrors{EngineNotReady: errNotReady, Revoked: errRevoked},
	}
}

func seedSession(t *testing.T, store *session.Store) session.Session {
	t.Helper()
	sess := session.Session{
		DriverID:     "h-abcd",
		DisplayName:  "J Smith",
		PasscodeHash: "h-abcd",
		CompanyID:    "acme",
		VerifiedAt:   time.UnixMilli(1_700_000_000_000),
	}
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}

func TestRunRevalidateOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		approved map[string]string
		err      error
		want     Revalidation
		kept     bool
	}{
		{"still approved", map[string]string{"h-abcd": `{"displayName":"J Smith","companyId":"acme"}`}, nil, RevalidationValid, true},
		{"flat ignores name", map[string]string{"h-abcd": `{"displayName":"Renamed","companyId":"acme"}`}, nil, RevalidationValid, true},
		{"removed", map[string]string{}, nil, RevalidationRevoked, false},
		{"deactivated", map[string]string{"h-abcd": `{"displayName":"J Smith","active":false}`}, nil, RevalidationRevoked, false},
		{"legacy without entry", map[string]string{"h-abcd": `{"d":{"displayName":"Someone"}}`}, nil, RevalidationRevoked, false},
		{"offline", nil, directory.ErrTimeout, RevalidationOffline, true},
		{"server error", nil, &directory.StatusError{Code: 503}, RevalidationOffline, true},
	}
	for _, tc := range tests {
		store := session.NewStore(session.NewMemoryKV())
		seedSession(t, store)
		dir := &fakeDirectory{approved: tc.approved, err: tc.err}

		got, _, err := RunRevalidate(context.Background(), revalidateDeps(dir, store, &recorder{}))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
		stored, _ := store.Load(context.Background())
		if (stored != nil) != tc.kept {
			t.Fatalf("%s: kept=%v, stored=%+v", tc.name, tc.kept, stored)
		}
	}
}

func TestRunRevalidateReplacesChangedSession(t *testing.T) {
	store := session.NewStore(session.NewMemoryKV())
	seeded := seedSession(t, store)
	dir := &fakeDirectory{approved: map[string]string{"h-abcd": `{"displayName":"J Smith","isAdmin":true,"companyId":"beta"}`}}

	got, fresh, err := RunRevalidate(context.Background(), revalidateDeps(dir, store, &recorder{}))
	if err != nil || got != RevalidationValid {
		t.Fatalf("unexpected %s %v", got, err)
	}
	if !fresh.IsAdmin || fresh.CompanyID != "beta" {
		t.Fatalf("expected refreshed flags, got %+v", fresh)
	}
	if !fresh.VerifiedAt.Equal(seeded.VerifiedAt) {
		t.Fatalf("verification time must be preserved")
	}
	stored, _ := store.Load(context.Background())
	if !stored.IsAdmin || stored.CompanyID != "beta" {
		t.Fatalf("store not replaced: %+v", stored)
	}
}

func TestRunRevalidateAbsent(t *testing.T) {
	store := session.NewStore(session.NewMemoryKV())
	got, sess, err := RunRevalidate(context.Background(), revalidateDeps(&fakeDirectory{}, store, &recorder{}))
	if err != nil || got != RevalidationAbsent || sess != nil {
		t.Fatalf("unexpected %s %+v %v", got, sess, err)
	}
}

func TestRunLogoutClearsEverything(t *testing.T) {
	store := session.NewStore(session.NewMemoryKV())
	seedSession(t, store)
	rec := &recorder{}
	cleared := 0
	deps := LogoutDeps{
		LoadSession:  store.Load,
		ClearSession: store.Clear,
		ClearCaches: []func(context.Context) error{
			func(context.Context) error { cleared++; return nil },
			func(context.Context) error { cleared++; return errors.New("cache down") },
		},
		MetricInc: rec.inc,
		EmitAudit: rec.audit,
		Metrics:   LogoutMetrics{Logout: 9},
		Events:    LogoutEvents{Logout: "logout"},
	}
	if err := RunLogout(context.Background(), deps); err != nil {
		t.Fatalf("cache failures must not fail logout: %v", err)
	}
	if cleared != 2 || rec.count(9) != 1 {
		t.Fatalf("cleared=%d metrics=%v", cleared, rec.metrics)
	}
	if sess, _ := store.Load(context.Background()); sess != nil {
		t.Fatalf("session must be cleared")
	}
}
