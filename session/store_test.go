package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testSession() Session {
	return Session{
		DriverID:     "hash-1",
		DisplayName:  "J Smith",
		PasscodeHash: "hash-1",
		IsAdmin:      false,
		IsViewer:     true,
		CompanyID:    "acme",
		CompanyName:  "Acme Hauling",
	}
}

func fixedClock() func() time.Time {
	ts := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return ts }
}

func TestSaveLoadRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	store := NewStore(kv, WithClock(fixedClock()))
	ctx := context.Background()

	if err := store.Save(ctx, testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("expected session")
	}
	if got.DisplayName != "J Smith" || !got.IsViewer || got.IsAdmin || got.CompanyID != "acme" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.VerifiedAt.UnixMilli() != 1_700_000_000_000 {
		t.Fatalf("unexpected verified at: %v", got.VerifiedAt)
	}

	if v, _, _ := kv.Get(ctx, KeyIsAdmin); v != "false" {
		t.Fatalf("expected literal false, got %q", v)
	}
	if v, _, _ := kv.Get(ctx, KeyIsViewer); v != "true" {
		t.Fatalf("expected literal true, got %q", v)
	}
	if v, _, _ := kv.Get(ctx, KeyVerifiedAt); v != "1700000000000" {
		t.Fatalf("expected epoch millis, got %q", v)
	}
}

func TestSaveDeletesEmptyCompanyFields(t *testing.T) {
	kv := NewMemoryKV()
	store := NewStore(kv)
	ctx := context.Background()

	if err := store.Save(ctx, testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	sess := testSession()
	sess.CompanyID = ""
	sess.CompanyName = ""
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok, _ := kv.Get(ctx, KeyCompanyID); ok {
		t.Fatal("companyId should be deleted")
	}
	if _, ok, _ := kv.Get(ctx, KeyCompanyName); ok {
		t.Fatal("companyName should be deleted")
	}
}

func TestSaveClearsPending(t *testing.T) {
	store := NewStore(NewMemoryKV())
	ctx := context.Background()

	if err := store.SavePending(ctx, PendingRegistration{PasscodeHash: "h", DisplayName: "A", CompanyName: "Acme"}); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	if err := store.Save(ctx, testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}

	p, err := store.LoadPending(ctx)
	if err != nil {
		t.Fatalf("load pending: %v", err)
	}
	if p != nil {
		t.Fatalf("expected pending cleared, got %+v", p)
	}
}

func TestSaveRejectsInvalidSession(t *testing.T) {
	store := NewStore(NewMemoryKV())
	sess := testSession()
	sess.PasscodeHash = ""
	if err := store.Save(context.Background(), sess); err == nil {
		t.Fatal("expected error for session without passcode hash")
	}
}

func TestLoadTreatsPartialSessionAsAbsent(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	_ = kv.Set(ctx, KeyDriverID, "h")
	_ = kv.Set(ctx, KeyPasscodeHash, "h")

	got, err := NewStore(kv).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for session without display name, got %+v", got)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	kv := NewMemoryKV()
	store := NewStore(kv)
	ctx := context.Background()

	if err := store.Save(ctx, testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SavePending(ctx, PendingRegistration{PasscodeHash: "h", DisplayName: "A"}); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if kv.Len() != 0 {
		t.Fatalf("expected empty store, %d keys left", kv.Len())
	}
}

func TestPendingRoundTrip(t *testing.T) {
	store := NewStore(NewMemoryKV(), WithClock(fixedClock()))
	ctx := context.Background()

	if err := store.SavePending(ctx, PendingRegistration{PasscodeHash: "h", DisplayName: "J Smith", CompanyName: "Acme"}); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	p, err := store.LoadPending(ctx)
	if err != nil {
		t.Fatalf("load pending: %v", err)
	}
	if p == nil || p.PasscodeHash != "h" || p.DisplayName != "J Smith" || p.CompanyName != "Acme" {
		t.Fatalf("unexpected pending: %+v", p)
	}
	if p.RequestedAt.UnixMilli() != 1_700_000_000_000 {
		t.Fatalf("unexpected requested at: %v", p.RequestedAt)
	}
}

// stallingKV blocks reads of one key until released and ignores ctx.
type stallingKV struct {
	*MemoryKV
	stallKey string
	release  chan struct{}
}

func (s *stallingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if key == s.stallKey {
		<-s.release
	}
	return s.MemoryKV.Get(ctx, key)
}

func TestLoadBoundsSlowReads(t *testing.T) {
	mem := NewMemoryKV()
	kv := &stallingKV{MemoryKV: mem, stallKey: KeyDriverName, release: make(chan struct{})}
	defer close(kv.release)

	store := NewStore(kv, WithReadTimeout(30*time.Millisecond))
	ctx := context.Background()
	if err := store.Save(ctx, testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}

	started := time.Now()
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("load not bounded by read timeout: %v", elapsed)
	}
	if got != nil {
		t.Fatalf("timed-out display name must degrade to no session, got %+v", got)
	}
}

type failingKV struct{ *MemoryKV }

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrStoreUnavailable
}

func TestLoadDegradesOnReadErrors(t *testing.T) {
	got, err := NewStore(failingKV{NewMemoryKV()}).Load(context.Background())
	if err != nil {
		t.Fatalf("load should not surface read errors: %v", err)
	}
	if got != nil {
		t.Fatal("expected no session")
	}
}

type brokenWriteKV struct{ *MemoryKV }

func (brokenWriteKV) Delete(context.Context, string) error { return ErrStoreUnavailable }

func TestClearReportsBackendErrors(t *testing.T) {
	err := NewStore(brokenWriteKV{NewMemoryKV()}).Clear(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
