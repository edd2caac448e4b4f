package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Secure store keys.
const (
	KeyDriverID     = "driverId"
	KeyDriverName   = "driverName"
	KeyPasscodeHash = "passcodeHash"
	KeyIsAdmin      = "isAdmin"
	KeyIsViewer     = "isViewer"
	KeyCompanyID    = "companyId"
	KeyCompanyName  = "companyName"
	KeyVerifiedAt   = "driverVerifiedAt"

	KeyPendingPasscodeHash = "pendingPasscodeHash"
	KeyPendingDisplayName  = "pendingDisplayName"
	KeyPendingTime         = "pendingRegistrationTime"
	KeyPendingCompanyName  = "pendingCompanyName"
)

// DefaultReadTimeout bounds each key read while loading a session.
const DefaultReadTimeout = 5 * time.Second

var sessionKeys = []string{
	KeyDriverID,
	KeyDriverName,
	KeyPasscodeHash,
	KeyIsAdmin,
	KeyIsViewer,
	KeyCompanyID,
	KeyCompanyName,
	KeyVerifiedAt,
}

var pendingKeys = []string{
	KeyPendingPasscodeHash,
	KeyPendingDisplayName,
	KeyPendingTime,
	KeyPendingCompanyName,
}

// Store reads and writes sessions and pending registrations on a KV.
// Writers follow last-writer-wins; a session is always replaced whole.
type Store struct {
	kv          KV
	readTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithReadTimeout overrides DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates a Store over kv.
func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:          kv,
		readTimeout: DefaultReadTimeout,
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "session").Logger()
	return s
}

// Load reads every session key in parallel. Each read is bounded by the read
// timeout and a slow or failing read counts as absent, so Load never returns
// an error; it returns nil when no valid session is stored.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	values := s.readAll(ctx, sessionKeys)

	sess := &Session{
		DriverID:     values[0],
		DisplayName:  values[1],
		PasscodeHash: values[2],
		IsAdmin:      values[3] == "true",
		IsViewer:     values[4] == "true",
		CompanyID:    values[5],
		CompanyName:  values[6],
		VerifiedAt:   parseMillis(values[7]),
	}
	if !sess.Valid() {
		return nil, nil
	}
	return sess, nil
}

// Save replaces the stored session with sess and clears any pending
// registration. A zero VerifiedAt is stamped with the current time.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if !sess.Valid() {
		return errors.New("session requires driver id, display name and passcode hash")
	}
	if sess.VerifiedAt.IsZero() {
		sess.VerifiedAt = s.now()
	}

	writes := []struct{ key, value string }{
		{KeyDriverID, sess.DriverID},
		{KeyDriverName, sess.DisplayName},
		{KeyPasscodeHash, sess.PasscodeHash},
		{KeyIsAdmin, strconv.FormatBool(sess.IsAdmin)},
		{KeyIsViewer, strconv.FormatBool(sess.IsViewer)},
		{KeyVerifiedAt, formatMillis(sess.VerifiedAt)},
		{KeyCompanyID, sess.CompanyID},
		{KeyCompanyName, sess.CompanyName},
	}
	for _, w := range writes {
		var err error
		if w.value == "" {
			err = s.kv.Delete(ctx, w.key)
		} else {
			err = s.kv.Set(ctx, w.key, w.value)
		}
		if err != nil {
			return err
		}
	}

	return s.ClearPending(ctx)
}

// Clear removes the session and the pending registration mirror.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.deleteAll(ctx, sessionKeys); err != nil {
		return err
	}
	return s.ClearPending(ctx)
}

// LoadPending returns the locally mirrored registration, or nil.
func (s *Store) LoadPending(ctx context.Context) (*PendingRegistration, error) {
	values := s.readAll(ctx, pendingKeys)

	if values[0] == "" || values[1] == "" {
		return nil, nil
	}
	return &PendingRegistration{
		PasscodeHash: values[0],
		DisplayName:  values[1],
		RequestedAt:  parseMillis(values[2]),
		CompanyName:  values[3],
	}, nil
}

// SavePending mirrors a submitted registration.
func (s *Store) SavePending(ctx context.Context, p PendingRegistration) error {
	if p.RequestedAt.IsZero() {
		p.RequestedAt = s.now()
	}
	if err := s.kv.Set(ctx, KeyPendingPasscodeHash, p.PasscodeHash); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyPendingDisplayName, p.DisplayName); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyPendingTime, formatMillis(p.RequestedAt)); err != nil {
		return err
	}
	if p.CompanyName != "" {
		return s.kv.Set(ctx, KeyPendingCompanyName, p.CompanyName)
	}
	return s.kv.Delete(ctx, KeyPendingCompanyName)
}

// ClearPending removes the pending registration mirror.
func (s *Store) ClearPending(ctx context.Context) error {
	return s.deleteAll(ctx, pendingKeys)
}

func (s *Store) deleteAll(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// readAll fans out one bounded read per key and joins them.
func (s *Store) readAll(ctx context.Context, keys []string) []string {
	values := make([]string, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			values[i] = s.read(gctx, key)
			return nil
		})
	}
	_ = g.Wait()
	return values
}

type readResult struct {
	value string
	ok    bool
	err   error
}

// read returns "" for a missing, failed or timed-out key. The backend call
// runs in its own goroutine so a backend that ignores ctx still cannot hold
// the caller past the timeout.
func (s *Store) read(ctx context.Context, key string) string {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	ch := make(chan readResult, 1)
	go func() {
		v, ok, err := s.kv.Get(ctx, key)
		ch <- readResult{value: v, ok: ok, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			s.log.Warn().Err(r.err).Str("key", key).Msg("secure store read failed")
			return ""
		}
		if !r.ok {
			return ""
		}
		return r.value
	case <-ctx.Done():
		s.log.Warn().Str("key", key).Dur("timeout", s.readTimeout).Msg("secure store read timed out")
		return ""
	}
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
