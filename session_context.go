package hubauth

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// SessionContext holds the signed-in driver for the UI. Start trusts the
// stored session at once and re-checks it against the directory in the
// background; only an authoritative negative answer signs the driver out.
//
// The user slot is last-writer-wins. A background correction is dropped
// when a foreground action has written the slot since Start.
type SessionContext struct {
	engine *Engine
	log    zerolog.Logger

	mu      sync.Mutex
	user    *AuthUser
	loading bool
	gen     uint64
	cancel  context.CancelFunc

	wg   sync.WaitGroup
	subs listeners[*AuthUser]
}

// NewSessionContext returns a context that is loading and has no user.
func NewSessionContext(e *Engine) *SessionContext {
	return &SessionContext{
		engine:  e,
		log:     e.log.With().Str("component", "session_context").Logger(),
		loading: true,
	}
}

// Start reads the stored session and publishes it before any network call.
// When a session was found, revalidation continues on its own goroutine.
func (c *SessionContext) Start(ctx context.Context) {
	sess, err := c.engine.CurrentSession(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("read session failed")
	}
	user := UserFromSession(sess)

	c.mu.Lock()
	c.user = user
	c.loading = false
	gen := c.gen
	c.mu.Unlock()
	c.subs.notify(user, c.log)

	if user == nil {
		return
	}

	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.revalidate(rctx, gen)
	}()
}

func (c *SessionContext) revalidate(ctx context.Context, gen uint64) {
	outcome, err := c.engine.Revalidate(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Warn().Err(err).Msg("revalidate failed")
		}
		return
	}

	switch outcome {
	case RevalidationRevoked, RevalidationAbsent:
		c.correct(gen, nil)
	case RevalidationValid:
		sess, err := c.engine.CurrentSession(ctx)
		if err != nil || sess == nil {
			return
		}
		c.correct(gen, UserFromSession(sess))
	case RevalidationOffline:
		c.log.Debug().Msg("directory unreachable, keeping session")
	}
}

// correct applies a background result unless a foreground action got there first.
func (c *SessionContext) correct(gen uint64, user *AuthUser) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.user = user
	c.mu.Unlock()
	c.subs.notify(user, c.log)
}

// set writes the slot from a foreground action.
func (c *SessionContext) set(user *AuthUser) {
	c.mu.Lock()
	c.user = user
	c.gen++
	c.mu.Unlock()
	c.subs.notify(user, c.log)
}

func (c *SessionContext) User() *AuthUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Loading is true only until Start has read the stored session.
func (c *SessionContext) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *SessionContext) IsAuthenticated() bool {
	return c.User() != nil
}

// Subscribe registers fn for every change of the user and returns a
// function that removes it.
func (c *SessionContext) Subscribe(fn func(*AuthUser)) func() {
	return c.subs.add(fn)
}

// Login verifies the credentials and, on success, signs the driver in.
func (c *SessionContext) Login(ctx context.Context, name, code string) ActionResult {
	sess, err := c.engine.Login(ctx, name, code)
	if err != nil {
		return resultFrom(err)
	}
	c.set(UserFromSession(sess))
	return ActionResult{Success: true}
}

// Logout stops background revalidation, then clears the session and
// caches. The user is cleared even when the store could not be.
func (c *SessionContext) Logout(ctx context.Context) ActionResult {
	c.Close()
	err := c.engine.Logout(ctx)
	c.set(nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("logout failed")
	}
	return resultFrom(err)
}

// Register files a registration request for in.
func (c *SessionContext) Register(ctx context.Context, in RegistrationInput) ActionResult {
	return registrationResult(c.engine.SubmitRegistration(ctx, in))
}

func (c *SessionContext) CheckRegistrationStatus(ctx context.Context) RegistrationStatus {
	return c.engine.CheckRegistrationStatus(ctx)
}

// CompleteRegistration signs the driver in once the registration is approved.
func (c *SessionContext) CompleteRegistration(ctx context.Context) ActionResult {
	sess, err := c.engine.CompleteRegistration(ctx)
	if err != nil {
		return registrationResult(err)
	}
	c.set(UserFromSession(sess))
	return ActionResult{Success: true}
}

// RefreshSession re-reads the stored session, picking up changes written
// elsewhere in the process.
func (c *SessionContext) RefreshSession(ctx context.Context) ActionResult {
	sess, err := c.engine.CurrentSession(ctx)
	if err != nil {
		return resultFrom(err)
	}
	c.set(UserFromSession(sess))
	return ActionResult{Success: true}
}

// Wait blocks until background revalidation has finished.
func (c *SessionContext) Wait() {
	c.wg.Wait()
}

// Close cancels background revalidation and waits for it.
func (c *SessionContext) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func registrationResult(err error) ActionResult {
	if errors.Is(err, ErrConnection) {
		return ActionResult{Error: msgRetryConnection}
	}
	return resultFrom(err)
}
