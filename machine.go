package hubauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wellbuilt/hubauth/session"
)

// Mode is the screen the login flow is on.
type Mode string

const (
	ModeChecking    Mode = "checking"
	ModeLogin       Mode = "login"
	ModeRegister    Mode = "register"
	ModeVerifying   Mode = "verifying"
	ModeRegistering Mode = "registering"
	ModePending     Mode = "pending"
	ModeApproved    Mode = "approved"
	ModeRejected    Mode = "rejected"
	ModeError       Mode = "error"
	// ModeAuthenticated is entered once a session has been handed to the
	// OnAuthenticated callback. Nothing leaves it.
	ModeAuthenticated Mode = "authenticated"
)

const msgCompleteFailed = "Could not complete registration"

// Snapshot is the UI-visible state of a LoginMachine.
type Snapshot struct {
	Mode        Mode
	Error       string
	PendingName string
}

// LoginMachine drives the login and registration screens. User actions are
// expected one at a time; the UI disables its triggers while verifying or
// registering. While in ModePending the machine polls the registration
// status on its own goroutine, and every exit from ModePending stops it.
type LoginMachine struct {
	engine   *Engine
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	state  Snapshot
	onAuth func(*session.Session)
	closed bool

	pollCancel context.CancelFunc
	pollDone   chan struct{}
	// settling is the done channel of a poller that detached to complete an
	// approved registration.
	settling chan struct{}

	changes listeners[Snapshot]
}

// NewLoginMachine returns a machine in ModeChecking. Call Start to resolve
// the initial screen.
func NewLoginMachine(e *Engine) *LoginMachine {
	return &LoginMachine{
		engine:   e,
		interval: e.config.Registration.PollInterval,
		log:      e.log.With().Str("component", "login_machine").Logger(),
		state:    Snapshot{Mode: ModeChecking},
	}
}

// OnChange registers fn for every state change and returns a function that
// removes it. Notifications from the poller and from user actions are not
// ordered against each other; read Snapshot for the latest state.
func (m *LoginMachine) OnChange(fn func(Snapshot)) func() {
	return m.changes.add(fn)
}

// OnAuthenticated sets the callback receiving the session after a
// successful login or registration.
func (m *LoginMachine) OnAuthenticated(fn func(*session.Session)) {
	m.mu.Lock()
	m.onAuth = fn
	m.mu.Unlock()
}

func (m *LoginMachine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start resolves the first screen: a stored session authenticates at once,
// a mirrored registration lands on its current status, anything else on
// login. Failures land on login.
func (m *LoginMachine) Start(ctx context.Context) {
	m.transition(ModeChecking, "")

	sess, err := m.engine.CurrentSession(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("read session failed")
		m.transition(ModeLogin, "")
		return
	}
	if sess != nil {
		m.authenticated(sess)
		return
	}

	pending, err := m.engine.PendingRegistration(ctx)
	if err != nil || pending == nil {
		m.transition(ModeLogin, "")
		return
	}
	m.setPendingName(pending.DisplayName)

	switch m.engine.CheckRegistrationStatus(ctx) {
	case RegistrationApproved:
		m.transition(ModeApproved, "")
	case RegistrationRejected:
		m.transition(ModeRejected, "")
	default:
		m.transition(ModePending, "")
	}
}

// SubmitLogin verifies name and passcode. Blank input only sets an error.
func (m *LoginMachine) SubmitLogin(ctx context.Context, name, code string) {
	name, code = strings.TrimSpace(name), strings.TrimSpace(code)
	if name == "" {
		m.setError("Please enter your name")
		return
	}
	if code == "" {
		m.setError("Please enter your passcode")
		return
	}

	m.transition(ModeVerifying, "")
	sess, err := m.engine.Login(ctx, name, code)
	switch {
	case err == nil:
		m.authenticated(sess)
	case errors.Is(err, ErrInvalidCredentials):
		m.transition(ModeLogin, msgInvalidCredentials)
	default:
		m.log.Warn().Err(err).Msg("login failed")
		m.transition(ModeError, msgLoginConnection)
	}
}

// SubmitRegistration validates in and files the request. Invalid input
// only sets an error; a conflict or failure returns to the register screen.
func (m *LoginMachine) SubmitRegistration(ctx context.Context, in RegistrationInput) {
	if err := m.engine.ValidateRegistration(in); err != nil {
		m.setError(UserMessage(err))
		return
	}

	m.transition(ModeRegistering, "")
	err := m.engine.SubmitRegistration(ctx, in)
	switch {
	case err == nil:
		m.setPendingName(strings.TrimSpace(in.DisplayName))
		m.transition(ModePending, "")
	case IsConflict(err), IsValidation(err):
		m.transition(ModeRegister, UserMessage(err))
	default:
		m.log.Warn().Err(err).Msg("registration failed")
		m.transition(ModeRegister, msgRetryConnection)
	}
}

// CompleteRegistration turns an approved registration into a session.
func (m *LoginMachine) CompleteRegistration(ctx context.Context) {
	m.transition(ModeVerifying, "")
	sess, err := m.engine.CompleteRegistration(ctx)
	switch {
	case err == nil:
		m.authenticated(sess)
	case errors.Is(err, ErrNoPendingRegistration), errors.Is(err, ErrNotApproved):
		m.transition(ModeError, UserMessage(err))
	case errors.Is(err, ErrConnection):
		m.transition(ModeError, msgRetryConnection)
	default:
		m.log.Warn().Err(err).Msg("complete registration failed")
		m.transition(ModeError, msgCompleteFailed)
	}
}

// CancelRegistration forgets the pending registration and returns to login.
// If the poller is already completing an approval, Cancel waits for it; an
// approval that became a session is kept and the machine stays
// authenticated. It must not be called from an OnChange listener.
func (m *LoginMachine) CancelRegistration(ctx context.Context) {
	m.stopPolling()

	m.mu.Lock()
	settling := m.settling
	m.mu.Unlock()
	if settling != nil {
		select {
		case <-settling:
		case <-ctx.Done():
			return
		}
	}
	if m.Snapshot().Mode == ModeAuthenticated {
		return
	}

	if err := m.engine.CancelRegistration(ctx); err != nil {
		m.log.Warn().Err(err).Msg("cancel registration failed")
	}
	m.setPendingName("")
	m.transition(ModeLogin, "")
}

func (m *LoginMachine) TryAgain()         { m.transition(ModeLogin, "") }
func (m *LoginMachine) SwitchToRegister() { m.transition(ModeRegister, "") }
func (m *LoginMachine) SwitchToLogin()    { m.transition(ModeLogin, "") }

// PasscodeHint is the inline message shown while a passcode is typed on
// the register screen. Only a bad character is reported early; length is
// checked on submit.
func (m *LoginMachine) PasscodeHint(code string) string {
	if m.Snapshot().Mode != ModeRegister || code == "" {
		return ""
	}
	err := m.engine.validatePasscode(code)
	if errors.Is(err, ErrPasscodeInvalidCharacters) {
		return UserMessage(err)
	}
	return ""
}

// Close stops the poller and waits for it. The machine accepts no further
// polling afterwards.
func (m *LoginMachine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stopPolling()
}

func (m *LoginMachine) authenticated(sess *session.Session) {
	m.transition(ModeAuthenticated, "")
	m.mu.Lock()
	fn := m.onAuth
	m.mu.Unlock()
	if fn != nil {
		call(fn, sess, m.log)
	}
}

func (m *LoginMachine) setError(msg string) {
	m.mu.Lock()
	m.state.Error = msg
	snap := m.state
	m.mu.Unlock()
	m.changes.notify(snap, m.log)
}

func (m *LoginMachine) setPendingName(name string) {
	m.mu.Lock()
	m.state.PendingName = name
	m.mu.Unlock()
}

// transition moves to mode. Leaving ModePending stops the poller before
// the change is published; entering it starts one.
func (m *LoginMachine) transition(mode Mode, errMsg string) {
	if mode != ModePending {
		m.stopPolling()
	}

	m.mu.Lock()
	m.state.Mode = mode
	m.state.Error = errMsg
	snap := m.state
	m.mu.Unlock()

	if mode == ModePending {
		m.startPolling()
	}
	m.changes.notify(snap, m.log)
}

func (m *LoginMachine) startPolling() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.pollCancel, m.pollDone = cancel, done
	m.settling = nil
	go m.poll(ctx, done)
}

// stopPolling cancels the poller and waits for it to exit. It is a no-op
// when no poller runs, including when the poller has already detached.
func (m *LoginMachine) stopPolling() {
	m.mu.Lock()
	cancel, done := m.pollCancel, m.pollDone
	m.pollCancel, m.pollDone = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// detach releases the poller slot from inside the poller, so the
// transitions it makes next do not wait on itself. The done channel stays
// reachable through settling until the poller exits.
func (m *LoginMachine) detach(done chan struct{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollDone != done {
		return false
	}
	m.pollCancel()
	m.pollCancel, m.pollDone = nil, nil
	m.settling = done
	return true
}

func (m *LoginMachine) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status := m.engine.CheckRegistrationStatus(ctx)
		if ctx.Err() != nil {
			return
		}

		switch status {
		case RegistrationApproved:
			if !m.detach(done) {
				return
			}
			// The detached context is cancelled; completion gets its own.
			sess, err := m.engine.CompleteRegistration(context.Background())
			if err != nil {
				m.log.Debug().Err(err).Msg("auto-complete after approval failed")
				m.transition(ModeApproved, "")
				return
			}
			m.authenticated(sess)
			return
		case RegistrationRejected:
			if !m.detach(done) {
				return
			}
			m.transition(ModeRejected, "")
			return
		}
	}
}
