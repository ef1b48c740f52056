package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LoginError reports a session that could not be established. Login is never retried here.
type LoginError struct {
	Cause error
}

func (e *LoginError) Error() string {
	return "login failed: " + e.Cause.Error()
}

func (e *LoginError) Unwrap() error {
	return e.Cause
}

// ErrLoginTimeout is the cause of a LoginError when nobody confirmed the login in time
var ErrLoginTimeout = errors.New("timed out waiting for login confirmation")

// Config configures the login flow
type Config struct {
	LoginURL string
	// SuccessCookie is the cookie whose presence proves the user is logged in
	SuccessCookie string
	Timeout       time.Duration
	PollInterval  time.Duration
	ProbeTimeout  time.Duration
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
}

// Manager creates, probes and closes sessions
type Manager struct {
	cfg      Config
	launcher Launcher
}

func NewManager(cfg Config, launcher Launcher) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, launcher: launcher}
}

// Login opens the login page and blocks until the user completes the challenge in the
// browser, the timeout expires or ctx is cancelled. On any failure the browser is
// released and the error is a *LoginError.
func (m *Manager) Login(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	browser, err := m.launcher.Launch(ctx)
	if err != nil {
		return nil, &LoginError{Cause: fmt.Errorf("failed to launch browser: %w", err)}
	}

	s := newSession(uuid.NewString(), browser)
	slog.Info("Starting login session", "session_id", s.ID, "url", m.cfg.LoginURL)

	if err := browser.Navigate(ctx, m.cfg.LoginURL); err != nil {
		m.abandon(s)
		return nil, &LoginError{Cause: fmt.Errorf("failed to open login page: %w", err)}
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := m.hasLoginCookie(ctx, browser)
		if err != nil {
			slog.Debug("Login cookie check failed", "session_id", s.ID, "error", err)
		}
		if ok {
			s.setState(Authenticated)
			slog.Info("Login confirmed", "session_id", s.ID)
			return s, nil
		}

		select {
		case <-ctx.Done():
			m.abandon(s)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &LoginError{Cause: ErrLoginTimeout}
			}
			return nil, &LoginError{Cause: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Status probes whether the session is still logged in. It never fails:
// any probe error is reported as Unauthenticated.
func (m *Manager) Status(ctx context.Context, s *Session) State {
	if s.State() != Authenticated {
		return Unauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	cookies, err := s.cookies(ctx)
	if err != nil {
		slog.Warn("Session probe failed", "session_id", s.ID, "error", err)
		return Unauthenticated
	}
	if hasCookie(cookies, m.cfg.SuccessCookie) {
		return Authenticated
	}
	return Unauthenticated
}

// Close releases the browser behind s. Closing an already closed session is a no-op.
func (m *Manager) Close(s *Session) error {
	if s == nil {
		return nil
	}
	released, err := s.release(Closed)
	if !released {
		return nil
	}
	slog.Info("Session closed", "session_id", s.ID)
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

func (m *Manager) abandon(s *Session) {
	if _, err := s.release(Unauthenticated); err != nil {
		slog.Warn("Failed to release abandoned login", "session_id", s.ID, "error", err)
	}
	slog.Info("Login abandoned", "session_id", s.ID)
}

func (m *Manager) hasLoginCookie(ctx context.Context, b Browser) (bool, error) {
	cookies, err := b.Cookies(ctx)
	if err != nil {
		return false, err
	}
	return hasCookie(cookies, m.cfg.SuccessCookie), nil
}

func hasCookie(cookies []Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}
