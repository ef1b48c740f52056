// Package session owns the authenticated browser session used for crawling:
// login with a human-in-the-loop challenge, liveness probing and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a Session
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotAuthenticated is returned when a closed or unauthenticated session is borrowed
var ErrNotAuthenticated = errors.New("session is not authenticated")

// Cookie is the subset of a browser cookie the session cares about
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// Browser is a single automated browser tab
type Browser interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	// Eval runs a JavaScript function in the page and returns its string result
	Eval(ctx context.Context, js string, args ...any) (string, error)
	Close() error
}

// Launcher starts a browser for a new session
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Session is an authenticated crawling handle.
// Harvest calls borrow it read-only through Eval; Close waits for them to finish.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.RWMutex
	state   State
	browser Browser
}

func newSession(id string, browser Browser) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		state:     Authenticating,
		browser:   browser,
	}
}

func (s *Session) State() State {
	if s == nil {
		return Unauthenticated
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Eval runs js in the session's page. The session cannot be closed while a call is in flight.
func (s *Session) Eval(ctx context.Context, js string, args ...any) (string, error) {
	if s == nil {
		return "", ErrNotAuthenticated
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated || s.browser == nil {
		return "", ErrNotAuthenticated
	}
	return s.browser.Eval(ctx, js, args...)
}

func (s *Session) cookies(ctx context.Context) ([]Cookie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated || s.browser == nil {
		return nil, ErrNotAuthenticated
	}
	return s.browser.Cookies(ctx)
}

// release closes the browser and marks the session with the final state.
// It reports false when the session was already released.
func (s *Session) release(final State) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		if s.state != Closed {
			s.state = final
		}
		return false, nil
	}
	err := s.browser.Close()
	s.browser = nil
	s.state = final
	return true, err
}
