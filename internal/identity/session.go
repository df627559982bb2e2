// Package identity provisions the anonymous caller identity that tags every
// booking. It is a capability check only: a Ready session proves the caller
// went through provisioning, nothing more.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type State int

const (
	Unauthenticated State = iota
	Provisioning
	Ready
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Provisioning:
		return "provisioning"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid identity state transition")
	ErrInvalidToken      = errors.New("invalid identity token")
)

type Identity struct {
	Subject   string `json:"identity"`
	Token     string `json:"token"`
	Anonymous bool   `json:"anonymous"`
}

// Session tracks one caller through Unauthenticated -> Provisioning -> Ready.
// A failed provisioning returns the session to Unauthenticated.
type Session struct {
	mu       sync.RWMutex
	state    State
	identity Identity
}

func NewSession() *Session {
	return &Session{state: Unauthenticated}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) BeginProvisioning() error {
	return s.transition(Unauthenticated, Provisioning, nil)
}

func (s *Session) Complete(id Identity) error {
	if id.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidTransition)
	}
	return s.transition(Provisioning, Ready, &id)
}

func (s *Session) Fail() error {
	return s.transition(Provisioning, Unauthenticated, nil)
}

func (s *Session) transition(from, to State, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	if id != nil {
		s.identity = *id
	}
	return nil
}

// Identity returns the provisioned identity once the session is Ready.
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Ready {
		return Identity{}, false
	}
	return s.identity, true
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// FromContext returns the caller identity only when the request's session
// is Ready.
func FromContext(ctx context.Context) (Identity, bool) {
	s, ok := SessionFrom(ctx)
	if !ok {
		return Identity{}, false
	}
	return s.Identity()
}

// ContextWithIdentity returns ctx carrying an already Ready session for id.
// Used by background jobs and tests that act on behalf of a known caller.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	s := &Session{state: Ready, identity: id}
	return WithSession(ctx, s)
}
