package identity

import (
	"context"
	"errors"
	"testing"
)

func TestSession_Transitions(t *testing.T) {
	s := NewSession()
	if s.State() != Unauthenticated {
		t.Fatalf("new session state = %s", s.State())
	}
	if _, ok := s.Identity(); ok {
		t.Fatal("unauthenticated session must not expose an identity")
	}

	if err := s.Complete(Identity{Subject: "x"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Complete before provisioning: got %v", err)
	}

	if err := s.BeginProvisioning(); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginProvisioning(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double BeginProvisioning: got %v", err)
	}
	if _, ok := s.Identity(); ok {
		t.Error("provisioning session must not expose an identity")
	}

	if err := s.Complete(Identity{Subject: "abc", Anonymous: true}); err != nil {
		t.Fatal(err)
	}
	id, ok := s.Identity()
	if !ok || id.Subject != "abc" {
		t.Errorf("Identity() = %+v, %v", id, ok)
	}
	if err := s.Fail(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fail from Ready: got %v", err)
	}
}

func TestSession_FailReturnsToUnauthenticated(t *testing.T) {
	s := NewSession()
	_ = s.BeginProvisioning()
	if err := s.Fail(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Unauthenticated {
		t.Errorf("state = %s", s.State())
	}
	if err := s.BeginProvisioning(); err != nil {
		t.Errorf("retry after failure should be allowed: %v", err)
	}
}

func TestSession_CompleteRequiresSubject(t *testing.T) {
	s := NewSession()
	_ = s.BeginProvisioning()
	if err := s.Complete(Identity{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("got %v", err)
	}
	if s.State() != Provisioning {
		t.Errorf("state = %s", s.State())
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context must not carry an identity")
	}

	s := NewSession()
	_ = s.BeginProvisioning()
	ctx := WithSession(context.Background(), s)
	if _, ok := FromContext(ctx); ok {
		t.Error("provisioning session must not pass the capability check")
	}

	ctx = ContextWithIdentity(context.Background(), Identity{Subject: "op"})
	id, ok := FromContext(ctx)
	if !ok || id.Subject != "op" {
		t.Errorf("FromContext = %+v, %v", id, ok)
	}
}
