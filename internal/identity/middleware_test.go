package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic/pkg/logger"
)

type mockIssuer struct {
	issueFunc  func() (Identity, error)
	verifyFunc func(token string) (Identity, error)
}

func (m *mockIssuer) Issue() (Identity, error) {
	return m.issueFunc()
}

func (m *mockIssuer) Verify(token string) (Identity, error) {
	return m.verifyFunc(token)
}

func captureIdentity(got *Identity, ready *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *ready = FromContext(r.Context())
	})
}

func TestMiddleware_ProvisionsAnonymousIdentity(t *testing.T) {
	p := NewProvider(testSecret, time.Hour)
	var got Identity
	var ready bool

	h := Middleware(p, logger.Discard(), SkipNonAPI)(captureIdentity(&got, &ready))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/slots", nil))

	if !ready || got.Subject == "" {
		t.Fatalf("expected Ready identity, got %+v ready=%v", got, ready)
	}
	if rec.Header().Get(TokenHeader) != got.Token {
		t.Error("provisioned token must be returned in the response header")
	}
}

func TestMiddleware_ReusesValidToken(t *testing.T) {
	p := NewProvider(testSecret, time.Hour)
	existing, _ := p.Issue()

	for _, header := range []string{"Authorization", TokenHeader} {
		t.Run(header, func(t *testing.T) {
			var got Identity
			var ready bool
			h := Middleware(p, logger.Discard(), nil)(captureIdentity(&got, &ready))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
			if header == "Authorization" {
				req.Header.Set(header, "Bearer "+existing.Token)
			} else {
				req.Header.Set(header, existing.Token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if !ready || got.Subject != existing.Subject {
				t.Errorf("expected existing subject %s, got %+v", existing.Subject, got)
			}
			if rec.Header().Get(TokenHeader) != "" {
				t.Error("no new token should be issued for a valid one")
			}
		})
	}
}

func TestMiddleware_InvalidTokenProvisionsNew(t *testing.T) {
	p := NewProvider(testSecret, time.Hour)
	var got Identity
	var ready bool
	h := Middleware(p, logger.Discard(), nil)(captureIdentity(&got, &ready))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/slots", nil)
	req.Header.Set(TokenHeader, "bogus")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !ready {
		t.Fatal("expected a fresh identity")
	}
	if rec.Header().Get(TokenHeader) == "" {
		t.Error("expected new token header")
	}
}

func TestMiddleware_ProvisioningFailureLeavesUnauthenticated(t *testing.T) {
	issuer := &mockIssuer{
		issueFunc:  func() (Identity, error) { return Identity{}, errors.New("signer down") },
		verifyFunc: func(string) (Identity, error) { return Identity{}, ErrInvalidToken },
	}

	var state State
	h := Middleware(issuer, logger.Discard(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFrom(r.Context())
		if !ok {
			t.Fatal("session missing from context")
		}
		state = s.State()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/slots", nil))

	if state != Unauthenticated {
		t.Errorf("state = %s, want unauthenticated", state)
	}
	if rec.Header().Get(TokenHeader) != "" {
		t.Error("no token header expected on failure")
	}
}

func TestMiddleware_IncompleteIdentityIsRejected(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		issued    Identity
		wantState State
		wantReady bool
	}{
		{
			name:      "issued identity without subject",
			issued:    Identity{Token: "tok"},
			wantState: Unauthenticated,
		},
		{
			name:      "verified token without subject falls back to a new identity",
			token:     "stale",
			issued:    Identity{Subject: "anon-2", Token: "fresh", Anonymous: true},
			wantState: Ready,
			wantReady: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := &mockIssuer{
				issueFunc:  func() (Identity, error) { return tt.issued, nil },
				verifyFunc: func(string) (Identity, error) { return Identity{Token: "stale"}, nil },
			}

			var state State
			var ready bool
			h := Middleware(issuer, logger.Discard(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s, _ := SessionFrom(r.Context())
				state = s.State()
				_, ready = FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/slots", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if state != tt.wantState || ready != tt.wantReady {
				t.Errorf("state = %s ready = %v, want %s ready = %v", state, ready, tt.wantState, tt.wantReady)
			}
			wantHeader := ""
			if tt.wantReady {
				wantHeader = tt.issued.Token
			}
			if got := rec.Header().Get(TokenHeader); got != wantHeader {
				t.Errorf("%s = %q, want %q", TokenHeader, got, wantHeader)
			}
		})
	}
}

func TestMiddleware_SkipsNonAPI(t *testing.T) {
	called := false
	issuer := &mockIssuer{
		issueFunc: func() (Identity, error) { called = true; return Identity{Subject: "x"}, nil },
	}
	h := Middleware(issuer, logger.Discard(), SkipNonAPI)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if called {
		t.Error("health checks should not provision identities")
	}
}
