package identity

import (
	"net/http"
	"strings"

	"clinic/pkg/logger"
)

const TokenHeader = "X-Identity-Token"

// Middleware attaches a Session to every request that skip does not
// exclude. A valid presented token is reused; otherwise a new anonymous
// identity is provisioned and echoed back in TokenHeader. Provisioning
// failures leave the session Unauthenticated and the request continues, so
// handlers decide how to answer.
func Middleware(issuer Issuer, log *logger.Logger, skip func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			session := NewSession()
			if err := session.BeginProvisioning(); err != nil {
				log.Error("failed to begin identity provisioning", "error", err)
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
				return
			}

			if token := presentedToken(r); token != "" {
				id, err := issuer.Verify(token)
				if err == nil {
					err = session.Complete(id)
				}
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
					return
				}
				log.Debug("discarding invalid identity token", "path", r.URL.Path, "error", err)
			}

			id, err := issuer.Issue()
			if err == nil {
				err = session.Complete(id)
			}
			if err != nil {
				log.Error("failed to provision identity", "path", r.URL.Path, "error", err)
				if failErr := session.Fail(); failErr != nil {
					log.Error("failed to reset identity session", "path", r.URL.Path, "error", failErr)
				}
			} else {
				w.Header().Set(TokenHeader, id.Token)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// SkipNonAPI excludes health, readiness and metrics endpoints.
func SkipNonAPI(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/api/")
}

func presentedToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}
