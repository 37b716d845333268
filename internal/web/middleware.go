package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vbonduro/staydesk/internal/auth"
	"github.com/vbonduro/staydesk/internal/tenant"
)

const sessionCookie = "staydesk_session"

// sessionToken returns the bearer token of the request, falling back to the
// session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// requireAuth rejects requests without a valid session. Browsers are sent
// to the login page; API and HTMX clients get a 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.svc.Auth.Authenticate(sessionToken(r))
		if err != nil {
			switch {
			case isAPIRequest(r):
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			case r.Header.Get("HX-Request") == "true":
				w.Header().Set("HX-Redirect", "/login")
				w.WriteHeader(http.StatusUnauthorized)
			default:
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// requireTenant scopes the request to the {pid} property. Users who are not
// members get a 404 so property ids are not disclosed.
func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		propertyID, err := strconv.ParseInt(r.PathValue("pid"), 10, 64)
		if err != nil || propertyID <= 0 {
			http.NotFound(w, r)
			return
		}

		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			http.NotFound(w, r)
			return
		}

		member, err := s.svc.Properties.Authorize(r.Context(), p.UserID, propertyID)
		if err != nil {
			s.logger.Error("membership check failed", "user_id", p.UserID, "property_id", propertyID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !member {
			s.logger.Warn("property access denied", "user_id", p.UserID, "property_id", propertyID)
			http.NotFound(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithProperty(r.Context(), propertyID)))
	})
}

// rateLimited throttles a public handler per client IP.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
