package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/staydesk/internal/service"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, http.StatusOK, safeNext(r.URL.Query().Get("next")), "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeForm(r, &in); err != nil {
		s.renderLogin(w, http.StatusBadRequest, "", "Enter a username and password.")
		return
	}
	next := safeNext(r.PostForm.Get("next"))

	token, _, err := s.svc.Auth.Login(r.Context(), in)
	if errors.Is(err, service.ErrBadCredentials) || errors.As(err, new(*service.ValidationError)) {
		s.renderLogin(w, http.StatusUnauthorized, next, "Invalid username or password.")
		return
	}
	if err != nil {
		s.fail(w, r, err, "log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.opts.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	redirectAfterPost(w, r, "/login")
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, next, errMsg string) {
	if err := s.renderPage(w, status,
		map[string]any{"Next": next, "Error": errMsg},
		"base.html", "pages/login.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/properties"
	}
	return next
}
