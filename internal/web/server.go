package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/service"
)

// Services groups the application services the web layer drives.
type Services struct {
	Auth       *service.AuthService
	Properties *service.PropertyService
	Guests     *service.GuestService
	Stays      *service.StayService
	Rules      *service.HouseRulesService
	Documents  *service.DocumentService
	Public     *service.PublicService
}

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	CookieSecure    bool
	SessionTTL      time.Duration
	PublicRateLimit float64
	PublicRateBurst int
	DB              Pinger
	// Location is the zone timestamps are shown in. Nil means UTC.
	Location *time.Location
}

type Server struct {
	svc       Services
	opts      Options
	templates embed.FS
	mux       *http.ServeMux
	limiter   *ipRateLimiter
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(svc Services, tmpl embed.FS, opts Options, logger *slog.Logger) *Server {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		svc:       svc,
		opts:      opts,
		templates: tmpl,
		mux:       http.NewServeMux(),
		limiter:   newIPRateLimiter(opts.PublicRateLimit, opts.PublicRateBurst),
		logger:    logger,
		tmplFuncs: template.FuncMap{
			"date":     formatDate,
			"datetime": func(t any) string { return formatDateTime(t, loc) },
			"timezone": loc.String,
			"docTypes": func() []domain.DocumentType { return domain.DocumentTypes },
			"richText": richText,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/properties", http.StatusSeeOther)
	})
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	s.mux.Handle("GET /b/{code}/{$}", s.rateLimited(http.HandlerFunc(s.handlePublicForm)))
	s.mux.Handle("POST /b/{code}/{$}", s.rateLimited(http.HandlerFunc(s.handlePublicSubmit)))

	s.admin("GET /properties", s.handleListProperties)
	s.admin("POST /properties", s.handleCreateProperty)

	s.scoped("GET /properties/{pid}", s.handleDashboard)
	s.scoped("POST /properties/{pid}", s.handleUpdateProperty)
	s.scoped("DELETE /properties/{pid}", s.handleDeleteProperty)

	s.scoped("GET /properties/{pid}/guests", s.handleListGuests)
	s.scoped("POST /properties/{pid}/guests", s.handleCreateGuest)
	s.scoped("GET /properties/{pid}/guests/search", s.handleSearchGuests)
	s.scoped("POST /properties/{pid}/guests/{id}", s.handleRenameGuest)
	s.scoped("DELETE /properties/{pid}/guests/{id}", s.handleDeleteGuest)

	s.scoped("GET /properties/{pid}/stays", s.handleListStays)
	s.scoped("POST /properties/{pid}/stays", s.handleCreateStay)
	s.scoped("GET /properties/{pid}/stays/{id}", s.handleGetStay)
	s.scoped("POST /properties/{pid}/stays/{id}", s.handleUpdateStay)
	s.scoped("DELETE /properties/{pid}/stays/{id}", s.handleDeleteStay)
	s.scoped("POST /properties/{pid}/stays/{id}/guests", s.handleLinkGuest)
	s.scoped("POST /properties/{pid}/stays/{id}/documents", s.handleLinkDocument)

	s.scoped("POST /properties/{pid}/stays/{id}/code", s.handleIssueCode)
	s.scoped("DELETE /properties/{pid}/stays/{id}/code", s.handleRevokeCode)
	s.scoped("GET /properties/{pid}/stays/{id}/code/qr.png", s.handleCodeQR)

	s.scoped("GET /properties/{pid}/documents", s.handleListDocuments)
	s.scoped("POST /properties/{pid}/documents", s.handleUploadDocument)
	s.scoped("GET /properties/{pid}/documents/{id}/file", s.handleDocumentFile)
	s.scoped("DELETE /properties/{pid}/documents/{id}", s.handleDeleteDocument)

	s.scoped("GET /properties/{pid}/house-rules", s.handleHouseRules)
	s.scoped("POST /properties/{pid}/house-rules", s.handleUpdateHouseRules)

	s.scoped("GET /api/v1/properties/{pid}/stays/{id}", s.handleAPIGetStay)
	s.scoped("DELETE /api/v1/properties/{pid}/stays/{id}", s.handleAPIDeleteStay)

	for _, alias := range legacyRoutes(s) {
		s.scoped(alias.pattern, alias.handler)
	}
}

// admin registers a handler that requires a signed-in user.
func (s *Server) admin(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.requireAuth(h))
}

// scoped registers a handler that requires a signed-in member of the
// {pid} property.
func (s *Server) scoped(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.requireAuth(s.requireTenant(h)))
}

// securityHeaders adds the browser security headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, status int, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial parses and executes a single named partial template.
// The file must contain exactly one {{define "name"}}...{{end}} block.
func (s *Server) renderPartial(w http.ResponseWriter, file string, data any) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, file)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// ParseFS registers both the file-basename template and any {{define}} blocks.
	// Find the {{define}} template: it is the one whose name is neither "" nor
	// the file basename.
	basename := file
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		basename = file[idx+1:]
	}
	for _, t := range tmpl.Templates() {
		if n := t.Name(); n != "" && n != basename {
			return t.Execute(w, data)
		}
	}
	return tmpl.ExecuteTemplate(w, basename, data)
}

func formatDate(t any) string {
	switch v := t.(type) {
	case time.Time:
		return v.Format("02 Jan 2006")
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format("02 Jan 2006")
	default:
		return ""
	}
}

// formatDateTime shows t in loc, suffixed with the zone abbreviation.
func formatDateTime(t any, loc *time.Location) string {
	const layout = "02 Jan 2006 15:04 MST"
	switch v := t.(type) {
	case time.Time:
		return v.In(loc).Format(layout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.In(loc).Format(layout)
	default:
		return ""
	}
}

// richText marks stored rich text as safe HTML after sanitizing it again,
// so rows written before sanitization cannot inject markup either.
func richText(html string) template.HTML {
	return template.HTML(service.SanitizeHTML(html))
}
