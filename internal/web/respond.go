package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/schema"
	"github.com/vbonduro/staydesk/internal/auth"
	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/service"
	"github.com/vbonduro/staydesk/internal/tenant"
)

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag("form")
	d.IgnoreUnknownKeys(true)
	return d
}

// decodeForm fills dst from the request's POST form. Conversion failures
// are reported as a service.ValidationError.
func decodeForm(r *http.Request, dst any) error {
	if r.PostForm == nil {
		if err := r.ParseForm(); err != nil {
			return &service.ValidationError{Fields: map[string]string{"form": "could not be read"}}
		}
	}
	err := formDecoder.Decode(dst, r.PostForm)
	var multi schema.MultiError
	if errors.As(err, &multi) {
		ve := &service.ValidationError{Fields: make(map[string]string, len(multi))}
		for field := range multi {
			name, _, _ := strings.Cut(field, ".")
			ve.Fields[name] = "is invalid"
		}
		return ve
	}
	return err
}

// parseID extracts the {id} path variable and returns it as int64.
func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, tenant.ErrNoTenant):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCodeExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail reports err to the client. Unexpected errors are logged and hidden
// behind a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	status := statusFor(err)
	msg := http.StatusText(status)

	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		msg = validationMessage(ve)
	case status == http.StatusInternalServerError:
		s.logger.Error(action+" failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "failed to " + action
	}

	if isAPIRequest(r) {
		body := map[string]any{"error": msg}
		if ve != nil {
			body["fields"] = ve.Fields
		}
		writeJSON(w, status, body)
		return
	}
	http.Error(w, msg, status)
}

func validationMessage(ve *service.ValidationError) string {
	keys := make([]string, 0, len(ve.Fields))
	for k := range ve.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.ReplaceAll(k, "_", " ")+" "+ve.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// redirectAfterPost sends HTMX clients an HX-Redirect and browsers a 303.
func redirectAfterPost(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
