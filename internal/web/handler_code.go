package web

import (
	"net/http"

	"github.com/vbonduro/staydesk/internal/service"
)

const qrSize = 256

func (s *Server) handleIssueCode(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	var in service.CodeInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "issue booking code")
		return
	}

	if _, err := s.svc.Stays.IssueCode(r.Context(), stayID, in); err != nil {
		s.fail(w, r, err, "issue booking code")
		return
	}
	s.respondCodePanel(w, r, stayID)
}

func (s *Server) handleRevokeCode(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	if err := s.svc.Stays.RevokeCode(r.Context(), stayID); err != nil {
		s.fail(w, r, err, "revoke booking code")
		return
	}
	s.respondCodePanel(w, r, stayID)
}

// respondCodePanel re-renders the booking code panel of a stay for HTMX,
// or returns the code as JSON for API clients.
func (s *Server) respondCodePanel(w http.ResponseWriter, r *http.Request, stayID int64) {
	st, err := s.svc.Stays.Get(r.Context(), stayID)
	if err != nil {
		s.fail(w, r, err, "get stay")
		return
	}

	var publicURL string
	if st.Code != nil {
		publicURL = s.svc.Stays.PublicURL(st.Code)
	}

	if isAPIRequest(r) {
		writeJSON(w, http.StatusOK, map[string]any{"code": newCodeDTO(st.Code), "url": publicURL})
		return
	}
	if !isHTMX(r) {
		http.Redirect(w, r, stayPath(st.Stay), http.StatusSeeOther)
		return
	}
	if err := s.renderPartial(w, "partials/code_panel.html",
		map[string]any{"Stay": st, "PublicURL": publicURL},
	); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleCodeQR(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	png, err := s.svc.Stays.CodeQR(r.Context(), stayID, qrSize)
	if err != nil {
		s.fail(w, r, err, "render qr code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := w.Write(png); err != nil {
		s.logger.Error("write qr code failed", "stay_id", stayID, "error", err)
	}
}
