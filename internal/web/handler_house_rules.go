package web

import (
	"net/http"

	"github.com/vbonduro/staydesk/internal/service"
)

func (s *Server) handleHouseRules(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Properties.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, "load property")
		return
	}
	rules, err := s.svc.Rules.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, "load house rules")
		return
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{"User": principal(r), "Property": p, "Rules": rules, "ActiveNav": "house-rules"},
		"base.html", "pages/house_rules.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleUpdateHouseRules(w http.ResponseWriter, r *http.Request) {
	var in service.HouseRulesInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "update house rules")
		return
	}

	rules, err := s.svc.Rules.Update(r.Context(), principal(r).UserID, in)
	if err != nil {
		s.fail(w, r, err, "update house rules")
		return
	}

	if isAPIRequest(r) || isHTMX(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "House rules updated successfully!",
			"version": rules.Version,
		})
		return
	}
	http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
}
