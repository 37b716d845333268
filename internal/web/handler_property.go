package web

import (
	"net/http"
	"strconv"

	"github.com/vbonduro/staydesk/internal/service"
)

func propertyPath(id int64) string {
	return "/properties/" + strconv.FormatInt(id, 10)
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	properties, err := s.svc.Properties.ListForUser(r.Context(), user.UserID)
	if err != nil {
		s.fail(w, r, err, "list properties")
		return
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{"User": user, "Properties": properties},
		"base.html", "pages/properties.html", "partials/property_card.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var in service.PropertyInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "create property")
		return
	}

	p, err := s.svc.Properties.Create(r.Context(), principal(r).UserID, in)
	if err != nil {
		s.fail(w, r, err, "create property")
		return
	}

	if isHTMX(r) {
		if err := s.renderPartial(w, "partials/property_card.html", p); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}
	http.Redirect(w, r, propertyPath(p.ID), http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Properties.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, "load property")
		return
	}
	dash, err := s.svc.Stays.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err, "load dashboard")
		return
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{"User": principal(r), "Property": p, "Dashboard": dash, "ActiveNav": "dashboard"},
		"base.html", "pages/dashboard.html", "partials/stay_row.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	var in service.PropertyInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "update property")
		return
	}

	p, err := s.svc.Properties.Update(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, "update property")
		return
	}
	redirectAfterPost(w, r, propertyPath(p.ID))
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Properties.Delete(r.Context()); err != nil {
		s.fail(w, r, err, "delete property")
		return
	}

	w.Header().Set("HX-Redirect", "/properties")
	w.WriteHeader(http.StatusOK)
}
