package web

import (
	"net/http"

	"github.com/vbonduro/staydesk/internal/service"
)

type guestResult struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleListGuests(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Properties.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, "load property")
		return
	}
	guests, err := s.svc.Guests.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "list guests")
		return
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{"User": principal(r), "Property": p, "Guests": guests, "ActiveNav": "guests"},
		"base.html", "pages/guests.html", "partials/guest_row.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleCreateGuest(w http.ResponseWriter, r *http.Request) {
	var in service.GuestInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "create guest")
		return
	}

	g, err := s.svc.Guests.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, "create guest")
		return
	}

	switch {
	case isAPIRequest(r):
		writeJSON(w, http.StatusCreated, guestResult{ID: g.ID, Name: g.Name})
	case isHTMX(r):
		if err := s.renderPartial(w, "partials/guest_row.html", g); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
	default:
		http.Redirect(w, r, propertyPath(g.PropertyID)+"/guests", http.StatusSeeOther)
	}
}

// handleSearchGuests serves the guest picker of the stay form.
func (s *Server) handleSearchGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := s.svc.Guests.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err, "search guests")
		return
	}

	results := make([]guestResult, 0, len(guests))
	for _, g := range guests {
		results = append(results, guestResult{ID: g.ID, Name: g.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"guests": results})
}

func (s *Server) handleRenameGuest(w http.ResponseWriter, r *http.Request) {
	guestID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid guest id", http.StatusBadRequest)
		return
	}

	var in service.GuestInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "rename guest")
		return
	}

	g, err := s.svc.Guests.Rename(r.Context(), guestID, in)
	if err != nil {
		s.fail(w, r, err, "rename guest")
		return
	}

	if isHTMX(r) {
		if err := s.renderPartial(w, "partials/guest_row.html", g); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}
	http.Redirect(w, r, propertyPath(g.PropertyID)+"/guests", http.StatusSeeOther)
}

func (s *Server) handleDeleteGuest(w http.ResponseWriter, r *http.Request) {
	guestID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid guest id", http.StatusBadRequest)
		return
	}

	if err := s.svc.Guests.Delete(r.Context(), guestID); err != nil {
		s.fail(w, r, err, "delete guest")
		return
	}
	w.WriteHeader(http.StatusOK)
}
