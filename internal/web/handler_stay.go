package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/service"
)

func stayPath(st *domain.Stay) string {
	return propertyPath(st.PropertyID) + "/stays/" + strconv.FormatInt(st.ID, 10)
}

func (s *Server) handleListStays(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Properties.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, "load property")
		return
	}
	stays, err := s.svc.Stays.List(r.Context(), 0)
	if err != nil {
		s.fail(w, r, err, "list stays")
		return
	}
	guests, err := s.svc.Guests.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "list guests")
		return
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{"User": principal(r), "Property": p, "Stays": stays, "Guests": guests, "ActiveNav": "stays"},
		"base.html", "pages/stays.html", "partials/stay_row.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleCreateStay(w http.ResponseWriter, r *http.Request) {
	var in service.StayInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "create stay")
		return
	}

	st, err := s.svc.Stays.Create(r.Context(), principal(r).UserID, in)
	if err != nil {
		s.fail(w, r, err, "create stay")
		return
	}

	switch {
	case isAPIRequest(r):
		writeJSON(w, http.StatusCreated, newStayDTO(st, s.svc.Stays))
	case isHTMX(r):
		if err := s.renderPartial(w, "partials/stay_row.html", st); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
	default:
		http.Redirect(w, r, stayPath(st.Stay), http.StatusSeeOther)
	}
}

func (s *Server) handleGetStay(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	st, err := s.svc.Stays.Get(r.Context(), stayID)
	if err != nil {
		s.fail(w, r, err, "get stay")
		return
	}
	s.renderStay(w, r, st)
}

func (s *Server) renderStay(w http.ResponseWriter, r *http.Request, st *domain.StayDetails) {
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
	docs, err := s.svc.Documents.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "list documents")
		return
	}

	var publicURL string
	if st.Code != nil {
		publicURL = s.svc.Stays.PublicURL(st.Code)
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{
			"User":      principal(r),
			"Property":  p,
			"Stay":      st,
			"PublicURL": publicURL,
			"Guests":    guests,
			"Documents": docs,
			"ActiveNav": "stays",
		},
		"base.html", "pages/stay_detail.html", "partials/code_panel.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleUpdateStay(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	var in service.StayInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "update stay")
		return
	}

	st, err := s.svc.Stays.Update(r.Context(), stayID, in)
	if err != nil {
		s.fail(w, r, err, "update stay")
		return
	}
	redirectAfterPost(w, r, stayPath(st.Stay))
}

func (s *Server) handleDeleteStay(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	if err := s.svc.Stays.Delete(r.Context(), stayID); err != nil {
		s.fail(w, r, err, "delete stay")
		return
	}

	if isAPIRequest(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("HX-Redirect", "/properties/"+r.PathValue("pid")+"/stays")
	w.WriteHeader(http.StatusOK)
}

type linkInput struct {
	ID int64 `form:"id"`
}

func (s *Server) handleLinkGuest(w http.ResponseWriter, r *http.Request) {
	s.handleLink(w, r, "link guest", s.svc.Stays.LinkGuest)
}

func (s *Server) handleLinkDocument(w http.ResponseWriter, r *http.Request) {
	s.handleLink(w, r, "link document", s.svc.Stays.LinkDocument)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request, action string, link func(ctx context.Context, stayID, id int64) error) {
	stayID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid stay id", http.StatusBadRequest)
		return
	}

	var in linkInput
	if err := decodeForm(r, &in); err != nil || in.ID <= 0 {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	if err := link(r.Context(), stayID, in.ID); err != nil {
		s.fail(w, r, err, action)
		return
	}
	redirectAfterPost(w, r, "/properties/"+r.PathValue("pid")+"/stays/"+r.PathValue("id"))
}
