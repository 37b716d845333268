package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jinzhu/copier"
	"github.com/vbonduro/staydesk/internal/domain"
)

type guestDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type documentDTO struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DocumentType string    `json:"document_type"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Notes        string    `json:"notes"`
}

type codeDTO struct {
	Code          string     `json:"code"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
	AccessedCount int64      `json:"accessed_count"`
	LastAccessed  *time.Time `json:"last_accessed"`
}

type stayDTO struct {
	ID            int64         `json:"id"`
	PropertyID    int64         `json:"property_id"`
	GuestCount    int           `json:"guest_count"`
	CheckIn       string        `json:"check_in_date"`
	CheckOut      string        `json:"check_out_date,omitempty"`
	PhoneNumber   string        `json:"phone_number"`
	Email         string        `json:"email"`
	ComingFrom    string        `json:"coming_from"`
	TermsAgreed   bool          `json:"terms_agreed"`
	TermsAgreedAt *time.Time    `json:"terms_agreed_at"`
	FormFilled    bool          `json:"form_filled"`
	FormFilledAt  *time.Time    `json:"form_filled_at"`
	Notes         string        `json:"notes"`
	Guests        []guestDTO    `json:"guests"`
	Documents     []documentDTO `json:"documents"`
	Code          *codeDTO      `json:"booking_code"`
	PublicURL     string        `json:"public_url,omitempty"`
}

type publicURLer interface {
	PublicURL(c *domain.BookingCode) string
}

func newStayDTO(st *domain.StayDetails, urls publicURLer) stayDTO {
	var dto stayDTO
	if err := copier.Copy(&dto, st.Stay); err != nil {
		slog.Error("failed to map stay", "stay_id", st.ID, "error", err)
	}
	dto.CheckIn = st.CheckInDate.Format(time.DateOnly)
	if st.CheckOutDate != nil {
		dto.CheckOut = st.CheckOutDate.Format(time.DateOnly)
	}

	dto.Guests = make([]guestDTO, 0, len(st.Guests))
	if err := copier.Copy(&dto.Guests, st.Guests); err != nil {
		slog.Error("failed to map stay guests", "stay_id", st.ID, "error", err)
	}
	dto.Documents = make([]documentDTO, 0, len(st.Documents))
	for _, d := range st.Documents {
		dto.Documents = append(dto.Documents, newDocumentDTO(d))
	}

	dto.Code = newCodeDTO(st.Code)
	if st.Code != nil {
		dto.PublicURL = urls.PublicURL(st.Code)
	}
	return dto
}

func newDocumentDTO(d *domain.Document) documentDTO {
	var dto documentDTO
	if err := copier.Copy(&dto, d); err != nil {
		slog.Error("failed to map document", "document_id", d.ID, "error", err)
	}
	dto.DocumentType = string(d.DocumentType)
	return dto
}

func newCodeDTO(c *domain.BookingCode) *codeDTO {
	if c == nil {
		return nil
	}
	dto := &codeDTO{}
	if err := copier.Copy(dto, c); err != nil {
		slog.Error("failed to map booking code", "code_id", c.ID, "error", err)
	}
	return dto
}

func (s *Server) handleAPIGetStay(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stay id"})
		return
	}

	st, err := s.svc.Stays.Get(r.Context(), stayID)
	if err != nil {
		s.failJSON(w, r, err, "get stay")
		return
	}
	writeJSON(w, http.StatusOK, newStayDTO(st, s.svc.Stays))
}

func (s *Server) handleAPIDeleteStay(w http.ResponseWriter, r *http.Request) {
	stayID, err := parseID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stay id"})
		return
	}

	if err := s.svc.Stays.Delete(r.Context(), stayID); err != nil {
		s.failJSON(w, r, err, "delete stay")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// failJSON is fail for routes that always answer in JSON.
func (s *Server) failJSON(w http.ResponseWriter, r *http.Request, err error, action string) {
	r.Header.Set("Accept", "application/json")
	s.fail(w, r, err, action)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB != nil {
		if err := s.opts.DB.PingContext(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
