package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/staydesk/internal/bookingcode"
	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/service"
)

const (
	msgInvalidCode = "Invalid booking code. Please contact support."
	msgExpiredCode = "This booking link has expired."
)

// handlePublicForm shows the guest self-service form for a booking code.
func (s *Server) handlePublicForm(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !bookingcode.Valid(code) {
		s.renderPublicError(w, http.StatusNotFound, msgInvalidCode, nil)
		return
	}

	red, err := s.svc.Public.View(r.Context(), code)
	if err != nil {
		s.logger.Error("resolve booking code failed", "error", err)
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	switch red.State {
	case service.CodeUnknown:
		s.renderPublicError(w, http.StatusNotFound, msgInvalidCode, nil)
	case service.CodeExpired:
		s.renderPublicError(w, http.StatusGone, msgExpiredCode, red)
	case service.CodeActiveFilled:
		s.renderPublicDone(w, http.StatusOK, red, false)
	default:
		form := service.GuestFormInput{
			GuestCount:  red.Stay.GuestCount,
			PhoneNumber: red.Stay.PhoneNumber,
			Email:       red.Stay.Email,
			ComingFrom:  red.Stay.ComingFrom,
		}
		for _, g := range red.Guests {
			form.GuestNames = append(form.GuestNames, g.Name)
		}
		s.renderPublicForm(w, http.StatusOK, red, form, nil)
	}
}

// handlePublicSubmit stores the guest form. A form is accepted once; later
// submissions leave the stored data untouched.
func (s *Server) handlePublicSubmit(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !bookingcode.Valid(code) {
		s.renderPublicError(w, http.StatusNotFound, msgInvalidCode, nil)
		return
	}

	var in service.GuestFormInput
	if err := decodeForm(r, &in); err != nil {
		s.rejectUndecodableForm(w, r, code, in, err)
		return
	}

	red, err := s.svc.Public.Submit(r.Context(), code, in)
	var ve *service.ValidationError
	switch {
	case err == nil:
		s.renderPublicDone(w, http.StatusOK, red, true)
	case errors.Is(err, domain.ErrNotFound):
		s.renderPublicError(w, http.StatusNotFound, msgInvalidCode, nil)
	case errors.Is(err, domain.ErrCodeExpired):
		s.renderPublicError(w, http.StatusGone, msgExpiredCode, red)
	case errors.Is(err, domain.ErrAlreadySubmitted):
		s.renderPublicDone(w, http.StatusConflict, red, false)
	case errors.As(err, &ve) && red != nil:
		s.renderPublicForm(w, http.StatusUnprocessableEntity, red, in, ve.Fields)
	default:
		s.logger.Error("guest form submission failed", "error", err)
		http.Error(w, "failed to save your details", http.StatusInternalServerError)
	}
}

// rejectUndecodableForm answers a submission whose fields could not be
// converted. The code's state still decides the response.
func (s *Server) rejectUndecodableForm(w http.ResponseWriter, r *http.Request, code string, in service.GuestFormInput, decodeErr error) {
	var ve *service.ValidationError
	if !errors.As(decodeErr, &ve) {
		s.logger.Error("decode guest form failed", "error", decodeErr)
		http.Error(w, "failed to read form", http.StatusBadRequest)
		return
	}

	red, err := s.svc.Public.Resolve(r.Context(), code)
	if err != nil {
		s.logger.Error("resolve booking code failed", "error", err)
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	switch red.State {
	case service.CodeUnknown:
		s.renderPublicError(w, http.StatusNotFound, msgInvalidCode, nil)
	case service.CodeExpired:
		s.renderPublicError(w, http.StatusGone, msgExpiredCode, red)
	case service.CodeActiveFilled:
		s.renderPublicDone(w, http.StatusConflict, red, false)
	default:
		s.renderPublicForm(w, http.StatusUnprocessableEntity, red, in, ve.Fields)
	}
}

func (s *Server) renderPublicForm(w http.ResponseWriter, status int, red *service.Redemption, form service.GuestFormInput, errs map[string]string) {
	if len(form.GuestNames) == 0 {
		form.GuestNames = []string{""}
	}
	if err := s.renderPage(w, status,
		map[string]any{"Public": true, "Redemption": red, "Form": form, "Errors": errs},
		"base.html", "pages/public_form.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) renderPublicDone(w http.ResponseWriter, status int, red *service.Redemption, justSubmitted bool) {
	if err := s.renderPage(w, status,
		map[string]any{"Public": true, "Redemption": red, "JustSubmitted": justSubmitted},
		"base.html", "pages/public_done.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) renderPublicError(w http.ResponseWriter, status int, msg string, red *service.Redemption) {
	if err := s.renderPage(w, status,
		map[string]any{"Public": true, "Error": msg, "Redemption": red},
		"base.html", "pages/public_error.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}
