package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/vbonduro/staydesk/internal/service"
)

// maxUploadBody leaves room for the multipart framing around a document.
const maxUploadBody = service.MaxDocumentSize + 1<<20

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Properties.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, "load property")
		return
	}
	docs, err := s.svc.Documents.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "list documents")
		return
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{"User": principal(r), "Property": p, "Documents": docs, "ActiveNav": "documents"},
		"base.html", "pages/documents.html", "partials/document_row.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "file must be at most 20 MB", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	var in service.DocumentInput
	if err := decodeForm(r, &in); err != nil {
		s.fail(w, r, err, "upload document")
		return
	}

	doc, err := s.svc.Documents.Upload(r.Context(), principal(r).UserID, in, header.Filename, file)
	if err != nil {
		s.fail(w, r, err, "upload document")
		return
	}

	switch {
	case isAPIRequest(r):
		writeJSON(w, http.StatusCreated, newDocumentDTO(doc))
	case isHTMX(r):
		if err := s.renderPartial(w, "partials/document_row.html", doc); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
	default:
		http.Redirect(w, r, propertyPath(doc.PropertyID)+"/documents", http.StatusSeeOther)
	}
}

func (s *Server) handleDocumentFile(w http.ResponseWriter, r *http.Request) {
	docID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	doc, reader, err := s.svc.Documents.Open(r.Context(), docID)
	if err != nil {
		s.fail(w, r, err, "open document")
		return
	}
	defer closeWithLog(reader, "document reader", s.logger)

	filename := doc.Name + path.Ext(doc.StorageKey)
	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write document failed", "document_id", docID, "error", err)
	}
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	if err := s.svc.Documents.Delete(r.Context(), docID); err != nil {
		s.fail(w, r, err, "delete document")
		return
	}
	w.WriteHeader(http.StatusOK)
}
