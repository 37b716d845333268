package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vbonduro/staydesk/internal/docstore"
	"github.com/vbonduro/staydesk/internal/domain"
	"github.com/vbonduro/staydesk/internal/tenant"
)

// MaxDocumentSize is the largest accepted upload in bytes.
const MaxDocumentSize = 20 << 20

// sniffLen is how much of an upload is read to detect its type.
const sniffLen = 3072

// allowedDocumentTypes maps accepted content types to the extension used for
// the stored file.
var allowedDocumentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"image/heif":      ".heif",
}

// documentRepository is the subset of store.DocumentStore that DocumentService requires.
type documentRepository interface {
	Create(ctx context.Context, d *domain.Document) (*domain.Document, error)
	GetByID(ctx context.Context, propertyID, id int64) (*domain.Document, error)
	List(ctx context.Context, propertyID int64) ([]*domain.Document, error)
	Delete(ctx context.Context, propertyID, id int64) (*domain.Document, error)
}

type DocumentInput struct {
	Name         string `form:"document_name" validate:"max=200"`
	DocumentType string `form:"document_type" validate:"required,oneof=aadhaar passport driving_license voter_id other"`
	Notes        string `form:"notes" validate:"max=5000"`
}

type DocumentService struct {
	documents documentRepository
	files     docstore.DocStore
	logger    *slog.Logger
}

func NewDocumentService(documents documentRepository, files docstore.DocStore, logger *slog.Logger) *DocumentService {
	return &DocumentService{documents: documents, files: files, logger: logger}
}

// DetectContentType sniffs the head of an upload and returns its content
// type and stored file extension, or an error if the type is not accepted.
func DetectContentType(head []byte) (string, string, error) {
	mtype := mimetype.Detect(head)
	for allowed, ext := range allowedDocumentTypes {
		if mtype.Is(allowed) {
			return allowed, ext, nil
		}
	}
	return "", "", invalid("file", "must be a PDF, JPEG, PNG, WebP or HEIC file, got "+mtype.String())
}

// Upload stores the file read from r and records it for the scoped
// property. filename is used as the document name when none is given.
func (s *DocumentService) Upload(ctx context.Context, userID int64, in DocumentInput, filename string, r io.Reader) (*domain.Document, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if in.DocumentType == "" {
		in.DocumentType = string(domain.DocumentOther)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n == 0 {
		return nil, invalid("file", "is required")
	}
	head = head[:n]

	contentType, ext, err := DetectContentType(head)
	if err != nil {
		return nil, err
	}

	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), MaxDocumentSize+1)
	key, size, err := s.files.Save(ctx, ext, body)
	if err != nil {
		return nil, err
	}
	if size > MaxDocumentSize {
		s.removeFile(ctx, key)
		return nil, invalid("file", "must be at most 20 MB")
	}

	var uploadedBy *int64
	if userID > 0 {
		uploadedBy = &userID
	}
	doc, err := s.documents.Create(ctx, &domain.Document{
		PropertyID:   propertyID,
		Name:         in.Name,
		DocumentType: domain.DocumentType(in.DocumentType),
		StorageKey:   key,
		MimeType:     contentType,
		SizeBytes:    size,
		UploadedBy:   uploadedBy,
		Notes:        strings.TrimSpace(in.Notes),
	})
	if err != nil {
		s.removeFile(ctx, key)
		return nil, err
	}

	s.logger.Info("document uploaded", "property_id", propertyID, "document_id", doc.ID, "mime_type", contentType, "size", size)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context) ([]*domain.Document, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.documents.List(ctx, propertyID)
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.Document, error) {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.documents.GetByID(ctx, propertyID, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

// Open returns the document and a reader over its file. The caller closes
// the reader.
func (s *DocumentService) Open(ctx context.Context, id int64) (*domain.Document, io.ReadCloser, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, d.StorageKey)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil, fmt.Errorf("file of document %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return d, rc, nil
}

func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	propertyID, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	d, err := s.documents.Delete(ctx, propertyID, id)
	if err != nil {
		return err
	}
	s.removeFile(ctx, d.StorageKey)
	s.logger.Info("document deleted", "property_id", propertyID, "document_id", id)
	return nil
}

func (s *DocumentService) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		s.logger.Error("failed to delete document file", "storage_key", key, "error", err)
	}
}
