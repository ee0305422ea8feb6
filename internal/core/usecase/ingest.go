package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
)

var allowedDocTypes = map[string]struct{}{
	"annual_accounts": {},
	"bank_statement":  {},
	"debtor_list":     {},
	"ledger":          {},
	"correspondence":  {},
	"other":           {},
}

// UploadDocumentUseCase stores an uploaded file, extracts its text with the
// extractor registered for the file extension and persists the document row.
type UploadDocumentUseCase struct {
	storage    ports.ObjectStorage
	docs       ports.CaseDocumentStore
	extractors map[string]ports.TextExtractor
	fallback   ports.TextExtractor
	logger     *slog.Logger
	now        func() time.Time
}

func NewUploadDocumentUseCase(
	storage ports.ObjectStorage,
	docs ports.CaseDocumentStore,
	extractors map[string]ports.TextExtractor,
	fallback ports.TextExtractor,
	logger *slog.Logger,
) *UploadDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadDocumentUseCase{
		storage:    storage,
		docs:       docs,
		extractors: extractors,
		fallback:   fallback,
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *UploadDocumentUseCase) Upload(ctx context.Context, caseID, docType, filename, mimeType string, body io.Reader) (*domain.CaseDocument, error) {
	if caseID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("case id is empty"))
	}
	if _, ok := allowedDocTypes[docType]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("unsupported doc type %q", docType))
	}

	clean := sanitizeFilename(filename)
	if clean == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename is empty"))
	}

	docID := uuid.NewString()
	storagePath := path.Join(caseID, docID+"_"+clean)

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if err := uc.storage.Save(ctx, storagePath, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	text, err := uc.extract(ctx, clean, raw)
	if err != nil {
		return nil, fmt.Errorf("extract text from %s: %w", clean, err)
	}

	doc := &domain.CaseDocument{
		ID:          docID,
		CaseID:      caseID,
		DocType:     docType,
		Filename:    clean,
		MimeType:    mimeType,
		StoragePath: storagePath,
		Text:        text,
		CreatedAt:   uc.now().UTC(),
	}
	if err := uc.docs.Add(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}

	uc.logger.Info("document_uploaded",
		"case_id", caseID,
		"doc_id", docID,
		"doc_type", docType,
		"filename", clean,
		"text_bytes", len(text),
	)
	return doc, nil
}

func (uc *UploadDocumentUseCase) extract(ctx context.Context, filename string, raw []byte) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	extractor, ok := uc.extractors[ext]
	if !ok {
		extractor = uc.fallback
	}
	if extractor == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("no extractor for extension %q", ext))
	}
	return extractor.Extract(ctx, filename, strings.NewReader(string(raw)))
}

// sanitizeFilename strips directory components and characters that have no
// business in a storage key.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
