package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Extractor handles text-native uploads (txt, csv, bank export dumps).
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(_ context.Context, filename string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary format: %s", filename)
	}

	return strings.TrimSpace(string(raw)), nil
}
