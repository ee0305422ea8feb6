package exceltext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Extractor flattens spreadsheet uploads (ledgers, debtor lists) into the
// line-per-row, semicolon-separated form the fact parser reads.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(_ context.Context, filename string, data io.Reader) (string, error) {
	book, err := excelize.OpenReader(data)
	if err != nil {
		return "", fmt.Errorf("open workbook %s: %w", filename, err)
	}
	defer book.Close()

	var b strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s of %s: %w", sheet, filename, err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, ";"))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}
