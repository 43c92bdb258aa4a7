package school

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/gateway"
)

// SpreadsheetContentType is the content type of .xlsx exports.
const SpreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SaveExport writes blob into dir. The server-provided filename wins over
// fallback; only its base name is used.
func SaveExport(blob *gateway.BlobData, dir, fallback string) (string, error) {
	name := filepath.Base(blob.Filename)
	if blob.Filename == "" || name == "." || name == string(filepath.Separator) {
		name = fallback
	}
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create export directory", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, blob.Data, 0644); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	return path, nil
}

// IsSpreadsheet reports whether blob looks like an .xlsx workbook.
func IsSpreadsheet(blob *gateway.BlobData) bool {
	if strings.HasPrefix(blob.ContentType, SpreadsheetContentType) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(blob.Filename), ".xlsx")
}

// SheetSummary describes one worksheet of an exported workbook.
type SheetSummary struct {
	Name   string   `json:"name"`
	Rows   int      `json:"rows"`
	Header []string `json:"header,omitempty"`
}

// SummarizeWorkbook lists the sheets of an .xlsx file with their data row
// counts (header excluded).
func SummarizeWorkbook(data []byte) ([]SheetSummary, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayDecode, "export is not a valid workbook", err)
	}
	defer f.Close()

	var out []SheetSummary
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeGatewayDecode, "failed to read sheet "+name, err)
		}
		summary := SheetSummary{Name: name}
		if len(rows) > 0 {
			summary.Header = rows[0]
			summary.Rows = len(rows) - 1
		}
		out = append(out, summary)
	}
	return out, nil
}
