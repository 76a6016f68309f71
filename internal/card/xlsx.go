package card

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ImportConfig controls spreadsheet deck conversion.
type ImportConfig struct {
	SheetName  string // sheet to read; first sheet when empty
	SkipHeader bool   // skip the first row
}

// ConvertXLSX converts a spreadsheet deck into the TSV corpus format.
//
// Column A holds the sentence, column B the meanings separated by "|".
// Rows with an empty sentence are skipped. Returns the number of cards
// written.
//
// Deck authors tend to maintain cards in a spreadsheet; this keeps the
// runtime corpus format a single dependency-free TSV file.
func ConvertXLSX(src, dst string, cfg ImportConfig) (int, error) {
	f, err := excelize.OpenFile(src)
	if err != nil {
		return 0, fmt.Errorf("open deck: %w", err)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var b strings.Builder
	count := 0
	for i, row := range rows {
		if i == 0 && cfg.SkipHeader {
			continue
		}
		if len(row) < 2 {
			continue
		}
		sentence := strings.TrimSpace(row[0])
		meanings := strings.TrimSpace(row[1])
		if sentence == "" || meanings == "" {
			continue
		}
		if strings.ContainsRune(sentence, '\t') || strings.ContainsRune(meanings, '\t') {
			return 0, fmt.Errorf("row %d: tab characters are not allowed in deck cells", i+1)
		}
		b.WriteString(sentence)
		b.WriteByte('\t')
		b.WriteString(meanings)
		b.WriteByte('\n')
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("deck %q has no usable rows", src)
	}

	if err := os.WriteFile(dst, []byte(b.String()), 0o644); err != nil {
		return 0, fmt.Errorf("write corpus: %w", err)
	}
	return count, nil
}
