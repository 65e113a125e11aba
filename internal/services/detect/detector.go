// Package detect sniffs the structure of uploaded attendance files.
package detect

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"attendance-import-backend/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Table is a fully read source file: trimmed unique headers and every
// non-blank data row after the header row. Short rows are padded to the
// header width; cells past the last header are kept.
type Table struct {
	Headers []string
	Rows    [][]string
}

type Detector struct {
	sampleRows int
}

func New(sampleRows int) *Detector {
	if sampleRows <= 0 {
		sampleRows = 8
	}
	return &Detector{sampleRows: sampleRows}
}

// Detect never fails. Input that is neither a readable workbook nor clean
// delimited text is split line by line; an empty file yields empty lists.
func (d *Detector) Detect(data []byte, filename string) models.DetectedFormat {
	rows, dialect := d.readRows(data, filename)

	out := models.DetectedFormat{Headers: []string{}, SampleRows: [][]string{}, Dialect: dialect}
	headerIdx := pickHeaderRow(rows, d.sampleRows)
	if headerIdx < 0 {
		return out
	}
	out.Dialect.HeaderRow = headerIdx
	out.Headers = uniqueHeaders(rows[headerIdx])
	for _, row := range rows[headerIdx+1:] {
		if isBlank(row) {
			continue
		}
		out.SampleRows = append(out.SampleRows, fitWidth(row, len(out.Headers)))
		if len(out.SampleRows) == d.sampleRows {
			break
		}
	}
	return out
}

// ReadAll re-reads the whole file with a previously detected dialect.
func (d *Detector) ReadAll(data []byte, dialect models.Dialect) (*Table, error) {
	var rows [][]string
	switch dialect.Kind {
	case models.DialectSpreadsheet:
		var err error
		rows, _, err = readWorkbook(data)
		if err != nil {
			return nil, fmt.Errorf("read workbook: %w", err)
		}
	default:
		text, _ := decodeText(data)
		delim := ','
		if dialect.Delimiter != "" {
			delim = []rune(dialect.Delimiter)[0]
		}
		var err error
		rows, err = parseDelimited(text, delim)
		if err != nil {
			rows = splitNaive(text, delim)
		}
	}

	if len(rows) == 0 || dialect.HeaderRow >= len(rows) {
		return &Table{Headers: []string{}}, nil
	}
	t := &Table{Headers: uniqueHeaders(rows[dialect.HeaderRow])}
	for _, row := range rows[dialect.HeaderRow+1:] {
		if isBlank(row) {
			continue
		}
		t.Rows = append(t.Rows, padRow(row, len(t.Headers)))
	}
	return t, nil
}

func (d *Detector) readRows(data []byte, filename string) ([][]string, models.Dialect) {
	if len(data) == 0 {
		return nil, models.Dialect{Kind: models.DialectDelimited, Delimiter: ",", Encoding: "utf-8"}
	}

	mt := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(filename))
	if mt.Is(xlsxMIME) || ext == ".xlsx" || ext == ".xlsm" {
		rows, sheet, err := readWorkbook(data)
		if err == nil {
			return rows, models.Dialect{Kind: models.DialectSpreadsheet, Sheet: sheet, MimeType: mt.String()}
		}
		logrus.WithError(err).WithField("filename", filename).Warn("workbook unreadable, falling back to text")
	}

	text, enc := decodeText(data)
	delim := sniffDelimiter(text)
	dialect := models.Dialect{
		Kind:      models.DialectDelimited,
		Delimiter: string(delim),
		Encoding:  enc,
		MimeType:  mt.String(),
	}
	rows, err := parseDelimited(text, delim)
	if err != nil {
		logrus.WithError(err).WithField("filename", filename).Warn("csv parse failed, splitting lines")
		rows = splitNaive(text, delim)
	}
	return rows, dialect
}

// readWorkbook returns the raw cell values of the first sheet. Date cells come
// back as Excel serial numbers.
func readWorkbook(data []byte) ([][]string, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, "", fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", err
	}
	return rows, sheet, nil
}

// pickHeaderRow returns the first row within the window with the most
// non-empty cells, or -1 when the window holds nothing.
func pickHeaderRow(rows [][]string, window int) int {
	best, bestCount := -1, 0
	for i := 0; i < len(rows) && i < window; i++ {
		n := 0
		for _, c := range rows[i] {
			if strings.TrimSpace(c) != "" {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	return best
}

// uniqueHeaders trims header cells, names empty ones by position and
// suffixes repeats so every header keys exactly one column.
func uniqueHeaders(row []string) []string {
	out := make([]string, len(row))
	seen := map[string]int{}
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			h = ColumnKey(i)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s (%d)", h, n)
		}
		out[i] = h
	}
	return out
}

func fitWidth(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	return fitWidth(row, width)
}

// ColumnKey names the cell at index i when it has no header.
func ColumnKey(i int) string {
	return fmt.Sprintf("column_%d", i+1)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
