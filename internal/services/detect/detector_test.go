package detect

import (
	"fmt"
	"strings"
	"testing"

	"attendance-import-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
)

func TestDetectCommaSeparated(t *testing.T) {
	data := []byte("Employee Code,Date,Hours\nE1,2025-03-01,8\nE2,2025-03-01,7.5\n")

	got := New(8).Detect(data, "march.csv")

	assert.Equal(t, []string{"Employee Code", "Date", "Hours"}, got.Headers)
	assert.Equal(t, [][]string{{"E1", "2025-03-01", "8"}, {"E2", "2025-03-01", "7.5"}}, got.SampleRows)
	assert.Equal(t, models.DialectDelimited, got.Dialect.Kind)
	assert.Equal(t, ",", got.Dialect.Delimiter)
	assert.Equal(t, "utf-8", got.Dialect.Encoding)
	assert.Equal(t, 0, got.Dialect.HeaderRow)
}

func TestDetectSkipsTitleLines(t *testing.T) {
	data := []byte("Biometric export March 2025\ncode;date;in;out\nE1;01/03/2025;09:00;18:00\n")

	got := New(8).Detect(data, "device.txt")

	assert.Equal(t, ";", got.Dialect.Delimiter)
	assert.Equal(t, 1, got.Dialect.HeaderRow)
	assert.Equal(t, []string{"code", "date", "in", "out"}, got.Headers)
	require.Len(t, got.SampleRows, 1)
	assert.Equal(t, "09:00", got.SampleRows[0][2])
}

func TestDetectEmptyFile(t *testing.T) {
	got := New(8).Detect(nil, "empty.csv")
	assert.Empty(t, got.Headers)
	assert.NotNil(t, got.Headers)
	assert.Empty(t, got.SampleRows)
}

func TestDetectLimitsSample(t *testing.T) {
	var b strings.Builder
	b.WriteString("code,date\n")
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&b, "E%d,2025-03-%02d\n", i, i)
	}

	got := New(8).Detect([]byte(b.String()), "big.csv")
	assert.Len(t, got.SampleRows, 8)
}

func TestDetectWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Emp Code", "Date", "Hours"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"E1", 45721, 8}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got := New(8).Detect(buf.Bytes(), "march.xlsx")

	assert.Equal(t, models.DialectSpreadsheet, got.Dialect.Kind)
	assert.Equal(t, "Sheet1", got.Dialect.Sheet)
	assert.Equal(t, []string{"Emp Code", "Date", "Hours"}, got.Headers)
	assert.Equal(t, [][]string{{"E1", "45721", "8"}}, got.SampleRows)
}

func TestDetectTextNamedAsWorkbook(t *testing.T) {
	got := New(8).Detect([]byte("code,hours\nE1,8\n"), "not-really.xlsx")
	assert.Equal(t, models.DialectDelimited, got.Dialect.Kind)
	assert.Equal(t, []string{"code", "hours"}, got.Headers)
}

func TestDetectLatin1(t *testing.T) {
	got := New(8).Detect([]byte("code,name\nE1,Jos\xe9\n"), "legacy.csv")
	assert.Equal(t, "windows-1252", got.Dialect.Encoding)
	assert.Equal(t, [][]string{{"E1", "José"}}, got.SampleRows)
}

func TestDetectUTF16WithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("code\thours\nE1\t8\n"))
	require.NoError(t, err)

	got := New(8).Detect(data, "device.tsv")
	assert.Equal(t, "utf-16le", got.Dialect.Encoding)
	assert.Equal(t, "\t", got.Dialect.Delimiter)
	assert.Equal(t, []string{"code", "hours"}, got.Headers)
}

func TestUniqueHeaders(t *testing.T) {
	assert.Equal(t, []string{"date", "date (2)", "column_3"}, uniqueHeaders([]string{" date", "date ", ""}))
}

func TestReadAllDropsBlankRows(t *testing.T) {
	data := []byte("code,date\nE1,2025-03-01\n,\nE2,2025-03-02\n\nE3\n")
	d := New(8)
	format := d.Detect(data, "a.csv")

	table, err := d.ReadAll(data, format.Dialect)
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "date"}, table.Headers)
	assert.Equal(t, [][]string{{"E1", "2025-03-01"}, {"E2", "2025-03-02"}, {"E3", ""}}, table.Rows)
}

func TestReadAllKeepsCellsPastHeaders(t *testing.T) {
	data := []byte("code,date,note\nE1,2025-03-01,,nightshift\nE2\n")
	d := New(8)
	format := d.Detect(data, "a.csv")
	assert.Equal(t, []string{"code", "date", "note"}, format.Headers)
	assert.Equal(t, [][]string{{"E1", "2025-03-01", ""}, {"E2", "", ""}}, format.SampleRows)

	table, err := d.ReadAll(data, format.Dialect)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"E1", "2025-03-01", "", "nightshift"}, {"E2", "", ""}}, table.Rows)
}

func TestReadAllWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Report"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"code", "payable"}))
	for i := 3; i < 15; i++ {
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i), &[]interface{}{fmt.Sprintf("E%d", i), 20}))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	d := New(8)
	format := d.Detect(buf.Bytes(), "report.xlsx")
	assert.Equal(t, 1, format.Dialect.HeaderRow)

	table, err := d.ReadAll(buf.Bytes(), format.Dialect)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 12)
}
