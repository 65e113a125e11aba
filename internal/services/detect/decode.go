package detect

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText converts file bytes to UTF-8 and names the source encoding.
// Undecodable input falls back to Windows-1252, which accepts every byte.
func decodeText(data []byte) (string, string) {
	label := ""
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		label = "utf-8-bom"
	case bytes.HasPrefix(data, bomUTF16LE):
		label = "utf-16le"
	case bytes.HasPrefix(data, bomUTF16BE):
		label = "utf-16be"
	}
	if label != "" {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err == nil {
			return string(out), label
		}
	}

	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("\uFFFD"))), "unknown"
	}
	return string(out), "windows-1252"
}

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// sniffDelimiter picks the candidate that splits the most leading lines into
// the same number of fields. Lines without any candidate (titles) do not vote.
func sniffDelimiter(text string) rune {
	lines := leadingLines(text, 12)
	best, bestFreq, bestMode := ',', 0, 0
	for _, d := range candidateDelimiters {
		freq := map[int]int{}
		for _, l := range lines {
			if n := strings.Count(l, string(d)); n > 0 {
				freq[n]++
			}
		}
		mode, modeFreq := 0, 0
		for n, f := range freq {
			if f > modeFreq || (f == modeFreq && n > mode) {
				mode, modeFreq = n, f
			}
		}
		if modeFreq > bestFreq || (modeFreq == bestFreq && modeFreq > 0 && mode > bestMode) {
			best, bestFreq, bestMode = d, modeFreq, mode
		}
	}
	return best
}

func leadingLines(text string, n int) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
		if len(out) == n {
			break
		}
	}
	return out
}

// parseDelimited reads every record leniently. Ragged rows are kept as-is.
func parseDelimited(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// splitNaive is the last-resort reader for text the csv reader rejects.
func splitNaive(text string, delim rune) [][]string {
	var out [][]string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		fields := strings.Split(l, string(delim))
		for i, f := range fields {
			fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
		}
		out = append(out, fields)
	}
	return out
}
