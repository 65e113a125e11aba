package imports

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

	// Day-first layouts come before month-first ones so ambiguous dates
	// resolve day-first.
	dateLayouts = []string{
		"2006-1-2", "2006/1/2",
		"2/1/2006", "2-1-2006", "2.1.2006",
		"2/1/06", "2-1-06", "2.1.06",
		"1/2/2006", "1-2-2006",
		"1/2/06", "1-2-06",
		"2-Jan-2006", "2-Jan-06", "2 Jan 2006", "Jan 2, 2006",
	}

	clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04:05 PM", "15.04"}

	nonNumeric   = regexp.MustCompile(`[^0-9.\-]`)
	decimalComma = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	clockHours   = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)
)

const (
	excelSerialMin = 20000
	excelSerialMax = 80000
)

// parseDate normalizes a source date to YYYY-MM-DD.
func parseDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if d, err := decimal.NewFromString(s); err == nil {
		days := d.IntPart()
		if days < excelSerialMin || days > excelSerialMax {
			return "", false
		}
		return excelEpoch.AddDate(0, 0, int(days)).Format("2006-01-02"), true
	}

	// The whole value goes first so "2 Jan 2006" is not cut at its first space.
	candidates := []string{s}
	if i := strings.IndexAny(s, " T"); i > 0 {
		candidates = append(candidates, s[:i])
	}
	for _, c := range candidates {
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, c)
			if err != nil || t.Year() < 1900 || t.Year() > 2200 {
				continue
			}
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// parseClock normalizes a time of day to HH:MM. Spreadsheet fractions of a
// day are accepted. Unrecognized values are kept trimmed.
func parseClock(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = stripDate(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return t.Format("15:04")
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f < 1 {
		minutes := decimal.NewFromFloat(f).Mul(decimal.NewFromInt(1440)).Round(0).IntPart()
		return time.Date(0, 1, 1, 0, int(minutes), 0, 0, time.UTC).Format("15:04")
	}
	return s
}

// stripDate drops a leading date from a date-time value.
func stripDate(s string) string {
	for i, r := range s {
		if r != ' ' && r != 'T' {
			continue
		}
		if _, ok := parseDate(s[:i]); ok {
			return strings.TrimSpace(s[i+1:])
		}
	}
	return s
}

// parseNumber strips everything but digits, dot and minus. A lone comma
// followed by one or two digits is read as a decimal separator.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if decimalComma.MatchString(s) {
		s = strings.Replace(s, ",", ".", 1)
	}
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// parseHours also accepts H:MM durations.
func parseHours(raw string) (float64, bool) {
	if m := clockHours.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		h, _ := decimal.NewFromString(m[1])
		mins, _ := decimal.NewFromString(m[2])
		f, _ := h.Add(mins.Div(decimal.NewFromInt(60))).Round(2).Float64()
		return f, true
	}
	return parseNumber(raw)
}

// parseMinutes also accepts H:MM durations.
func parseMinutes(raw string) (float64, bool) {
	if m := clockHours.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return float64(h*60 + mins), true
	}
	return parseNumber(raw)
}

// round2 rounds half away from zero to two places.
func round2(f float64) float64 {
	out, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return out
}
