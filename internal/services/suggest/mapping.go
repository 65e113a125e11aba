// Package suggest proposes column mappings and advisory row warnings. Its
// output is never applied without an explicit save-mapping call and never
// affects hard validation.
package suggest

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/metrics"
	"attendance-import-backend/internal/models"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"
)

// synonyms are compared against headers reduced to lowercase alphanumerics.
var synonyms = map[models.CanonicalField][]string{
	models.FieldUserID:        {"userid", "employeeid", "empid", "staffid", "uid"},
	models.FieldEmployeeCode:  {"employeecode", "empcode", "code", "empno", "employeeno", "employeenumber", "staffcode", "biometricid", "enrollno", "badgeno", "cardno"},
	models.FieldDate:          {"date", "attendancedate", "workdate", "punchdate", "day"},
	models.FieldCheckIn:       {"checkin", "intime", "punchin", "timein", "firstin", "in"},
	models.FieldCheckOut:      {"checkout", "outtime", "punchout", "timeout", "lastout", "out"},
	models.FieldHours:         {"hours", "workedhours", "hoursworked", "totalhours", "workhours", "duration"},
	models.FieldOvertimeHours: {"overtime", "overtimehours", "extrahours"},
	models.FieldRemarks:       {"remarks", "remark", "notes", "note", "comments", "comment"},
	models.FieldShiftCode:     {"shift", "shiftcode", "shiftname"},
	models.FieldBreakMinutes:  {"breakminutes", "breakmins", "break", "breaktime"},
	models.FieldPayableDays:   {"payabledays", "paiddays", "payable"},
	models.FieldPresentDays:   {"presentdays", "dayspresent", "present", "daysworked", "workingdays"},
	models.FieldLOPDays:       {"lopdays", "lop", "lossofpay", "unpaiddays", "absentdays"},
	models.FieldPaidLeaves:    {"paidleaves", "paidleave", "leaves", "pl"},
	models.FieldOTHours:       {"othours", "ot", "totalot", "overtimetotal"},
	models.FieldLateCount:     {"latecount", "late", "lates", "latemarks"},
}

// Oracle is an optional external source of mapping hints and plausibility
// warnings.
type Oracle interface {
	SuggestMapping(ctx context.Context, headers []string, sample [][]string) (models.ColumnMapping, error)
	Review(ctx context.Context, period Period, rows []ReviewRow) ([]apperr.Issue, error)
}

type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// ReviewRow is the compact row shape sent out for review.
type ReviewRow struct {
	RowIndex   int                     `json:"row_index"`
	Normalized models.NormalizedFields `json:"normalized"`
}

type Suggestion struct {
	Mapping  models.ColumnMapping `json:"mapping"`
	Unmapped []string             `json:"unmapped_headers"`
	Source   string               `json:"source"`
}

type Suggester struct {
	oracle Oracle
}

// NewSuggester accepts a nil oracle; suggestions are then purely heuristic.
func NewSuggester(oracle Oracle) *Suggester {
	return &Suggester{oracle: oracle}
}

// Suggest maps headers heuristically and fills the gaps from the oracle.
func (s *Suggester) Suggest(ctx context.Context, format *models.DetectedFormat) Suggestion {
	mapping := Heuristic(format.Headers)
	source := "heuristic"

	if s.oracle != nil && len(format.Headers) > 0 {
		hints, err := s.oracle.SuggestMapping(ctx, format.Headers, format.SampleRows)
		metrics.RecordOracleCall("mapping", err == nil)
		if err != nil {
			logrus.WithError(err).Warn("mapping oracle unavailable")
		} else if mergeHints(mapping, hints, format.Headers) > 0 {
			source = "heuristic+oracle"
		}
	}

	used := map[string]bool{}
	for _, h := range mapping {
		used[h] = true
	}
	unmapped := []string{}
	for _, h := range format.Headers {
		if !used[h] {
			unmapped = append(unmapped, h)
		}
	}
	return Suggestion{Mapping: mapping, Unmapped: unmapped, Source: source}
}

// Warnings asks the oracle for advisory findings. Any failure degrades to no
// warnings.
func (s *Suggester) Warnings(ctx context.Context, period Period, rows []ReviewRow) []apperr.Issue {
	if s.oracle == nil || len(rows) == 0 {
		return []apperr.Issue{}
	}
	started := time.Now()
	issues, err := s.oracle.Review(ctx, period, rows)
	metrics.RecordOracleCall("review", err == nil)
	if err != nil {
		logrus.WithError(err).WithField("elapsed", time.Since(started).String()).Warn("review oracle unavailable")
		return []apperr.Issue{}
	}
	if issues == nil {
		issues = []apperr.Issue{}
	}
	return issues
}

// Heuristic maps headers by synonym: exact matches first, then the closest
// header containing a synonym's letters in order for fields still unmapped.
// Synonyms shorter than four letters only match exactly. Each header is used
// at most once.
func Heuristic(headers []string) models.ColumnMapping {
	mapping := models.ColumnMapping{}
	used := make([]bool, len(headers))
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = headerKey(h)
	}

	for _, f := range models.CanonicalFields {
		for _, syn := range synonyms[f] {
			if i := indexOf(keys, used, syn); i >= 0 {
				mapping[f] = headers[i]
				used[i] = true
				break
			}
		}
	}

	for _, f := range models.CanonicalFields {
		if _, ok := mapping[f]; ok {
			continue
		}
		var free []string
		var freeIdx []int
		for i, h := range headers {
			if !used[i] {
				free = append(free, h)
				freeIdx = append(freeIdx, i)
			}
		}
		if len(free) == 0 {
			break
		}
		best, bestDist := -1, 1<<30
		for _, syn := range synonyms[f] {
			if len(syn) < 4 {
				continue
			}
			ranks := fuzzy.RankFindNormalizedFold(syn, free)
			sort.Sort(ranks)
			if len(ranks) > 0 && ranks[0].Distance < bestDist {
				best, bestDist = freeIdx[ranks[0].OriginalIndex], ranks[0].Distance
			}
		}
		if best >= 0 {
			mapping[f] = headers[best]
			used[best] = true
		}
	}
	return mapping
}

// mergeHints adds oracle hints for fields the heuristic left empty. Hints
// naming unknown fields or headers, or reusing a header, are dropped.
func mergeHints(mapping, hints models.ColumnMapping, headers []string) int {
	known := map[string]bool{}
	for _, h := range headers {
		known[h] = true
	}
	used := map[string]bool{}
	for _, h := range mapping {
		used[h] = true
	}
	added := 0
	for _, f := range models.CanonicalFields {
		h := strings.TrimSpace(hints[f])
		if h == "" || !known[h] || used[h] {
			continue
		}
		if _, taken := mapping[f]; taken {
			continue
		}
		mapping[f] = h
		used[h] = true
		added++
	}
	return added
}

func headerKey(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func indexOf(keys []string, used []bool, key string) int {
	for i, k := range keys {
		if !used[i] && k == key {
			return i
		}
	}
	return -1
}
