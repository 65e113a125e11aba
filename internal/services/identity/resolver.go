// Package identity resolves free-form employee references from attendance
// files to directory employees.
package identity

import (
	"context"
	"strings"
	"unicode"

	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Confidence tiers.
const (
	ConfidenceID       = 100
	ConfidenceCode     = 100
	ConfidenceExternal = 90
	ConfidenceFallback = 80
	ConfidenceNone     = 0
)

// Directory is the read side of the employee directory.
type Directory interface {
	FindByReferences(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, refs []string) ([]models.Employee, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Employee, error)
}

type Match struct {
	EmployeeID *uuid.UUID
	Confidence int
}

func (m Match) Resolved() bool { return m.EmployeeID != nil }

type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Index holds the outcome of one bulk lookup.
type Index struct {
	matches map[string]Match
}

// Resolve returns the match for a reference passed to Prepare.
func (ix *Index) Resolve(ref string) Match {
	if m, ok := ix.matches[strings.TrimSpace(ref)]; ok {
		return m
	}
	return Match{Confidence: ConfidenceNone}
}

// Prepare resolves every distinct reference at once: a single query for
// exact id and code hits, plus one directory scan only when some references
// are still unresolved.
func (r *Resolver) Prepare(ctx context.Context, orgID uuid.UUID, refs []string) (*Index, error) {
	ix := &Index{matches: map[string]Match{}}

	distinct := make([]string, 0, len(refs))
	seen := map[string]struct{}{}
	var ids []uuid.UUID
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		distinct = append(distinct, ref)
		if id, err := uuid.Parse(ref); err == nil {
			ids = append(ids, id)
		}
	}
	if len(distinct) == 0 {
		return ix, nil
	}

	found, err := r.dir.FindByReferences(ctx, orgID, ids, distinct)
	if err != nil {
		return nil, err
	}
	exact := newLookup(found)

	var pending []string
	for _, ref := range distinct {
		if m, ok := exact.exact(ref); ok {
			ix.matches[ref] = m
			continue
		}
		pending = append(pending, ref)
	}
	if len(pending) == 0 {
		return ix, nil
	}

	all, err := r.dir.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	full := newLookup(all)
	for _, ref := range pending {
		if id, ok := full.fallback(ref); ok {
			ix.matches[ref] = Match{EmployeeID: &id, Confidence: ConfidenceFallback}
		}
	}
	return ix, nil
}

type lookup struct {
	byID       map[uuid.UUID]struct{}
	byCode     map[string][]uuid.UUID
	byExternal map[string][]uuid.UUID
	byLoose    map[string][]uuid.UUID
	byPhone    map[string][]uuid.UUID
}

func newLookup(emps []models.Employee) *lookup {
	l := &lookup{
		byID:       map[uuid.UUID]struct{}{},
		byCode:     map[string][]uuid.UUID{},
		byExternal: map[string][]uuid.UUID{},
		byLoose:    map[string][]uuid.UUID{},
		byPhone:    map[string][]uuid.UUID{},
	}
	for _, e := range emps {
		l.byID[e.ID] = struct{}{}
		if c := strings.TrimSpace(e.EmployeeCode); c != "" {
			l.byCode[c] = appendUnique(l.byCode[c], e.ID)
			if k := LooseKey(c); k != "" {
				l.byLoose[k] = appendUnique(l.byLoose[k], e.ID)
			}
		}
		if c := strings.TrimSpace(e.ExternalCode); c != "" {
			l.byExternal[c] = appendUnique(l.byExternal[c], e.ID)
			if k := LooseKey(c); k != "" {
				l.byLoose[k] = appendUnique(l.byLoose[k], e.ID)
			}
		}
		if p := phoneKey(e.Phone); p != "" {
			l.byPhone[p] = appendUnique(l.byPhone[p], e.ID)
		}
	}
	return l
}

// exact applies the id, primary code and external code tiers. A reference
// shared by several employees is ambiguous and does not match.
func (l *lookup) exact(ref string) (Match, bool) {
	if id, err := uuid.Parse(ref); err == nil {
		if _, ok := l.byID[id]; ok {
			return Match{EmployeeID: &id, Confidence: ConfidenceID}, true
		}
	}
	if id, ok := single(l.byCode[ref]); ok {
		return Match{EmployeeID: &id, Confidence: ConfidenceCode}, true
	}
	if id, ok := single(l.byExternal[ref]); ok {
		return Match{EmployeeID: &id, Confidence: ConfidenceExternal}, true
	}
	return Match{}, false
}

func (l *lookup) fallback(ref string) (uuid.UUID, bool) {
	if k := LooseKey(ref); k != "" {
		if id, ok := single(l.byLoose[k]); ok {
			return id, true
		}
	}
	if p := phoneKey(ref); p != "" {
		return single(l.byPhone[p])
	}
	return uuid.Nil, false
}

// LooseKey folds case, accents and punctuation so "emp-001", "EMP 001" and
// "Emp001" compare equal.
func LooseKey(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// phoneKey keeps the last ten digits of anything that looks like a phone number.
func phoneKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if unicode.IsLetter(r) {
			return ""
		}
	}
	d := b.String()
	if len(d) < 7 {
		return ""
	}
	if len(d) > 10 {
		d = d[len(d)-10:]
	}
	return d
}

func single(ids []uuid.UUID) (uuid.UUID, bool) {
	if len(ids) != 1 {
		return uuid.Nil, false
	}
	return ids[0], true
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
