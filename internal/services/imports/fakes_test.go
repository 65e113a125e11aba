package imports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"
	"attendance-import-backend/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// memStore implements the batch, staged row and override stores with the
// same compare-and-swap rules as the database repositories.
type memStore struct {
	mu        sync.Mutex
	clock     time.Time
	batches   map[uuid.UUID]models.ImportBatch
	rows      map[uuid.UUID][]models.StagedRow
	overrides map[string]models.MonthlyOverride
	replaces  int
}

func newMemStore() *memStore {
	return &memStore{
		clock:     time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC),
		batches:   map[uuid.UUID]models.ImportBatch{},
		rows:      map[uuid.UUID][]models.StagedRow{},
		overrides: map[string]models.MonthlyOverride{},
	}
}

func (m *memStore) Create(_ context.Context, b *models.ImportBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	b.CreatedAt, b.UpdatedAt = m.clock, m.clock
	m.batches[b.ID] = *b
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*models.ImportBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, apperr.NotFound("batch %s not found", id)
	}
	return &b, nil
}

func (m *memStore) LatestForPeriod(_ context.Context, orgID uuid.UUID, month, year int) (*models.ImportBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.ImportBatch
	for _, b := range m.batches {
		b := b
		if b.OrganizationID == orgID && b.Month == month && b.Year == year {
			if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
				latest = &b
			}
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("no batch")
	}
	return latest, nil
}

func (m *memStore) update(id uuid.UUID, allowed []models.BatchStatus, fn func(*models.ImportBatch)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok || !containsStatus(allowed, b.Status) {
		return apperr.Conflict("batch %s is in the wrong status", id)
	}
	fn(&b)
	m.batches[id] = b
	return nil
}

var openStatuses = []models.BatchStatus{models.BatchStatusUploaded, models.BatchStatusMapped, models.BatchStatusValidated}

func (m *memStore) ReplaceSource(_ context.Context, id uuid.UUID, fileURL string) error {
	return m.update(id, openStatuses, func(b *models.ImportBatch) {
		b.FileURL = &fileURL
		b.DetectedFormat = nil
		delete(m.rows, id)
	})
}

func (m *memStore) SetDetectedFormat(_ context.Context, id uuid.UUID, format datatypes.JSON) error {
	return m.update(id, openStatuses, func(b *models.ImportBatch) { b.DetectedFormat = format })
}

func (m *memStore) SaveMapping(_ context.Context, id uuid.UUID, mapping datatypes.JSON) error {
	return m.update(id, models.SourcesFor(models.BatchStatusMapped), func(b *models.ImportBatch) {
		b.ColumnMapping = mapping
		b.Status = models.BatchStatusMapped
		delete(m.rows, id)
	})
}

func (m *memStore) Transition(_ context.Context, id uuid.UUID, next models.BatchStatus) error {
	return m.update(id, models.SourcesFor(next), func(b *models.ImportBatch) { b.Status = next })
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok || b.Status == models.BatchStatusApplied {
		return apperr.Conflict("batch %s is applied or already gone", id)
	}
	delete(m.batches, id)
	delete(m.rows, id)
	return nil
}

func (m *memStore) Replace(_ context.Context, batchID uuid.UUID, rows []models.StagedRow, _ int, next models.BatchStatus) error {
	if err := m.Transition(context.Background(), batchID, next); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[batchID] = append([]models.StagedRow(nil), rows...)
	m.replaces++
	return nil
}

func (m *memStore) ListByBatch(_ context.Context, batchID uuid.UUID) ([]models.StagedRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.StagedRow(nil), m.rows[batchID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out, nil
}

func (m *memStore) Page(ctx context.Context, batchID uuid.UUID, onlyErrors bool, offset, limit int) ([]models.StagedRow, int, error) {
	rows, _ := m.ListByBatch(ctx, batchID)
	if onlyErrors {
		var filtered []models.StagedRow
		for _, r := range rows {
			if len(r.ValidationErrors) > 0 {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	page := []models.StagedRow{}
	if offset < len(rows) {
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		page = rows[offset:end]
	}
	return page, len(rows), nil
}

func overrideKey(org, emp uuid.UUID, month, year int) string {
	return fmt.Sprintf("%s|%s|%d|%d", org, emp, month, year)
}

func (m *memStore) ApplyBatch(_ context.Context, batchID uuid.UUID, overrides []models.MonthlyOverride) error {
	if err := m.Transition(context.Background(), batchID, models.BatchStatusApplied); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range overrides {
		m.overrides[overrideKey(o.OrganizationID, o.EmployeeID, o.Month, o.Year)] = o
	}
	return nil
}

func (m *memStore) ListForPeriod(_ context.Context, orgID uuid.UUID, month, year int) ([]models.MonthlyOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MonthlyOverride
	for _, o := range m.overrides {
		if o.OrganizationID == orgID && o.Month == month && o.Year == year {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID.String() < out[j].EmployeeID.String() })
	return out, nil
}

func containsStatus(list []models.BatchStatus, s models.BatchStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

type memObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
	deleted   []string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ref := storage.Ref("test-bucket", key)
	o.objects[ref] = append([]byte(nil), body...)
	return ref, nil
}

func (o *memObjects) Get(_ context.Context, ref string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[ref]
	if !ok {
		return nil, apperr.NotFound("source file %s is gone", ref)
	}
	return data, nil
}

func (o *memObjects) Delete(_ context.Context, ref string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, ref)
	if o.deleteErr != nil {
		return o.deleteErr
	}
	delete(o.objects, ref)
	return nil
}

type memDirectory struct {
	employees []models.Employee
	calls     int
}

func (d *memDirectory) FindByReferences(_ context.Context, orgID uuid.UUID, ids []uuid.UUID, refs []string) ([]models.Employee, error) {
	d.calls++
	want := map[string]bool{}
	for _, r := range refs {
		want[r] = true
	}
	for _, id := range ids {
		want[id.String()] = true
	}
	var out []models.Employee
	for _, e := range d.employees {
		if e.OrganizationID == orgID && (want[e.ID.String()] || want[e.EmployeeCode] || want[e.ExternalCode]) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *memDirectory) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]models.Employee, error) {
	d.calls++
	var out []models.Employee
	for _, e := range d.employees {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func csvFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}
