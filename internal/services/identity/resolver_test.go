package identity

import (
	"context"
	"errors"
	"testing"

	"attendance-import-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type directoryStub struct {
	employees []models.Employee
	findCalls int
	listCalls int
	err       error
}

func (d *directoryStub) FindByReferences(_ context.Context, orgID uuid.UUID, ids []uuid.UUID, refs []string) ([]models.Employee, error) {
	d.findCalls++
	if d.err != nil {
		return nil, d.err
	}
	idSet := map[uuid.UUID]bool{}
	for _, id := range ids {
		idSet[id] = true
	}
	refSet := map[string]bool{}
	for _, r := range refs {
		refSet[r] = true
	}
	var out []models.Employee
	for _, e := range d.employees {
		if e.OrganizationID != orgID {
			continue
		}
		if idSet[e.ID] || refSet[e.EmployeeCode] || refSet[e.ExternalCode] || refSet[e.Phone] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *directoryStub) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]models.Employee, error) {
	d.listCalls++
	var out []models.Employee
	for _, e := range d.employees {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestResolveTiers(t *testing.T) {
	org := uuid.New()
	alice := models.Employee{ID: uuid.New(), OrganizationID: org, EmployeeCode: "EMP-001", ExternalCode: "BIO17", Phone: "+91 98765 43210"}
	bob := models.Employee{ID: uuid.New(), OrganizationID: org, EmployeeCode: "EMP-002"}
	stranger := models.Employee{ID: uuid.New(), OrganizationID: uuid.New(), EmployeeCode: "EMP-009"}
	dir := &directoryStub{employees: []models.Employee{alice, bob, stranger}}

	ix, err := NewResolver(dir).Prepare(context.Background(), org, []string{
		alice.ID.String(), "EMP-001", "BIO17", "emp 002", "9876543210", "EMP-009", uuid.NewString(), "", "EMP-001",
	})
	require.NoError(t, err)

	cases := []struct {
		ref        string
		want       *uuid.UUID
		confidence int
	}{
		{alice.ID.String(), &alice.ID, ConfidenceID},
		{"EMP-001", &alice.ID, ConfidenceCode},
		{" EMP-001 ", &alice.ID, ConfidenceCode},
		{"BIO17", &alice.ID, ConfidenceExternal},
		{"emp 002", &bob.ID, ConfidenceFallback},
		{"9876543210", &alice.ID, ConfidenceFallback},
		{"EMP-009", nil, ConfidenceNone},
		{"missing", nil, ConfidenceNone},
	}
	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			m := ix.Resolve(tc.ref)
			assert.Equal(t, tc.confidence, m.Confidence)
			if tc.want == nil {
				assert.False(t, m.Resolved())
				return
			}
			require.True(t, m.Resolved())
			assert.Equal(t, *tc.want, *m.EmployeeID)
		})
	}

	assert.Equal(t, 1, dir.findCalls)
	assert.Equal(t, 1, dir.listCalls)
}

func TestPrepareSkipsDirectoryScanWhenAllExact(t *testing.T) {
	org := uuid.New()
	e := models.Employee{ID: uuid.New(), OrganizationID: org, EmployeeCode: "E1"}
	dir := &directoryStub{employees: []models.Employee{e}}

	ix, err := NewResolver(dir).Prepare(context.Background(), org, []string{"E1", "E1", "E1"})
	require.NoError(t, err)
	assert.True(t, ix.Resolve("E1").Resolved())
	assert.Equal(t, 1, dir.findCalls)
	assert.Zero(t, dir.listCalls)
}

func TestAmbiguousReferenceDoesNotMatch(t *testing.T) {
	org := uuid.New()
	dir := &directoryStub{employees: []models.Employee{
		{ID: uuid.New(), OrganizationID: org, EmployeeCode: "A-1"},
		{ID: uuid.New(), OrganizationID: org, ExternalCode: "a1"},
	}}

	ix, err := NewResolver(dir).Prepare(context.Background(), org, []string{"A 1"})
	require.NoError(t, err)
	assert.False(t, ix.Resolve("A 1").Resolved())
}

func TestPrepareSurfacesDirectoryFailure(t *testing.T) {
	dir := &directoryStub{err: errors.New("directory down")}
	_, err := NewResolver(dir).Prepare(context.Background(), uuid.New(), []string{"E1"})
	assert.Error(t, err)
}

func TestLooseKey(t *testing.T) {
	assert.Equal(t, "emp001", LooseKey("EMP-001"))
	assert.Equal(t, "emp001", LooseKey(" emp 001 "))
	assert.Equal(t, "jose", LooseKey("José"))
	assert.Equal(t, "", LooseKey("--"))
}
