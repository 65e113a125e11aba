package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var (
	updateBatch = regexp.QuoteMeta(`UPDATE "attendance_import_batches" SET`)
	deleteRows  = regexp.QuoteMeta(`DELETE FROM "attendance_staged_rows"`)
	deleteBatch = regexp.QuoteMeta(`DELETE FROM "attendance_import_batches"`)
	insertRows  = regexp.QuoteMeta(`INSERT INTO "attendance_staged_rows"`)
)

func TestTransitionConflictWhenNoRowMatches(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectExec(updateBatch).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Transition(context.Background(), uuid.New(), models.BatchStatusValidated)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSucceeds(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectExec(updateBatch).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Transition(context.Background(), uuid.New(), models.BatchStatusMapped))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMapsMissingRowToNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "attendance_import_batches"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceWithNoRowsClearsAndTransitions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStagedRowRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(deleteRows).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(updateBatch).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Replace(context.Background(), uuid.New(), nil, 100, models.BatchStatusValidated)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRollsBackWhenStatusMoved(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStagedRowRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(deleteRows).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(updateBatch).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), uuid.New(), nil, 100, models.BatchStatusMapped)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRollsBackOnDriverError(t *testing.T) {
	db, mock := newMockDB(t)
	connReset := errors.New("connection reset by peer")
	repo := NewStagedRowRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(deleteRows).WillReturnError(connReset)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), uuid.New(), nil, 100, models.BatchStatusMapped)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.True(t, errors.Is(err, connReset))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRefusesAppliedBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(deleteBatch).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesBatchAndRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(deleteBatch).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteRows).WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), uuid.New()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReferencesSkipsQueryWithoutReferences(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmployeeRepository(db)

	out, err := repo.FindByReferences(context.Background(), uuid.New(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageFiltersErrorRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStagedRowRepository(db)
	batchID := uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "attendance_staged_rows" WHERE batch_id = \$1 AND jsonb_array_length`).
		WithArgs(batchID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT \* FROM "attendance_staged_rows" WHERE batch_id = \$1 AND jsonb_array_length.* ORDER BY row_index ASC LIMIT \$2 OFFSET \$3`).
		WithArgs(batchID, 2, 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "batch_id", "row_index"}).
			AddRow(uuid.New(), batchID, 9).
			AddRow(uuid.New(), batchID, 12))

	rows, total, err := repo.Page(context.Background(), batchID, true, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, rows, 2)
	assert.Equal(t, 12, rows[1].RowIndex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRollsBackWhenAChunkFails(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStagedRowRepository(db)
	batchID := uuid.New()
	rows := make([]models.StagedRow, 3)
	for i := range rows {
		rows[i] = models.StagedRow{ID: uuid.New(), BatchID: batchID, RowIndex: i + 1}
	}
	diskFull := errors.New("could not extend file: No space left on device")

	mock.ExpectBegin()
	mock.ExpectExec(deleteRows).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(insertRows).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(insertRows).WillReturnError(diskFull)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), batchID, rows, 2, models.BatchStatusValidated)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.True(t, errors.Is(err, diskFull))
	assert.Contains(t, err.Error(), "insert staged rows 2..2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSourceClearsStagedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(updateBatch + `.*"detected_format"=NULL`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteRows).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceSource(context.Background(), uuid.New(), "s3://bucket/imports/new.csv"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSourceOnClosedBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(updateBatch).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReplaceSource(context.Background(), uuid.New(), "s3://bucket/imports/new.csv")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMappingClearsStagedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(updateBatch).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteRows).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveMapping(context.Background(), uuid.New(), []byte(`{"employee_code":"code"}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
