// Package imports runs the attendance import lifecycle: create, upload,
// detect, map, stage, validate, apply or reject, and discard.
package imports

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/config"
	"attendance-import-backend/internal/lock"
	"attendance-import-backend/internal/metrics"
	"attendance-import-backend/internal/models"
	"attendance-import-backend/internal/services/detect"
	"attendance-import-backend/internal/services/identity"
	"attendance-import-backend/internal/services/suggest"
	"attendance-import-backend/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Batches   BatchStore
	Rows      StagedRowStore
	Overrides OverrideStore
	Objects   storage.ObjectStore
	Directory identity.Directory
	Locks     lock.Locker
	Suggester *suggest.Suggester
	Options   config.ImportOptions
	KeyPrefix string
	Now       func() time.Time
}

type Service struct {
	batches   BatchStore
	rows      StagedRowStore
	overrides OverrideStore
	objects   storage.ObjectStore
	resolver  *identity.Resolver
	locks     lock.Locker
	detector  *detect.Detector
	suggester *suggest.Suggester
	opts      config.ImportOptions
	keyPrefix string
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.Locks == nil {
		d.Locks = lock.NewLocal()
	}
	if d.Suggester == nil {
		d.Suggester = suggest.NewSuggester(nil)
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Options.StageChunkSize <= 0 {
		d.Options.StageChunkSize = 1000
	}
	return &Service{
		batches:   d.Batches,
		rows:      d.Rows,
		overrides: d.Overrides,
		objects:   d.Objects,
		resolver:  identity.NewResolver(d.Directory),
		locks:     d.Locks,
		detector:  detect.New(d.Options.SampleRows),
		suggester: d.Suggester,
		opts:      d.Options,
		keyPrefix: d.KeyPrefix,
		now:       d.Now,
	}
}

type CreateBatchInput struct {
	OrganizationID uuid.UUID
	Month          int
	Year           int
	Source         string
	CreatedBy      string
}

func (s *Service) CreateBatch(ctx context.Context, in CreateBatchInput) (batch *models.ImportBatch, err error) {
	defer observe("create_batch", time.Now(), &err)

	if in.OrganizationID == uuid.Nil {
		return nil, apperr.Input("organization_id is required")
	}
	if in.Month < 1 || in.Month > 12 {
		return nil, apperr.Input("month must be between 1 and 12")
	}
	if in.Year < 2000 || in.Year > 2100 {
		return nil, apperr.Input("year must be between 2000 and 2100")
	}
	source, perr := models.ParseSourceKind(in.Source)
	if perr != nil {
		return nil, apperr.Input("%v", perr)
	}

	batch = &models.ImportBatch{
		ID:             uuid.New(),
		OrganizationID: in.OrganizationID,
		Month:          in.Month,
		Year:           in.Year,
		Source:         source,
		Status:         models.BatchStatusUploaded,
		CreatedBy:      in.CreatedBy,
	}
	if err = s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}
	s.log(batch).Info("import batch created")
	return batch, nil
}

// Upload stores the source file under the batch's period path and attaches
// it. Staged rows and the detected format of a previous file are dropped.
func (s *Service) Upload(ctx context.Context, batchID uuid.UUID, filename, contentType string, data []byte) (ref string, err error) {
	defer observe("upload_file", time.Now(), &err)

	if s.opts.MaxUploadBytes > 0 && int64(len(data)) > s.opts.MaxUploadBytes {
		return "", apperr.Input("file exceeds %d bytes", s.opts.MaxUploadBytes)
	}
	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return "", err
	}
	defer release()

	batch, err := s.openBatch(ctx, batchID)
	if err != nil {
		return "", err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	key := storage.ObjectKey(s.keyPrefix, batch.OrganizationID, batch.Year, batch.Month, batch.ID, filename)
	if ref, err = s.objects.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	if err = s.batches.ReplaceSource(ctx, batch.ID, ref); err != nil {
		return "", err
	}
	if batch.FileURL != nil && *batch.FileURL != ref {
		s.deleteObject(ctx, batch, *batch.FileURL)
	}
	s.log(batch).WithFields(logrus.Fields{"file_url": ref, "bytes": len(data)}).Info("source file uploaded")
	return ref, nil
}

// AttachFile records a file that was stored out of band. The status does not
// change, but the batch must be detected and staged again.
func (s *Service) AttachFile(ctx context.Context, batchID uuid.UUID, ref string) (err error) {
	defer observe("attach_file", time.Now(), &err)

	if _, _, perr := storage.ParseRef(ref); perr != nil {
		return apperr.Input("%v", perr)
	}
	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return err
	}
	defer release()

	if _, err = s.openBatch(ctx, batchID); err != nil {
		return err
	}
	return s.batches.ReplaceSource(ctx, batchID, ref)
}

// Detect sniffs the uploaded file and stores the result on the batch. It
// never fails on file content; only a missing file or store errors fail.
func (s *Service) Detect(ctx context.Context, batchID uuid.UUID) (format *models.DetectedFormat, err error) {
	defer observe("detect_format", time.Now(), &err)

	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	batch, err := s.openBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	data, filename, err := s.fetchSource(ctx, batch)
	if err != nil {
		return nil, err
	}

	detected := s.detector.Detect(data, filename)
	raw, err := json.Marshal(detected)
	if err != nil {
		return nil, apperr.Upstream("encode detected format", err)
	}
	if err = s.batches.SetDetectedFormat(ctx, batch.ID, raw); err != nil {
		return nil, err
	}
	s.log(batch).WithFields(logrus.Fields{
		"headers": len(detected.Headers),
		"dialect": detected.Dialect.Kind,
	}).Info("format detected")
	return &detected, nil
}

func (s *Service) SuggestMapping(ctx context.Context, batchID uuid.UUID) (out *suggest.Suggestion, err error) {
	defer observe("suggest_mapping", time.Now(), &err)

	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	format, err := detectedFormat(batch)
	if err != nil {
		return nil, err
	}
	suggestion := s.suggester.Suggest(ctx, format)
	return &suggestion, nil
}

// SaveMapping validates the mapping against the detected headers and moves
// the batch to mapped. Rows staged under an earlier mapping are dropped.
func (s *Service) SaveMapping(ctx context.Context, batchID uuid.UUID, mapping models.ColumnMapping) (batch *models.ImportBatch, err error) {
	defer observe("save_mapping", time.Now(), &err)

	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	batch, err = s.openBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	format, err := detectedFormat(batch)
	if err != nil {
		return nil, err
	}
	if verr := mapping.Validate(format.Headers); verr != nil {
		return nil, apperr.Input("%v", verr)
	}

	clean := models.ColumnMapping{}
	for f, h := range mapping {
		if h = strings.TrimSpace(h); h != "" {
			clean[f] = h
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, apperr.Upstream("encode column mapping", err)
	}
	if err = s.batches.SaveMapping(ctx, batch.ID, raw); err != nil {
		return nil, err
	}
	s.log(batch).WithField("fields", len(clean)).Info("column mapping saved")
	return s.batches.Get(ctx, batch.ID)
}

// Stage replaces the batch's staged rows with a fresh parse of the source
// file. The batch ends validated when no row has errors, mapped otherwise.
func (s *Service) Stage(ctx context.Context, batchID uuid.UUID) (summary *models.StageSummary, err error) {
	defer observe("stage", time.Now(), &err)

	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.FileURL == nil || *batch.FileURL == "" {
		return nil, apperr.Input("batch has no uploaded file")
	}
	format, err := detectedFormat(batch)
	if err != nil {
		return nil, err
	}
	if len(format.Headers) == 0 {
		return nil, apperr.Input("detected format has no headers")
	}
	mapping, err := batch.Mapping()
	if err != nil {
		return nil, apperr.Upstream("decode column mapping", err)
	}
	if len(mapping) == 0 {
		return nil, apperr.Input("batch has no column mapping")
	}
	if !batch.Status.CanTransitionTo(models.BatchStatusValidated) {
		return nil, apperr.Conflict("batch in status %s cannot be staged", batch.Status)
	}

	data, _, err := s.fetchSource(ctx, batch)
	if err != nil {
		return nil, err
	}
	table, err := s.detector.ReadAll(data, format.Dialect)
	if err != nil {
		return nil, apperr.Input("source file no longer readable: %v", err)
	}
	if verr := mapping.Validate(table.Headers); verr != nil {
		return nil, apperr.Input("mapping does not match the file: %v", verr)
	}

	raws := rawMaps(table)
	refs := make([]string, 0, len(raws))
	for _, raw := range raws {
		refs = append(refs, reference(mapping, raw))
	}
	ix, err := s.resolver.Prepare(ctx, batch.OrganizationID, refs)
	if err != nil {
		return nil, err
	}

	rows := buildRows(batch, mapping, raws, ix)
	sum := summarize(rows)
	next := models.BatchStatusMapped
	if sum.Errors == 0 {
		next = models.BatchStatusValidated
	}
	if err = s.rows.Replace(ctx, batch.ID, rows, s.opts.StageChunkSize, next); err != nil {
		return nil, err
	}

	metrics.RecordStagedRows(sum.WillApplyRows, sum.Duplicates, sum.Errors)
	s.log(batch).WithFields(logrus.Fields{
		"total_rows": sum.TotalRows,
		"errors":     sum.Errors,
		"duplicates": sum.Duplicates,
		"status":     next,
	}).Info("batch staged")
	return &sum, nil
}

// Validate recomputes hard errors and advisory warnings. Rows and overrides
// are never touched; only the batch status moves.
func (s *Service) Validate(ctx context.Context, batchID uuid.UUID) (result *ValidationResult, err error) {
	defer observe("validate", time.Now(), &err)

	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !batch.Status.CanTransitionTo(models.BatchStatusValidated) {
		return nil, apperr.Conflict("batch in status %s cannot be validated", batch.Status)
	}
	rows, err := s.rows.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	issues := hardErrors(batch, rows)
	warnings := s.suggester.Warnings(ctx, suggest.Period{Month: batch.Month, Year: batch.Year}, reviewRows(rows))
	next := models.BatchStatusMapped
	if len(issues) == 0 {
		next = models.BatchStatusValidated
	}
	if err = s.batches.Transition(ctx, batch.ID, next); err != nil {
		return nil, err
	}

	s.log(batch).WithFields(logrus.Fields{"errors": len(issues), "warnings": len(warnings), "status": next}).Info("batch validated")
	return &ValidationResult{Errors: issues, Warnings: warnings, Status: next}, nil
}

type ApplyResult struct {
	Applied int `json:"applied"`
}

// Apply writes one monthly override per clean resolved employee and marks
// the batch applied. Any hard error blocks the whole apply, and only a
// validated batch can be applied.
func (s *Service) Apply(ctx context.Context, batchID uuid.UUID, approverID string) (result *ApplyResult, err error) {
	defer observe("apply", time.Now(), &err)

	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status.Terminal() {
		return nil, apperr.Conflict("batch in status %s cannot be applied", batch.Status)
	}
	rows, err := s.rows.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	if issues := hardErrors(batch, rows); len(issues) > 0 {
		return nil, apperr.Validation("batch has blocking validation errors", issues)
	}
	if !batch.Status.CanTransitionTo(models.BatchStatusApplied) {
		return nil, apperr.Conflict("batch in status %s must be re-staged before apply", batch.Status)
	}

	approver := strings.TrimSpace(approverID)
	if approver == "" {
		approver = batch.CreatedBy
	}
	if approver == "" {
		approver = "system"
	}
	overrides := buildOverrides(batch, rows, approver, s.now())
	if err = s.overrides.ApplyBatch(ctx, batch.ID, overrides); err != nil {
		return nil, err
	}

	metrics.RecordOverrides(len(overrides))
	s.log(batch).WithFields(logrus.Fields{"applied": len(overrides), "approved_by": approver}).Info("batch applied")
	return &ApplyResult{Applied: len(overrides)}, nil
}

// Reject closes a mapped or validated batch without writing overrides.
func (s *Service) Reject(ctx context.Context, batchID uuid.UUID) (batch *models.ImportBatch, err error) {
	defer observe("reject", time.Now(), &err)

	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	if err = s.batches.Transition(ctx, batchID, models.BatchStatusRejected); err != nil {
		return nil, err
	}
	batch, err = s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	s.log(batch).Info("batch rejected")
	return batch, nil
}

// Discard deletes the batch and its staged rows, then makes a best-effort
// attempt to delete the source file. Applied batches cannot be discarded.
func (s *Service) Discard(ctx context.Context, batchID uuid.UUID) (err error) {
	defer observe("discard", time.Now(), &err)

	release, err := s.locks.Acquire(ctx, batchID.String())
	if err != nil {
		return err
	}
	defer release()

	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status == models.BatchStatusApplied {
		return apperr.Conflict("applied batch %s cannot be discarded", batch.ID)
	}
	if err = s.batches.Delete(ctx, batch.ID); err != nil {
		return err
	}
	if batch.FileURL != nil && *batch.FileURL != "" {
		s.deleteObject(ctx, batch, *batch.FileURL)
	}
	s.log(batch).Info("batch discarded")
	return nil
}

// Summarize recomputes the stage summary from the stored rows. Read-only.
func (s *Service) Summarize(ctx context.Context, batchID uuid.UUID) (*models.StageSummary, error) {
	if _, err := s.batches.Get(ctx, batchID); err != nil {
		return nil, err
	}
	rows, err := s.rows.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	sum := summarize(rows)
	return &sum, nil
}

type BatchView struct {
	Batch  *models.ImportBatch    `json:"batch"`
	Detect *models.DetectedFormat `json:"detect"`
	Stage  *models.StageSummary   `json:"stage"`
}

// Status returns the latest batch of a period with its detection result and
// stage summary. Stage is nil until the batch has staged rows.
func (s *Service) Status(ctx context.Context, orgID uuid.UUID, month, year int) (*BatchView, error) {
	if orgID == uuid.Nil {
		return nil, apperr.Input("organization_id is required")
	}
	if month < 1 || month > 12 {
		return nil, apperr.Input("month must be between 1 and 12")
	}
	batch, err := s.batches.LatestForPeriod(ctx, orgID, month, year)
	if err != nil {
		return nil, err
	}
	view := &BatchView{Batch: batch}
	if view.Detect, err = batch.Format(); err != nil {
		return nil, apperr.Upstream("decode detected format", err)
	}
	rows, err := s.rows.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		sum := summarize(rows)
		view.Stage = &sum
	}
	return view, nil
}

type RowPage struct {
	Rows  []models.StagedRow `json:"rows"`
	Total int                `json:"total"`
}

// ListRows pages through staged rows in source order, optionally only those
// with validation errors.
func (s *Service) ListRows(ctx context.Context, batchID uuid.UUID, onlyErrors bool, offset, limit int) (*RowPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if _, err := s.batches.Get(ctx, batchID); err != nil {
		return nil, err
	}
	rows, total, err := s.rows.Page(ctx, batchID, onlyErrors, offset, limit)
	if err != nil {
		return nil, err
	}
	return &RowPage{Rows: rows, Total: total}, nil
}

// Overrides lists the monthly overrides of a period.
func (s *Service) Overrides(ctx context.Context, orgID uuid.UUID, month, year int) ([]models.MonthlyOverride, error) {
	return s.overrides.ListForPeriod(ctx, orgID, month, year)
}

// openBatch loads a batch that can still be changed.
func (s *Service) openBatch(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error) {
	batch, err := s.batches.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.Status.Terminal() {
		return nil, apperr.Conflict("batch %s is %s", batch.ID, batch.Status)
	}
	return batch, nil
}

func (s *Service) fetchSource(ctx context.Context, batch *models.ImportBatch) ([]byte, string, error) {
	if batch.FileURL == nil || *batch.FileURL == "" {
		return nil, "", apperr.Input("batch has no uploaded file")
	}
	data, err := s.objects.Get(ctx, *batch.FileURL)
	if err != nil {
		return nil, "", err
	}
	return data, path.Base(*batch.FileURL), nil
}

func (s *Service) deleteObject(ctx context.Context, batch *models.ImportBatch, ref string) {
	if err := s.objects.Delete(ctx, ref); err != nil {
		s.log(batch).WithError(err).WithField("file_url", ref).Warn("failed to delete source file")
	}
}

func (s *Service) log(batch *models.ImportBatch) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"batch_id":        batch.ID,
		"organization_id": batch.OrganizationID,
		"period":          batch.Year*100 + batch.Month,
	})
}

func detectedFormat(batch *models.ImportBatch) (*models.DetectedFormat, error) {
	format, err := batch.Format()
	if err != nil {
		return nil, apperr.Upstream("decode detected format", err)
	}
	if format == nil {
		return nil, apperr.Input("batch format has not been detected")
	}
	return format, nil
}

func observe(op string, started time.Time, err *error) {
	outcome := ""
	if *err != nil {
		outcome = string(apperr.KindOf(*err))
	}
	metrics.ObserveOperation(op, outcome, started)
}
