package handler

import (
	"context"
	"io"
	"net/http"

	"attendance-import-backend/internal/apperr"
	"attendance-import-backend/internal/models"
	"attendance-import-backend/internal/services/imports"
	"attendance-import-backend/internal/services/suggest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Pipeline is the import service surface the HTTP layer drives.
type Pipeline interface {
	CreateBatch(ctx context.Context, in imports.CreateBatchInput) (*models.ImportBatch, error)
	Upload(ctx context.Context, batchID uuid.UUID, filename, contentType string, data []byte) (string, error)
	AttachFile(ctx context.Context, batchID uuid.UUID, ref string) error
	Detect(ctx context.Context, batchID uuid.UUID) (*models.DetectedFormat, error)
	SuggestMapping(ctx context.Context, batchID uuid.UUID) (*suggest.Suggestion, error)
	SaveMapping(ctx context.Context, batchID uuid.UUID, mapping models.ColumnMapping) (*models.ImportBatch, error)
	Stage(ctx context.Context, batchID uuid.UUID) (*models.StageSummary, error)
	Validate(ctx context.Context, batchID uuid.UUID) (*imports.ValidationResult, error)
	Apply(ctx context.Context, batchID uuid.UUID, approverID string) (*imports.ApplyResult, error)
	Reject(ctx context.Context, batchID uuid.UUID) (*models.ImportBatch, error)
	Discard(ctx context.Context, batchID uuid.UUID) error
	Status(ctx context.Context, orgID uuid.UUID, month, year int) (*imports.BatchView, error)
	ListRows(ctx context.Context, batchID uuid.UUID, onlyErrors bool, offset, limit int) (*imports.RowPage, error)
}

type ImportHandler struct {
	pipeline       Pipeline
	maxUploadBytes int64
}

func NewImportHandler(p Pipeline, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{pipeline: p, maxUploadBytes: maxUploadBytes}
}

type batchRequest struct {
	BatchID string `json:"batch_id" form:"batch_id" binding:"required"`
}

func (r batchRequest) id() (uuid.UUID, error) {
	id, err := uuid.Parse(r.BatchID)
	if err != nil {
		return uuid.Nil, apperr.Input("invalid batch_id")
	}
	return id, nil
}

// bindBatch decodes a body carrying at least batch_id into req and returns
// the parsed id.
func bindBatch(c *gin.Context, req interface{ id() (uuid.UUID, error) }) (uuid.UUID, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, apperr.Input("invalid payload: %v", err))
		return uuid.Nil, false
	}
	id, err := req.id()
	if err != nil {
		fail(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ImportHandler) CreateBatch(c *gin.Context) {
	var payload struct {
		OrganizationID string `json:"organization_id" binding:"required"`
		Month          int    `json:"month" binding:"required"`
		Year           int    `json:"year" binding:"required"`
		Source         string `json:"source"`
		CreatedBy      string `json:"created_by"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Input("invalid payload: %v", err))
		return
	}
	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		fail(c, apperr.Input("invalid organization_id"))
		return
	}

	batch, err := h.pipeline.CreateBatch(c.Request.Context(), imports.CreateBatchInput{
		OrganizationID: orgID,
		Month:          payload.Month,
		Year:           payload.Year,
		Source:         payload.Source,
		CreatedBy:      payload.CreatedBy,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, batch)
}

// UploadFile accepts a multipart form with "file" and "batch_id".
func (h *ImportHandler) UploadFile(c *gin.Context) {
	var form batchRequest
	if err := c.ShouldBind(&form); err != nil {
		fail(c, apperr.Input("batch_id required"))
		return
	}
	batchID, err := form.id()
	if err != nil {
		fail(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, apperr.Input("file required"))
		return
	}
	defer file.Close()

	var reader io.Reader = file
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(file, h.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		fail(c, apperr.Input("cannot read uploaded file"))
		return
	}

	ref, err := h.pipeline.Upload(c.Request.Context(), batchID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"file_url": ref})
}

func (h *ImportHandler) AttachFile(c *gin.Context) {
	var req struct {
		batchRequest
		FileURL string `json:"file_url" binding:"required"`
	}
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}
	if err := h.pipeline.AttachFile(c.Request.Context(), batchID, req.FileURL); err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"file_url": req.FileURL})
}

func (h *ImportHandler) DetectFormat(c *gin.Context) {
	var req batchRequest
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}
	format, err := h.pipeline.Detect(c.Request.Context(), batchID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{
		"headers": format.Headers,
		"sample":  format.SampleRows,
		"dialect": format.Dialect,
	})
}

func (h *ImportHandler) SuggestMapping(c *gin.Context) {
	var req batchRequest
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}
	suggestion, err := h.pipeline.SuggestMapping(c.Request.Context(), batchID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, suggestion)
}

func (h *ImportHandler) SaveMapping(c *gin.Context) {
	var req struct {
		batchRequest
		ColumnMapping models.ColumnMapping `json:"column_mapping" binding:"required"`
	}
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}
	batch, err := h.pipeline.SaveMapping(c.Request.Context(), batchID, req.ColumnMapping)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, batch)
}

func (h *ImportHandler) Stage(c *gin.Context) {
	var req batchRequest
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}
	summary, err := h.pipeline.Stage(c.Request.Context(), batchID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, summary)
}

// ValidateOrApply dispatches on action: validate, apply or reject.
func (h *ImportHandler) ValidateOrApply(c *gin.Context) {
	var req struct {
		batchRequest
		Action     string `json:"action" binding:"required"`
		ApproverID string `json:"approver_id"`
	}
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "validate":
		result, err := h.pipeline.Validate(ctx, batchID)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, result)
	case "apply":
		result, err := h.pipeline.Apply(ctx, batchID, req.ApproverID)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, result)
	case "reject":
		batch, err := h.pipeline.Reject(ctx, batchID)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, batch)
	default:
		fail(c, apperr.Input("action must be validate|apply|reject"))
	}
}

func (h *ImportHandler) DiscardBatch(c *gin.Context) {
	var req batchRequest
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}
	if err := h.pipeline.Discard(c.Request.Context(), batchID); err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"batch_id": batchID, "discarded": true})
}

func (h *ImportHandler) GetBatchStatus(c *gin.Context) {
	var payload struct {
		OrganizationID string `json:"organization_id" binding:"required"`
		Month          int    `json:"month" binding:"required"`
		Year           int    `json:"year" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, apperr.Input("invalid payload: %v", err))
		return
	}
	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		fail(c, apperr.Input("invalid organization_id"))
		return
	}
	view, err := h.pipeline.Status(c.Request.Context(), orgID, payload.Month, payload.Year)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, view)
}

func (h *ImportHandler) ListRows(c *gin.Context) {
	var req struct {
		batchRequest
		OnlyErrors bool `json:"only_errors"`
		Offset     int  `json:"offset"`
		Limit      int  `json:"limit"`
	}
	batchID, ok := bindBatch(c, &req)
	if !ok {
		return
	}
	page, err := h.pipeline.ListRows(c.Request.Context(), batchID, req.OnlyErrors, req.Offset, req.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, page)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
