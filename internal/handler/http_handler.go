package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/ingest"
	"gl-reconciliation-backend/internal/repository"
	"gl-reconciliation-backend/internal/service"
)

// HTTPHandler exposes the workflow and ingestion services over HTTP. Actor
// identity (user_id, role) is explicit in every mutating request.
type HTTPHandler struct {
	workflow *service.WorkflowService
	ingest   *service.IngestService
	log      zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(workflow *service.WorkflowService, ingestSvc *service.IngestService, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		workflow: workflow,
		ingest:   ingestSvc,
		log:      log,
	}
}

// ── Ingestion ─────────────────────────────────────────────────────────────────

type ingestRequest struct {
	BatchID           string              `json:"batch_id"`
	Source            string              `json:"source"`
	FileName          string              `json:"file_name"`
	VarianceThreshold *decimal.Decimal    `json:"variance_threshold"`
	Rows              []service.IngestRow `json:"rows"`
}

// IngestBatch ingests trial balance rows supplied as JSON.
func (h *HTTPHandler) IngestBatch(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	result, err := h.ingest.IngestBatch(c.Request.Context(), req.Rows, req.BatchID, req.Source, req.FileName, req.VarianceThreshold)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// UploadBatch ingests an uploaded CSV or XLSX trial balance file.
func (h *HTTPHandler) UploadBatch(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, apperrors.InvalidInput("file", "a file upload is required"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "could not open upload"))
		return
	}
	defer f.Close()

	var rows []service.IngestRow
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".csv":
		rows, err = ingest.ParseCSV(f)
	case ".xlsx":
		rows, err = ingest.ParseXLSX(f)
	default:
		h.respondError(c, apperrors.InvalidInput("file", "only .csv and .xlsx uploads are supported"))
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	var threshold *decimal.Decimal
	if v := c.PostForm("variance_threshold"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			h.respondError(c, apperrors.InvalidInput("variance_threshold", v))
			return
		}
		threshold = &d
	}

	result, err := h.ingest.IngestBatch(c.Request.Context(), rows,
		c.PostForm("batch_id"), c.PostForm("source"), fileHeader.Filename, threshold)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ── Workflow transitions ──────────────────────────────────────────────────────

type advanceRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Role        string `json:"role" binding:"required"`
	NextOwnerID string `json:"next_owner_id"`
}

// AdvanceLine moves a line one stage forward.
func (h *HTTPHandler) AdvanceLine(c *gin.Context) {
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	var nextOwner *string
	if req.NextOwnerID != "" {
		nextOwner = &req.NextOwnerID
	}

	line, err := h.workflow.Advance(c.Request.Context(), c.Param("id"), req.UserID, repository.Role(req.Role), nextOwner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

type disapproveRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// DisapproveLine bounces a line one stage back.
func (h *HTTPHandler) DisapproveLine(c *gin.Context) {
	var req disapproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	line, err := h.workflow.Disapprove(c.Request.Context(), c.Param("id"), req.UserID, repository.Role(req.Role), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

type rejectRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// RejectLine terminally rejects one line.
func (h *HTTPHandler) RejectLine(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	if err := h.workflow.RejectLine(c.Request.Context(), c.Param("id"), req.UserID, req.Reason); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// RejectBatch terminally rejects every in-flight line of a batch.
func (h *HTTPHandler) RejectBatch(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	affected, err := h.workflow.RejectBatch(c.Request.Context(), c.Param("batchId"), req.UserID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected", "lines_rejected": affected})
}

// ── Comments ──────────────────────────────────────────────────────────────────

type commentRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Role    string `json:"role" binding:"required"`
	Comment string `json:"comment" binding:"required"`
}

// AddComment appends a remark to a line's chain.
func (h *HTTPHandler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	entry, err := h.workflow.AddComment(c.Request.Context(), c.Param("id"), req.Comment, req.UserID, repository.Role(req.Role))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListComments returns a line's comment chain, oldest-first.
func (h *HTTPHandler) ListComments(c *gin.Context) {
	entries, err := h.workflow.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": entries})
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetLine returns a single line.
func (h *HTTPHandler) GetLine(c *gin.Context) {
	line, err := h.workflow.GetLine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

// ListDisapprovals returns a line's disapproval history.
func (h *HTTPHandler) ListDisapprovals(c *gin.Context) {
	recs, err := h.workflow.ListDisapprovals(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disapprovals": recs})
}

// ListPending returns the lines awaiting a user's action in a role.
// min_variance filters the way the fc/cfo dashboards do.
func (h *HTTPHandler) ListPending(c *gin.Context) {
	role := c.Query("role")
	userID := c.Query("user_id")
	if role == "" || userID == "" {
		h.respondError(c, apperrors.InvalidInput("query", "role and user_id are required"))
		return
	}

	var minVariance *decimal.Decimal
	if v := c.Query("min_variance"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			h.respondError(c, apperrors.InvalidInput("min_variance", v))
			return
		}
		minVariance = &d
	}

	lines, err := h.workflow.ListPending(c.Request.Context(), repository.Role(role), userID, minVariance)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

// ListBatchLines returns all lines of a batch.
func (h *HTTPHandler) ListBatchLines(c *gin.Context) {
	lines, err := h.workflow.ListBatchLines(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

// ListBatchRejections returns a batch's rejection records.
func (h *HTTPHandler) ListBatchRejections(c *gin.Context) {
	recs, err := h.workflow.ListBatchRejections(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejections": recs})
}

// BatchSummary returns per-status counts and amount sums for a batch.
func (h *HTTPHandler) BatchSummary(c *gin.Context) {
	stats, err := h.workflow.BatchSummary(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ── Responsibility administration ─────────────────────────────────────────────

type responsibilityUpsertRequest struct {
	Mappings []repository.ResponsibilityMapping `json:"mappings" binding:"required"`
}

// UpsertResponsibilities replaces line-level responsibility assignments.
func (h *HTTPHandler) UpsertResponsibilities(c *gin.Context) {
	var req responsibilityUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	if err := h.ingest.UpsertResponsibilities(c.Request.Context(), req.Mappings); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mappings": len(req.Mappings)})
}

type groupResponsibilityUpsertRequest struct {
	Mappings []repository.GroupResponsibilityMapping `json:"mappings" binding:"required"`
}

// UpsertGroupResponsibilities replaces FS-group fallback assignments.
func (h *HTTPHandler) UpsertGroupResponsibilities(c *gin.Context) {
	var req groupResponsibilityUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	if err := h.ingest.UpsertGroupResponsibilities(c.Request.Context(), req.Mappings); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mappings": len(req.Mappings)})
}

// ── Error mapping ─────────────────────────────────────────────────────────────

var statusByCode = map[apperrors.Code]int{
	apperrors.ErrCodeValidation:   http.StatusBadRequest,
	apperrors.ErrCodeNotFound:     http.StatusNotFound,
	apperrors.ErrCodeConflict:     http.StatusConflict,
	apperrors.ErrCodeUnauthorized: http.StatusForbidden,
	apperrors.ErrCodeInternal:     http.StatusInternalServerError,
}

func (h *HTTPHandler) respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"code": code, "message": err.Error()})
}
