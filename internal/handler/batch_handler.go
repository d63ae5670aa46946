package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	"github.com/crou-platform/crou-housing-api/internal/service"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
	"github.com/crou-platform/crou-housing-api/pkg/response"
)

// BatchHandler exposes application batch endpoints.
type BatchHandler struct {
	batches     *service.BatchService
	assignments *service.AssignmentService
	eligibility *service.EligibilityService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches *service.BatchService, assignments *service.AssignmentService, eligibility *service.EligibilityService) *BatchHandler {
	return &BatchHandler{batches: batches, assignments: assignments, eligibility: eligibility}
}

// List godoc
// @Summary List application batches
// @Tags Batches
// @Produce json
// @Param status query string false "Filter by status"
// @Param academicYear query string false "Filter by academic year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	var filter models.BatchFilter
	filter.Status = models.BatchStatus(c.Query("status"))
	filter.AcademicYear = c.Query("academicYear")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	batches, total, err := h.batches.ListBatches(c.Request.Context(), tenantFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// Get godoc
// @Summary Get batch detail
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.batches.GetBatch(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Create godoc
// @Summary Open a new application batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body dto.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.batches.CreateBatch(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Close godoc
// @Summary Close the intake window of a batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/close [post]
func (h *BatchHandler) Close(c *gin.Context) {
	batch, err := h.batches.CloseBatch(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Process godoc
// @Summary Run the assignment engine on a closed batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/process [post]
func (h *BatchHandler) Process(c *gin.Context) {
	report, err := h.batches.ProcessBatch(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ProcessAsync godoc
// @Summary Queue a batch assignment run
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 202 {object} response.Envelope
// @Router /batches/{id}/process-async [post]
func (h *BatchHandler) ProcessAsync(c *gin.Context) {
	jobID, err := h.batches.ProcessBatchAsync(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"job_id": jobID}, nil)
}

// Statistics godoc
// @Summary Batch assignment progress
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/statistics [get]
func (h *BatchHandler) Statistics(c *gin.Context) {
	stats, err := h.assignments.GetBatchStatistics(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// EligibilityStats godoc
// @Summary Aggregate eligibility across a batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/eligibility-stats [get]
func (h *BatchHandler) EligibilityStats(c *gin.Context) {
	stats, err := h.eligibility.GetBatchEligibilityStats(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export batch assignment results
// @Tags Batches
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Batch ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /batches/{id}/results/export [get]
func (h *BatchHandler) Export(c *gin.Context) {
	file, err := h.batches.ExportResults(c.Request.Context(), tenantFromContext(c), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}
