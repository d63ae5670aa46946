package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	"github.com/crou-platform/crou-housing-api/internal/service"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
	"github.com/crou-platform/crou-housing-api/pkg/response"
)

// RequestHandler exposes housing request endpoints.
type RequestHandler struct {
	requests    *service.RequestService
	assignments *service.AssignmentService
}

// NewRequestHandler constructs RequestHandler.
func NewRequestHandler(requests *service.RequestService, assignments *service.AssignmentService) *RequestHandler {
	return &RequestHandler{requests: requests, assignments: assignments}
}

// Submit godoc
// @Summary Submit a housing request into a batch
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body dto.SubmitHousingRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /batches/{id}/requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitHousingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.SubmitRequest(c.Request.Context(), tenantFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List housing requests
// @Tags Requests
// @Produce json
// @Param batchId query string false "Filter by batch"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by request type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	var filter models.RequestFilter
	filter.BatchID = c.Query("batchId")
	filter.StudentID = c.Query("studentId")
	filter.Status = models.RequestStatus(c.Query("status"))
	filter.Type = models.RequestType(c.Query("type"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	requests, total, err := h.requests.ListRequests(c.Request.Context(), tenantFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// Get godoc
// @Summary Get housing request detail
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.requests.GetRequest(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Review godoc
// @Summary Review a pending request (runs eligibility validation)
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/review [post]
func (h *RequestHandler) Review(c *gin.Context) {
	view, err := h.requests.ReviewRequest(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Validate godoc
// @Summary Preview eligibility without mutating the request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/eligibility [get]
func (h *RequestHandler) Validate(c *gin.Context) {
	result, err := h.requests.ValidateRequest(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CancelAssignment godoc
// @Summary Cancel an active room assignment
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CancelAssignmentRequest true "Cancellation payload"
// @Success 204
// @Router /requests/{id}/cancel-assignment [post]
func (h *RequestHandler) CancelAssignment(c *gin.Context) {
	var req dto.CancelAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.assignments.CancelAssignment(c.Request.Context(), tenantFromContext(c), c.Param("id"), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
