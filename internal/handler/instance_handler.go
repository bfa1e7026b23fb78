package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	"github.com/noah-isme/sma-roster-sync/internal/service"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
	"github.com/noah-isme/sma-roster-sync/pkg/response"
)

type instanceService interface {
	Create(ctx context.Context, input service.CreateInstanceInput) (*models.SyncInstance, error)
	Get(ctx context.Context, id string) (*models.SyncInstance, error)
	List(ctx context.Context, courseID string) ([]models.SyncInstance, error)
	SetStatus(ctx context.Context, id string, status models.InstanceStatus) (*models.SyncInstance, error)
	Delete(ctx context.Context, id string) error
}

type syncRunner interface {
	SyncOne(ctx context.Context, instance models.SyncInstance) models.SyncResult
	SyncAll(ctx context.Context, courseID string) (*models.BatchResult, error)
	PurgeAll(ctx context.Context, batch *models.BatchResult) error
}

type reportGenerator interface {
	Generate(ctx context.Context, courseID string, format service.ReportFormat) (*service.ReportResult, error)
}

// InstanceHandler exposes sync instance management and sync triggers.
type InstanceHandler struct {
	instances instanceService
	sync      syncRunner
	reports   reportGenerator
}

// NewInstanceHandler builds a new handler.
func NewInstanceHandler(instances instanceService, sync syncRunner, reports reportGenerator) *InstanceHandler {
	return &InstanceHandler{instances: instances, sync: sync, reports: reports}
}

// List godoc
// @Summary List sync instances
// @Tags Instances
// @Produce json
// @Param course_id query string false "Filter by local course ID"
// @Success 200 {object} response.Envelope
// @Router /instances [get]
func (h *InstanceHandler) List(c *gin.Context) {
	instances, err := h.instances.List(c.Request.Context(), c.Query("course_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instances)
}

// Create godoc
// @Summary Bind a course to a registrar course number
// @Tags Instances
// @Accept json
// @Produce json
// @Param payload body service.CreateInstanceInput true "Instance payload"
// @Success 201 {object} response.Envelope
// @Router /instances [post]
func (h *InstanceHandler) Create(c *gin.Context) {
	var input service.CreateInstanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid instance payload"))
		return
	}
	instance, err := h.instances.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instance)
}

// Get godoc
// @Summary Get one sync instance
// @Tags Instances
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} response.Envelope
// @Router /instances/{id} [get]
func (h *InstanceHandler) Get(c *gin.Context) {
	instance, err := h.instances.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance)
}

// Delete godoc
// @Summary Delete a sync instance and revoke everything it granted
// @Tags Instances
// @Param id path string true "Instance ID"
// @Success 204
// @Router /instances/{id} [delete]
func (h *InstanceHandler) Delete(c *gin.Context) {
	if err := h.instances.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type setStatusRequest struct {
	Status models.InstanceStatus `json:"status" binding:"required"`
}

// SetStatus godoc
// @Summary Enable or disable a sync instance
// @Tags Instances
// @Accept json
// @Produce json
// @Param id path string true "Instance ID"
// @Param payload body setStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /instances/{id}/status [put]
func (h *InstanceHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	instance, err := h.instances.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance)
}

// SyncOne godoc
// @Summary Run a sync pass for one instance now
// @Tags Sync
// @Produce json
// @Param id path string true "Instance ID"
// @Success 200 {object} response.Envelope
// @Router /instances/{id}/sync [post]
func (h *InstanceHandler) SyncOne(c *gin.Context) {
	instance, err := h.instances.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result := h.sync.SyncOne(c.Request.Context(), *instance)
	response.JSON(c, http.StatusOK, result)
}

// SyncAll godoc
// @Summary Run a sync pass over every enabled instance
// @Tags Sync
// @Produce json
// @Param course_id query string false "Limit the pass to one local course"
// @Success 200 {object} response.Envelope
// @Router /sync [post]
func (h *InstanceHandler) SyncAll(c *gin.Context) {
	batch, err := h.sync.SyncAll(c.Request.Context(), c.Query("course_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch)
}

// Purge godoc
// @Summary Remove every engine-owned enrolment and role assignment
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /purge [post]
func (h *InstanceHandler) Purge(c *gin.Context) {
	batch := &models.BatchResult{}
	if err := h.sync.PurgeAll(c.Request.Context(), batch); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch)
}

// Report godoc
// @Summary Export the sync status report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "Report format" Enums(csv, pdf)
// @Param course_id query string false "Filter by local course ID"
// @Success 200 {file} file
// @Router /instances/report [get]
func (h *InstanceHandler) Report(c *gin.Context) {
	format := service.ReportFormat(c.DefaultQuery("format", string(service.ReportFormatCSV)))
	result, err := h.reports.Generate(c.Request.Context(), c.Query("course_id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
