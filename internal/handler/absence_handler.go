package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
	"github.com/nashmi-edu/referral-api/pkg/response"
)

type absenceService interface {
	Open(ctx context.Context, req dto.OpenAbsenceCaseRequest, actor models.Actor) (*models.AbsenceCase, error)
	Get(ctx context.Context, id string) (*models.AbsenceCase, error)
	List(ctx context.Context, filter models.AbsenceCaseFilter) ([]models.AbsenceCase, *models.Pagination, error)
	MarkActionDone(ctx context.Context, id, key string, actor models.Actor) (*models.AbsenceCase, error)
	Reevaluate(ctx context.Context, id string, req dto.ReevaluateAbsenceRequest, actor models.Actor) (*models.AbsenceCase, error)
}

// AbsenceHandler exposes REST endpoints for absence cases.
type AbsenceHandler struct {
	service absenceService
}

// NewAbsenceHandler constructs the handler.
func NewAbsenceHandler(service absenceService) *AbsenceHandler {
	return &AbsenceHandler{service: service}
}

func (h *AbsenceHandler) actor(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

// Open godoc
// @Summary Open an absence case
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body dto.OpenAbsenceCaseRequest true "Case payload"
// @Success 201 {object} response.Envelope
// @Router /absences [post]
func (h *AbsenceHandler) Open(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.OpenAbsenceCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid absence case payload"))
		return
	}
	absenceCase, err := h.service.Open(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absenceCase)
}

// List godoc
// @Summary List absence cases
// @Tags Absences
// @Produce json
// @Param student_id query string false "Student ID"
// @Param status query string false "Comma separated statuses"
// @Param level query string false "Action level"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *AbsenceHandler) List(c *gin.Context) {
	filter := models.AbsenceCaseFilter{
		StudentID: strings.TrimSpace(c.Query("student_id")),
		Level:     models.ActionLevel(c.Query("level")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 50),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			filter.Status = append(filter.Status, models.AbsenceCaseStatus(part))
		}
	}
	cases, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cases, pagination)
}

// Get godoc
// @Summary Get absence case detail
// @Tags Absences
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /absences/{id} [get]
func (h *AbsenceHandler) Get(c *gin.Context) {
	absenceCase, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absenceCase, nil)
}

// MarkActionDone godoc
// @Summary Mark a required action complete
// @Tags Absences
// @Produce json
// @Param id path string true "Case ID"
// @Param key path string true "Action key"
// @Success 200 {object} response.Envelope
// @Router /absences/{id}/actions/{key}/done [post]
func (h *AbsenceHandler) MarkActionDone(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	absenceCase, err := h.service.MarkActionDone(c.Request.Context(), c.Param("id"), c.Param("key"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absenceCase, nil)
}

// Reevaluate godoc
// @Summary Feed fresh attendance totals into a case
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.ReevaluateAbsenceRequest true "Attendance totals"
// @Success 200 {object} response.Envelope
// @Router /absences/{id}/reevaluate [post]
func (h *AbsenceHandler) Reevaluate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.ReevaluateAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reevaluation payload"))
		return
	}
	absenceCase, err := h.service.Reevaluate(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absenceCase, nil)
}
