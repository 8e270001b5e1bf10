package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
	"github.com/nashmi-edu/referral-api/pkg/response"
)

type procedureService interface {
	LadderForDegree(ctx context.Context, degree int) ([]models.ProcedureDefinition, error)
	Upsert(ctx context.Context, req dto.UpsertProcedureRequest, actor models.Actor) (*models.ProcedureDefinition, error)
}

// ProcedureHandler exposes the disciplinary procedure catalog.
type ProcedureHandler struct {
	service procedureService
}

// NewProcedureHandler constructs the handler.
func NewProcedureHandler(service procedureService) *ProcedureHandler {
	return &ProcedureHandler{service: service}
}

// Ladder godoc
// @Summary Get the procedure ladder for a degree
// @Tags Procedures
// @Produce json
// @Param degree path int true "Violation degree"
// @Success 200 {object} response.Envelope
// @Router /procedures/{degree} [get]
func (h *ProcedureHandler) Ladder(c *gin.Context) {
	degree, err := strconv.Atoi(c.Param("degree"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "degree must be a number"))
		return
	}
	ladder, err := h.service.LadderForDegree(c.Request.Context(), degree)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ladder, nil)
}

// Upsert godoc
// @Summary Create or replace a procedure definition
// @Tags Procedures
// @Accept json
// @Produce json
// @Param payload body dto.UpsertProcedureRequest true "Procedure payload"
// @Success 200 {object} response.Envelope
// @Router /procedures [put]
func (h *ProcedureHandler) Upsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid procedure payload"))
		return
	}
	def, err := h.service.Upsert(c.Request.Context(), req, claims.Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, def, nil)
}
