package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
	"github.com/nashmi-edu/referral-api/pkg/response"
)

type referralService interface {
	Create(ctx context.Context, req dto.CreateReferralRequest, actor models.Actor) (*models.Referral, error)
	Get(ctx context.Context, id string) (*models.Referral, error)
	List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, *models.Pagination, error)
	Log(ctx context.Context, id string) ([]models.WorkflowLogEntry, error)
	ExportLog(ctx context.Context, id string) ([]byte, string, error)
	Receive(ctx context.Context, id string, actor models.Actor) (*models.Referral, error)
	Assign(ctx context.Context, id string, req dto.AssignReferralRequest, actor models.Actor) (*models.Referral, error)
	Transfer(ctx context.Context, id string, req dto.TransferReferralRequest, actor models.Actor) (*models.Referral, error)
	Complete(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error)
	Close(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error)
	Cancel(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error)
	AddNote(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.WorkflowLogEntry, error)
	RecordViolation(ctx context.Context, id string, req dto.RecordViolationRequest, actor models.Actor) (*dto.RecordViolationResult, error)
	NotifyParent(ctx context.Context, id string, req dto.NotifyParentRequest, actor models.Actor) (*dto.ReferralResult, error)
	GenerateDocument(ctx context.Context, id string, req dto.GenerateDocumentRequest, actor models.Actor) (*dto.GenerateDocumentResult, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
	ViolationHistory(ctx context.Context, studentID string) ([]models.ViolationRecord, error)
}

// ReferralHandler exposes REST endpoints for the referral workflow.
type ReferralHandler struct {
	service referralService
}

// NewReferralHandler constructs the handler.
func NewReferralHandler(service referralService) *ReferralHandler {
	return &ReferralHandler{service: service}
}

func (h *ReferralHandler) actor(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

// Create godoc
// @Summary Submit a new referral
// @Tags Referrals
// @Accept json
// @Produce json
// @Param payload body dto.CreateReferralRequest true "Referral payload"
// @Success 201 {object} response.Envelope
// @Router /referrals [post]
func (h *ReferralHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid referral payload"))
		return
	}
	referral, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, referral)
}

// List godoc
// @Summary List referrals
// @Tags Referrals
// @Produce json
// @Param student_id query string false "Student ID"
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Referral type"
// @Param target_role query string false "Target role"
// @Param assigned_to query string false "Assignee ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /referrals [get]
func (h *ReferralHandler) List(c *gin.Context) {
	filter := models.ReferralFilter{
		StudentID:  strings.TrimSpace(c.Query("student_id")),
		Type:       models.ReferralType(c.Query("type")),
		TargetRole: models.Role(c.Query("target_role")),
		AssignedTo: strings.TrimSpace(c.Query("assigned_to")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 50),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			filter.Status = append(filter.Status, models.ReferralStatus(part))
		}
	}
	referrals, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referrals, pagination)
}

// Get godoc
// @Summary Get referral detail
// @Tags Referrals
// @Produce json
// @Param id path string true "Referral ID"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id} [get]
func (h *ReferralHandler) Get(c *gin.Context) {
	referral, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referral, nil)
}

// Log godoc
// @Summary Get the referral workflow log
// @Tags Referrals
// @Produce json
// @Param id path string true "Referral ID"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/log [get]
func (h *ReferralHandler) Log(c *gin.Context) {
	entries, err := h.service.Log(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportLog godoc
// @Summary Export the workflow log as CSV
// @Tags Referrals
// @Produce text/csv
// @Param id path string true "Referral ID"
// @Success 200 {string} string "CSV payload"
// @Router /referrals/{id}/log/export [get]
func (h *ReferralHandler) ExportLog(c *gin.Context) {
	payload, filename, err := h.service.ExportLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", payload)
}

// Receive godoc
// @Summary Acknowledge a pending referral
// @Tags Referrals
// @Produce json
// @Param id path string true "Referral ID"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/receive [post]
func (h *ReferralHandler) Receive(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	referral, err := h.service.Receive(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referral, nil)
}

// Assign godoc
// @Summary Assign a referral to an actor
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.AssignReferralRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/assign [post]
func (h *ReferralHandler) Assign(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.AssignReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	referral, err := h.service.Assign(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referral, nil)
}

// Transfer godoc
// @Summary Transfer a referral to another role
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.TransferReferralRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/transfer [post]
func (h *ReferralHandler) Transfer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.TransferReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transfer payload"))
		return
	}
	referral, err := h.service.Transfer(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referral, nil)
}

// Complete godoc
// @Summary Complete a referral
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.NotesRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/complete [post]
func (h *ReferralHandler) Complete(c *gin.Context) {
	h.finalize(c, "complete")
}

// Close godoc
// @Summary Close a referral without completion
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.NotesRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/close [post]
func (h *ReferralHandler) Close(c *gin.Context) {
	h.finalize(c, "close")
}

// Cancel godoc
// @Summary Cancel a referral
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.NotesRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/cancel [post]
func (h *ReferralHandler) Cancel(c *gin.Context) {
	h.finalize(c, "cancel")
}

func (h *ReferralHandler) finalize(c *gin.Context, action string) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.NotesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid notes payload"))
			return
		}
	}
	var referral *models.Referral
	var err error
	switch action {
	case "complete":
		referral, err = h.service.Complete(c.Request.Context(), c.Param("id"), req, actor)
	case "close":
		referral, err = h.service.Close(c.Request.Context(), c.Param("id"), req, actor)
	default:
		referral, err = h.service.Cancel(c.Request.Context(), c.Param("id"), req, actor)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referral, nil)
}

// AddNote godoc
// @Summary Append a note to the workflow log
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.NotesRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Router /referrals/{id}/notes [post]
func (h *ReferralHandler) AddNote(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid note payload"))
		return
	}
	entry, err := h.service.AddNote(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// RecordViolation godoc
// @Summary Record a behavioural violation on a referral
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.RecordViolationRequest true "Violation payload"
// @Success 201 {object} response.Envelope
// @Router /referrals/{id}/violation [post]
func (h *ReferralHandler) RecordViolation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.RecordViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid violation payload"))
		return
	}
	result, err := h.service.RecordViolation(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// NotifyParent godoc
// @Summary Send a guardian notification for a referral
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.NotifyParentRequest true "Notification payload"
// @Success 200 {object} response.Envelope
// @Router /referrals/{id}/notify [post]
func (h *ReferralHandler) NotifyParent(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.NotifyParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid notification payload"))
		return
	}
	result, err := h.service.NotifyParent(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateDocument godoc
// @Summary Generate a printable referral document
// @Tags Referrals
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param payload body dto.GenerateDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Router /referrals/{id}/document [post]
func (h *ReferralHandler) GenerateDocument(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.GenerateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	result, err := h.service.GenerateDocument(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// Delete godoc
// @Summary Delete a referral and its workflow log
// @Tags Referrals
// @Param id path string true "Referral ID"
// @Success 204
// @Router /referrals/{id} [delete]
func (h *ReferralHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentViolations godoc
// @Summary List a student's recorded violations
// @Tags Referrals
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/violations [get]
func (h *ReferralHandler) StudentViolations(c *gin.Context) {
	history, err := h.service.ViolationHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
