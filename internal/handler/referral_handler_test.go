package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/middleware"
	"github.com/nashmi-edu/referral-api/internal/models"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
)

type referralServiceMock struct {
	referral   *models.Referral
	receiveErr error
	created    *dto.CreateReferralRequest
}

func (m *referralServiceMock) Create(ctx context.Context, req dto.CreateReferralRequest, actor models.Actor) (*models.Referral, error) {
	m.created = &req
	return m.referral, nil
}

func (m *referralServiceMock) Get(ctx context.Context, id string) (*models.Referral, error) {
	if m.referral == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "referral not found")
	}
	return m.referral, nil
}

func (m *referralServiceMock) List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, *models.Pagination, error) {
	return nil, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *referralServiceMock) Log(ctx context.Context, id string) ([]models.WorkflowLogEntry, error) {
	return nil, nil
}

func (m *referralServiceMock) ExportLog(ctx context.Context, id string) ([]byte, string, error) {
	return []byte("Time,Action,Actor,Notes\n"), "REF-2026-0001-log.csv", nil
}

func (m *referralServiceMock) Receive(ctx context.Context, id string, actor models.Actor) (*models.Referral, error) {
	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	return m.referral, nil
}

func (m *referralServiceMock) Assign(ctx context.Context, id string, req dto.AssignReferralRequest, actor models.Actor) (*models.Referral, error) {
	return m.referral, nil
}

func (m *referralServiceMock) Transfer(ctx context.Context, id string, req dto.TransferReferralRequest, actor models.Actor) (*models.Referral, error) {
	return m.referral, nil
}

func (m *referralServiceMock) Complete(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error) {
	return m.referral, nil
}

func (m *referralServiceMock) Close(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error) {
	return m.referral, nil
}

func (m *referralServiceMock) Cancel(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error) {
	return m.referral, nil
}

func (m *referralServiceMock) AddNote(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.WorkflowLogEntry, error) {
	return &models.WorkflowLogEntry{ReferralID: id, Action: models.ActionAddNote, Notes: &req.Notes}, nil
}

func (m *referralServiceMock) RecordViolation(ctx context.Context, id string, req dto.RecordViolationRequest, actor models.Actor) (*dto.RecordViolationResult, error) {
	return &dto.RecordViolationResult{Referral: m.referral}, nil
}

func (m *referralServiceMock) NotifyParent(ctx context.Context, id string, req dto.NotifyParentRequest, actor models.Actor) (*dto.ReferralResult, error) {
	return &dto.ReferralResult{Referral: m.referral}, nil
}

func (m *referralServiceMock) GenerateDocument(ctx context.Context, id string, req dto.GenerateDocumentRequest, actor models.Actor) (*dto.GenerateDocumentResult, error) {
	return &dto.GenerateDocumentResult{Referral: m.referral, DocumentID: "doc-1"}, nil
}

func (m *referralServiceMock) Delete(ctx context.Context, id string, actor models.Actor) error {
	return nil
}

func (m *referralServiceMock) ViolationHistory(ctx context.Context, studentID string) ([]models.ViolationRecord, error) {
	return nil, nil
}

func testContext(t *testing.T, method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleCounselor, FullName: "Counselor One"})
	return c, w
}

func TestReferralHandlerCreate(t *testing.T) {
	mock := &referralServiceMock{referral: &models.Referral{ID: "ref-1", Number: "REF-2026-0001", Status: models.ReferralStatusPending}}
	h := NewReferralHandler(mock)

	c, w := testContext(t, http.MethodPost, "/referrals", dto.CreateReferralRequest{
		StudentID:  "student-1",
		Type:       string(models.ReferralTypeBehavioralViolation),
		TargetRole: string(models.RoleVicePrincipal),
		Reason:     "disruption",
	})
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.created)
	require.Equal(t, "student-1", mock.created.StudentID)
}

func TestReferralHandlerCreateInvalidBody(t *testing.T) {
	h := NewReferralHandler(&referralServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/referrals", bytes.NewReader([]byte("not-json")))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleCounselor})

	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferralHandlerCreateUnauthorized(t *testing.T) {
	h := NewReferralHandler(&referralServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/referrals", bytes.NewReader(nil))
	c.Request = req

	h.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReferralHandlerReceiveInvalidState(t *testing.T) {
	mock := &referralServiceMock{receiveErr: appErrors.Clone(appErrors.ErrInvalidState, "referral is no longer pending")}
	h := NewReferralHandler(mock)

	c, w := testContext(t, http.MethodPost, "/referrals/ref-1/receive", nil)
	c.Params = gin.Params{{Key: "id", Value: "ref-1"}}
	h.Receive(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "INVALID_STATE", envelope.Error.Code)
}

func TestReferralHandlerExportLog(t *testing.T) {
	mock := &referralServiceMock{referral: &models.Referral{ID: "ref-1", Number: "REF-2026-0001"}}
	h := NewReferralHandler(mock)

	c, w := testContext(t, http.MethodGet, "/referrals/ref-1/log/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "ref-1"}}
	h.ExportLog(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "REF-2026-0001-log.csv")
}
