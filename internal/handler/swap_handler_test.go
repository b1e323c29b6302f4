package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/middleware"
	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type swapServiceMock struct {
	swap       *models.SwapRequest
	detail     *dto.SwapDetail
	targets    []dto.EligibleTarget
	err        error
	lastQuery  dto.SwapQuery
	lastActor  string
	lastAction string
}

func (m *swapServiceMock) Create(ctx context.Context, requesterID string, req dto.CreateSwapRequest) (*models.SwapRequest, error) {
	m.lastActor = requesterID
	m.lastAction = "create"
	return m.swap, m.err
}

func (m *swapServiceMock) Confirm(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error) {
	m.lastActor = actorID
	m.lastAction = "confirm"
	return m.swap, m.err
}

func (m *swapServiceMock) Decline(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error) {
	m.lastActor = actorID
	m.lastAction = "decline"
	return m.swap, m.err
}

func (m *swapServiceMock) Cancel(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error) {
	m.lastActor = actorID
	m.lastAction = "cancel"
	return m.swap, m.err
}

func (m *swapServiceMock) Approve(ctx context.Context, swapID, adminID string, req dto.ReviewSwapRequest) (*models.SwapRequest, error) {
	m.lastActor = adminID
	m.lastAction = "approve"
	return m.swap, m.err
}

func (m *swapServiceMock) Reject(ctx context.Context, swapID, adminID string, req dto.ReviewSwapRequest) (*models.SwapRequest, error) {
	m.lastActor = adminID
	m.lastAction = "reject"
	return m.swap, m.err
}

func (m *swapServiceMock) List(ctx context.Context, query dto.SwapQuery) ([]models.SwapRequest, error) {
	m.lastQuery = query
	if m.swap == nil {
		return nil, m.err
	}
	return []models.SwapRequest{*m.swap}, m.err
}

func (m *swapServiceMock) GetDetail(ctx context.Context, swapID string) (*dto.SwapDetail, error) {
	return m.detail, m.err
}

func (m *swapServiceMock) EligibleTargets(ctx context.Context, requesterID, assignmentID string) ([]dto.EligibleTarget, error) {
	return m.targets, m.err
}

func pendingSwap() *models.SwapRequest {
	return &models.SwapRequest{
		ID:                    "swap-1",
		RequesterID:           "res-1",
		TargetID:              "res-2",
		RequesterAssignmentID: "asn-1",
		TargetAssignmentID:    "asn-2",
		Status:                models.SwapStatusPending,
	}
}

func swapTestContext(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
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
	return w, c
}

func TestSwapHandlerCreate(t *testing.T) {
	mock := &swapServiceMock{swap: pendingSwap()}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodPost, "/swaps", dto.CreateSwapRequest{
		RequesterID:           "res-1",
		TargetID:              "res-2",
		RequesterAssignmentID: "asn-1",
		TargetAssignmentID:    "asn-2",
	})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "res-1", mock.lastActor)
	assert.Equal(t, "create", mock.lastAction)
}

func TestSwapHandlerCreateMissingFields(t *testing.T) {
	mock := &swapServiceMock{swap: pendingSwap()}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodPost, "/swaps", map[string]string{"targetId": "res-2"})
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.lastAction)
}

func TestSwapHandlerConfirmPassesActor(t *testing.T) {
	mock := &swapServiceMock{swap: pendingSwap()}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodPost, "/swaps/swap-1/confirm", dto.SwapActorRequest{ResidentID: "res-2"})
	c.Params = gin.Params{{Key: "id", Value: "swap-1"}}
	handler.Confirm(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "res-2", mock.lastActor)
	assert.Equal(t, "confirm", mock.lastAction)
}

func TestSwapHandlerConfirmMissingActor(t *testing.T) {
	mock := &swapServiceMock{swap: pendingSwap()}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodPost, "/swaps/swap-1/confirm", map[string]string{})
	c.Params = gin.Params{{Key: "id", Value: "swap-1"}}
	handler.Confirm(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.lastAction)
}

func TestSwapHandlerApproveRequiresClaims(t *testing.T) {
	mock := &swapServiceMock{swap: pendingSwap()}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodPost, "/swaps/swap-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "swap-1"}}
	handler.Approve(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, mock.lastAction)
}

func TestSwapHandlerApproveEmptyBody(t *testing.T) {
	mock := &swapServiceMock{swap: pendingSwap()}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodPost, "/swaps/swap-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "swap-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	handler.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "adm-1", mock.lastActor)
	assert.Equal(t, "approve", mock.lastAction)
}

func TestSwapHandlerTransitionConflict(t *testing.T) {
	mock := &swapServiceMock{err: appErrors.ErrWrongStatus}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodPost, "/swaps/swap-1/cancel", dto.SwapActorRequest{ResidentID: "res-1"})
	c.Params = gin.Params{{Key: "id", Value: "swap-1"}}
	handler.Cancel(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSwapHandlerListParsesQuery(t *testing.T) {
	mock := &swapServiceMock{swap: pendingSwap()}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodGet, "/swaps?residentId=res-1&role=requester&status=pending,peer_confirmed", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "res-1", mock.lastQuery.ResidentID)
	assert.True(t, mock.lastQuery.AsRequester)
	assert.Equal(t, []models.SwapStatus{models.SwapStatusPending, models.SwapStatusPeerConfirmed}, mock.lastQuery.Status)
}

func TestSwapHandlerEligibleTargetsRequiresParams(t *testing.T) {
	mock := &swapServiceMock{}
	handler := NewSwapHandler(mock, nil)

	w, c := swapTestContext(t, http.MethodGet, "/swaps/eligible-targets?residentId=res-1", nil)
	handler.EligibleTargets(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
