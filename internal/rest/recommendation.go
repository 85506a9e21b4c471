package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trieu/leo-activation/domain"
	"github.com/trieu/leo-activation/pkg/logger"
)

type (
	RecommendationHandler struct {
		validate      *validator.Validate
		service       RecommendationService
		defaultTenant string
	}

	RecommendationService interface {
		ResolveTenant(ctx context.Context, tenantName string) (uuid.UUID, error)
		RunBatchUpdate(ctx context.Context, tenantName, segmentName string, windowStart, windowEnd time.Time) (int, error)
		RunGarbageCollection(ctx context.Context) (int64, error)
		GetDecisions(ctx context.Context, tenantID uuid.UUID, profileID string) (map[string]domain.Decision, error)
		GetPredictions(ctx context.Context, tenantID uuid.UUID, profileID string) (map[string]domain.Prediction, error)
		GetProfileAffinities(ctx context.Context, tenantID uuid.UUID, profileID string) ([]domain.AffinityRecord, error)
		FindHotAffinities(ctx context.Context, tenantID uuid.UUID, minScore float64) ([]domain.AffinityRecord, error)
		FindInterested(ctx context.Context, tenantID uuid.UUID, subjectID string, minScore float64) ([]domain.InterestedProfile, error)
	}

	InterestedQuery struct {
		Tenant   string  `query:"tenant"`
		MinScore float64 `query:"min_score" validate:"gte=0,lt=1"`
	}

	BatchRunRequest struct {
		Tenant      string    `json:"tenant" validate:"required"`
		Segment     string    `json:"segment" validate:"required"`
		WindowStart time.Time `json:"window_start" validate:"required"`
		WindowEnd   time.Time `json:"window_end" validate:"required"`
	}

	BatchRunResponse struct {
		RowsTouched int `json:"rows_touched"`
	}

	GCResponse struct {
		RowsDeleted int64 `json:"rows_deleted"`
	}
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

func NewRecommendationHandler(service RecommendationService, defaultTenant string) *RecommendationHandler {
	return &RecommendationHandler{
		validate:      validator.New(),
		service:       service,
		defaultTenant: defaultTenant,
	}
}

func (h *RecommendationHandler) tenantName(c echo.Context) string {
	if t := c.QueryParam("tenant"); t != "" {
		return t
	}
	return h.defaultTenant
}

// GET /api/v1/recommendation/interested/:subject_id?min_score=0.5
func (h *RecommendationHandler) GetInterested(c echo.Context) error {
	subjectID := c.Param("subject_id")
	if subjectID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "subject_id is required"})
	}

	q := InterestedQuery{MinScore: 0.5}
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx := c.Request().Context()

	tenantID, err := h.service.ResolveTenant(ctx, h.tenantName(c))
	if err != nil {
		return h.errorResponse(c, err)
	}

	rows, err := h.service.FindInterested(ctx, tenantID, subjectID, q.MinScore)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(rows))
}

// GET /api/v1/recommendation/next-best-action/:profile_id
func (h *RecommendationHandler) GetNextBestAction(c echo.Context) error {
	profileID := c.Param("profile_id")
	if profileID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "profile_id is required"})
	}

	ctx := c.Request().Context()

	tenantID, err := h.service.ResolveTenant(ctx, h.tenantName(c))
	if err != nil {
		return h.errorResponse(c, err)
	}

	decisions, err := h.service.GetDecisions(ctx, tenantID, profileID)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]any{
		"profile_id":        profileID,
		"next_best_actions": decisions,
	}))
}

// GET /api/v1/recommendation/next-likely-action/:profile_id
func (h *RecommendationHandler) GetNextLikelyAction(c echo.Context) error {
	profileID := c.Param("profile_id")
	if profileID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "profile_id is required"})
	}

	ctx := c.Request().Context()

	tenantID, err := h.service.ResolveTenant(ctx, h.tenantName(c))
	if err != nil {
		return h.errorResponse(c, err)
	}

	predictions, err := h.service.GetPredictions(ctx, tenantID, profileID)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]any{
		"profile_id":          profileID,
		"next_likely_actions": predictions,
	}))
}

// GET /api/v1/recommendation/affinity/:profile_id
func (h *RecommendationHandler) GetProfileAffinities(c echo.Context) error {
	profileID := c.Param("profile_id")
	if profileID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "profile_id is required"})
	}

	ctx := c.Request().Context()

	tenantID, err := h.service.ResolveTenant(ctx, h.tenantName(c))
	if err != nil {
		return h.errorResponse(c, err)
	}

	records, err := h.service.GetProfileAffinities(ctx, tenantID, profileID)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(records))
}

// GET /api/v1/recommendation/hot?min_score=0.5
func (h *RecommendationHandler) GetHotAffinities(c echo.Context) error {
	q := InterestedQuery{MinScore: 0.5}
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx := c.Request().Context()

	tenantID, err := h.service.ResolveTenant(ctx, h.tenantName(c))
	if err != nil {
		return h.errorResponse(c, err)
	}

	records, err := h.service.FindHotAffinities(ctx, tenantID, q.MinScore)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(records))
}

// POST /api/v1/recommendation/batch
func (h *RecommendationHandler) RunBatch(c echo.Context) error {
	var req BatchRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if !req.WindowEnd.After(req.WindowStart) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "window_end must be after window_start"})
	}

	touched, err := h.service.RunBatchUpdate(c.Request().Context(), req.Tenant, req.Segment, req.WindowStart, req.WindowEnd)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(BatchRunResponse{RowsTouched: touched}))
}

// POST /api/v1/recommendation/gc
func (h *RecommendationHandler) RunGC(c echo.Context) error {
	deleted, err := h.service.RunGarbageCollection(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(GCResponse{RowsDeleted: deleted}))
}

func (h *RecommendationHandler) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound), errors.Is(err, domain.ErrSegmentNotFound):
		return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
	case errors.Is(err, domain.ErrBatchInProgress):
		return c.JSON(http.StatusConflict, ResponseError{Message: err.Error()})
	default:
		logger.Error("recommendation request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
}
