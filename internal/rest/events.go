package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/trieu/leo-activation/domain"
)

type (
	EventHandler struct {
		validate      *validator.Validate
		tracker       EventTracker
		defaultTenant string
	}

	EventTracker interface {
		TrackEvent(ctx context.Context, tenantName string, event *domain.BehavioralEvent) error
	}

	TrackEventRequest struct {
		Tenant    string         `json:"tenant"`
		ProfileID string         `json:"profile_id" validate:"required"`
		EventType string         `json:"event_type" validate:"required"`
		MetaData  map[string]any `json:"meta_data"`
		CreatedAt *time.Time     `json:"created_at"`
	}
)

func NewEventHandler(tracker EventTracker, defaultTenant string) *EventHandler {
	return &EventHandler{
		validate:      validator.New(),
		tracker:       tracker,
		defaultTenant: defaultTenant,
	}
}

// POST /api/v1/events
//
// Events without a subject_id in the payload are accepted: the upstream
// tracker contract is open-ended and the scoring pipeline filters later.
func (h *EventHandler) TrackEvent(c echo.Context) error {
	var req TrackEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	tenant := req.Tenant
	if tenant == "" {
		tenant = h.defaultTenant
	}

	event := domain.BehavioralEvent{
		ProfileID: req.ProfileID,
		EventType: req.EventType,
		MetaData:  datatypes.JSONMap(req.MetaData),
	}
	if req.CreatedAt != nil {
		event.CreatedAt = *req.CreatedAt
	}

	if err := h.tracker.TrackEvent(c.Request().Context(), tenant, &event); err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated("event recorded"))
}
