package bookings

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomline/backend/internal/middleware"
	"github.com/roomline/backend/internal/models"
	"github.com/roomline/backend/pkg/response"
)

// CreateRequest is the body for POST /bookings. Timestamps are ISO-8601.
// UserEmail is honored only when the caller is a global admin.
type CreateRequest struct {
	RoomID    string `json:"roomId" binding:"required"`
	UserEmail string `json:"userEmail"`
	Title     string `json:"title"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}

// UpdateRequest is the body for PUT /bookings/:id.
type UpdateRequest struct {
	Title     string `json:"title"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}

// Handler handles booking HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /bookings. Public read.
func (h *Handler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list bookings failed", zap.Error(err))
		response.Internal(c, "failed to list bookings")
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	c.JSON(http.StatusOK, list)
}

// Create handles POST /bookings.
func (h *Handler) Create(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing_token")
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	start, end, ok := parseRange(c, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	booking, err := h.service.Create(c.Request.Context(), principal, CreateInput{
		RoomID:    roomID,
		UserEmail: req.UserEmail,
		Title:     req.Title,
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// Update handles PUT /bookings/:id.
func (h *Handler) Update(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing_token")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not found")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}
	start, end, ok := parseRange(c, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	booking, err := h.service.Update(c.Request.Context(), principal, id, UpdateInput{
		Title: req.Title,
		Start: start,
		End:   end,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// Delete handles DELETE /bookings/:id.
func (h *Handler) Delete(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing_token")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not found")
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal, id); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c)
}

// writeError maps lifecycle errors onto the REST surface. Unknown errors are
// logged and surfaced as a generic failure without internals.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidTimeRange):
		response.BadRequest(c, "invalid time range")
	case errors.Is(err, ErrTimeConflict):
		response.Conflict(c, "time conflict")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "forbidden")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "not found")
	default:
		h.logger.Error("booking mutation failed", zap.Error(err))
		response.Internal(c, "db error")
	}
}

func parseRange(c *gin.Context, startStr, endStr string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		response.BadRequest(c, "invalid time range")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		response.BadRequest(c, "invalid time range")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
