package rooms

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomline/backend/internal/authz"
	"github.com/roomline/backend/internal/middleware"
	"github.com/roomline/backend/pkg/response"
)

// RoomRequest is the body for POST /rooms and PUT /rooms/:id.
type RoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Capacity    *int   `json:"capacity"`
}

// Authorizer answers whether a principal may perform an action.
type Authorizer interface {
	CanAct(ctx context.Context, p authz.Principal, req authz.Request) (bool, error)
}

// Handler handles room HTTP endpoints.
type Handler struct {
	repo     *Repository
	resolver Authorizer
	logger   *zap.Logger
}

// NewHandler creates a rooms handler.
func NewHandler(repo *Repository, resolver Authorizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, resolver: resolver, logger: logger}
}

// List handles GET /rooms. Public.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list rooms failed", zap.Error(err))
		response.Internal(c, "failed to list rooms")
		return
	}
	c.JSON(http.StatusOK, list)
}

// Create handles POST /rooms. Global admins only: creating a room has no
// room scope for a delegated role to attach to.
func (h *Handler) Create(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing_token")
		return
	}
	if !h.authorize(c, principal, authz.Request{Action: authz.ActionManageRoom}) {
		return
	}

	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}

	room, err := h.repo.Create(c.Request.Context(), req.Name, req.Description, req.Capacity)
	if err != nil {
		h.logger.Error("create room failed", zap.Error(err))
		response.Internal(c, "failed to create room")
		return
	}
	c.JSON(http.StatusCreated, room)
}

// Update handles PUT /rooms/:id. Global admins or delegated room admins.
func (h *Handler) Update(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing_token")
		return
	}
	if !h.authorize(c, principal, authz.Request{Action: authz.ActionManageRoom, RoomID: roomID}) {
		return
	}

	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}

	room, err := h.repo.Update(c.Request.Context(), roomID, req.Name, req.Description, req.Capacity)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "not found")
			return
		}
		h.logger.Error("update room failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to update room")
		return
	}
	c.JSON(http.StatusOK, room)
}

// Delete handles DELETE /rooms/:id. Bookings and permissions cascade.
func (h *Handler) Delete(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing_token")
		return
	}
	if !h.authorize(c, principal, authz.Request{Action: authz.ActionManageRoom, RoomID: roomID}) {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "not found")
			return
		}
		h.logger.Error("delete room failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to delete room")
		return
	}
	response.Success(c)
}

func (h *Handler) authorize(c *gin.Context, principal authz.Principal, req authz.Request) bool {
	ok, err := h.resolver.CanAct(c.Request.Context(), principal, req)
	if err != nil {
		h.logger.Error("authorization check failed", zap.Error(err))
		response.Internal(c, "authorization check failed")
		return false
	}
	if !ok {
		response.Forbidden(c, "forbidden")
		return false
	}
	return true
}
