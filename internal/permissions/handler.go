package permissions

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomline/backend/internal/authz"
	"github.com/roomline/backend/internal/middleware"
	"github.com/roomline/backend/internal/models"
	"github.com/roomline/backend/internal/rooms"
	"github.com/roomline/backend/pkg/response"
)

// AddUserRequest is the body for POST /rooms/:id/users.
type AddUserRequest struct {
	UserEmail string `json:"userEmail" binding:"required,email"`
	Role      string `json:"role" binding:"required"`
}

// RemoveUserRequest is the body for DELETE /rooms/:id/users.
type RemoveUserRequest struct {
	UserEmail string `json:"userEmail" binding:"required,email"`
}

// Authorizer answers whether a principal may perform an action.
type Authorizer interface {
	CanAct(ctx context.Context, p authz.Principal, req authz.Request) (bool, error)
}

// Handler handles room permission HTTP endpoints.
type Handler struct {
	repo     *Repository
	roomRepo *rooms.Repository
	resolver Authorizer
	logger   *zap.Logger
}

// NewHandler creates a permissions handler.
func NewHandler(repo *Repository, roomRepo *rooms.Repository, resolver Authorizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, roomRepo: roomRepo, resolver: resolver, logger: logger}
}

// List handles GET /rooms/:id/users. Public read.
func (h *Handler) List(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	list, err := h.repo.List(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("list room permissions failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to list room users")
		return
	}
	if list == nil {
		list = []models.RoomPermission{}
	}
	c.JSON(http.StatusOK, list)
}

// Add handles POST /rooms/:id/users. Global admins and delegated room admins
// may grant roles; re-adding an email overwrites its role.
func (h *Handler) Add(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	var req AddUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}
	role := models.RoomRole(req.Role)
	if !role.Valid() {
		response.BadRequest(c, "invalid role")
		return
	}

	if _, err := h.roomRepo.GetByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		h.logger.Error("load room failed", zap.Error(err))
		response.Internal(c, "failed to load room")
		return
	}

	if !h.authorize(c, roomID) {
		return
	}

	perm, err := h.repo.Upsert(c.Request.Context(), roomID, req.UserEmail, role)
	if err != nil {
		h.logger.Error("upsert room permission failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to add room user")
		return
	}
	c.JSON(http.StatusCreated, perm)
}

// Remove handles DELETE /rooms/:id/users. A delegated admin may remove any
// entry in their room, including the last admin entry; global admins can
// always re-grant.
func (h *Handler) Remove(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}

	var req RemoveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}

	if !h.authorize(c, roomID) {
		return
	}

	if err := h.repo.Remove(c.Request.Context(), roomID, req.UserEmail); err != nil {
		h.logger.Error("remove room permission failed", zap.Error(err), zap.String("room_id", roomID.String()))
		response.Internal(c, "failed to remove room user")
		return
	}
	h.logger.Info("room permission removed",
		zap.String("room_id", roomID.String()),
		zap.String("user_email", req.UserEmail),
	)
	response.Success(c)
}

func (h *Handler) authorize(c *gin.Context, roomID uuid.UUID) bool {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing_token")
		return false
	}
	allowed, err := h.resolver.CanAct(c.Request.Context(), principal, authz.Request{
		Action: authz.ActionManagePermissions,
		RoomID: roomID,
	})
	if err != nil {
		h.logger.Error("authorization check failed", zap.Error(err))
		response.Internal(c, "authorization check failed")
		return false
	}
	if !allowed {
		response.Forbidden(c, "forbidden")
		return false
	}
	return true
}
