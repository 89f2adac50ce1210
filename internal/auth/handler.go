package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomline/backend/internal/models"
	"github.com/roomline/backend/pkg/response"
	"github.com/roomline/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Limiter bounds attempts against the credential endpoints per identifier.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo    *Repository
	jwt     *JWTService
	limiter Limiter
	logger  *zap.Logger
}

// NewHandler creates an auth handler. limiter may be nil to disable rate limiting.
func NewHandler(repo *Repository, jwt *JWTService, limiter Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, limiter: limiter, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}
	if !h.allow(c, req.Email) {
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Name, req.Email, hash, models.RoleUser)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			response.Conflict(c, "user_exists")
			return
		}
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	c.JSON(http.StatusCreated, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing fields")
		return
	}
	if !h.allow(c, req.Email) {
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid_credentials")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid_credentials")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /me. Resolves the caller from the bearer token claims.
func (h *Handler) Me(c *gin.Context) {
	idVal, exists := c.Get("user_id")
	id, ok := idVal.(uuid.UUID)
	if !exists || !ok {
		response.Unauthorized(c, "missing_token")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "not_found")
			return
		}
		h.logger.Error("load user failed", zap.Error(err), zap.String("user_id", id.String()))
		response.Internal(c, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, user.ToPublic())
}

// allow applies the login rate limit, writing 429 when exceeded. Limiter
// outages fail open: authentication still checks credentials.
func (h *Handler) allow(c *gin.Context, identifier string) bool {
	if h.limiter == nil {
		return true
	}
	ok, err := h.limiter.Allow(c.Request.Context(), identifier)
	if err != nil {
		h.logger.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	if !ok {
		response.TooManyRequests(c, "too many attempts")
		return false
	}
	return true
}
