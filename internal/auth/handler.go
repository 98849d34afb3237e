package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/internal/middleware"
	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/response"
	"github.com/activity-hub/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
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

// APITokenResponse carries a freshly issued static token. It is shown once.
type APITokenResponse struct {
	APIToken string `json:"api_token"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users       UserStore
	jwt         *JWTService
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

// NewHandler creates an auth handler. adminEmails are provisioned by
// EnsureAdmins and cannot be registered through the API.
func NewHandler(users UserStore, jwt *JWTService, adminEmails []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Handler{users: users, jwt: jwt, adminEmails: admins, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if _, ok := h.adminEmails[strings.ToLower(strings.TrimSpace(req.Email))]; ok {
		h.logger.Warn("registration for admin address refused", zap.String("email", req.Email))
		response.Conflict(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Email, hash, strings.TrimSpace(req.FullName), models.RoleUser)
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, "User registered", TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "Invalid credentials")
		return
	}

	token, err := h.jwt.Generate(user.ID, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, "Logged in", TokenResponse{Token: token, User: user.ToPublic()})
}

// RotateAPIToken handles POST /auth/api-token. Any previous static token stops working.
func (h *Handler) RotateAPIToken(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	token, err := generateAPIToken()
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	if err := h.users.SetAPIToken(c.Request.Context(), userID, token); err != nil {
		h.logger.Error("set api token", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to store token")
		return
	}
	response.Created(c, "API token issued", APITokenResponse{APIToken: token})
}
