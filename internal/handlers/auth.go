package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/auth"
	"chat-backend/internal/middleware"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

// AuthHandler manages registration and login endpoints.
type AuthHandler struct {
	userRepo   repositories.UserRepository
	jwtManager *auth.JWTManager
	tokenTTL   int
	audit      *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler. tokenTTLSeconds bounds the
// lifetime of the access token cookie.
func NewAuthHandler(userRepo repositories.UserRepository, jwtManager *auth.JWTManager, tokenTTLSeconds int, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		tokenTTL:   tokenTTLSeconds,
		audit:      audit,
	}
}

// Register creates a new user account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name          string `json:"name" binding:"required"`
		Email         string `json:"email" binding:"required,email"`
		Password      string `json:"password" binding:"required,min=6"`
		PasswordCheck string `json:"password_check" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password != req.PasswordCheck {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register user"})
		return
	}

	user, err := h.userRepo.CreateUser(c.Request.Context(), req.Name, req.Email, hashed)
	if err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register user"})
		return
	}

	emitAudit(c, h.audit, "INFO", "user registered")
	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID})
}

// Login verifies credentials and issues an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not log in"})
		return
	}
	if !auth.VerifyPassword(req.Password, user.HashedPassword) {
		emitAudit(c, h.audit, "WARN", "failed login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.SetCookie(middleware.AccessTokenCookie, token, h.tokenTTL, "/", "", false, true)
	emitAudit(c, h.audit, "INFO", "user logged in")
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// Logout clears the access token cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// ListUsers returns all registered users except the caller.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	userID := c.GetInt("userID")

	users, err := h.userRepo.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	type userResponse struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	responses := make([]userResponse, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		responses = append(responses, userResponse{ID: u.ID, Name: u.Name})
	}

	c.JSON(http.StatusOK, gin.H{"users": responses})
}
