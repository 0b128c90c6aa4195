package handlers

import (
	"errors"
	"net/http"
	"strings"

	"dissent/internal/models"
	"dissent/internal/services"
	"dissent/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler provides the local session identity used while the external
// provider connection is out of scope.
type AuthHandler struct {
	db *gorm.DB
}

func NewAuthHandler(conn *gorm.DB) *AuthHandler {
	return &AuthHandler{db: conn}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates a local account and starts a session
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortError(c, services.BadRequest("invalid signup request"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		AbortError(c, services.BadRequest("username, email and a password of at least 8 characters are required"))
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		AbortError(c, err)
		return
	}
	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
	}
	if err := h.db.Create(&user).Error; err != nil {
		AbortError(c, services.BadRequest("that username or email is already registered"))
		return
	}

	h.startSession(c, &user)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and starts a session
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortError(c, services.BadRequest("invalid login request"))
		return
	}

	var user models.User
	err := h.db.Where("email = ?", strings.TrimSpace(strings.ToLower(req.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !utils.CheckPassword(user.Password, req.Password)) {
		AbortError(c, services.Forbidden("invalid email or password"))
		return
	}
	if err != nil {
		AbortError(c, err)
		return
	}

	h.startSession(c, &user)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// Logout clears the session
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) {
	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	_ = session.Save()
}
