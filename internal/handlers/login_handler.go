package handlers

import (
	"net/http"

	"go-pos-ledger/internal/models"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string       `json:"username" binding:"required"`
	Password string       `json:"password" binding:"required"`
	Store    models.Store `json:"store"` // empty for admins
}

type RegisterRequest struct {
	Username string       `json:"username" binding:"required"`
	Password string       `json:"password" binding:"required"`
	Role     models.Role  `json:"role" binding:"required"`
	Store    models.Store `json:"store"`
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	// 1. Validate Input JSON
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "kind": "validation"})
		return
	}

	// 2. Find the user and verify the password (bcrypt)
	user, err := h.Users.Authenticate(c.Request.Context(), input.Username, input.Password, input.Store)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. Generate JWT Token
	token, err := h.Tokens.GenerateToken(user)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"role":     user.Role,
		"store":    user.Store,
		"username": user.Username,
	})
}

// InitialAdmin creates the first admin account. It only works on an empty user table.
func (h *Handler) InitialAdmin(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "kind": "validation"})
		return
	}

	user, err := h.Users.CreateInitialAdmin(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) Register(c *gin.Context) {
	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "kind": "validation"})
		return
	}

	user, err := h.Users.Register(c.Request.Context(), input.Username, input.Password, input.Role, input.Store)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// DeleteUser removes a user. The store query parameter is omitted for admins.
func (h *Handler) DeleteUser(c *gin.Context) {
	err := h.Users.Delete(c.Request.Context(), c.Param("username"), models.Store(c.Query("store")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
