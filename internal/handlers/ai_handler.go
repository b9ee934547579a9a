package handlers

import (
	"errors"
	"net/http"

	"go-pos-ledger/internal/ai"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) AskAI(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required", "kind": "validation"})
		return
	}

	reply, err := h.Agent.Ask(c.Request.Context(), req.Message)
	if errors.Is(err, ai.ErrNoAPIKey) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "kind": "unavailable"})
		return
	}
	if err != nil {
		h.Log.Error("assistant failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI Error: " + err.Error(), "kind": "upstream"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
