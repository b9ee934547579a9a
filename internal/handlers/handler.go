package handlers

import (
	"errors"
	"net/http"
	"time"

	"go-pos-ledger/internal/ai"
	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/auth"
	"go-pos-ledger/internal/idempotency"
	"go-pos-ledger/internal/images"
	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/middleware"
	"go-pos-ledger/internal/models"
	"go-pos-ledger/internal/reports"
	"go-pos-ledger/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler carries the services every route talks to.
type Handler struct {
	Users       *auth.Directory
	Tokens      *auth.TokenIssuer
	Inventory   *inventory.Service
	Sales       *sales.Service
	SaleRecords *sales.Repository
	Reports     *reports.Engine
	Images      *images.Store
	Agent       *ai.Agent
	Idempotency idempotency.Guard
	Log         *zap.Logger
}

// respondError writes {"error", "kind"} with the status the error kind maps to.
// Server-side failures are logged and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "kind": "unauthorized"})
		return
	}

	status := apperr.HTTPStatus(err)
	kind := apperr.Kind(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", kind),
			zap.Error(err))
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "Internal server error", "kind": kind})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

// requireStore rejects managers acting on another store's data. Admins pass.
func (h *Handler) requireStore(c *gin.Context, store models.Store) bool {
	role, _ := c.Get(middleware.RoleKey)
	if role == models.RoleAdmin {
		return true
	}
	own, _ := c.Get(middleware.StoreKey)
	if own == store {
		return true
	}
	h.respondError(c, apperr.Forbidden("no access to %s", store))
	return false
}

// requireProductStore applies requireStore to the store the product belongs to.
func (h *Handler) requireProductStore(c *gin.Context, id string) bool {
	store, err := h.Inventory.StoreOf(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return false
	}
	return h.requireStore(c, store)
}

// parseDate accepts RFC 3339 or a plain YYYY-MM-DD day in loc. For a plain day,
// endOfDay selects its last instant instead of midnight.
func parseDate(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
