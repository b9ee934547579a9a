package handlers

import (
	"net/http"

	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CreateProductRequest struct {
	Name     string           `json:"name" binding:"required"`
	Store    models.Store     `json:"store" binding:"required"`
	Quantity int              `json:"quantity"`
	USDPrice *decimal.Decimal `json:"usd_price"`
	LRDPrice *decimal.Decimal `json:"lrd_price"`
}

type QuantityRequest struct {
	Quantity int              `json:"quantity"`
	Type     models.EntryType `json:"type" binding:"required"`
	USDPrice *decimal.Decimal `json:"usd_price"`
	LRDPrice *decimal.Decimal `json:"lrd_price"`
}

type PricesRequest struct {
	USDPrice *decimal.Decimal `json:"usd_price"`
	LRDPrice *decimal.Decimal `json:"lrd_price"`
}

// --- POST: Add a new product ---
func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "kind": "validation"})
		return
	}
	if !h.requireStore(c, req.Store) {
		return
	}

	p, err := h.Inventory.CreateProduct(c.Request.Context(), inventory.NewProduct{
		Name:            req.Name,
		Store:           req.Store,
		InitialQuantity: req.Quantity,
		USDPrice:        req.USDPrice,
		LRDPrice:        req.LRDPrice,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// --- GET: All products of a store ---
func (h *Handler) ListProducts(c *gin.Context) {
	store := models.Store(c.Param("store"))
	if !h.requireStore(c, store) {
		return
	}

	products, err := h.Inventory.ListByStore(c.Request.Context(), store)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// --- GET: One product with its histories ---
func (h *Handler) ProductDetails(c *gin.Context) {
	p, err := h.Inventory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.requireStore(c, p.Store) {
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- PATCH: Stock movement ---
func (h *Handler) AdjustQuantity(c *gin.Context) {
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "kind": "validation"})
		return
	}
	if !h.requireProductStore(c, c.Param("id")) {
		return
	}

	p, err := h.Inventory.AdjustQuantity(c.Request.Context(), c.Param("id"), inventory.QuantityAdjustment{
		Quantity: req.Quantity,
		Type:     req.Type,
		USDPrice: req.USDPrice,
		LRDPrice: req.LRDPrice,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- PATCH: Price change ---
func (h *Handler) AdjustPrices(c *gin.Context) {
	var req PricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "kind": "validation"})
		return
	}
	if !h.requireProductStore(c, c.Param("id")) {
		return
	}

	p, err := h.Inventory.AdjustPrices(c.Request.Context(), c.Param("id"), req.USDPrice, req.LRDPrice)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
