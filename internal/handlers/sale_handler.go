package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/middleware"
	"go-pos-ledger/internal/models"
	"go-pos-ledger/internal/reports"
	"go-pos-ledger/internal/sales"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdempotencyHeader lets a client retry POST /api/sales without selling twice.
const IdempotencyHeader = "Idempotency-Key"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CreateSaleRequest struct {
	Items         []sales.Item         `json:"items" binding:"required"`
	Store         models.Store         `json:"store" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
	AmountPaid    decimal.Decimal      `json:"amount_paid"`
}

// --- POST: Record a sale for the authenticated user ---
func (h *Handler) CreateSale(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "kind": "validation"})
		return
	}
	ctx := c.Request.Context()

	key := c.GetHeader(IdempotencyHeader)
	if key != "" {
		ok, err := h.Idempotency.Acquire(ctx, key)
		if err != nil {
			h.respondError(c, apperr.Persistence("idempotency", err))
			return
		}
		if !ok {
			h.respondError(c, apperr.Conflict("a sale with idempotency key %q was already submitted", key))
			return
		}
	}

	sale, err := h.Sales.CreateSale(ctx, sales.Request{
		Items:         req.Items,
		Store:         req.Store,
		PaymentMethod: req.PaymentMethod,
		AmountPaid:    req.AmountPaid,
		ActorID:       middleware.UserID(c),
	})
	if err != nil {
		if key != "" {
			// the sale never happened, so the client may retry with the same key
			if rerr := h.Idempotency.Release(ctx, key); rerr != nil {
				h.Log.Warn("release idempotency key", zap.String("key", key), zap.Error(rerr))
			}
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// --- GET: One sale with its items ---
func (h *Handler) SaleDetails(c *gin.Context) {
	sale, err := h.Sales.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.requireStore(c, sale.Store) {
		return
	}
	c.JSON(http.StatusOK, sale)
}

// --- GET: Price history report, optionally between startDate and endDate ---
func (h *Handler) SalesByStore(c *gin.Context) {
	report, ok := h.salesReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- GET: Same report as an Excel workbook ---
func (h *Handler) ExportSales(c *gin.Context) {
	report, ok := h.salesReport(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("sales-%s-%s.xlsx", report.Store, time.Now().In(h.Reports.Location()).Format("20060102"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := reports.WriteWorkbook(report, h.Reports.Location(), c.Writer); err != nil {
		h.Log.Error("write workbook", zap.Error(err))
		_ = c.Error(err)
	}
}

func (h *Handler) salesReport(c *gin.Context) (*reports.SalesReport, bool) {
	store := models.Store(c.Param("store"))
	if !h.requireStore(c, store) {
		return nil, false
	}

	var start, end *time.Time
	if s, e := c.Query("startDate"), c.Query("endDate"); s != "" && e != "" {
		from, err := parseDate(s, h.Reports.Location(), false)
		if err != nil {
			h.respondError(c, apperr.Invalid("startDate", "unrecognized date %q", s))
			return nil, false
		}
		to, err := parseDate(e, h.Reports.Location(), true)
		if err != nil {
			h.respondError(c, apperr.Invalid("endDate", "unrecognized date %q", e))
			return nil, false
		}
		start, end = &from, &to
	}

	report, err := h.Reports.SalesByStore(c.Request.Context(), store, start, end)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return report, true
}

// --- GET: Money collected by a store on one day ---
func (h *Handler) DailyReport(c *gin.Context) {
	store := models.Store(c.Query("store"))
	if store == "" {
		h.respondError(c, apperr.Invalid("store", "is required"))
		return
	}
	if !h.requireStore(c, store) {
		return
	}

	date := time.Now().In(h.Reports.Location())
	if d := c.Query("date"); d != "" {
		parsed, err := parseDate(d, h.Reports.Location(), false)
		if err != nil {
			h.respondError(c, apperr.Invalid("date", "unrecognized date %q", d))
			return
		}
		date = parsed
	}

	report, err := h.Reports.Daily(c.Request.Context(), store, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
