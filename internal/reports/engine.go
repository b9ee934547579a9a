// Package reports aggregates inventory history and sale records. It never writes.
package reports

import (
	"context"
	"sort"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/models"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// SaleLister is the part of the sale record store the daily report reads.
type SaleLister interface {
	ListByRange(ctx context.Context, store models.Store, from, to time.Time) ([]models.Sale, error)
}

// ProductRef identifies the product a report entry belongs to.
type ProductRef struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []models.Image `json:"images"`
}

// Entry is one price history row of a store's product.
type Entry struct {
	ID          uint64         `json:"id"`
	Product     ProductRef     `json:"product"`
	SaleDate    time.Time      `json:"sale_date"`
	TotalAmount models.Amounts `json:"total_amount"`
	Quantity    int            `json:"quantity"`
	Type        string         `json:"type"`
}

// SalesReport is the store report built from price history.
type SalesReport struct {
	Store  models.Store   `json:"store"`
	Sales  []Entry        `json:"sales"`
	Totals models.Amounts `json:"totals"`
	Count  int            `json:"count"`
}

// MethodTotal is the amount collected in one payment method and how many sales it took.
type MethodTotal struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type DailyTotals struct {
	USD MethodTotal `json:"usd"`
	LRD MethodTotal `json:"lrd"`
}

// DailyReport covers one calendar day in the engine's location.
type DailyReport struct {
	Store       models.Store  `json:"store"`
	Date        time.Time     `json:"date"`
	SalesCount  int           `json:"sales_count"`
	DailyTotals DailyTotals   `json:"daily_totals"`
	Sales       []models.Sale `json:"sales"`
}

type Engine struct {
	db     *gorm.DB
	sales  SaleLister
	loc    *time.Location
	tracer trace.Tracer
}

// NewEngine builds an engine whose day boundaries are computed in loc.
func NewEngine(db *gorm.DB, sales SaleLister, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{db: db, sales: sales, loc: loc, tracer: otel.Tracer("go-pos-ledger/reports")}
}

// SalesByStore reports every price history entry of the store's products, newest first.
// When both start and end are given only entries with start <= date <= end are included.
//
// The report reads price history, not sale records: restocks and manual price
// changes appear with quantity 1 and type "price_change".
func (e *Engine) SalesByStore(ctx context.Context, store models.Store, start, end *time.Time) (*SalesReport, error) {
	if !store.Valid() {
		return nil, apperr.Invalid("store", "invalid store %q", store)
	}
	ranged := start != nil && end != nil
	if ranged && end.Before(*start) {
		return nil, apperr.Invalid("endDate", "is before startDate")
	}

	ctx, span := e.tracer.Start(ctx, "reports.sales_by_store",
		trace.WithAttributes(attribute.String("report.store", string(store))))
	defer span.End()

	var products []models.Product
	err := e.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("PriceHistory", func(db *gorm.DB) *gorm.DB {
			if ranged {
				db = db.Where("date BETWEEN ? AND ?", start.UTC(), end.UTC())
			}
			return db.Order("seq")
		}).
		Where("store = ?", store).
		Order("created_at").
		Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("load price history", err)
	}

	report := &SalesReport{Store: store, Sales: []Entry{}}
	for _, p := range products {
		ref := ProductRef{ID: p.ID, Name: p.Name, Images: p.Images}
		for _, h := range p.PriceHistory {
			entry := Entry{
				ID:          h.Seq,
				Product:     ref,
				SaleDate:    h.Date,
				TotalAmount: models.Amounts{USD: h.USDPrice, LRD: h.LRDPrice},
				Quantity:    1,
				Type:        models.PriceChangeType,
			}
			if h.Quantity != nil {
				entry.Quantity = *h.Quantity
			}
			if h.Type != nil {
				entry.Type = string(*h.Type)
			}
			report.Sales = append(report.Sales, entry)
			report.Totals = report.Totals.Add(entry.TotalAmount)
		}
	}

	sort.SliceStable(report.Sales, func(i, j int) bool {
		return report.Sales[i].SaleDate.After(report.Sales[j].SaleDate)
	})
	report.Count = len(report.Sales)

	span.SetAttributes(attribute.Int("report.entries", report.Count))
	return report, nil
}

// Daily reports the sales of one store on the calendar day of date, totalled per payment method.
func (e *Engine) Daily(ctx context.Context, store models.Store, date time.Time) (*DailyReport, error) {
	if !store.Valid() {
		return nil, apperr.Invalid("store", "invalid store %q", store)
	}

	ctx, span := e.tracer.Start(ctx, "reports.daily",
		trace.WithAttributes(attribute.String("report.store", string(store))))
	defer span.End()

	start, end := e.DayBounds(date)
	sales, err := e.sales.ListByRange(ctx, store, start, end)
	if err != nil {
		return nil, err
	}

	report := &DailyReport{
		Store:      store,
		Date:       start,
		SalesCount: len(sales),
		DailyTotals: DailyTotals{
			USD: MethodTotal{Total: decimal.Zero},
			LRD: MethodTotal{Total: decimal.Zero},
		},
		Sales: sales,
	}
	for _, s := range sales {
		t := &report.DailyTotals.LRD
		if s.PaymentMethod == models.PaymentUSD {
			t = &report.DailyTotals.USD
		}
		t.Total = t.Total.Add(s.AmountPaid)
		t.Count++
	}

	span.SetAttributes(attribute.Int("report.sales", report.SalesCount))
	return report, nil
}

// DayBounds returns the first and last instant of date's calendar day in the engine's location.
func (e *Engine) DayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.In(e.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, e.loc)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// Location is the zone day boundaries and date parameters are interpreted in.
func (e *Engine) Location() *time.Location {
	return e.loc
}
