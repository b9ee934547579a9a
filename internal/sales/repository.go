package sales

import (
	"context"
	"errors"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleDetail is a sale with its references resolved for display.
// Names are empty when the product or seller has since been deleted.
type SaleDetail struct {
	ID             string               `json:"id"`
	Store          models.Store         `json:"store"`
	SaleDate       time.Time            `json:"sale_date"`
	Items          []ItemDetail         `json:"items"`
	TotalAmount    models.Amounts       `json:"total_amount"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	AmountPaid     decimal.Decimal      `json:"amount_paid"`
	SoldByID       string               `json:"sold_by_id"`
	SoldByUsername string               `json:"sold_by"`
}

type ItemDetail struct {
	ProductID    string         `json:"product_id"`
	ProductName  string         `json:"product_name"`
	Quantity     int            `json:"quantity"`
	PricePerUnit models.Amounts `json:"price_per_unit"`
	LineTotal    models.Amounts `json:"line_total"`
}

// Repository is the append-only store of sale records. There is no update or delete.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// create inserts a sale with its items inside the processor's transaction.
func (r *Repository) create(tx *gorm.DB, sale *models.Sale) error {
	if err := tx.Create(sale).Error; err != nil {
		return apperr.Persistence("insert sale", err)
	}
	return nil
}

// Get returns one sale with product names and the seller's username.
func (r *Repository) Get(ctx context.Context, id string) (*SaleDetail, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", bySeq).
		Preload("Items.Product", productName).
		Preload("SoldBy", func(db *gorm.DB) *gorm.DB { return db.Select("id", "username") }).
		Where("id = ?", id).
		First(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("sale", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get sale", err)
	}
	return toDetail(&sale), nil
}

// ListByStore returns every sale of a store, newest first.
func (r *Repository) ListByStore(ctx context.Context, store models.Store) ([]models.Sale, error) {
	return r.list(ctx, r.db.Where("store = ?", store))
}

// ListByRange returns the sales of a store with from <= sale_date <= to, newest first.
func (r *Repository) ListByRange(ctx context.Context, store models.Store, from, to time.Time) ([]models.Sale, error) {
	if to.Before(from) {
		return nil, apperr.Invalid("end_date", "is before start_date")
	}
	return r.list(ctx, r.db.Where("store = ? AND sale_date BETWEEN ? AND ?", store, from.UTC(), to.UTC()))
}

func (r *Repository) list(ctx context.Context, q *gorm.DB) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := q.WithContext(ctx).
		Preload("Items", bySeq).
		Preload("Items.Product", productName).
		Order("sale_date DESC").
		Find(&sales).Error
	if err != nil {
		return nil, apperr.Persistence("list sales", err)
	}
	return sales, nil
}

func toDetail(s *models.Sale) *SaleDetail {
	d := &SaleDetail{
		ID:            s.ID,
		Store:         s.Store,
		SaleDate:      s.SaleDate,
		Items:         make([]ItemDetail, 0, len(s.Items)),
		TotalAmount:   s.TotalAmount,
		PaymentMethod: s.PaymentMethod,
		AmountPaid:    s.AmountPaid,
		SoldByID:      s.SoldByID,
	}
	if s.SoldBy != nil {
		d.SoldByUsername = s.SoldBy.Username
	}
	for _, it := range s.Items {
		item := ItemDetail{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			PricePerUnit: it.PricePerUnit,
			LineTotal:    it.LineTotal,
		}
		if it.Product != nil {
			item.ProductName = it.Product.Name
		}
		d.Items = append(d.Items, item)
	}
	return d
}

func productName(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name")
}

func bySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq")
}
