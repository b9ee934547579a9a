/*
Package ledger is the only writer of inventory quantities and prices.

Every mutation runs inside the caller's gorm transaction and appends exactly
one history row next to the change it records:

	quantity_entries  unsigned amount + type (initial, addition, subtraction, sale, update)
	price_entries     both resulting prices after the change

Stock is never written through read-modify-write. Decrements are a single
conditional UPDATE guarded by "current_quantity >= ?", so two concurrent
sales cannot both pass a check against the same stale level.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/database"
	"go-pos-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrCorruptHistory is returned by Replay when a history cannot be replayed.
var ErrCorruptHistory = errors.New("corrupt quantity history")

// QuantityChange describes one stock movement.
type QuantityChange struct {
	ProductID string
	Quantity  int
	Type      models.EntryType
	Snapshot  *models.Amounts // unit prices recorded on sale entries
}

func (c QuantityChange) validate() error {
	switch c.Type {
	case models.EntryAddition, models.EntrySubtraction, models.EntrySale:
		if c.Quantity <= 0 {
			return apperr.Invalid("quantity", "must be greater than zero, got %d", c.Quantity)
		}
	case models.EntryUpdate:
		if c.Quantity < 0 {
			return apperr.Invalid("quantity", "must not be negative, got %d", c.Quantity)
		}
	case models.EntryInitial:
		return apperr.Invalid("type", "initial entries are only written when a product is created")
	default:
		return apperr.Invalid("type", "unknown quantity change type %q", c.Type)
	}
	return nil
}

// PriceChange sets one or both current prices. A nil price leaves that price untouched.
type PriceChange struct {
	ProductID string
	USD       *decimal.Decimal
	LRD       *decimal.Decimal

	// Origin, when set, is recorded on the price entry (sale-type adjustments).
	OriginQuantity *int
	OriginType     *models.EntryType
}

func (c PriceChange) validate() error {
	if c.USD != nil && c.USD.IsNegative() {
		return apperr.Invalid("usd_price", "must not be negative")
	}
	if c.LRD != nil && c.LRD.IsNegative() {
		return apperr.Invalid("lrd_price", "must not be negative")
	}
	return nil
}

// Writer applies ledger mutations.
type Writer struct {
	db  *gorm.DB
	now func() time.Time
}

func NewWriter(db *gorm.DB) *Writer {
	return &Writer{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Transact runs fn in its own transaction, so a returned nil means the history is durable.
func (w *Writer) Transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return apperr.Persistence("ledger transaction", database.Transact(ctx, w.db, fn))
}

// CreateRecord inserts a new product with its initial quantity entry and,
// if either price is non-zero, its first price entry.
func (w *Writer) CreateRecord(tx *gorm.DB, p *models.Product) error {
	if p.CurrentQuantity < 0 {
		return apperr.Invalid("quantity", "must not be negative, got %d", p.CurrentQuantity)
	}
	if p.CurrentUSDPrice.IsNegative() || p.CurrentLRDPrice.IsNegative() {
		return apperr.Invalid("price", "must not be negative")
	}

	now := w.now()
	p.QuantityHistory = []models.QuantityEntry{{
		Quantity: p.CurrentQuantity,
		Type:     models.EntryInitial,
		Date:     now,
	}}
	p.PriceHistory = nil
	if !p.CurrentUSDPrice.IsZero() || !p.CurrentLRDPrice.IsZero() {
		p.PriceHistory = []models.PriceEntry{{
			USDPrice: p.CurrentUSDPrice,
			LRDPrice: p.CurrentLRDPrice,
			Date:     now,
		}}
	}

	// GORM inserts the history rows with the product
	if err := tx.Create(p).Error; err != nil {
		return apperr.Persistence("create product", err)
	}
	return nil
}

// ApplyQuantityChange moves the stock level and appends the matching history entry.
// Subtractions and sales fail with InsufficientStock instead of going below zero.
func (w *Writer) ApplyQuantityChange(tx *gorm.DB, ch QuantityChange) (*models.Product, error) {
	if err := ch.validate(); err != nil {
		return nil, err
	}

	q := tx.Model(&models.Product{}).Where("id = ?", ch.ProductID)

	var res *gorm.DB
	switch ch.Type {
	case models.EntryAddition:
		res = q.Update("current_quantity", gorm.Expr("current_quantity + ?", ch.Quantity))
	case models.EntrySubtraction, models.EntrySale:
		res = q.Where("current_quantity >= ?", ch.Quantity).
			Update("current_quantity", gorm.Expr("current_quantity - ?", ch.Quantity))
	case models.EntryUpdate:
		res = q.Update("current_quantity", ch.Quantity)
	}
	if res.Error != nil {
		return nil, apperr.Persistence("update quantity", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := w.explainMiss(tx, ch); err != nil {
			return nil, err
		}
	}

	entry := models.QuantityEntry{
		ProductID: ch.ProductID,
		Quantity:  ch.Quantity,
		Type:      ch.Type,
		Date:      w.now(),
	}
	if ch.Type == models.EntrySale && ch.Snapshot != nil {
		usd, lrd := ch.Snapshot.USD, ch.Snapshot.LRD
		entry.USDPrice = &usd
		entry.LRDPrice = &lrd
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, apperr.Persistence("append quantity entry", err)
	}

	return w.load(tx, ch.ProductID)
}

// explainMiss turns a zero-row update into the right error. MySQL reports zero rows
// for an update that leaves the row unchanged, so an existing product is only an
// error when stock was being taken out.
func (w *Writer) explainMiss(tx *gorm.DB, ch QuantityChange) error {
	p, err := w.load(tx, ch.ProductID)
	if err != nil {
		return err
	}
	if (ch.Type == models.EntrySubtraction || ch.Type == models.EntrySale) && p.CurrentQuantity < ch.Quantity {
		return &apperr.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.CurrentQuantity,
			Requested:   ch.Quantity,
		}
	}
	return nil
}

// ApplyPriceChange overwrites the given prices and appends a price entry with
// both resulting prices.
func (w *Writer) ApplyPriceChange(tx *gorm.DB, ch PriceChange) (*models.Product, error) {
	if err := ch.validate(); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if ch.USD != nil {
		updates["current_usd_price"] = *ch.USD
	}
	if ch.LRD != nil {
		updates["current_lrd_price"] = *ch.LRD
	}
	if len(updates) > 0 {
		err := tx.Model(&models.Product{}).Where("id = ?", ch.ProductID).Updates(updates).Error
		if err != nil {
			return nil, apperr.Persistence("update prices", err)
		}
	}

	p, err := w.load(tx, ch.ProductID)
	if err != nil {
		return nil, err
	}

	entry := models.PriceEntry{
		ProductID: p.ID,
		USDPrice:  p.CurrentUSDPrice,
		LRDPrice:  p.CurrentLRDPrice,
		Date:      w.now(),
		Quantity:  ch.OriginQuantity,
		Type:      ch.OriginType,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, apperr.Persistence("append price entry", err)
	}
	return p, nil
}

func (w *Writer) load(tx *gorm.DB, id string) (*models.Product, error) {
	var p models.Product
	err := tx.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, apperr.Persistence("load product", err)
	}
	return &p, nil
}

// Replay rebuilds the stock level from a quantity history ordered by insertion.
func Replay(entries []models.QuantityEntry) (int, error) {
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: empty history", ErrCorruptHistory)
	}
	if entries[0].Type != models.EntryInitial {
		return 0, fmt.Errorf("%w: first entry is %q, want initial", ErrCorruptHistory, entries[0].Type)
	}

	level := 0
	for i, e := range entries {
		switch e.Type {
		case models.EntryInitial, models.EntryUpdate:
			level = e.Quantity
		case models.EntryAddition:
			level += e.Quantity
		case models.EntrySubtraction, models.EntrySale:
			level -= e.Quantity
		default:
			return 0, fmt.Errorf("%w: entry %d has unknown type %q", ErrCorruptHistory, i, e.Type)
		}
		if level < 0 {
			return 0, fmt.Errorf("%w: level goes negative at entry %d", ErrCorruptHistory, i)
		}
	}
	return level, nil
}
