// Package inventory exposes product creation, stock and price adjustments and product reads.
// Every write goes through the ledger writer inside one transaction.
package inventory

import (
	"context"
	"errors"
	"strings"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/ledger"
	"go-pos-ledger/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewProduct is the input of CreateProduct. Absent prices default to zero.
type NewProduct struct {
	Name            string
	Store           models.Store
	InitialQuantity int
	USDPrice        *decimal.Decimal
	LRDPrice        *decimal.Decimal
}

// QuantityAdjustment is the input of AdjustQuantity. Prices are only read for sale adjustments.
type QuantityAdjustment struct {
	Quantity int
	Type     models.EntryType
	USDPrice *decimal.Decimal
	LRDPrice *decimal.Decimal
}

type Service struct {
	db     *gorm.DB
	ledger *ledger.Writer
	log    *zap.Logger
}

func NewService(db *gorm.DB, w *ledger.Writer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, ledger: w, log: log}
}

// CreateProduct inserts an inventory record seeded with its initial history.
func (s *Service) CreateProduct(ctx context.Context, in NewProduct) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if !in.Store.Valid() {
		return nil, apperr.Invalid("store", "invalid store %q", in.Store)
	}

	p := &models.Product{
		Name:            name,
		Store:           in.Store,
		CurrentQuantity: in.InitialQuantity,
	}
	if in.USDPrice != nil {
		p.CurrentUSDPrice = *in.USDPrice
	}
	if in.LRDPrice != nil {
		p.CurrentLRDPrice = *in.LRDPrice
	}

	err := s.ledger.Transact(ctx, func(tx *gorm.DB) error {
		return s.ledger.CreateRecord(tx, p)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", p.ID),
		zap.String("store", string(p.Store)),
		zap.Int("quantity", p.CurrentQuantity))
	return p, nil
}

// AdjustQuantity applies one stock movement. A sale adjustment that carries prices
// also changes the current prices, and its price entry records the sale quantity.
// The sale entry snapshots the prices in effect after that change.
func (s *Service) AdjustQuantity(ctx context.Context, id string, adj QuantityAdjustment) (*models.Product, error) {
	var out *models.Product
	err := s.ledger.Transact(ctx, func(tx *gorm.DB) error {
		ch := ledger.QuantityChange{ProductID: id, Quantity: adj.Quantity, Type: adj.Type}

		if adj.Type == models.EntrySale {
			var current *models.Product
			var err error
			if adj.USDPrice != nil || adj.LRDPrice != nil {
				qty, typ := adj.Quantity, models.EntrySale
				current, err = s.ledger.ApplyPriceChange(tx, ledger.PriceChange{
					ProductID:      id,
					USD:            adj.USDPrice,
					LRD:            adj.LRDPrice,
					OriginQuantity: &qty,
					OriginType:     &typ,
				})
			} else {
				current, err = s.find(tx, id)
			}
			if err != nil {
				return err
			}
			snap := current.Prices()
			ch.Snapshot = &snap
		}

		p, err := s.ledger.ApplyQuantityChange(tx, ch)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("quantity adjusted",
		zap.String("product_id", id),
		zap.String("type", string(adj.Type)),
		zap.Int("quantity", adj.Quantity),
		zap.Int("current_quantity", out.CurrentQuantity))
	return out, nil
}

// AdjustPrices overwrites the given prices. At least one must be present.
func (s *Service) AdjustPrices(ctx context.Context, id string, usd, lrd *decimal.Decimal) (*models.Product, error) {
	if usd == nil && lrd == nil {
		return nil, apperr.Invalid("price", "usd_price or lrd_price is required")
	}

	var out *models.Product
	err := s.ledger.Transact(ctx, func(tx *gorm.DB) error {
		p, err := s.ledger.ApplyPriceChange(tx, ledger.PriceChange{ProductID: id, USD: usd, LRD: lrd})
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a product with its images and both histories in insertion order.
func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).
		Preload("Images", bySeq).
		Preload("QuantityHistory", bySeq).
		Preload("PriceHistory", bySeq).
		Where("id = ?", id).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get product", err)
	}
	return &p, nil
}

// StoreOf returns the store a product belongs to.
func (s *Service) StoreOf(ctx context.Context, id string) (models.Store, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Select("id", "store").Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.NotFound("product", id)
	}
	if err != nil {
		return "", apperr.Persistence("load product", err)
	}
	return p.Store, nil
}

// ListByStore returns every product of a store with its images.
func (s *Service) ListByStore(ctx context.Context, store models.Store) ([]models.Product, error) {
	if !store.Valid() {
		return nil, apperr.Invalid("store", "invalid store %q", store)
	}

	products := []models.Product{}
	err := s.db.WithContext(ctx).
		Preload("Images", bySeq).
		Where("store = ?", store).
		Order("created_at").
		Find(&products).Error
	if err != nil {
		return nil, apperr.Persistence("list products", err)
	}
	return products, nil
}

func (s *Service) find(tx *gorm.DB, id string) (*models.Product, error) {
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

func bySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq")
}
