// Package sales records point-of-sale transactions against store inventory.
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/auth"
	"go-pos-ledger/internal/events"
	"go-pos-ledger/internal/ledger"
	"go-pos-ledger/internal/models"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActorResolver looks up who is making a sale.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id string) (*auth.Actor, error)
}

type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Request is the input of CreateSale.
type Request struct {
	Items         []Item
	Store         models.Store
	PaymentMethod models.PaymentMethod
	AmountPaid    decimal.Decimal
	ActorID       string
}

func (r Request) validate() error {
	if len(r.Items) == 0 {
		return apperr.Invalid("items", "at least one item is required")
	}
	for i, it := range r.Items {
		if it.ProductID == "" {
			return apperr.Invalid(fmt.Sprintf("items[%d].product_id", i), "is required")
		}
		if it.Quantity < 1 {
			return apperr.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be at least 1, got %d", it.Quantity)
		}
	}
	if !r.Store.Valid() {
		return apperr.Invalid("store", "invalid store %q", r.Store)
	}
	if !r.PaymentMethod.Valid() {
		return apperr.Invalid("payment_method", "must be usd or lrd, got %q", r.PaymentMethod)
	}
	if r.AmountPaid.IsNegative() {
		return apperr.Invalid("amount_paid", "must not be negative")
	}
	return nil
}

type Service struct {
	ledger    *ledger.Writer
	repo      *Repository
	actors    ActorResolver
	publisher events.Publisher
	log       *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(w *ledger.Writer, repo *Repository, actors ActorResolver, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ledger:    w,
		repo:      repo,
		actors:    actors,
		publisher: publisher,
		log:       log,
		tracer:    otel.Tracer("go-pos-ledger/sales"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSale validates a sale, checks stock for every item and then, in one
// transaction, takes the stock out and stores the sale record. Either all of it
// is committed or none of it is.
func (s *Service) CreateSale(ctx context.Context, req Request) (_ *models.Sale, err error) {
	ctx, span := s.tracer.Start(ctx, "sales.create",
		trace.WithAttributes(
			attribute.String("sale.store", string(req.Store)),
			attribute.Int("sale.items", len(req.Items)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.Kind(err))
		}
		span.End()
	}()

	if err := req.validate(); err != nil {
		return nil, err
	}

	actor, err := s.actors.ResolveActor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(req.Store) {
		return nil, apperr.Forbidden("user %s cannot sell from %s", actor.Username, req.Store)
	}

	var sale *models.Sale
	err = s.ledger.Transact(ctx, func(tx *gorm.DB) error {
		// rebuilt on every attempt; a deadlock retry runs this again
		sale = nil
		items := make([]models.SaleItem, 0, len(req.Items))
		var total models.Amounts

		for i, it := range req.Items {
			p, err := s.product(tx, it.ProductID)
			if err != nil {
				return err
			}
			if p.Store != req.Store {
				return apperr.Invalid(fmt.Sprintf("items[%d].product_id", i),
					"product %s belongs to %s, not %s", p.ID, p.Store, req.Store)
			}
			if p.CurrentQuantity < it.Quantity {
				return &apperr.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.CurrentQuantity,
					Requested:   it.Quantity,
				}
			}

			unit := p.Prices()
			line := unit.Times(it.Quantity)
			total = total.Add(line)
			items = append(items, models.SaleItem{
				ProductID:    p.ID,
				Quantity:     it.Quantity,
				PricePerUnit: unit,
				LineTotal:    line,
			})
		}

		// The conditional decrement re-checks stock, so a concurrent sale that got
		// there first turns into InsufficientStock here.
		for _, it := range items {
			snap := it.PricePerUnit
			_, err := s.ledger.ApplyQuantityChange(tx, ledger.QuantityChange{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Type:      models.EntrySale,
				Snapshot:  &snap,
			})
			if err != nil {
				return err
			}
		}

		rec := &models.Sale{
			Store:         req.Store,
			SaleDate:      s.now(),
			Items:         items,
			TotalAmount:   total,
			PaymentMethod: req.PaymentMethod,
			AmountPaid:    req.AmountPaid,
			SoldByID:      actor.ID,
		}
		if err := s.repo.create(tx, rec); err != nil {
			return err
		}
		sale = rec
		return nil
	})
	if err != nil {
		if !apperr.IsClientError(err) {
			s.log.Error("sale failed", zap.String("store", string(req.Store)), zap.Error(err))
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("sale.id", sale.ID))
	s.log.Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.String("store", string(sale.Store)),
		zap.String("sold_by", actor.Username),
		zap.String("total_usd", sale.TotalAmount.USD.String()),
		zap.String("total_lrd", sale.TotalAmount.LRD.String()))

	if err := s.publisher.PublishSaleCreated(ctx, events.NewSaleCreated(sale)); err != nil {
		s.log.Warn("failed to publish sale event", zap.String("sale_id", sale.ID), zap.Error(err))
	}
	return sale, nil
}

// Get returns a sale with resolved product and seller names.
func (s *Service) Get(ctx context.Context, id string) (*SaleDetail, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) product(tx *gorm.DB, id string) (*models.Product, error) {
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
