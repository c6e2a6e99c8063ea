package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/store"
	"bizpadi-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SaleStore is the persistence the sale ledger depends on
type SaleStore interface {
	RunInTx(ctx context.Context, fn func(tx store.LedgerTx) error) error
	GetSale(ctx context.Context, ownerID, saleID string) (*models.SaleWithProduct, error)
	ListSales(ctx context.Context, f store.SaleFilter) ([]models.SaleWithProduct, int, error)
}

// EventPublisher publishes committed ledger changes
type EventPublisher interface {
	PublishSaleEvent(ctx context.Context, event *models.SaleEvent) error
}

// IdempotencyStore remembers which sale a create request produced.
// A key is reserved before the sale is recorded and set to the sale id after.
type IdempotencyStore interface {
	ReserveIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// idempotencyPending marks a key whose request is still being processed
const idempotencyPending = "pending"

// SummaryReader reads lifetime totals maintained by the summary projection
type SummaryReader interface {
	GetSalesSummary(ctx context.Context, ownerID string) (*models.SalesSummary, error)
}

// LedgerConfig holds tunables for SaleService
type LedgerConfig struct {
	DefaultPageLimit int
	MaxPageLimit     int
	RetryOnConflict  bool
	IdempotencyTTL   time.Duration
}

// SaleService records sales against product stock.
// Every mutation runs as one store transaction so stock always equals the
// initial stock minus the quantities of all existing sales.
type SaleService struct {
	store       SaleStore
	publisher   EventPublisher
	idempotency IdempotencyStore
	summaries   SummaryReader
	cfg         LedgerConfig
	logger      *zap.Logger
}

// NewSaleService creates a new sale service.
// publisher, idempotency and summaries may be nil.
func NewSaleService(
	store SaleStore,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	summaries SummaryReader,
	cfg LedgerConfig,
) *SaleService {
	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = 20
	}
	if cfg.DefaultPageLimit <= 0 || cfg.DefaultPageLimit > cfg.MaxPageLimit {
		cfg.DefaultPageLimit = cfg.MaxPageLimit
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}

	return &SaleService{
		store:       store,
		publisher:   publisher,
		idempotency: idempotency,
		summaries:   summaries,
		cfg:         cfg,
		logger:      util.GetLogger(),
	}
}

// CreateSaleRequest represents a request to record a sale
type CreateSaleRequest struct {
	ProductID      string           `json:"product_id"`
	Quantity       int              `json:"quantity"`
	SellingPrice   *decimal.Decimal `json:"selling_price"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// UpdateSaleRequest represents a request to revise a sale
type UpdateSaleRequest struct {
	ProductID    string           `json:"product_id"`
	Quantity     int              `json:"quantity"`
	SellingPrice *decimal.Decimal `json:"selling_price"`
}

// CreateSale records a sale and removes the sold quantity from stock
func (s *SaleService) CreateSale(ctx context.Context, ownerID string, req *CreateSaleRequest) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale",
		attribute.String("product_id", req.ProductID))
	defer span.End()

	if err := validateSaleInput(ownerID, req.ProductID, req.Quantity, req.SellingPrice); err != nil {
		util.SalesFailedTotal.WithLabelValues("create", failureReason(err)).Inc()
		return nil, err
	}

	reserved, existing, err := s.claimIdempotent(ctx, ownerID, req.IdempotencyKey)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("create", failureReason(err)).Inc()
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var sale *models.Sale
	err = s.runLedgerTx(ctx, "create", func(tx store.LedgerTx) error {
		product, err := tx.LockProduct(ctx, ownerID, req.ProductID)
		if err != nil {
			return err
		}

		if product.Quantity < req.Quantity {
			return fmt.Errorf("%w: product %s has %d in stock, %d requested",
				ErrInsufficientStock, product.ID, product.Quantity, req.Quantity)
		}

		total, profit := saleTotals(*req.SellingPrice, product.CostPrice, req.Quantity)
		if err := validateSaleTotals(total, profit); err != nil {
			return err
		}
		candidate := &models.Sale{
			ID:           uuid.New().String(),
			OwnerID:      ownerID,
			ProductID:    product.ID,
			Quantity:     req.Quantity,
			CostPrice:    product.CostPrice,
			SellingPrice: *req.SellingPrice,
			TotalPrice:   total,
			ProfitMade:   profit,
		}

		if err := tx.AdjustStock(ctx, product.ID, -req.Quantity); err != nil {
			return err
		}
		if err := tx.InsertSale(ctx, candidate); err != nil {
			return err
		}

		sale = candidate
		return nil
	})
	if err != nil {
		if reserved {
			s.releaseIdempotent(ctx, ownerID, req.IdempotencyKey)
		}
		util.RecordSpanError(span, err)
		s.logFailure("create", ownerID, err)
		return nil, err
	}

	util.SalesCreatedTotal.Inc()
	util.UnitsSold.Add(float64(sale.Quantity))
	s.logger.Info("Sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("product_id", sale.ProductID),
		zap.Int("quantity", sale.Quantity))

	if reserved {
		s.rememberIdempotent(ctx, ownerID, req.IdempotencyKey, sale.ID)
	}
	s.publish(ctx, newSaleEvent(models.EventTypeSaleRecorded, sale, 1, sale.TotalPrice, sale.ProfitMade))

	return sale, nil
}

// UpdateSale revises a sale. The previous quantity is always credited back to
// the original product before the new quantity is taken from the new product,
// and both steps commit or roll back together.
func (s *SaleService) UpdateSale(ctx context.Context, ownerID, saleID string, req *UpdateSaleRequest) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.UpdateSale",
		attribute.String("sale_id", saleID))
	defer span.End()

	if err := validateSaleInput(ownerID, req.ProductID, req.Quantity, req.SellingPrice); err != nil {
		util.SalesFailedTotal.WithLabelValues("update", failureReason(err)).Inc()
		return nil, err
	}
	if saleID == "" {
		err := validationError("sale id is required")
		util.SalesFailedTotal.WithLabelValues("update", failureReason(err)).Inc()
		return nil, err
	}

	var updated *models.Sale
	var previous models.Sale
	err := s.runLedgerTx(ctx, "update", func(tx store.LedgerTx) error {
		sale, err := tx.LockSale(ctx, ownerID, saleID)
		if err != nil {
			return err
		}
		prior := *sale

		products, err := lockProducts(ctx, tx, ownerID, sale.ProductID, req.ProductID)
		if err != nil {
			return err
		}

		if err := tx.AdjustStock(ctx, sale.ProductID, sale.Quantity); err != nil {
			return err
		}
		products[sale.ProductID].Quantity += sale.Quantity

		product := products[req.ProductID]
		if product.Quantity < req.Quantity {
			return fmt.Errorf("%w: product %s has %d in stock, %d requested",
				ErrInsufficientStock, product.ID, product.Quantity, req.Quantity)
		}
		if err := tx.AdjustStock(ctx, product.ID, -req.Quantity); err != nil {
			return err
		}

		total, profit := saleTotals(*req.SellingPrice, product.CostPrice, req.Quantity)
		if err := validateSaleTotals(total, profit); err != nil {
			return err
		}
		sale.ProductID = product.ID
		sale.Quantity = req.Quantity
		sale.CostPrice = product.CostPrice
		sale.SellingPrice = *req.SellingPrice
		sale.TotalPrice = total
		sale.ProfitMade = profit

		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}

		updated = sale
		previous = prior
		return nil
	})
	if err != nil {
		util.RecordSpanError(span, err)
		s.logFailure("update", ownerID, err)
		return nil, err
	}

	util.SalesUpdatedTotal.Inc()
	util.UnitsSold.Add(float64(updated.Quantity - previous.Quantity))
	s.logger.Info("Sale revised",
		zap.String("sale_id", updated.ID),
		zap.String("previous_product_id", previous.ProductID),
		zap.String("product_id", updated.ProductID),
		zap.Int("previous_quantity", previous.Quantity),
		zap.Int("quantity", updated.Quantity))

	s.publish(ctx, newSaleEvent(models.EventTypeSaleRevised, updated, 0,
		updated.TotalPrice.Sub(previous.TotalPrice),
		updated.ProfitMade.Sub(previous.ProfitMade)))

	return updated, nil
}

// DeleteSale removes a sale and returns its quantity to stock
func (s *SaleService) DeleteSale(ctx context.Context, ownerID, saleID string) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.DeleteSale",
		attribute.String("sale_id", saleID))
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		util.SalesFailedTotal.WithLabelValues("delete", "unauthenticated").Inc()
		return nil, ErrUnauthenticated
	}
	if saleID == "" {
		err := validationError("sale id is required")
		util.SalesFailedTotal.WithLabelValues("delete", failureReason(err)).Inc()
		return nil, err
	}

	var deleted *models.Sale
	err := s.runLedgerTx(ctx, "delete", func(tx store.LedgerTx) error {
		sale, err := tx.LockSale(ctx, ownerID, saleID)
		if err != nil {
			return err
		}
		if _, err := tx.LockProduct(ctx, ownerID, sale.ProductID); err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, sale.ProductID, sale.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteSale(ctx, ownerID, sale.ID); err != nil {
			return err
		}

		deleted = sale
		return nil
	})
	if err != nil {
		util.RecordSpanError(span, err)
		s.logFailure("delete", ownerID, err)
		return nil, err
	}

	util.SalesDeletedTotal.Inc()
	util.UnitsSold.Sub(float64(deleted.Quantity))
	s.logger.Info("Sale deleted, stock restored",
		zap.String("sale_id", deleted.ID),
		zap.String("product_id", deleted.ProductID),
		zap.Int("quantity", deleted.Quantity))

	s.publish(ctx, newSaleEvent(models.EventTypeSaleVoided, deleted, -1,
		deleted.TotalPrice.Neg(), deleted.ProfitMade.Neg()))

	return deleted, nil
}

// runLedgerTx executes fn in one store transaction. A transaction conflict is
// retried once, re-running fn from scratch.
func (s *SaleService) runLedgerTx(ctx context.Context, op string, fn func(tx store.LedgerTx) error) error {
	start := time.Now()
	defer func() {
		util.LedgerTxLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	err := s.store.RunInTx(ctx, fn)
	if err != nil && s.cfg.RetryOnConflict && errors.Is(err, store.ErrTxConflict) {
		util.LedgerTxRetriesTotal.WithLabelValues(op).Inc()
		s.logger.Warn("Ledger transaction conflict, retrying",
			zap.String("operation", op),
			zap.Error(err))
		err = s.store.RunInTx(ctx, fn)
	}

	return translateStoreError(err)
}

// lockProducts locks the distinct products in ascending id order so that
// concurrent updates touching the same pair cannot deadlock
func lockProducts(ctx context.Context, tx store.LedgerTx, ownerID string, ids ...string) (map[string]*models.Product, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	products := make(map[string]*models.Product, len(unique))
	for _, id := range unique {
		p, err := tx.LockProduct(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		products[id] = p
	}
	return products, nil
}

// saleTotals returns selling_price*quantity and that total minus cost_price*quantity
func saleTotals(sellingPrice, costPrice decimal.Decimal, quantity int) (total, profit decimal.Decimal) {
	q := decimal.NewFromInt(int64(quantity))
	total = sellingPrice.Mul(q)
	profit = total.Sub(costPrice.Mul(q))
	return total, profit
}

// Bounds of the NUMERIC(12,2) price columns, the NUMERIC(14,2) sale amount
// columns and the INTEGER quantity columns
var (
	maxUnitPrice  = decimal.New(1, 10)
	maxSaleAmount = decimal.New(1, 12)
)

const maxQuantity = math.MaxInt32

func validateSaleInput(ownerID, productID string, quantity int, sellingPrice *decimal.Decimal) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(productID) == "" {
		return validationError("product_id is required")
	}
	if quantity <= 0 {
		return validationError("quantity must be a positive integer")
	}
	if quantity > maxQuantity {
		return validationError("quantity must not exceed %d", maxQuantity)
	}
	if sellingPrice == nil {
		return validationError("selling_price is required")
	}
	return validateMoney("selling_price", *sellingPrice)
}

// validateMoney accepts non-negative amounts with at most two decimal places
// that fit a unit price column
func validateMoney(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return validationError("%s must not be negative", field)
	}
	if !amount.Equal(amount.Round(2)) {
		return validationError("%s must have at most 2 decimal places", field)
	}
	if amount.GreaterThanOrEqual(maxUnitPrice) {
		return validationError("%s must be less than %s", field, maxUnitPrice)
	}
	return nil
}

func validateSaleTotals(total, profit decimal.Decimal) error {
	if total.Abs().GreaterThanOrEqual(maxSaleAmount) || profit.Abs().GreaterThanOrEqual(maxSaleAmount) {
		return validationError("sale total must be less than %s", maxSaleAmount)
	}
	return nil
}

// claimIdempotent reserves the request's idempotency key. When the key was
// already used it returns the sale the earlier request recorded, or
// ErrConflict while that request is still in flight. Idempotency store
// failures are logged and the request is processed without a reservation.
func (s *SaleService) claimIdempotent(ctx context.Context, ownerID, key string) (bool, *models.Sale, error) {
	if key == "" || s.idempotency == nil {
		return false, nil, nil
	}
	fullKey := idempotencyKey(ownerID, key)

	reserved, err := s.idempotency.ReserveIdempotencyKey(ctx, fullKey, idempotencyPending, s.cfg.IdempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency reservation failed, processing request",
			zap.String("idempotency_key", key),
			zap.Error(err))
		return false, nil, nil
	}
	if reserved {
		return true, nil, nil
	}

	saleID, found, err := s.idempotency.GetIdempotencyKey(ctx, fullKey)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed, processing request",
			zap.String("idempotency_key", key),
			zap.Error(err))
		return false, nil, nil
	}
	if !found {
		return false, nil, fmt.Errorf("%w: idempotency key %s expired while being checked, retry the request", ErrConflict, key)
	}
	if saleID == idempotencyPending {
		return false, nil, fmt.Errorf("%w: a request with idempotency key %s is in progress", ErrConflict, key)
	}

	existing, err := s.store.GetSale(ctx, ownerID, saleID)
	if err != nil {
		s.logger.Warn("Idempotency key points at a missing sale, processing request",
			zap.String("idempotency_key", key),
			zap.String("sale_id", saleID),
			zap.Error(err))
		return false, nil, nil
	}

	util.IdempotentReplaysTotal.Inc()
	s.logger.Info("Duplicate sale request detected",
		zap.String("idempotency_key", key),
		zap.String("sale_id", saleID))
	return false, &existing.Sale, nil
}

func (s *SaleService) rememberIdempotent(ctx context.Context, ownerID, key, saleID string) {
	if err := s.idempotency.SetIdempotencyKey(ctx, idempotencyKey(ownerID, key), saleID, s.cfg.IdempotencyTTL); err != nil {
		s.logger.Error("Failed to store idempotency key",
			zap.String("idempotency_key", key),
			zap.String("sale_id", saleID),
			zap.Error(err))
	}
}

func (s *SaleService) releaseIdempotent(ctx context.Context, ownerID, key string) {
	if err := s.idempotency.ReleaseIdempotencyKey(ctx, idempotencyKey(ownerID, key)); err != nil {
		s.logger.Warn("Failed to release idempotency key",
			zap.String("idempotency_key", key),
			zap.Error(err))
	}
}

func idempotencyKey(ownerID, key string) string {
	return "sale:" + ownerID + ":" + key
}

func (s *SaleService) publish(ctx context.Context, event *models.SaleEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSaleEvent(ctx, event); err != nil {
		util.SaleEventsPublishFailedTotal.Inc()
		s.logger.Error("Failed to publish sale event",
			zap.String("event_type", event.EventType),
			zap.String("sale_id", event.SaleID),
			zap.Error(err))
	}
}

func (s *SaleService) logFailure(op, ownerID string, err error) {
	reason := failureReason(err)
	util.SalesFailedTotal.WithLabelValues(op, reason).Inc()

	if reason == "store_failure" {
		s.logger.Error("Ledger operation failed",
			zap.String("operation", op),
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return
	}
	s.logger.Info("Ledger operation rejected",
		zap.String("operation", op),
		zap.String("owner_id", ownerID),
		zap.String("reason", reason),
		zap.Error(err))
}

func newSaleEvent(eventType string, sale *models.Sale, countDelta int64, totalDelta, profitDelta decimal.Decimal) *models.SaleEvent {
	return &models.SaleEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		OwnerID:     sale.OwnerID,
		SaleID:      sale.ID,
		ProductID:   sale.ProductID,
		Quantity:    sale.Quantity,
		TotalPrice:  sale.TotalPrice,
		ProfitMade:  sale.ProfitMade,
		CountDelta:  countDelta,
		TotalDelta:  totalDelta,
		ProfitDelta: profitDelta,
	}
}
