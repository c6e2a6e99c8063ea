package service

import (
	"context"
	"strings"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/store"
	"bizpadi-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductStore is the persistence ProductService depends on
type ProductStore interface {
	RunInTx(ctx context.Context, fn func(tx store.LedgerTx) error) error
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, ownerID, productID string) (*models.Product, error)
}

// ProductService manages the products sales are recorded against
type ProductService struct {
	store     ProductStore
	publisher EventPublisher
	logger    *zap.Logger
}

// NewProductService creates a new product service.
// publisher may be nil; it receives SALE_VOIDED events for sales removed
// together with a deleted product.
func NewProductService(store ProductStore, publisher EventPublisher) *ProductService {
	return &ProductService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateProductRequest represents a request to add a product
type CreateProductRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageURL    string           `json:"image_url"`
	CostPrice   *decimal.Decimal `json:"cost_price"`
	Quantity    int              `json:"quantity"`
}

// CreateProduct adds a product with its opening stock
func (ps *ProductService) CreateProduct(ctx context.Context, ownerID string, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationError("name is required")
	}
	if req.CostPrice == nil {
		return nil, validationError("cost_price is required")
	}
	if err := validateMoney("cost_price", *req.CostPrice); err != nil {
		return nil, err
	}
	if err := validateStock(req.Quantity); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		CostPrice:   *req.CostPrice,
		Quantity:    req.Quantity,
	}

	if err := ps.store.CreateProduct(ctx, product); err != nil {
		ps.logger.Error("Failed to create product", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, translateStoreError(err)
	}

	ps.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.Int("quantity", product.Quantity))
	return product, nil
}

// GetProduct retrieves a product owned by ownerID
func (ps *ProductService) GetProduct(ctx context.Context, ownerID, productID string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}

	product, err := ps.store.GetProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return product, nil
}

// UpdateProductRequest represents a partial product edit. Nil fields are left unchanged.
// A new cost price applies to sales recorded or revised afterwards.
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	ImageURL    *string          `json:"image_url"`
	CostPrice   *decimal.Decimal `json:"cost_price"`
	Quantity    *int             `json:"quantity"`
}

// UpdateProduct edits a product. Setting Quantity replaces the stock on hand.
func (ps *ProductService) UpdateProduct(ctx context.Context, ownerID, productID string, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct",
		attribute.String("product_id", productID))
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, validationError("name must not be empty")
	}
	if req.CostPrice != nil {
		if err := validateMoney("cost_price", *req.CostPrice); err != nil {
			return nil, err
		}
	}
	if req.Quantity != nil {
		if err := validateStock(*req.Quantity); err != nil {
			return nil, err
		}
	}

	var updated *models.Product
	err := ps.store.RunInTx(ctx, func(tx store.LedgerTx) error {
		product, err := tx.LockProduct(ctx, ownerID, productID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			product.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			product.Description = *req.Description
		}
		if req.Category != nil {
			product.Category = *req.Category
		}
		if req.ImageURL != nil {
			product.ImageURL = *req.ImageURL
		}
		if req.CostPrice != nil {
			product.CostPrice = *req.CostPrice
		}
		if req.Quantity != nil {
			product.Quantity = *req.Quantity
		}

		if err := tx.UpdateProduct(ctx, product); err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		err = translateStoreError(err)
		util.RecordSpanError(span, err)
		ps.logger.Warn("Failed to update product",
			zap.String("product_id", productID),
			zap.Error(err))
		return nil, err
	}

	ps.logger.Info("Product updated",
		zap.String("product_id", updated.ID),
		zap.Int("quantity", updated.Quantity))
	return updated, nil
}

// DeleteProduct removes a product together with every sale recorded
// against it, in one transaction
func (ps *ProductService) DeleteProduct(ctx context.Context, ownerID, productID string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct",
		attribute.String("product_id", productID))
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}

	var deleted *models.Product
	var voided []models.Sale
	err := ps.store.RunInTx(ctx, func(tx store.LedgerTx) error {
		product, err := tx.LockProduct(ctx, ownerID, productID)
		if err != nil {
			return err
		}
		sales, err := tx.DeleteProductSales(ctx, ownerID, productID)
		if err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, ownerID, productID); err != nil {
			return err
		}

		deleted = product
		voided = sales
		return nil
	})
	if err != nil {
		err = translateStoreError(err)
		util.RecordSpanError(span, err)
		ps.logger.Warn("Failed to delete product",
			zap.String("product_id", productID),
			zap.Error(err))
		return nil, err
	}

	ps.logger.Info("Product deleted",
		zap.String("product_id", deleted.ID),
		zap.Int("sales_removed", len(voided)))

	for i := range voided {
		sale := &voided[i]
		ps.publish(ctx, newSaleEvent(models.EventTypeSaleVoided, sale, -1,
			sale.TotalPrice.Neg(), sale.ProfitMade.Neg()))
	}
	return deleted, nil
}

func (ps *ProductService) publish(ctx context.Context, event *models.SaleEvent) {
	if ps.publisher == nil {
		return
	}
	if err := ps.publisher.PublishSaleEvent(ctx, event); err != nil {
		util.SaleEventsPublishFailedTotal.Inc()
		ps.logger.Error("Failed to publish sale event",
			zap.String("event_type", event.EventType),
			zap.String("sale_id", event.SaleID),
			zap.Error(err))
	}
}

func validateStock(quantity int) error {
	if quantity < 0 {
		return validationError("quantity must not be negative")
	}
	if quantity > maxQuantity {
		return validationError("quantity must not exceed %d", maxQuantity)
	}
	return nil
}
