package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/store"
	"bizpadi-api/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListSalesQuery selects a page of sales. Zero Page or Limit means the default.
type ListSalesQuery struct {
	Page   int
	Limit  int
	Search string
}

// SalesPage is one page of sales with totals over that page only
type SalesPage struct {
	Data        []models.SaleWithProduct `json:"data"`
	Total       int                      `json:"total"`
	Page        int                      `json:"page"`
	Pages       int                      `json:"pages"`
	Limit       int                      `json:"limit"`
	TotalSales  decimal.Decimal          `json:"totalSales"`
	TotalProfit decimal.Decimal          `json:"totalProfit"`
}

// ListSales returns a page of the owner's sales, newest first.
// An empty result is an empty page with Total 0, not an error.
func (s *SaleService) ListSales(ctx context.Context, ownerID string, q ListSalesQuery) (*SalesPage, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.ListSales")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}

	page, limit, err := s.resolvePaging(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}

	sales, total, err := s.store.ListSales(ctx, store.SaleFilter{
		OwnerID: ownerID,
		Search:  strings.TrimSpace(q.Search),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		s.logger.Error("Failed to list sales", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, translateStoreError(err)
	}

	result := &SalesPage{
		Data:        sales,
		Total:       total,
		Page:        page,
		Pages:       (total + limit - 1) / limit,
		Limit:       limit,
		TotalSales:  decimal.Zero,
		TotalProfit: decimal.Zero,
	}
	for _, sale := range sales {
		result.TotalSales = result.TotalSales.Add(sale.TotalPrice)
		result.TotalProfit = result.TotalProfit.Add(sale.ProfitMade)
	}

	return result, nil
}

// GetSale retrieves a single sale with its product name
func (s *SaleService) GetSale(ctx context.Context, ownerID, saleID string) (*models.SaleWithProduct, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.GetSale")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	if saleID == "" {
		return nil, validationError("sale id is required")
	}

	sale, err := s.store.GetSale(ctx, ownerID, saleID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return sale, nil
}

// Summary returns lifetime totals across all of the owner's sales
func (s *SaleService) Summary(ctx context.Context, ownerID string) (*models.SalesSummary, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.Summary")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	if s.summaries == nil {
		return nil, fmt.Errorf("%w: sales summary is not configured", ErrStoreFailure)
	}

	summary, err := s.summaries.GetSalesSummary(ctx, ownerID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return summary, nil
}

func (s *SaleService) resolvePaging(page, limit int) (int, int, error) {
	if page < 0 {
		return 0, 0, validationError("page must be a positive integer")
	}
	if page == 0 {
		page = 1
	}

	if limit < 0 {
		return 0, 0, validationError("limit must be a positive integer")
	}
	if limit == 0 {
		limit = s.cfg.DefaultPageLimit
	}
	if limit > s.cfg.MaxPageLimit {
		return 0, 0, validationError("limit must not exceed %d", s.cfg.MaxPageLimit)
	}
	if page-1 > math.MaxInt/limit {
		return 0, 0, validationError("page %d is out of range", page)
	}

	return page, limit, nil
}
