package service

import (
	"context"
	"fmt"
	"time"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// processedEventTTL bounds how long duplicate deliveries are recognised
const processedEventTTL = 7 * 24 * time.Hour

// SummaryStore holds the per-owner lifetime totals
type SummaryStore interface {
	ApplySaleDelta(ctx context.Context, ownerID string, count int64, total, profit decimal.Decimal) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

// SummaryProjector folds sale events into per-owner lifetime totals
type SummaryProjector struct {
	store  SummaryStore
	logger *zap.Logger
}

// NewSummaryProjector creates a new summary projector
func NewSummaryProjector(store SummaryStore) *SummaryProjector {
	return &SummaryProjector{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandleSaleEvent applies a sale event's deltas once per event id
func (sp *SummaryProjector) HandleSaleEvent(ctx context.Context, event *models.SaleEvent) error {
	ctx, span := util.StartSpan(ctx, "SummaryProjector.HandleSaleEvent")
	defer span.End()

	processed, err := sp.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		sp.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := sp.store.ApplySaleDelta(ctx, event.OwnerID, event.CountDelta, event.TotalDelta, event.ProfitDelta); err != nil {
		return err
	}

	if err := sp.store.MarkEventProcessed(ctx, event.EventID, processedEventTTL); err != nil {
		sp.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	util.SummaryEventsAppliedTotal.WithLabelValues(event.EventType).Inc()
	sp.logger.Debug("Sale event applied to summary",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("sale_id", event.SaleID))
	return nil
}
