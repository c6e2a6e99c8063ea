package worker

import (
	"context"

	"bizpadi-api/internal/broker"
	"bizpadi-api/internal/service"
	"bizpadi-api/internal/util"

	"go.uber.org/zap"
)

// SummaryWorker consumes sale events and keeps the owner summaries current
type SummaryWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewSummaryWorker creates a new summary worker
func NewSummaryWorker(
	consumer *broker.Consumer,
	projector *service.SummaryProjector,
) *SummaryWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSaleEvent(projector.HandleSaleEvent)

	return &SummaryWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *SummaryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting summary worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SummaryWorker) Stop() error {
	w.logger.Info("Stopping summary worker")
	return w.consumer.Close()
}
