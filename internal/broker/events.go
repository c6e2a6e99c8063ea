package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrMalformedEvent marks a message that can never be decoded
var ErrMalformedEvent = errors.New("malformed event")

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSaleEvent publishes a sale event keyed by owner so one owner's
// events stay ordered
func (ep *EventPublisher) PublishSaleEvent(ctx context.Context, event *models.SaleEvent) error {
	key := fmt.Sprintf("owner-%s", event.OwnerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSaleEvent func(context.Context, *models.SaleEvent) error
	logger      *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSaleEvent registers a handler for SALE_* events
func (eh *EventHandler) OnSaleEvent(handler func(context.Context, *models.SaleEvent) error) {
	eh.onSaleEvent = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: failed to unmarshal base event: %v", ErrMalformedEvent, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSaleRecorded, models.EventTypeSaleRevised, models.EventTypeSaleVoided:
		if eh.onSaleEvent != nil {
			var event models.SaleEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: failed to unmarshal %s event: %v", ErrMalformedEvent, baseEvent.EventType, err)
			}
			return eh.onSaleEvent(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
