package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleRecorded = "SALE_RECORDED"
	EventTypeSaleRevised  = "SALE_REVISED"
	EventTypeSaleVoided   = "SALE_VOIDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleEvent is published after a ledger operation commits.
// The delta fields describe the change to the owner's lifetime totals.
type SaleEvent struct {
	BaseEvent
	OwnerID     string          `json:"owner_id"`
	SaleID      string          `json:"sale_id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	ProfitMade  decimal.Decimal `json:"profit_made"`
	CountDelta  int64           `json:"count_delta"`
	TotalDelta  decimal.Decimal `json:"total_delta"`
	ProfitDelta decimal.Decimal `json:"profit_delta"`
}
