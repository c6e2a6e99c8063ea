package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bizpadi-api/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func summaryKey(ownerID string) string {
	return fmt.Sprintf("sales:summary:%s", ownerID)
}

func processedEventKey(eventID string) string {
	return fmt.Sprintf("processed:%s", eventID)
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// ReserveIdempotencyKey claims an idempotency key if nobody holds it yet
func (c *Client) ReserveIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), value, ttl).Result()
}

// ReleaseIdempotencyKey drops a reservation so the request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

// GetIdempotencyKey returns the value stored for an idempotency key
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Summary hash fields. Money is kept in integer minor units so increments stay exact.
const (
	fieldCount       = "count"
	fieldSalesCents  = "total_sales_cents"
	fieldProfitCents = "total_profit_cents"
)

// ApplySaleDelta adjusts an owner's lifetime sales totals
func (c *Client) ApplySaleDelta(ctx context.Context, ownerID string, count int64, total, profit decimal.Decimal) error {
	key := summaryKey(ownerID)

	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldCount, count)
	pipe.HIncrBy(ctx, key, fieldSalesCents, toCents(total))
	pipe.HIncrBy(ctx, key, fieldProfitCents, toCents(profit))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply sale delta: %w", err)
	}
	return nil
}

// GetSalesSummary retrieves an owner's lifetime sales totals.
// An owner with no recorded sales gets a zero summary.
func (c *Client) GetSalesSummary(ctx context.Context, ownerID string) (*models.SalesSummary, error) {
	result, err := c.rdb.HGetAll(ctx, summaryKey(ownerID)).Result()
	if err != nil {
		return nil, err
	}
	return parseSummary(ownerID, result)
}

func parseSummary(ownerID string, fields map[string]string) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{
		OwnerID:     ownerID,
		TotalSales:  decimal.Zero,
		TotalProfit: decimal.Zero,
	}

	count, err := intField(fields, fieldCount)
	if err != nil {
		return nil, err
	}
	sales, err := intField(fields, fieldSalesCents)
	if err != nil {
		return nil, err
	}
	profit, err := intField(fields, fieldProfitCents)
	if err != nil {
		return nil, err
	}

	summary.Count = count
	summary.TotalSales = decimal.New(sales, -2)
	summary.TotalProfit = decimal.New(profit, -2)
	return summary, nil
}

func intField(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid summary field %s %q: %w", name, raw, err)
	}
	return v, nil
}

// toCents converts an amount with at most two decimal places to minor units
func toCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// IsEventProcessed checks if an event has been applied
func (c *Client) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	result, err := c.rdb.Exists(ctx, processedEventKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// MarkEventProcessed records that an event has been applied
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, processedEventKey(eventID), "1", ttl).Err()
}
