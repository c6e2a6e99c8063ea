package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a stock-keeping item owned by a single user
type Product struct {
	ID          string          `db:"product_id" json:"product_id"`
	OwnerID     string          `db:"user_id" json:"user_id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Category    string          `db:"category" json:"category"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	CostPrice   decimal.Decimal `db:"cost_price" json:"cost_price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Sale represents a recorded sale of a product.
// CostPrice is the product cost captured when the sale was last applied.
type Sale struct {
	ID           string          `db:"sale_id" json:"sale_id"`
	OwnerID      string          `db:"user_id" json:"user_id"`
	ProductID    string          `db:"product_id" json:"product_id"`
	Quantity     int             `db:"quantity" json:"quantity"`
	CostPrice    decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice decimal.Decimal `db:"selling_price" json:"selling_price"`
	TotalPrice   decimal.Decimal `db:"total_price" json:"total_price"`
	ProfitMade   decimal.Decimal `db:"profit_made" json:"profit_made"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// SaleWithProduct is a sale joined with the name of the product it references
type SaleWithProduct struct {
	Sale
	ProductName string `db:"product_name" json:"product_name"`
}

// SalesSummary holds lifetime totals for an owner
type SalesSummary struct {
	OwnerID     string          `json:"user_id"`
	Count       int64           `json:"count"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

// Client is a customer contact kept by an owner
type Client struct {
	ID          string    `db:"client_id" json:"client_id"`
	OwnerID     string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Address     string    `db:"address" json:"address"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
