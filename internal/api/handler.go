package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/service"
	"bizpadi-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SaleLedger is the sale operations the HTTP layer exposes
type SaleLedger interface {
	CreateSale(ctx context.Context, ownerID string, req *service.CreateSaleRequest) (*models.Sale, error)
	UpdateSale(ctx context.Context, ownerID, saleID string, req *service.UpdateSaleRequest) (*models.Sale, error)
	DeleteSale(ctx context.Context, ownerID, saleID string) (*models.Sale, error)
	GetSale(ctx context.Context, ownerID, saleID string) (*models.SaleWithProduct, error)
	ListSales(ctx context.Context, ownerID string, q service.ListSalesQuery) (*service.SalesPage, error)
	Summary(ctx context.Context, ownerID string) (*models.SalesSummary, error)
}

// ProductCatalog is the product operations the HTTP layer exposes
type ProductCatalog interface {
	CreateProduct(ctx context.Context, ownerID string, req *service.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, ownerID, productID string) (*models.Product, error)
	UpdateProduct(ctx context.Context, ownerID, productID string, req *service.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, ownerID, productID string) (*models.Product, error)
}

// ClientBook is the client operations the HTTP layer exposes
type ClientBook interface {
	CreateClient(ctx context.Context, ownerID string, req *service.CreateClientRequest) (*models.Client, error)
	GetClient(ctx context.Context, ownerID, clientID string) (*models.Client, error)
	UpdateClient(ctx context.Context, ownerID, clientID string, req *service.UpdateClientRequest) (*models.Client, error)
	DeleteClient(ctx context.Context, ownerID, clientID string) error
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	sales        SaleLedger
	products     ProductCatalog
	clients      ClientBook
	accessSecret string
	pingers      map[string]Pinger
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(sales SaleLedger, products ProductCatalog, clients ClientBook, accessSecret string, pingers map[string]Pinger) *Handler {
	return &Handler{
		sales:        sales,
		products:     products,
		clients:      clients,
		accessSecret: accessSecret,
		pingers:      pingers,
		logger:       util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(h.accessSecret))
	{
		v1.POST("/sales", h.createSale)
		v1.GET("/sales", h.listSales)
		v1.GET("/sales/summary", h.salesSummary)
		v1.GET("/sales/:id", h.getSale)
		v1.PUT("/sales/:id", h.updateSale)
		v1.DELETE("/sales/:id", h.deleteSale)

		v1.POST("/products", h.createProduct)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)

		v1.POST("/clients", h.createClient)
		v1.GET("/clients/:id", h.getClient)
		v1.PUT("/clients/:id", h.updateClient)
		v1.DELETE("/clients/:id", h.deleteClient)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			ready = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// createSale handles sale creation
func (h *Handler) createSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	sale, err := h.sales.CreateSale(c.Request.Context(), ownerID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Sale recorded successfully",
		"sale":    sale,
	})
}

// listSales handles paginated sale listing
func (h *Handler) listSales(c *gin.Context) {
	page, err := intQuery(c, "page")
	if err != nil {
		h.respondError(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.sales.ListSales(c.Request.Context(), ownerID(c), service.ListSalesQuery{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"total":       result.Total,
		"page":        result.Page,
		"pages":       result.Pages,
		"limit":       result.Limit,
		"totalSales":  result.TotalSales,
		"totalProfit": result.TotalProfit,
		"data":        result.Data,
	})
}

// salesSummary handles lifetime totals
func (h *Handler) salesSummary(c *gin.Context) {
	summary, err := h.sales.Summary(c.Request.Context(), ownerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// getSale handles get sale by ID
func (h *Handler) getSale(c *gin.Context) {
	sale, err := h.sales.GetSale(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": sale})
}

// updateSale handles sale revision
func (h *Handler) updateSale(c *gin.Context) {
	var req service.UpdateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	sale, err := h.sales.UpdateSale(c.Request.Context(), ownerID(c), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": sale})
}

// deleteSale handles sale deletion
func (h *Handler) deleteSale(c *gin.Context) {
	sale, err := h.sales.DeleteSale(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Sale deleted successfully",
		"data":    sale,
	})
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), ownerID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Product created successfully",
		"product": product,
	})
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.products.GetProduct(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
}

// updateProduct handles product edits
func (h *Handler) updateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), ownerID(c), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
}

// deleteProduct handles product deletion; the product's sales go with it
func (h *Handler) deleteProduct(c *gin.Context) {
	product, err := h.products.DeleteProduct(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product deleted successfully",
		"data":    product,
	})
}

func (h *Handler) createClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	client, err := h.clients.CreateClient(c.Request.Context(), ownerID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Client created successfully",
		"client":  client,
	})
}

func (h *Handler) getClient(c *gin.Context) {
	client, err := h.clients.GetClient(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": client})
}

func (h *Handler) updateClient(c *gin.Context) {
	var req service.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, invalidBody(err))
		return
	}

	client, err := h.clients.UpdateClient(c.Request.Context(), ownerID(c), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": client})
}

func (h *Handler) deleteClient(c *gin.Context) {
	if err := h.clients.DeleteClient(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Client deleted successfully",
	})
}

// statusFor maps the ledger error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		message = "internal server error"
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

func invalidBody(err error) error {
	return fmt.Errorf("%w: invalid request body: %v", service.ErrValidation, err)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", service.ErrValidation, name)
	}
	return n, nil
}
