// Package memstore is an in-memory store with the same transactional
// semantics as the Postgres store. Transactions run one at a time against a
// copy of the data and replace it only on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bizpadi-api/internal/models"
	"bizpadi-api/internal/store"
)

// Operation names accepted by FailOn
const (
	OpLockProduct        = "LockProduct"
	OpAdjustStock        = "AdjustStock"
	OpInsertSale         = "InsertSale"
	OpLockSale           = "LockSale"
	OpUpdateSale         = "UpdateSale"
	OpDeleteSale         = "DeleteSale"
	OpUpdateProduct      = "UpdateProduct"
	OpDeleteProductSales = "DeleteProductSales"
	OpDeleteProduct      = "DeleteProduct"
	OpCommit             = "Commit"
)

type Store struct {
	mu       sync.Mutex
	products map[string]models.Product
	sales    map[string]models.Sale
	clients  map[string]models.Client
	failures map[string][]error
	clock    time.Time
	txCount  int
}

// New creates an empty store
func New() *Store {
	return &Store{
		products: make(map[string]models.Product),
		sales:    make(map[string]models.Sale),
		clients:  make(map[string]models.Client),
		failures: make(map[string][]error),
		clock:    time.Date(2025, 4, 22, 9, 0, 0, 0, time.UTC),
	}
}

// FailOn makes the next call of op inside a transaction return err.
// Repeated calls queue further failures for the same op.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// TxCount returns how many transactions have been started
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *Store) takeFailure(op string) error {
	queued := s.failures[op]
	if len(queued) == 0 {
		return nil
	}
	s.failures[op] = queued[1:]
	return queued[0]
}

// RunInTx runs fn against a private copy of the data and publishes the copy
// only when fn and the commit succeed
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	tx := &Tx{
		store:    s,
		products: make(map[string]models.Product, len(s.products)),
		sales:    make(map[string]models.Sale, len(s.sales)),
	}
	for id, p := range s.products {
		tx.products[id] = p
	}
	for id, sale := range s.sales {
		tx.sales[id] = sale
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.takeFailure(OpCommit); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.products = tx.products
	s.sales = tx.sales
	return nil
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return fmt.Errorf("product %s: %w", product.ID, store.ErrDuplicate)
	}
	if product.Quantity < 0 {
		return fmt.Errorf("product %s: %w", product.ID, store.ErrNegativeStock)
	}

	now := s.tick()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = *product
	return nil
}

// GetProduct retrieves a product owned by ownerID
func (s *Store) GetProduct(_ context.Context, ownerID, productID string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || p.OwnerID != ownerID {
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	return &p, nil
}

// GetSale retrieves a sale joined with its product name
func (s *Store) GetSale(_ context.Context, ownerID, saleID string) (*models.SaleWithProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok || sale.OwnerID != ownerID {
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	return &models.SaleWithProduct{Sale: sale, ProductName: s.products[sale.ProductID].Name}, nil
}

// ListSales returns one page of an owner's sales, newest first, and the total match count
func (s *Store) ListSales(_ context.Context, f store.SaleFilter) ([]models.SaleWithProduct, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(f.Search)
	matched := []models.SaleWithProduct{}
	for _, sale := range s.sales {
		if sale.OwnerID != f.OwnerID {
			continue
		}
		name := s.products[sale.ProductID].Name
		if search != "" && !strings.Contains(strings.ToLower(name), search) {
			continue
		}
		matched = append(matched, models.SaleWithProduct{Sale: sale, ProductName: name})
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Tx implements store.LedgerTx over a private copy of the store's data
type Tx struct {
	store    *Store
	products map[string]models.Product
	sales    map[string]models.Sale
}

func (t *Tx) LockProduct(_ context.Context, ownerID, productID string) (*models.Product, error) {
	if err := t.store.takeFailure(OpLockProduct); err != nil {
		return nil, err
	}
	p, ok := t.products[productID]
	if !ok || p.OwnerID != ownerID {
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	return &p, nil
}

func (t *Tx) AdjustStock(_ context.Context, productID string, delta int) error {
	if err := t.store.takeFailure(OpAdjustStock); err != nil {
		return err
	}
	p, ok := t.products[productID]
	if !ok || p.Quantity+delta < 0 {
		return fmt.Errorf("product %s delta %d: %w", productID, delta, store.ErrNegativeStock)
	}
	p.Quantity += delta
	p.UpdatedAt = t.store.tick()
	t.products[productID] = p
	return nil
}

func (t *Tx) InsertSale(_ context.Context, sale *models.Sale) error {
	if err := t.store.takeFailure(OpInsertSale); err != nil {
		return err
	}
	if _, exists := t.sales[sale.ID]; exists {
		return fmt.Errorf("sale %s already exists", sale.ID)
	}
	now := t.store.tick()
	sale.CreatedAt = now
	sale.UpdatedAt = now
	t.sales[sale.ID] = *sale
	return nil
}

func (t *Tx) LockSale(_ context.Context, ownerID, saleID string) (*models.Sale, error) {
	if err := t.store.takeFailure(OpLockSale); err != nil {
		return nil, err
	}
	sale, ok := t.sales[saleID]
	if !ok || sale.OwnerID != ownerID {
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	return &sale, nil
}

func (t *Tx) UpdateSale(_ context.Context, sale *models.Sale) error {
	if err := t.store.takeFailure(OpUpdateSale); err != nil {
		return err
	}
	existing, ok := t.sales[sale.ID]
	if !ok || existing.OwnerID != sale.OwnerID {
		return fmt.Errorf("sale %s: %w", sale.ID, store.ErrNotFound)
	}
	sale.CreatedAt = existing.CreatedAt
	sale.UpdatedAt = t.store.tick()
	t.sales[sale.ID] = *sale
	return nil
}

func (t *Tx) DeleteSale(_ context.Context, ownerID, saleID string) error {
	if err := t.store.takeFailure(OpDeleteSale); err != nil {
		return err
	}
	sale, ok := t.sales[saleID]
	if !ok || sale.OwnerID != ownerID {
		return fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	delete(t.sales, saleID)
	return nil
}

func (t *Tx) UpdateProduct(_ context.Context, product *models.Product) error {
	if err := t.store.takeFailure(OpUpdateProduct); err != nil {
		return err
	}
	existing, ok := t.products[product.ID]
	if !ok || existing.OwnerID != product.OwnerID {
		return fmt.Errorf("product %s: %w", product.ID, store.ErrNotFound)
	}
	if product.Quantity < 0 {
		return fmt.Errorf("product %s: %w", product.ID, store.ErrNegativeStock)
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = t.store.tick()
	t.products[product.ID] = *product
	return nil
}

func (t *Tx) DeleteProductSales(_ context.Context, ownerID, productID string) ([]models.Sale, error) {
	if err := t.store.takeFailure(OpDeleteProductSales); err != nil {
		return nil, err
	}
	removed := []models.Sale{}
	for id, sale := range t.sales {
		if sale.ProductID == productID && sale.OwnerID == ownerID {
			removed = append(removed, sale)
			delete(t.sales, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed, nil
}

func (t *Tx) DeleteProduct(_ context.Context, ownerID, productID string) error {
	if err := t.store.takeFailure(OpDeleteProduct); err != nil {
		return err
	}
	p, ok := t.products[productID]
	if !ok || p.OwnerID != ownerID {
		return fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	delete(t.products, productID)
	return nil
}

// CreateClient inserts a new client.
// Email and phone number are unique per owner.
func (s *Store) CreateClient(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return fmt.Errorf("client %s: %w", client.ID, store.ErrDuplicate)
	}
	if err := s.checkClientUnique(client); err != nil {
		return err
	}

	now := s.tick()
	client.CreatedAt = now
	client.UpdatedAt = now
	s.clients[client.ID] = *client
	return nil
}

// GetClient retrieves a client owned by ownerID
func (s *Store) GetClient(_ context.Context, ownerID, clientID string) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok || c.OwnerID != ownerID {
		return nil, fmt.Errorf("client %s: %w", clientID, store.ErrNotFound)
	}
	return &c, nil
}

// UpdateClient rewrites a client's contact fields
func (s *Store) UpdateClient(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[client.ID]
	if !ok || existing.OwnerID != client.OwnerID {
		return fmt.Errorf("client %s: %w", client.ID, store.ErrNotFound)
	}
	if err := s.checkClientUnique(client); err != nil {
		return err
	}

	client.CreatedAt = existing.CreatedAt
	client.UpdatedAt = s.tick()
	s.clients[client.ID] = *client
	return nil
}

// DeleteClient removes a client
func (s *Store) DeleteClient(_ context.Context, ownerID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok || c.OwnerID != ownerID {
		return fmt.Errorf("client %s: %w", clientID, store.ErrNotFound)
	}
	delete(s.clients, clientID)
	return nil
}

func (s *Store) checkClientUnique(client *models.Client) error {
	for id, other := range s.clients {
		if id == client.ID || other.OwnerID != client.OwnerID {
			continue
		}
		if other.Email == client.Email {
			return fmt.Errorf("%w: clients_user_id_email_key", store.ErrDuplicate)
		}
		if other.PhoneNumber == client.PhoneNumber {
			return fmt.Errorf("%w: clients_user_id_phone_number_key", store.ErrDuplicate)
		}
	}
	return nil
}
