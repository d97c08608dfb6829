// Package memory is an in-process implementation of checkout.Store. Commits
// are serialized by a single mutex and staged on a private copy, so a failed
// unit of work leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/pricing"
)

// Store keeps products, customers and the sales ledger in memory.
type Store struct {
	mu        sync.RWMutex
	products  map[string]cart.Product
	customers map[string]checkout.Customer
	sales     map[string]checkout.Sale
	order     []string

	// Calls counts every method invocation, for tests that assert no storage access.
	callsMu sync.Mutex
	calls   int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products:  make(map[string]cart.Product),
		customers: make(map[string]checkout.Customer),
		sales:     make(map[string]checkout.Sale),
	}
}

func (s *Store) touch() {
	s.callsMu.Lock()
	s.calls++
	s.callsMu.Unlock()
}

// Calls returns the number of store operations performed so far.
func (s *Store) Calls() int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p cart.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// PutCustomer inserts or replaces a customer.
func (s *Store) PutCustomer(c checkout.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// ListProducts returns products of storeID ordered by id; an empty storeID lists all.
func (s *Store) ListProducts(storeID string) []cart.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cart.Product, 0, len(s.products))
	for _, p := range s.products {
		if storeID == "" || p.StoreID == storeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sales returns committed sales in commit order.
func (s *Store) Sales() []checkout.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]checkout.Sale, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sales[id])
	}
	return out
}

// GetProduct implements checkout.Store.
func (s *Store) GetProduct(ctx context.Context, id string) (cart.Product, error) {
	s.touch()
	if err := ctx.Err(); err != nil {
		return cart.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return cart.Product{}, fmt.Errorf("product %s: %w", id, checkout.ErrRecordNotFound)
	}
	return p, nil
}

// GetCustomer implements checkout.Store.
func (s *Store) GetCustomer(ctx context.Context, id string) (checkout.Customer, error) {
	s.touch()
	if err := ctx.Err(); err != nil {
		return checkout.Customer{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return checkout.Customer{}, fmt.Errorf("customer %s: %w", id, checkout.ErrRecordNotFound)
	}
	return c, nil
}

// GetSale implements checkout.Store.
func (s *Store) GetSale(ctx context.Context, id string) (checkout.Sale, error) {
	s.touch()
	if err := ctx.Err(); err != nil {
		return checkout.Sale{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return checkout.Sale{}, fmt.Errorf("sale %s: %w", id, checkout.ErrRecordNotFound)
	}
	sale.Lines = append([]checkout.SaleLine(nil), sale.Lines...)
	return sale, nil
}

// WithinTx implements checkout.Store. Writes go to a staging tx that is
// applied to the store only if fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	s.touch()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &stagedTx{
		store:     s,
		stock:     make(map[string]int),
		customers: make(map[string]checkout.Customer),
		sales:     make(map[string]checkout.Sale),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.apply()
	return nil
}

type stagedTx struct {
	store     *Store
	stock     map[string]int
	customers map[string]checkout.Customer
	sales     map[string]checkout.Sale
	order     []string
}

func (t *stagedTx) InsertSale(ctx context.Context, sale checkout.Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := t.store.sales[sale.ID]; exists {
		return fmt.Errorf("sale %s already exists", sale.ID)
	}
	if _, exists := t.sales[sale.ID]; exists {
		return fmt.Errorf("sale %s already exists", sale.ID)
	}
	sale.Lines = nil
	t.sales[sale.ID] = sale
	t.order = append(t.order, sale.ID)
	return nil
}

func (t *stagedTx) InsertSaleLine(ctx context.Context, line checkout.SaleLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sale, ok := t.sales[line.SaleID]
	if !ok {
		return fmt.Errorf("sale %s: %w", line.SaleID, checkout.ErrRecordNotFound)
	}
	if _, ok := t.store.products[line.ProductID]; !ok {
		return fmt.Errorf("product %s: %w", line.ProductID, checkout.ErrRecordNotFound)
	}
	sale.Lines = append(sale.Lines, line)
	t.sales[line.SaleID] = sale
	return nil
}

func (t *stagedTx) Stock(ctx context.Context, productID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if v, ok := t.stock[productID]; ok {
		return v, nil
	}
	p, ok := t.store.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, checkout.ErrRecordNotFound)
	}
	return p.Stock, nil
}

func (t *stagedTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	current, err := t.Stock(ctx, productID)
	if err != nil {
		if ctx.Err() == nil {
			return false, nil
		}
		return false, err
	}
	if qty <= 0 || current < qty {
		return false, nil
	}
	t.stock[productID] = current - qty
	return true, nil
}

func (t *stagedTx) CreditCustomer(ctx context.Context, customerID string, amount pricing.Money, points int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ok := t.customers[customerID]
	if !ok {
		c, ok = t.store.customers[customerID]
		if !ok {
			return fmt.Errorf("customer %s: %w", customerID, checkout.ErrRecordNotFound)
		}
	}
	c.TotalSpent += amount
	c.LoyaltyPoints += points
	t.customers[customerID] = c
	return nil
}

func (t *stagedTx) apply() {
	s := t.store
	for id, stock := range t.stock {
		p := s.products[id]
		p.Stock = stock
		s.products[id] = p
	}
	for id, c := range t.customers {
		s.customers[id] = c
	}
	for _, id := range t.order {
		s.sales[id] = t.sales[id]
		s.order = append(s.order, id)
	}
}
