// Package postgres implements checkout.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/obs"
	"github.com/noah-isme/kasir/internal/pricing"
)

// Store is a pgx backed checkout.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a traced pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if appName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// GetProduct implements checkout.Store.
func (s *Store) GetProduct(ctx context.Context, id string) (cart.Product, error) {
	var p cart.Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, store_id, name, price, stock FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Product{}, fmt.Errorf("product %s: %w", id, checkout.ErrRecordNotFound)
		}
		return cart.Product{}, err
	}
	return p, nil
}

// GetCustomer implements checkout.Store.
func (s *Store) GetCustomer(ctx context.Context, id string) (checkout.Customer, error) {
	var c checkout.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, total_spent, loyalty_points FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.TotalSpent, &c.LoyaltyPoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkout.Customer{}, fmt.Errorf("customer %s: %w", id, checkout.ErrRecordNotFound)
		}
		return checkout.Customer{}, err
	}
	return c, nil
}

// GetSale implements checkout.Store.
func (s *Store) GetSale(ctx context.Context, id string) (checkout.Sale, error) {
	var sale checkout.Sale
	err := s.pool.QueryRow(ctx, `
		SELECT id, store_id, cashier_id, COALESCE(customer_id, ''), subtotal, discount, tax, total,
		       payment_method, loyalty_points, status, created_at
		FROM sales WHERE id = $1`, id,
	).Scan(&sale.ID, &sale.StoreID, &sale.CashierID, &sale.CustomerID, &sale.Subtotal, &sale.Discount,
		&sale.Tax, &sale.Total, &sale.PaymentMethod, &sale.LoyaltyPoints, &sale.Status, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkout.Sale{}, fmt.Errorf("sale %s: %w", id, checkout.ErrRecordNotFound)
		}
		return checkout.Sale{}, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.pool.Query(ctx, `
		SELECT sale_id, line_no, product_id, name, quantity, unit_price, line_subtotal
		FROM sale_lines WHERE sale_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return checkout.Sale{}, err
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (checkout.SaleLine, error) {
		var l checkout.SaleLine
		err := row.Scan(&l.SaleID, &l.LineNo, &l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineSubtotal)
		return l, err
	})
	if err != nil {
		return checkout.Sale{}, err
	}
	sale.Lines = lines
	return sale, nil
}

// WithinTx implements checkout.Store. The unit of work runs at read committed;
// stock safety comes from the conditional decrement, not the isolation level.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()
	if err := fn(ctx, pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertProduct inserts or replaces a product; used by seeding and tests.
func (s *Store) UpsertProduct(ctx context.Context, p cart.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, store_id, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET store_id = EXCLUDED.store_id, name = EXCLUDED.name, price = EXCLUDED.price,
		    stock = EXCLUDED.stock, updated_at = now()`,
		p.ID, p.StoreID, p.Name, p.Price, p.Stock)
	return err
}

// UpsertCustomer inserts or replaces a customer; used by seeding and tests.
func (s *Store) UpsertCustomer(ctx context.Context, c checkout.Customer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customers (id, name, total_spent, loyalty_points)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, total_spent = EXCLUDED.total_spent, loyalty_points = EXCLUDED.loyalty_points`,
		c.ID, c.Name, c.TotalSpent, c.LoyaltyPoints)
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) InsertSale(ctx context.Context, sale checkout.Sale) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sales (id, store_id, cashier_id, customer_id, subtotal, discount, tax, total,
		                   payment_method, loyalty_points, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sale.ID, sale.StoreID, sale.CashierID, nullable(sale.CustomerID), sale.Subtotal, sale.Discount,
		sale.Tax, sale.Total, sale.PaymentMethod, sale.LoyaltyPoints, string(sale.Status), sale.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("sale %s already exists: %w", sale.ID, err)
	}
	return err
}

func (t pgTx) InsertSaleLine(ctx context.Context, line checkout.SaleLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sale_lines (sale_id, line_no, product_id, name, quantity, unit_price, line_subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		line.SaleID, line.LineNo, line.ProductID, line.Name, line.Quantity, line.UnitPrice, line.LineSubtotal)
	return err
}

func (t pgTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2 AND stock >= $1`,
		qty, productID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t pgTx) Stock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("product %s: %w", productID, checkout.ErrRecordNotFound)
	}
	return stock, err
}

func (t pgTx) CreditCustomer(ctx context.Context, customerID string, amount pricing.Money, points int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE customers SET total_spent = total_spent + $2, loyalty_points = loyalty_points + $3 WHERE id = $1`,
		customerID, amount, points)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", customerID, checkout.ErrRecordNotFound)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
