// Package sqlstore implements checkout.Store over database/sql for MySQL and
// SQLite. Statements use ? placeholders, which both drivers accept.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/pricing"
)

// Supported database/sql driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

var (
	//go:embed schema_mysql.sql
	mysqlSchema string
	//go:embed schema_sqlite.sql
	sqliteSchema string
)

// Store is a database/sql backed checkout.Store.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn with driver (DriverMySQL or DriverSQLite) and verifies
// the connection. MySQL DSNs are normalised to parse times in UTC and to report
// matched rather than changed rows.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.ClientFoundRows = true
		dsn = cfg.FormatDSN()
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite has a single writer; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("execute %q: %w", pragma, err)
			}
		}
	}
	return &Store{db: db, driver: driver}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the pool for tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the schema when missing. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.driver == DriverMySQL {
		schema = mysqlSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// GetProduct implements checkout.Store.
func (s *Store) GetProduct(ctx context.Context, id string) (cart.Product, error) {
	var p cart.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, store_id, name, price, stock FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return cart.Product{}, fmt.Errorf("product %s: %w", id, checkout.ErrRecordNotFound)
	}
	if err != nil {
		return cart.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

// GetCustomer implements checkout.Store.
func (s *Store) GetCustomer(ctx context.Context, id string) (checkout.Customer, error) {
	var c checkout.Customer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, total_spent, loyalty_points FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.TotalSpent, &c.LoyaltyPoints)
	if errors.Is(err, sql.ErrNoRows) {
		return checkout.Customer{}, fmt.Errorf("customer %s: %w", id, checkout.ErrRecordNotFound)
	}
	if err != nil {
		return checkout.Customer{}, fmt.Errorf("query customer: %w", err)
	}
	return c, nil
}

// GetSale implements checkout.Store.
func (s *Store) GetSale(ctx context.Context, id string) (checkout.Sale, error) {
	var (
		sale     checkout.Sale
		customer sql.NullString
		status   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, cashier_id, customer_id, subtotal, discount, tax, total,
		       payment_method, loyalty_points, status, created_at
		FROM sales WHERE id = ?`, id,
	).Scan(&sale.ID, &sale.StoreID, &sale.CashierID, &customer, &sale.Subtotal, &sale.Discount,
		&sale.Tax, &sale.Total, &sale.PaymentMethod, &sale.LoyaltyPoints, &status, &sale.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return checkout.Sale{}, fmt.Errorf("sale %s: %w", id, checkout.ErrRecordNotFound)
	}
	if err != nil {
		return checkout.Sale{}, fmt.Errorf("query sale: %w", err)
	}
	sale.CustomerID = customer.String
	sale.Status = checkout.SaleStatus(status)
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, line_no, product_id, name, quantity, unit_price, line_subtotal
		FROM sale_lines WHERE sale_id = ? ORDER BY line_no`, id)
	if err != nil {
		return checkout.Sale{}, fmt.Errorf("query sale lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l checkout.SaleLine
		if err := rows.Scan(&l.SaleID, &l.LineNo, &l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineSubtotal); err != nil {
			return checkout.Sale{}, fmt.Errorf("scan sale line: %w", err)
		}
		sale.Lines = append(sale.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return checkout.Sale{}, fmt.Errorf("iterate sale lines: %w", err)
	}
	return sale, nil
}

// WithinTx implements checkout.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	var opts *sql.TxOptions
	if s.driver == DriverMySQL {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertProduct inserts or replaces a product; used by seeding and tests.
func (s *Store) UpsertProduct(ctx context.Context, p cart.Product) error {
	query := `INSERT INTO products (id, store_id, name, price, stock) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET store_id = excluded.store_id, name = excluded.name,
		price = excluded.price, stock = excluded.stock`
	if s.driver == DriverMySQL {
		query = `INSERT INTO products (id, store_id, name, price, stock) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE store_id = VALUES(store_id), name = VALUES(name),
		price = VALUES(price), stock = VALUES(stock)`
	}
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.StoreID, p.Name, p.Price, p.Stock); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// UpsertCustomer inserts or replaces a customer; used by seeding and tests.
func (s *Store) UpsertCustomer(ctx context.Context, c checkout.Customer) error {
	query := `INSERT INTO customers (id, name, total_spent, loyalty_points) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, total_spent = excluded.total_spent,
		loyalty_points = excluded.loyalty_points`
	if s.driver == DriverMySQL {
		query = `INSERT INTO customers (id, name, total_spent, loyalty_points) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), total_spent = VALUES(total_spent),
		loyalty_points = VALUES(loyalty_points)`
	}
	if _, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.TotalSpent, c.LoyaltyPoints); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) InsertSale(ctx context.Context, sale checkout.Sale) error {
	var customer sql.NullString
	if sale.CustomerID != "" {
		customer = sql.NullString{String: sale.CustomerID, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (id, store_id, cashier_id, customer_id, subtotal, discount, tax, total,
		                   payment_method, loyalty_points, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.StoreID, sale.CashierID, customer, int64(sale.Subtotal), int64(sale.Discount),
		int64(sale.Tax), int64(sale.Total), sale.PaymentMethod, sale.LoyaltyPoints, string(sale.Status),
		sale.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (t sqlTx) InsertSaleLine(ctx context.Context, line checkout.SaleLine) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sale_lines (sale_id, line_no, product_id, name, quantity, unit_price, line_subtotal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		line.SaleID, line.LineNo, line.ProductID, line.Name, line.Quantity,
		int64(line.UnitPrice), int64(line.LineSubtotal))
	if err != nil {
		return fmt.Errorf("insert sale line: %w", err)
	}
	return nil
}

func (t sqlTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		qty, productID, qty)
	if err != nil {
		return false, fmt.Errorf("update stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t sqlTx) Stock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := t.tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("product %s: %w", productID, checkout.ErrRecordNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

func (t sqlTx) CreditCustomer(ctx context.Context, customerID string, amount pricing.Money, points int64) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE customers SET total_spent = total_spent + ?, loyalty_points = loyalty_points + ? WHERE id = ?`,
		int64(amount), points, customerID)
	if err != nil {
		return fmt.Errorf("credit customer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("customer %s: %w", customerID, checkout.ErrRecordNotFound)
	}
	return nil
}
