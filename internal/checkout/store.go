package checkout

import (
	"context"
	"errors"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/pricing"
)

// ErrRecordNotFound is returned (possibly wrapped) by stores for missing rows.
var ErrRecordNotFound = errors.New("record not found")

// Store is the catalog/ledger persistence collaborator.
type Store interface {
	GetProduct(ctx context.Context, id string) (cart.Product, error)
	GetCustomer(ctx context.Context, id string) (Customer, error)
	GetSale(ctx context.Context, id string) (Sale, error)
	// WithinTx runs fn as one atomic unit. Any error returned by fn, or a
	// cancelled context, discards every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of writes available inside Store.WithinTx.
type Tx interface {
	InsertSale(ctx context.Context, sale Sale) error
	InsertSaleLine(ctx context.Context, line SaleLine) error
	// DecrementStock subtracts qty only if at least qty units remain and
	// reports whether the decrement was applied.
	DecrementStock(ctx context.Context, productID string, qty int) (bool, error)
	Stock(ctx context.Context, productID string) (int, error)
	CreditCustomer(ctx context.Context, customerID string, amount pricing.Money, points int64) error
}
