package checkout

import (
	"errors"
	"fmt"

	"github.com/noah-isme/kasir/internal/common"
)

// Error codes surfaced to the cashier.
const (
	CodeEmptyCart          = "EMPTY_CART"
	CodeStoreNotSelected   = "STORE_NOT_SELECTED"
	CodeInvalidQuantity    = "INVALID_QUANTITY"
	CodeInvalidNumeric     = "INVALID_NUMERIC_INPUT"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeInvalidPayment     = "INVALID_PAYMENT_METHOD"
	CodeCustomerNotFound   = "CUSTOMER_NOT_FOUND"
	CodeDuplicateCheckout  = "DUPLICATE_CHECKOUT"
	CodeSaleNotFound       = "SALE_NOT_FOUND"
)

// Sentinel errors; compare with errors.Is.
var (
	ErrEmptyCart          = common.NewAppError(CodeEmptyCart, "cart is empty", nil)
	ErrStoreNotSelected   = common.NewAppError(CodeStoreNotSelected, "store is not selected", nil)
	ErrInvalidQuantity    = common.NewAppError(CodeInvalidQuantity, "quantity must be a positive whole number", nil)
	ErrInvalidNumeric     = common.NewAppError(CodeInvalidNumeric, "amount must be a non-negative number", nil)
	ErrInsufficientStock  = common.NewAppError(CodeInsufficientStock, "insufficient stock", nil)
	ErrPersistence        = common.NewAppError(CodePersistenceFailure, "sale could not be saved", nil)
	ErrInvalidPayment     = common.NewAppError(CodeInvalidPayment, "payment method is not supported", nil)
	ErrCustomerNotFound   = common.NewAppError(CodeCustomerNotFound, "customer not found", nil)
	ErrDuplicateCheckout  = common.NewAppError(CodeDuplicateCheckout, "checkout already submitted", nil)
	ErrSaleNotFound       = common.NewAppError(CodeSaleNotFound, "sale not found", nil)
	errNotConfigured      = errors.New("checkout coordinator not configured")
	errIllegalStateChange = errors.New("illegal checkout state transition")
)

// StockError describes a line whose requested quantity exceeds available stock.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func insufficientStock(productID string, requested, available int) error {
	detail := &StockError{ProductID: productID, Requested: requested, Available: available}
	return ErrInsufficientStock.Wrap(detail).WithDetails(detail)
}

func persistenceFailure(err error) error {
	return ErrPersistence.Wrap(err)
}

// StockShortage extracts the StockError from err, if any.
func StockShortage(err error) (*StockError, bool) {
	var se *StockError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
