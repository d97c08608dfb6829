package checkout

import (
	"time"

	"github.com/noah-isme/kasir/internal/pricing"
)

// SaleStatus is the persisted status of a sale. Only committed sales exist.
type SaleStatus string

// SaleStatusCommitted marks a sale that was written atomically with its effects.
const SaleStatusCommitted SaleStatus = "committed"

// Payment methods accepted at the register.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentQRIS     = "qris"
	PaymentTransfer = "transfer"
	PaymentEWallet  = "ewallet"
)

// Sale is the immutable ledger record of a successful checkout.
type Sale struct {
	ID            string        `json:"id"`
	StoreID       string        `json:"storeId"`
	CashierID     string        `json:"cashierId"`
	CustomerID    string        `json:"customerId,omitempty"`
	Subtotal      pricing.Money `json:"subtotal"`
	Discount      pricing.Money `json:"discount"`
	Tax           pricing.Money `json:"tax"`
	Total         pricing.Money `json:"total"`
	PaymentMethod string        `json:"paymentMethod"`
	LoyaltyPoints int64         `json:"loyaltyPoints"`
	Status        SaleStatus    `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	Lines         []SaleLine    `json:"lines"`
}

// SaleLine records one product of a sale. UnitPrice is the cart snapshot.
type SaleLine struct {
	SaleID       string        `json:"saleId"`
	LineNo       int           `json:"lineNo"`
	ProductID    string        `json:"productId"`
	Name         string        `json:"name"`
	Quantity     int           `json:"quantity"`
	UnitPrice    pricing.Money `json:"unitPrice"`
	LineSubtotal pricing.Money `json:"lineSubtotal"`
}

// Customer is the loyalty account optionally attached to a sale.
type Customer struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	TotalSpent    pricing.Money `json:"totalSpent"`
	LoyaltyPoints int64         `json:"loyaltyPoints"`
}

// Request carries the cashier supplied parameters of a checkout.
type Request struct {
	StoreID        string
	CashierID      string
	CustomerID     string
	Discount       pricing.Money
	Tax            pricing.Money
	PaymentMethod  string `validate:"required,oneof=cash card qris transfer ewallet"`
	IdempotencyKey string
}

// State is a step of a single checkout attempt.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCommitting
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateCommitting, StateFailed},
	StateCommitting: {StateCommitted, StateFailed},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
