// Package session drives one cashier's register: it owns exactly one cart,
// parses cashier input and returns an explicit View after every command.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/pricing"
	"github.com/noah-isme/kasir/internal/receipt"
)

// Catalog resolves products for the cart.
type Catalog interface {
	Product(ctx context.Context, id string) (cart.Product, error)
}

// Checkouter commits carts and looks up committed sales.
type Checkouter interface {
	Checkout(ctx context.Context, crt *cart.Cart, req checkout.Request) (checkout.Sale, error)
	Sale(ctx context.Context, id string) (checkout.Sale, error)
}

// Config groups Session dependencies.
type Config struct {
	StoreID     string
	CashierID   string
	CashierName string
	Catalog     Catalog
	Checkout    Checkouter
	Receipt     receipt.StoreInfo
	Logger      zerolog.Logger
}

// View is the state of the cart after a command.
type View struct {
	Lines   []cart.Line
	Summary pricing.Summary
	// Warning is a soft notice, e.g. a product that could not be added for lack of stock.
	Warning string
}

// Adjustments is the cashier text for discount and tax. Tax may be an amount
// or a percentage such as "11%" of the discounted subtotal.
type Adjustments struct {
	Discount string
	Tax      string
}

// Payment describes how a checkout is settled.
type Payment struct {
	Method         string
	CustomerID     string
	Adjustments    Adjustments
	IdempotencyKey string
}

// Result is the outcome of a successful checkout.
type Result struct {
	Sale    checkout.Sale
	Receipt string
}

// Session is owned by one cashier; it is not safe for concurrent use.
type Session struct {
	cfg  Config
	cart *cart.Cart
}

// New starts a session with an empty cart.
func New(cfg Config) *Session {
	cfg.StoreID = strings.TrimSpace(cfg.StoreID)
	return &Session{cfg: cfg, cart: cart.New()}
}

// StoreID reports the selected store.
func (s *Session) StoreID() string { return s.cfg.StoreID }

// SelectStore switches the session to storeID. The cart is cleared because its
// snapshots belong to the previous store.
func (s *Session) SelectStore(storeID string) View {
	storeID = strings.TrimSpace(storeID)
	if storeID != s.cfg.StoreID {
		s.cart.Clear()
	}
	s.cfg.StoreID = storeID
	return s.view(Adjustments{}, "")
}

// Add looks the product up and adds qtyText units (one when blank).
func (s *Session) Add(ctx context.Context, productID, qtyText string) (View, error) {
	qty := 1
	if strings.TrimSpace(qtyText) != "" {
		parsed, err := parseQuantity(qtyText)
		if err != nil {
			return View{}, err
		}
		qty = parsed
	}
	product, err := s.lookup(ctx, productID)
	if err != nil {
		return View{}, err
	}
	s.cart.Refresh(product)
	before, _ := s.cart.Line(product.ID)
	line, err := s.cart.AddItem(product, qty)
	if err != nil {
		if errors.Is(err, cart.ErrOutOfStock) {
			return s.view(Adjustments{}, fmt.Sprintf("%s is out of stock", product.Name)), nil
		}
		return View{}, mapCartError(err)
	}
	warning := ""
	if line.Quantity-before.Quantity < qty {
		warning = fmt.Sprintf("%s limited to %d in stock", product.Name, product.Stock)
	}
	return s.view(Adjustments{}, warning), nil
}

// Remove drops a product from the cart.
func (s *Session) Remove(productID string) View {
	s.cart.RemoveItem(strings.TrimSpace(productID))
	return s.view(Adjustments{}, "")
}

// SetQuantity replaces the quantity of a product already seen by this cart.
func (s *Session) SetQuantity(productID, qtyText string) (View, error) {
	qty, err := parseQuantity(qtyText)
	if err != nil {
		return View{}, err
	}
	line, err := s.cart.SetQuantity(strings.TrimSpace(productID), qty)
	if err != nil {
		if errors.Is(err, cart.ErrOutOfStock) {
			return s.view(Adjustments{}, "product is out of stock"), nil
		}
		return View{}, mapCartError(err)
	}
	warning := ""
	if line.Quantity < qty {
		warning = fmt.Sprintf("%s limited to %d in stock", line.Name, line.Quantity)
	}
	return s.view(Adjustments{}, warning), nil
}

// Clear cancels the current sale.
func (s *Session) Clear() View {
	s.cart.Clear()
	return s.view(Adjustments{}, "")
}

// Totals prices the cart with the given adjustments.
func (s *Session) Totals(adj Adjustments) (View, error) {
	if _, _, err := s.adjustments(adj); err != nil {
		return View{}, err
	}
	return s.view(adj, ""), nil
}

// Checkout commits the cart and renders the receipt. On failure the cart is
// left as it was so the cashier can adjust and retry.
func (s *Session) Checkout(ctx context.Context, p Payment) (Result, error) {
	if s.cfg.Checkout == nil {
		return Result{}, errors.New("session: checkout not configured")
	}
	discount, tax, err := s.adjustments(p.Adjustments)
	if err != nil {
		return Result{}, err
	}
	sale, err := s.cfg.Checkout.Checkout(ctx, s.cart, checkout.Request{
		StoreID:        s.cfg.StoreID,
		CashierID:      s.cfg.CashierID,
		CustomerID:     p.CustomerID,
		Discount:       discount,
		Tax:            tax,
		PaymentMethod:  p.Method,
		IdempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Sale: sale, Receipt: receipt.Format(sale, s.cfg.Receipt, s.cfg.CashierName)}, nil
}

// Reprint renders the receipt of a committed sale again.
func (s *Session) Reprint(ctx context.Context, saleID string) (string, error) {
	if s.cfg.Checkout == nil {
		return "", errors.New("session: checkout not configured")
	}
	sale, err := s.cfg.Checkout.Sale(ctx, saleID)
	if err != nil {
		return "", err
	}
	return receipt.Format(sale, s.cfg.Receipt, s.cfg.CashierName), nil
}

// View returns the current cart without adjustments.
func (s *Session) View() View {
	return s.view(Adjustments{}, "")
}

func (s *Session) lookup(ctx context.Context, productID string) (cart.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return cart.Product{}, fmt.Errorf("%w: product id is required", cart.ErrUnknownProduct)
	}
	if s.cfg.Catalog == nil {
		return cart.Product{}, errors.New("session: catalog not configured")
	}
	product, err := s.cfg.Catalog.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, checkout.ErrRecordNotFound) {
			return cart.Product{}, fmt.Errorf("%w: %s", cart.ErrUnknownProduct, productID)
		}
		s.cfg.Logger.Error().Err(err).Str("product_id", productID).Msg("catalog lookup")
		return cart.Product{}, fmt.Errorf("lookup product %s: %w", productID, err)
	}
	return product, nil
}

func (s *Session) adjustments(adj Adjustments) (discount, tax pricing.Money, err error) {
	cur := s.cfg.Receipt.Currency
	if cur.Code == "" {
		cur = pricing.IDR
	}
	if text := strings.TrimSpace(adj.Discount); text != "" {
		discount, err = pricing.ParseAmount(text, cur)
		if err != nil {
			return 0, 0, checkout.ErrInvalidNumeric.Wrap(fmt.Errorf("discount: %w", err))
		}
	}
	if text := strings.TrimSpace(adj.Tax); text != "" {
		if strings.HasSuffix(text, "%") {
			bps, perr := pricing.ParsePercent(text)
			if perr != nil {
				return 0, 0, checkout.ErrInvalidNumeric.Wrap(fmt.Errorf("tax: %w", perr))
			}
			base := s.cart.Subtotal() - discount
			if base < 0 {
				base = 0
			}
			tax = pricing.PercentOf(base, bps)
		} else {
			tax, err = pricing.ParseAmount(text, cur)
			if err != nil {
				return 0, 0, checkout.ErrInvalidNumeric.Wrap(fmt.Errorf("tax: %w", err))
			}
		}
	}
	return discount, tax, nil
}

func (s *Session) view(adj Adjustments, warning string) View {
	discount, tax, err := s.adjustments(adj)
	if err != nil {
		discount, tax = 0, 0
	}
	return View{
		Lines:   s.cart.Lines(),
		Summary: pricing.Compute(s.cart.PricingItems(), discount, tax),
		Warning: warning,
	}
}

func parseQuantity(text string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, checkout.ErrInvalidQuantity.Wrap(fmt.Errorf("%q is not a whole number", text))
	}
	if qty <= 0 {
		return 0, checkout.ErrInvalidQuantity.Wrap(fmt.Errorf("%d is not positive", qty))
	}
	return qty, nil
}

func mapCartError(err error) error {
	if errors.Is(err, cart.ErrInvalidQuantity) {
		return checkout.ErrInvalidQuantity.Wrap(err)
	}
	return err
}
