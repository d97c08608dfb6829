package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/common"
	"github.com/noah-isme/kasir/internal/events"
	"github.com/noah-isme/kasir/internal/obs"
	"github.com/noah-isme/kasir/internal/pricing"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Coordinator turns a cart into a committed sale. All collaborators are
// injected; a Coordinator holds no per-session state and may be shared by
// every cashier session of the process.
type Coordinator struct {
	Store         Store
	Loyalty       pricing.LoyaltyRule
	CommitTimeout time.Duration
	Guard         Guard
	Events        *events.Bus
	Logger        zerolog.Logger
	Now           func() time.Time
	NewID         func() string
	// Observer, when set, receives every state transition of every attempt.
	Observer func(from, to State)
}

// New returns a Coordinator backed by store with a nop logger.
func New(store Store) *Coordinator {
	return &Coordinator{Store: store, Logger: zerolog.Nop()}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

type attempt struct {
	state    State
	observer func(from, to State)
}

func (a *attempt) to(next State) {
	if !CanTransition(a.state, next) {
		panic(fmt.Errorf("%w: %s -> %s", errIllegalStateChange, a.state, next))
	}
	prev := a.state
	a.state = next
	if a.observer != nil {
		a.observer(prev, next)
	}
}

// Checkout validates the cart against current stock and commits the sale,
// its lines, the stock decrements and the loyalty credit as one atomic unit.
// On success the cart is cleared. On failure nothing is written, the cart is
// left untouched and a *common.AppError with one of the Code* codes is returned.
func (c *Coordinator) Checkout(ctx context.Context, crt *cart.Cart, req Request) (Sale, error) {
	if c == nil || c.Store == nil {
		return Sale{}, errNotConfigured
	}
	started := time.Now()
	ctx, span := obs.Tracer("checkout").Start(ctx, "checkout")
	defer span.End()

	a := &attempt{state: StateIdle, observer: c.Observer}
	a.to(StateValidating)

	sale, err := c.run(ctx, a, crt, req)
	result := "committed"
	if err != nil {
		a.to(StateFailed)
		result = strings.ToLower(common.CodeOf(err))
		if result == "" {
			result = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	} else {
		a.to(StateCommitted)
		crt.Clear()
	}
	elapsed := time.Since(started)
	obs.ObserveCheckout(result, elapsed)
	span.SetAttributes(attribute.String("checkout.result", result))

	logEvt := c.Logger.Info()
	if err != nil {
		logEvt = c.Logger.Warn().Err(err)
	}
	logEvt.
		Str("store_id", req.StoreID).
		Str("cashier_id", req.CashierID).
		Str("sale_id", sale.ID).
		Str("result", result).
		Int64("duration_ms", elapsed.Milliseconds()).
		Msg("checkout")

	c.emit(ctx, sale, req, err)
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (c *Coordinator) run(ctx context.Context, a *attempt, crt *cart.Cart, req Request) (Sale, error) {
	summary, err := c.validateRequest(crt, &req)
	if err != nil {
		return Sale{}, err
	}

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" && c.Guard != nil {
		ok, err := c.Guard.Acquire(ctx, key)
		if err != nil {
			return Sale{}, persistenceFailure(fmt.Errorf("acquire idempotency key: %w", err))
		}
		if !ok {
			return Sale{}, ErrDuplicateCheckout
		}
		committed := false
		defer func() {
			if !committed {
				_ = c.Guard.Release(context.WithoutCancel(ctx), key)
			}
		}()
		sale, err := c.validateAndCommit(ctx, a, crt, req, summary)
		committed = err == nil
		return sale, err
	}
	return c.validateAndCommit(ctx, a, crt, req, summary)
}

// validateRequest normalises req and prices the cart. It touches no storage.
func (c *Coordinator) validateRequest(crt *cart.Cart, req *Request) (pricing.Summary, error) {
	if crt == nil || crt.IsEmpty() {
		return pricing.Summary{}, ErrEmptyCart
	}
	req.StoreID = strings.TrimSpace(req.StoreID)
	if req.StoreID == "" {
		return pricing.Summary{}, ErrStoreNotSelected
	}
	for _, line := range crt.Lines() {
		if line.Quantity <= 0 {
			return pricing.Summary{}, ErrInvalidQuantity.Wrap(fmt.Errorf("product %s", line.ProductID))
		}
	}
	summary, err := pricing.ComputeChecked(crt.PricingItems(), req.Discount, req.Tax)
	if err != nil {
		return pricing.Summary{}, ErrInvalidNumeric.Wrap(err)
	}
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if err := validate.Struct(req); err != nil {
		return pricing.Summary{}, ErrInvalidPayment.Wrap(err)
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	return summary, nil
}

func (c *Coordinator) validateAndCommit(ctx context.Context, a *attempt, crt *cart.Cart, req Request, summary pricing.Summary) (Sale, error) {
	lines := crt.Lines()
	if err := c.checkStock(ctx, lines); err != nil {
		return Sale{}, err
	}
	if req.CustomerID != "" {
		if _, err := c.Store.GetCustomer(ctx, req.CustomerID); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return Sale{}, ErrCustomerNotFound.Wrap(fmt.Errorf("customer %s", req.CustomerID))
			}
			return Sale{}, persistenceFailure(fmt.Errorf("load customer: %w", err))
		}
	}
	if err := ctx.Err(); err != nil {
		return Sale{}, persistenceFailure(err)
	}

	sale := c.buildSale(lines, req, summary)
	a.to(StateCommitting)
	if err := c.commit(ctx, sale); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (c *Coordinator) checkStock(ctx context.Context, lines []cart.Line) error {
	ctx, span := obs.Tracer("checkout").Start(ctx, "checkout.validate")
	defer span.End()
	for _, line := range lines {
		product, err := c.Store.GetProduct(ctx, line.ProductID)
		available := product.Stock
		if err != nil {
			if !errors.Is(err, ErrRecordNotFound) {
				return persistenceFailure(fmt.Errorf("load product %s: %w", line.ProductID, err))
			}
			available = 0
		}
		if line.Quantity > available {
			obs.ObserveStockConflict("validate")
			return insufficientStock(line.ProductID, line.Quantity, available)
		}
	}
	return nil
}

func (c *Coordinator) buildSale(lines []cart.Line, req Request, summary pricing.Summary) Sale {
	sale := Sale{
		ID:            c.newID(),
		StoreID:       req.StoreID,
		CashierID:     req.CashierID,
		CustomerID:    req.CustomerID,
		Subtotal:      summary.Subtotal,
		Discount:      summary.Discount,
		Tax:           summary.Tax,
		Total:         summary.Total,
		PaymentMethod: req.PaymentMethod,
		Status:        SaleStatusCommitted,
		CreatedAt:     c.now().UTC(),
		Lines:         make([]SaleLine, 0, len(lines)),
	}
	if sale.CustomerID != "" {
		sale.LoyaltyPoints = c.Loyalty.Points(sale.Total)
	}
	for i, l := range lines {
		sale.Lines = append(sale.Lines, SaleLine{
			SaleID:       sale.ID,
			LineNo:       i + 1,
			ProductID:    l.ProductID,
			Name:         l.Name,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			LineSubtotal: l.Total(),
		})
	}
	return sale
}

func (c *Coordinator) commit(ctx context.Context, sale Sale) error {
	ctx, span := obs.Tracer("checkout").Start(ctx, "checkout.commit")
	defer span.End()
	if c.CommitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CommitTimeout)
		defer cancel()
	}
	err := c.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		// Stock before lines: a product removed since validation is a shortage.
		for _, line := range sale.Lines {
			ok, err := tx.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock %s: %w", line.ProductID, err)
			}
			if !ok {
				available, err := tx.Stock(ctx, line.ProductID)
				if err != nil && !errors.Is(err, ErrRecordNotFound) {
					return fmt.Errorf("read stock %s: %w", line.ProductID, err)
				}
				obs.ObserveStockConflict("commit")
				return insufficientStock(line.ProductID, line.Quantity, available)
			}
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		for _, line := range sale.Lines {
			if err := tx.InsertSaleLine(ctx, line); err != nil {
				return fmt.Errorf("insert sale line %d: %w", line.LineNo, err)
			}
		}
		if sale.CustomerID != "" {
			if err := tx.CreditCustomer(ctx, sale.CustomerID, sale.Total, sale.LoyaltyPoints); err != nil {
				if errors.Is(err, ErrRecordNotFound) {
					return ErrCustomerNotFound.Wrap(fmt.Errorf("customer %s", sale.CustomerID))
				}
				return fmt.Errorf("credit customer: %w", err)
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if common.IsAppError(err) {
		return err
	}
	return persistenceFailure(err)
}

func (c *Coordinator) emit(ctx context.Context, sale Sale, req Request, err error) {
	if c.Events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var emitErr error
	if err == nil {
		_, emitErr = c.Events.Emit(ctx, events.TopicSaleCommitted, sale.ID, sale)
	} else {
		payload := map[string]any{
			"storeId":   req.StoreID,
			"cashierId": req.CashierID,
			"code":      common.CodeOf(err),
			"error":     err.Error(),
		}
		if se, ok := StockShortage(err); ok {
			payload["productId"] = se.ProductID
			payload["requested"] = se.Requested
			payload["available"] = se.Available
		}
		aggregate := req.StoreID
		if aggregate == "" {
			aggregate = "unassigned"
		}
		_, emitErr = c.Events.Emit(ctx, events.TopicCheckoutFailed, aggregate, payload)
	}
	if emitErr != nil {
		c.Logger.Error().Err(emitErr).Msg("emit checkout event")
	}
}

// Sale returns a committed sale from the ledger, e.g. for a receipt reprint.
func (c *Coordinator) Sale(ctx context.Context, id string) (Sale, error) {
	if c == nil || c.Store == nil {
		return Sale{}, errNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Sale{}, ErrSaleNotFound
	}
	sale, err := c.Store.GetSale(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Sale{}, ErrSaleNotFound.Wrap(fmt.Errorf("sale %s", id))
		}
		return Sale{}, persistenceFailure(err)
	}
	return sale, nil
}
