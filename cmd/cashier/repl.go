package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/common"
	"github.com/noah-isme/kasir/internal/pricing"
	"github.com/noah-isme/kasir/internal/session"
)

const prompt = "kasir> "

const helpText = `commands:
  add <product-id> [qty]        add a product (qty defaults to 1)
  qty <product-id> <qty>        set the quantity of a product
  rm <product-id>               remove a product
  show                          show the cart
  total [discount=N] [tax=N|P%] price the cart
  pay <method> [customer=ID] [discount=N] [tax=N|P%]
                                commit the sale and print the receipt
  clear                         cancel the current sale
  store <store-id>              switch store (clears the cart)
  reprint <sale-id>             print a committed receipt again
  stats                         checkout counters
  help | quit`

// repl reads cashier commands line by line. Each cart gets a ticket id that is
// sent as the idempotency key, so a resubmitted payment is rejected instead of
// charged twice.
type repl struct {
	sess     *session.Session
	out      io.Writer
	currency pricing.Currency
	gatherer prometheus.Gatherer
	ticket   string
}

func newREPL(sess *session.Session, out io.Writer, cur pricing.Currency) *repl {
	return &repl{sess: sess, out: out, currency: cur, gatherer: prometheus.DefaultGatherer, ticket: uuid.NewString()}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(r.out, prompt)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			quit, err := r.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %s\n", describe(err))
			}
			if quit {
				return nil
			}
		}
		fmt.Fprint(r.out, prompt)
	}
	fmt.Fprintln(r.out)
	return scanner.Err()
}

func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
	case "add":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: add <product-id> [qty]")
		}
		qty := ""
		if len(args) > 1 {
			qty = args[1]
		}
		view, err := r.sess.Add(ctx, args[0], qty)
		if err != nil {
			return false, err
		}
		r.printView(view)
	case "qty":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: qty <product-id> <qty>")
		}
		view, err := r.sess.SetQuantity(args[0], args[1])
		if err != nil {
			return false, err
		}
		r.printView(view)
	case "rm":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: rm <product-id>")
		}
		r.printView(r.sess.Remove(args[0]))
	case "show":
		r.printView(r.sess.View())
	case "total":
		opts, err := keyValues(args, "discount", "tax")
		if err != nil {
			return false, err
		}
		view, err := r.sess.Totals(session.Adjustments{Discount: opts["discount"], Tax: opts["tax"]})
		if err != nil {
			return false, err
		}
		r.printView(view)
	case "pay":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: pay <method> [customer=ID] [discount=N] [tax=N|P%%]")
		}
		opts, err := keyValues(args[1:], "customer", "discount", "tax")
		if err != nil {
			return false, err
		}
		res, err := r.sess.Checkout(ctx, session.Payment{
			Method:         args[0],
			CustomerID:     opts["customer"],
			Adjustments:    session.Adjustments{Discount: opts["discount"], Tax: opts["tax"]},
			IdempotencyKey: r.ticket,
		})
		if err != nil {
			return false, err
		}
		r.ticket = uuid.NewString()
		fmt.Fprint(r.out, res.Receipt)
	case "clear":
		r.ticket = uuid.NewString()
		r.printView(r.sess.Clear())
	case "store":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: store <store-id>")
		}
		r.ticket = uuid.NewString()
		r.sess.SelectStore(args[0])
		fmt.Fprintf(r.out, "store %s selected\n", r.sess.StoreID())
	case "reprint":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: reprint <sale-id>")
		}
		text, err := r.sess.Reprint(ctx, args[0])
		if err != nil {
			return false, err
		}
		fmt.Fprint(r.out, text)
	case "stats":
		return false, r.printStats()
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

func (r *repl) printView(v session.View) {
	amount := func(m pricing.Money) string { return pricing.FormatAmount(m, r.currency) }
	if v.Warning != "" {
		fmt.Fprintf(r.out, "warning: %s\n", v.Warning)
	}
	if len(v.Lines) == 0 {
		fmt.Fprintln(r.out, "cart is empty")
		return
	}
	for i, l := range v.Lines {
		fmt.Fprintf(r.out, "%2d. %-12s %-20s %4d x %10s = %12s\n", i+1, l.ProductID, l.Name, l.Quantity, amount(l.UnitPrice), amount(l.Total()))
	}
	fmt.Fprintf(r.out, "    subtotal %s  discount %s  tax %s  total %s\n",
		amount(v.Summary.Subtotal), amount(v.Summary.Discount), amount(v.Summary.Tax), amount(v.Summary.Total))
}

func (r *repl) printStats() error {
	families, err := r.gatherer.Gather()
	if err != nil {
		return err
	}
	var rows []string
	for _, mf := range families {
		if !strings.Contains(mf.GetName(), "checkout") {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			rows = append(rows, fmt.Sprintf("%s{%s} %.0f", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(rows)
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "no checkouts yet")
	}
	for _, row := range rows {
		fmt.Fprintln(r.out, row)
	}
	return nil
}

// keyValues parses key=value options. Only the allowed keys are accepted so a
// mistyped adjustment is refused instead of being dropped.
func keyValues(args []string, allowed ...string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("option %q must be written as key=value (%s)", arg, optionList(allowed))
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !slices.Contains(allowed, key) {
			return nil, fmt.Errorf("unknown option %q (%s)", key, optionList(allowed))
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("option %q given twice", key)
		}
		out[key] = value
	}
	return out, nil
}

func optionList(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "="
	}
	return "want " + strings.Join(parts, ", ")
}

// describe renders an error for the cashier.
func describe(err error) string {
	if se, ok := checkout.StockShortage(err); ok {
		return fmt.Sprintf("[%s] %s: only %d left, %d requested", checkout.CodeInsufficientStock, se.ProductID, se.Available, se.Requested)
	}
	if code := common.CodeOf(err); code != "" {
		return fmt.Sprintf("[%s] %s", code, err.Error())
	}
	return err.Error()
}
