// Package receipt renders committed sales as fixed-width text.
package receipt

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/pricing"
)

// Width is the receipt width in columns.
const Width = 40

const timeLayout = "2006-01-02 15:04:05"

// StoreInfo is the header and footer data printed on every receipt.
type StoreInfo struct {
	Name     string
	Address  string
	Phone    string
	Footer   string
	Currency pricing.Currency
	// Location used for timestamps; UTC when nil.
	Location *time.Location
}

// Format renders sale. It has no side effects: identical inputs give identical text.
func Format(sale checkout.Sale, store StoreInfo, cashierName string) string {
	cur := store.Currency
	if cur.Code == "" {
		cur = pricing.IDR
	}
	loc := store.Location
	if loc == nil {
		loc = time.UTC
	}
	amount := func(m pricing.Money) string { return pricing.FormatAmount(m, cur) }

	var b strings.Builder
	center(&b, store.Name)
	center(&b, store.Address)
	if phone := strings.TrimSpace(store.Phone); phone != "" {
		center(&b, "Tel. "+phone)
	}
	rule(&b, '=')

	cashier := strings.TrimSpace(cashierName)
	if cashier == "" {
		cashier = sale.CashierID
	}
	if cashier == "" {
		cashier = "-"
	}
	field(&b, "Sale", sale.ID)
	field(&b, "Date", sale.CreatedAt.In(loc).Format(timeLayout))
	field(&b, "Cashier", cashier)
	if sale.CustomerID != "" {
		field(&b, "Customer", sale.CustomerID)
	}
	rule(&b, '-')

	for _, line := range sale.Lines {
		name := line.Name
		if name == "" {
			name = line.ProductID
		}
		text(&b, name)
		row(&b, fmt.Sprintf("  %d x %s", line.Quantity, amount(line.UnitPrice)), amount(line.LineSubtotal))
	}
	rule(&b, '-')

	row(&b, "Subtotal", amount(sale.Subtotal))
	if sale.Discount != 0 {
		row(&b, "Discount", amount(-sale.Discount))
	}
	if sale.Tax != 0 {
		row(&b, "Tax", amount(sale.Tax))
	}
	row(&b, strings.TrimSpace("TOTAL "+cur.Code), amount(sale.Total))
	row(&b, "Payment", strings.ToUpper(sale.PaymentMethod))
	if sale.LoyaltyPoints > 0 {
		row(&b, "Points earned", fmt.Sprintf("+%d", sale.LoyaltyPoints))
	}
	rule(&b, '=')
	center(&b, store.Footer)
	return b.String()
}

func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func text(b *strings.Builder, s string) {
	b.WriteString(clip(s, Width))
	b.WriteByte('\n')
}

func center(b *strings.Builder, s string) {
	s = clip(strings.TrimSpace(s), Width)
	if s == "" {
		return
	}
	pad := (Width - utf8.RuneCountInString(s)) / 2
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(s)
	b.WriteByte('\n')
}

func rule(b *strings.Builder, ch rune) {
	b.WriteString(strings.Repeat(string(ch), Width))
	b.WriteByte('\n')
}

func field(b *strings.Builder, label, value string) {
	text(b, fmt.Sprintf("%-8s: %s", label, value))
}

// row writes left and right aligned to the edges; left is clipped when they collide.
func row(b *strings.Builder, left, right string) {
	right = clip(right, Width)
	rw := utf8.RuneCountInString(right)
	left = clip(left, Width-rw-1)
	pad := Width - utf8.RuneCountInString(left) - rw
	b.WriteString(left)
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(right)
	b.WriteByte('\n')
}
