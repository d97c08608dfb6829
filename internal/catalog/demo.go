package catalog

import (
	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/pricing"
)

// DemoProducts is the starter assortment loaded by the seeder and by the
// in-memory driver, priced in IDR.
func DemoProducts(storeID string) []cart.Product {
	items := []struct {
		id    string
		name  string
		price pricing.Money
		stock int
	}{
		{"KOPI-250", "Kopi Bubuk 250g", 32_000, 40},
		{"GULA-1KG", "Gula Pasir 1kg", 17_500, 60},
		{"BERAS-5KG", "Beras Premium 5kg", 78_000, 25},
		{"MINYAK-2L", "Minyak Goreng 2L", 36_000, 30},
		{"TELUR-10", "Telur Ayam isi 10", 28_000, 20},
		{"MIE-GRG", "Mie Goreng Instan", 3_500, 200},
		{"TEH-25", "Teh Celup isi 25", 9_000, 45},
		{"AIR-600", "Air Mineral 600ml", 4_000, 120},
		{"SABUN-MD", "Sabun Mandi Batang", 5_500, 80},
		{"ROTI-TWR", "Roti Tawar", 16_000, 12},
	}
	out := make([]cart.Product, 0, len(items))
	for _, it := range items {
		out = append(out, cart.Product{ID: it.id, StoreID: storeID, Name: it.name, Price: it.price, Stock: it.stock})
	}
	return out
}

// DemoCustomers is the starter loyalty membership list.
func DemoCustomers() []checkout.Customer {
	return []checkout.Customer{
		{ID: "CUST-001", Name: "Budi Santoso"},
		{ID: "CUST-002", Name: "Siti Aminah"},
		{ID: "CUST-003", Name: "Dewi Lestari"},
		{ID: "CUST-004", Name: "Eko Kurniawan"},
	}
}
