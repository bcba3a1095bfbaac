package trade

import (
	"errors"
	"sort"
	"time"
)

// Kind distinguishes the two transaction aggregates.
type Kind string

const (
	// KindSale moves stock out.
	KindSale Kind = "sale"
	// KindPurchase moves stock in.
	KindPurchase Kind = "purchase"
)

// LineKey is the composite key of one line item. VariantID zero means
// the line targets the product's own stock.
type LineKey struct {
	ProductID int64
	VariantID int64
}

// Less orders keys ascending by product then variant, the deterministic
// order every reconciliation and check pass uses.
func (k LineKey) Less(other LineKey) bool {
	if k.ProductID != other.ProductID {
		return k.ProductID < other.ProductID
	}
	return k.VariantID < other.VariantID
}

// LineItem carries the per-line data of a sale or purchase.
type LineItem struct {
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	// Active mirrors the referenced product's active flag when loaded
	// from storage; it is informational on the way out.
	Active bool `json:"active"`
}

// Items maps line keys to line data.
type Items map[LineKey]LineItem

// Total sums quantity times unit price across the items.
func (it Items) Total() float64 {
	var total float64
	for _, item := range it {
		total += item.Quantity * item.UnitPrice
	}
	return total
}

// Document is a sale or purchase header with its line items.
type Document struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date"`
	CounterpartyID int64     `json:"counterparty_id,omitempty"`
	Total          float64   `json:"total"`
	Items          Items     `json:"-"`
}

// LineInput is one line as submitted by the caller. Duplicate
// (product, variant) keys within one request are summed into a single
// line before reconciliation; the last unit price wins.
type LineInput struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	VariantID int64   `json:"variant_id"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// SaveSaleInput describes a sale save. A zero SaleID creates a new sale.
type SaveSaleInput struct {
	SaleID   int64
	ClientID int64
	Date     time.Time
	Lines    []LineInput
}

// SavePurchaseInput describes a purchase save.
type SavePurchaseInput struct {
	PurchaseID int64
	SupplierID int64
	Date       time.Time
	Lines      []LineInput
}

// ErrNoLines indicates a save with an empty line set.
var ErrNoLines = errors.New("trade: at least one line item is required")

// ErrProductInactive indicates a new line referencing a soft-deleted
// product. Existing lines on such products stay editable.
var ErrProductInactive = errors.New("trade: product is inactive")

// normalizeLines folds duplicate keys and converts the ordered request
// lines into the keyed item map the reconciler works on.
func normalizeLines(lines []LineInput) Items {
	items := make(Items, len(lines))
	for _, line := range lines {
		key := LineKey{ProductID: line.ProductID, VariantID: line.VariantID}
		item := items[key]
		item.Quantity += line.Quantity
		item.UnitPrice = line.UnitPrice
		items[key] = item
	}
	return items
}

// sortedKeys returns the keys of items in deterministic order.
func sortedKeys(items Items) []LineKey {
	keys := make([]LineKey, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
