package catalog

import "errors"

// Product is a sellable item. Stock is authoritative only when the
// product has no variants; otherwise it caches the sum of variant
// stocks and is recomputed after every variant mutation.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CategoryID int64     `json:"category_id"`
	Unit       string    `json:"unit"`
	Price      float64   `json:"price"`
	Stock      float64   `json:"stock"`
	StockLow   float64   `json:"stock_low"`
	Active     bool      `json:"active"`
	Variants   []Variant `json:"variants,omitempty"`
}

// Variant is one concrete variation of a product with its own stock.
type Variant struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Stock     float64 `json:"stock"`
	StockLow  float64 `json:"stock_low"`
	Price     float64 `json:"price"`
}

// Category groups products.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// VariantInput is one variant in a product save. A zero ID inserts a
// new variant; a known ID updates it. Persisted variants missing from
// the input set are deleted: the set is replaced in full on every save.
type VariantInput struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name" validate:"required"`
	Stock    float64 `json:"stock" validate:"gte=0"`
	StockLow float64 `json:"stock_low" validate:"gte=0"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// SaveProductInput describes a product save.
type SaveProductInput struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name" validate:"required"`
	CategoryID int64          `json:"category_id" validate:"required,gt=0"`
	Unit       string         `json:"unit" validate:"required"`
	Price      float64        `json:"price" validate:"gte=0"`
	Stock      float64        `json:"stock" validate:"gte=0"`
	StockLow   float64        `json:"stock_low" validate:"gte=0"`
	Variants   []VariantInput `json:"variants"`
}

// ActiveFilter narrows product listings by the soft-delete flag.
type ActiveFilter int

const (
	// FilterAll lists every product.
	FilterAll ActiveFilter = iota
	// FilterActive lists only active products.
	FilterActive
	// FilterInactive lists only soft-deleted products.
	FilterInactive
)

// LowStockEntry is a product or variant at or below its threshold.
type LowStockEntry struct {
	ProductName string  `json:"product_name"`
	VariantName string  `json:"variant_name,omitempty"`
	Stock       float64 `json:"stock"`
	StockLow    float64 `json:"stock_low"`
}

// ErrNotFound indicates a missing product, variant or category.
var ErrNotFound = errors.New("catalog: record not found")

// ErrDuplicateName indicates a product or category name collision.
var ErrDuplicateName = errors.New("catalog: name already exists")

// ErrForeignVariant indicates a variant id submitted for a product it
// does not belong to.
var ErrForeignVariant = errors.New("catalog: variant belongs to another product")

// ErrCategoryInUse indicates a category that still has active products.
var ErrCategoryInUse = errors.New("catalog: category still in use")
