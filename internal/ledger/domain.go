package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Direction enumerates stock movement directions.
type Direction string

const (
	// DirectionIn represents stock entering the store (purchases, returns).
	DirectionIn Direction = "in"
	// DirectionOut represents stock leaving the store (sales).
	DirectionOut Direction = "out"
)

// Opposite returns the reversing direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Movement is one ledger row. VariantID zero means the movement applies
// to the product's own stock. At most one of SaleID/PurchaseID is set;
// both zero marks a bare manual adjustment.
type Movement struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	VariantID  int64     `json:"variant_id,omitempty"`
	Direction  Direction `json:"direction"`
	Quantity   float64   `json:"quantity"`
	Date       time.Time `json:"date"`
	Note       string    `json:"note,omitempty"`
	SaleID     int64     `json:"sale_id,omitempty"`
	PurchaseID int64     `json:"purchase_id,omitempty"`
}

// MovementKey identifies a movement by its business identity rather than
// its row id, so a revised quantity keeps the same row addressable.
type MovementKey struct {
	ProductID  int64
	VariantID  int64
	SaleID     int64
	PurchaseID int64
	Direction  Direction
}

// CheckItem is one desired quantity for the availability checker.
type CheckItem struct {
	ProductID int64
	VariantID int64
	Quantity  float64
}

// Shortage describes the first item that failed an availability check.
type Shortage struct {
	ProductID int64   `json:"product_id"`
	VariantID int64   `json:"variant_id,omitempty"`
	Requested float64 `json:"requested"`
	Available float64 `json:"available"`
}

// InsufficientStockError is returned when an outbound movement would
// drive stock below zero. The enclosing transaction is always rolled
// back, so nothing is partially applied.
type InsufficientStockError struct {
	ProductID int64
	VariantID int64
	Requested float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	if e.VariantID != 0 {
		return fmt.Sprintf("ledger: insufficient stock for product %d variant %d: requested %g, available %g",
			e.ProductID, e.VariantID, e.Requested, e.Available)
	}
	return fmt.Sprintf("ledger: insufficient stock for product %d: requested %g, available %g",
		e.ProductID, e.Requested, e.Available)
}

// Shortage converts the error into its checker representation.
func (e *InsufficientStockError) Shortage() Shortage {
	return Shortage{ProductID: e.ProductID, VariantID: e.VariantID, Requested: e.Requested, Available: e.Available}
}

// ErrUnknownReference indicates a product, variant, sale or purchase id
// that does not exist.
var ErrUnknownReference = errors.New("ledger: unknown reference")

// ErrLedgerIntegrity indicates the movement history and the stock
// columns have drifted. It is a data-corruption signal, not a user error.
var ErrLedgerIntegrity = errors.New("ledger: ledger integrity fault")

// ErrVariantRequired indicates a product-level movement was requested
// for a product that tracks stock per variant.
var ErrVariantRequired = errors.New("ledger: product tracks stock per variant")

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")
