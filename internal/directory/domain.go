package directory

import "errors"

// PartyKind distinguishes the two contact books.
type PartyKind string

const (
	// KindClient is a buyer referenced by sales.
	KindClient PartyKind = "client"
	// KindSupplier is a vendor referenced by purchases.
	KindSupplier PartyKind = "supplier"
)

// Party is a client or supplier contact record.
type Party struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Active bool   `json:"active"`
}

// SavePartyInput describes a create or update.
type SavePartyInput struct {
	ID    int64  `json:"id"`
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
	Notes string `json:"notes"`
}

// ErrNotFound indicates a missing party.
var ErrNotFound = errors.New("directory: record not found")
