package malls

import (
	"errors"

	"github.com/ynl8015/otfit/taxonomy"
)

// Mall identifies a supported retailer.
type Mall string

const (
	SSF         Mall = "SSF"
	Musinsa     Mall = "MUSINSA"
	TwentyNine  Mall = "29CM"
	Zigzag      Mall = "ZIGZAG"
	UnknownMall Mall = "Unknown"
)

// ErrNoAdapter is returned when a page origin has no registered adapter.
var ErrNoAdapter = errors.New("malls: no adapter for origin")

// RawFields is the tuple an adapter extracts from markup, before
// normalization. Adapters never leave a field empty-typed: unresolved
// name/brand default to "Unknown", unresolved price to "0", so downstream
// string operations stay total.
type RawFields struct {
	Name  string
	Image string
	Price string
	Brand string
}

// Product is a normalized product record. Category is always derived from
// Name at creation time; MaskOffset is derived from Category. Both are
// user-settable only through an explicit edit.
type Product struct {
	Name       string            `json:"name"`
	Image      string            `json:"image"`
	Price      string            `json:"price"`
	Category   taxonomy.Category `json:"category"`
	Brand      string            `json:"brand"`
	Mall       Mall              `json:"mall"`
	URL        string            `json:"url"`
	MaskOffset int               `json:"maskOffset"`
}

// Empty reports whether every field carries its extraction default,
// the signature of a failed extraction. Callers abort the selection flow on an
// empty record.
func (p Product) Empty() bool {
	return p.Image == "" &&
		(p.Name == "" || p.Name == unknownField) &&
		(p.Brand == "" || p.Brand == unknownField) &&
		(p.Price == "" || p.Price == "0")
}

const unknownField = "Unknown"
