// Package closet manages the persisted cart and the four-slot mood
// board. Both live in the shared state store, so any surface (popup,
// bridge API, agent tools) sees the same closet.
package closet

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ynl8015/otfit/malls"
	"github.com/ynl8015/otfit/store"
	"github.com/ynl8015/otfit/taxonomy"
)

// ErrDuplicate is returned by Cart.Add when an item with the same
// product URL is already in the cart.
var ErrDuplicate = errors.New("closet: product already in cart")

// ErrNotFound is returned by Cart.Remove when no item carries the
// given ID.
var ErrNotFound = errors.New("closet: item not in cart")

// fallbackGroup labels items whose mall or brand is unknown.
const fallbackGroup = "기타"

// Item is one cart entry: a captured product plus its stable ID.
type Item struct {
	malls.Product
	ID string `json:"id"`
}

// itemID derives the stable cart ID from the product URL and image.
// Deterministic, so reloading the cart never re-identifies items.
func itemID(url, image string) string {
	return url + "-" + image
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// priceDigits strips everything but digits from a price string.
func priceDigits(price string) string {
	return nonDigits.ReplaceAllString(price, "")
}

// formatWon renders n with thousands separators and the 원 suffix.
func formatWon(n int) string {
	s := strconv.Itoa(n)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String() + "원"
}

// normalizePrice reduces any captured price text to "digits with
// thousands separators + 원". Empty or digit-free input becomes "0원".
func normalizePrice(price string) string {
	d := priceDigits(price)
	if d == "" {
		return "0원"
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return "0원"
	}
	return formatWon(n)
}

// Cart is the persisted shopping cart.
type Cart struct {
	store store.Store
}

// NewCart returns a Cart over the shared store.
func NewCart(s store.Store) *Cart {
	return &Cart{store: s}
}

func (c *Cart) load(ctx context.Context) ([]Item, error) {
	var items []Item
	if _, err := store.GetJSON(ctx, c.store, store.KeyCartItems, &items); err != nil {
		return nil, fmt.Errorf("closet: load cart: %w", err)
	}
	return items, nil
}

func (c *Cart) save(ctx context.Context, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	if err := c.store.Set(ctx, map[string]any{store.KeyCartItems: items}); err != nil {
		return fmt.Errorf("closet: save cart: %w", err)
	}
	return nil
}

// Items returns the cart contents. Legacy entries written by other
// surfaces are repaired on read: missing IDs are derived and prices
// normalized.
func (c *Cart) Items(ctx context.Context) ([]Item, error) {
	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = itemID(items[i].URL, items[i].Image)
		}
		items[i].Price = normalizePrice(items[i].Price)
	}
	return items, nil
}

// Add appends p to the cart. A product whose URL is already present is
// rejected with ErrDuplicate and the cart is left unchanged. Missing
// fields get the same defaults every surface assumes.
func (c *Cart) Add(ctx context.Context, p malls.Product) (Item, error) {
	items, err := c.load(ctx)
	if err != nil {
		return Item{}, err
	}
	for _, it := range items {
		if it.URL == p.URL {
			return Item{}, ErrDuplicate
		}
	}

	if p.Price == "" {
		p.Price = "0원"
	}
	if p.Mall == "" {
		p.Mall = fallbackGroup
	}
	if p.Brand == "" {
		p.Brand = fallbackGroup
	}
	if p.Category == "" {
		p.Category = taxonomy.Upper
	}

	item := Item{Product: p, ID: itemID(p.URL, p.Image)}
	if err := c.save(ctx, append(items, item)); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Remove deletes the item with the given ID.
func (c *Cart) Remove(ctx context.Context, id string) error {
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id && itemID(it.URL, it.Image) != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return ErrNotFound
	}
	return c.save(ctx, kept)
}

// UpdateByURL applies a user edit: the selected product is replaced and
// every cart entry sharing the product URL is patched. The URL is the
// identity here since the edit may change the image.
func (c *Cart) UpdateByURL(ctx context.Context, edited malls.Product) error {
	if err := c.store.Set(ctx, map[string]any{store.KeySelectedProduct: edited}); err != nil {
		return fmt.Errorf("closet: update selected product: %w", err)
	}
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	touched := false
	for i := range items {
		if items[i].URL == edited.URL {
			items[i].Product = edited
			items[i].ID = itemID(edited.URL, edited.Image)
			touched = true
		}
	}
	if !touched {
		return nil
	}
	return c.save(ctx, items)
}

// BrandGroup is one brand's items within a mall.
type BrandGroup struct {
	Brand string `json:"brand"`
	Items []Item `json:"items"`
}

// MallGroup is one mall's brands.
type MallGroup struct {
	Mall   string       `json:"mall"`
	Brands []BrandGroup `json:"brands"`
}

// Group arranges items by mall, then brand, preserving the order in
// which each group first appears in the cart.
func Group(items []Item) []MallGroup {
	var out []MallGroup
	mallIdx := map[string]int{}
	brandIdx := map[string]map[string]int{}

	for _, it := range items {
		mall := string(it.Mall)
		if mall == "" {
			mall = fallbackGroup
		}
		brand := it.Brand
		if brand == "" {
			brand = fallbackGroup
		}

		mi, ok := mallIdx[mall]
		if !ok {
			mi = len(out)
			mallIdx[mall] = mi
			out = append(out, MallGroup{Mall: mall})
			brandIdx[mall] = map[string]int{}
		}
		bi, ok := brandIdx[mall][brand]
		if !ok {
			bi = len(out[mi].Brands)
			brandIdx[mall][brand] = bi
			out[mi].Brands = append(out[mi].Brands, BrandGroup{Brand: brand})
		}
		out[mi].Brands[bi].Items = append(out[mi].Brands[bi].Items, it)
	}
	return out
}

// Selection is a set of cart item IDs.
type Selection map[string]bool

// Toggle flips the selection state of id.
func (s Selection) Toggle(id string) {
	if s[id] {
		delete(s, id)
	} else {
		s[id] = true
	}
}

// SelectAll returns a Selection covering all items, or an empty one
// when all is false.
func SelectAll(items []Item, all bool) Selection {
	s := Selection{}
	if all {
		for _, it := range items {
			s[it.ID] = true
		}
	}
	return s
}

// TotalPrice sums the selected items' prices and formats the total with
// thousands separators and the 원 suffix.
func TotalPrice(items []Item, selected Selection) string {
	total := 0
	for _, it := range items {
		if !selected[it.ID] {
			continue
		}
		if n, err := strconv.Atoi(priceDigits(it.Price)); err == nil {
			total += n
		}
	}
	return formatWon(total)
}
