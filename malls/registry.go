package malls

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/ynl8015/otfit/taxonomy"
)

// adapter extracts raw fields from an element fragment plus the full
// document. The fragment is the product-like element the user clicked;
// the document serves the page-level fallback selectors that only exist
// on detail pages.
type adapter interface {
	extract(fragment, doc *html.Node) RawFields
}

// registry is the static origin→adapter table. Origins are matched by
// hostname substring, mirroring how the malls span multiple subdomains.
var registry = []struct {
	hostPart string
	mall     Mall
	adapter  adapter
}{
	{"ssfshop", SSF, ssfAdapter{}},
	{"musinsa", Musinsa, musinsaAdapter{}},
	{"29cm", TwentyNine, twentyNineAdapter{}},
	{"zigzag", Zigzag, zigzagAdapter{}},
}

// ForOrigin resolves the adapter for a page host. The second return is the
// mall tag recorded on extracted products.
func ForOrigin(host string) (adapter, Mall, bool) {
	h := strings.ToLower(host)
	for _, e := range registry {
		if strings.Contains(h, e.hostPart) {
			return e.adapter, e.mall, true
		}
	}
	return nil, UnknownMall, false
}

// Extract runs the adapter registered for host against a clicked fragment
// and its document, returning a normalized Product. The category is always
// derived from the extracted name; pageURL becomes the record's URL.
// Unknown origins yield ErrNoAdapter.
func Extract(host string, fragment, doc *html.Node, pageURL string) (Product, error) {
	a, mall, ok := ForOrigin(host)
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrNoAdapter, host)
	}

	raw := a.extract(fragment, doc)
	name := cleanText(raw.Name)
	if name == "" {
		name = unknownField
	}
	brand := cleanText(raw.Brand)
	if brand == "" {
		brand = unknownField
	}
	price := cleanText(raw.Price)
	if price == "" {
		price = "0"
	}

	cat := taxonomy.Classify(name)
	return Product{
		Name:       name,
		Image:      strings.TrimSpace(raw.Image),
		Price:      price,
		Category:   cat,
		Brand:      brand,
		Mall:       mall,
		URL:        pageURL,
		MaskOffset: taxonomy.MaskOffset(cat),
	}, nil
}

// ParseFragment parses an HTML fragment or full document into a node tree
// suitable for the adapters. html.Parse wraps fragments in html/body, which
// the descendant-based selectors tolerate.
func ParseFragment(markup string) (*html.Node, error) {
	n, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("malls: parse markup: %w", err)
	}
	return n, nil
}

// strict strips every tag; captured fragments come from arbitrary page
// markup and extracted strings must be plain text.
var strict = bluemonday.StrictPolicy()

func cleanText(s string) string {
	s = strict.Sanitize(s)
	return strings.Join(strings.Fields(s), " ")
}
