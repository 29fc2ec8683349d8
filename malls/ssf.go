package malls

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Price regexes, tried in order: an explicitly labeled sale price wins
// over a bare currency-suffixed number.
var (
	salePriceRe = regexp.MustCompile(`판매가\s*([0-9,]+)`)
	wonPriceRe  = regexp.MustCompile(`([0-9,]+)원`)
)

// ssfAdapter extracts from ssfshop.com markup. List cells carry local
// name/brand/price nodes; detail pages hide them behind page-level
// selectors, so every field has a document-scoped fallback.
type ssfAdapter struct{}

func (ssfAdapter) extract(frag, doc *html.Node) RawFields {
	image := imageSource(query(frag, "img"))

	name := strings.TrimSpace(textContent(query(frag, ".name, .title, .prd_name")))
	if name == "" {
		name = strings.TrimSpace(textContent(query(doc, ".gods-name#goodDtlTitle")))
	}

	brand := strings.TrimSpace(textContent(query(frag, ".brand")))
	if brand == "" {
		if logo := query(doc, "#brandLogo"); logo != nil {
			brand = strings.TrimSpace(textContent(logo))
			if brand == "" {
				brand = strings.TrimSpace(attr(logo, "alt"))
			}
		}
	}

	price := "0"
	if pe := query(frag, ".price, .prc, .amount"); pe != nil {
		price = matchPrice(textContent(pe))
	}

	// A zero element-local price means we are on a detail page: take the
	// page-level sale price and, once found, upgrade the image to the
	// active preview and the brand to the detail header.
	if price == "0" || price == "0원" {
		if dp := query(doc, ".gods-price, .price"); dp != nil {
			if m := salePriceRe.FindStringSubmatch(textContent(dp)); m != nil {
				price = m[1] + "원"
				if src := imageSource(query(doc, ".preview-img .img-item.active img")); src != "" {
					image = src
				}
				if b := strings.TrimSpace(textContent(query(doc, "h2.brand-name a"))); b != "" {
					brand = b
				}
			}
		}
	}

	return RawFields{Name: name, Image: image, Price: price, Brand: brand}
}

// matchPrice applies the sale-price-first policy to a price text blob.
func matchPrice(text string) string {
	if m := salePriceRe.FindStringSubmatch(text); m != nil {
		return m[1] + "원"
	}
	if m := wonPriceRe.FindStringSubmatch(text); m != nil {
		return m[1] + "원"
	}
	return "0"
}
