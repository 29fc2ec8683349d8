package malls

import (
	"strings"

	"golang.org/x/net/html"
)

// twentyNineAdapter extracts from 29cm.co.kr markup. 29CM detail pages
// expose stable pdp_* ids, so name, brand and price come from the document
// rather than the clicked fragment; only the image is element-local.
type twentyNineAdapter struct{}

func (twentyNineAdapter) extract(frag, doc *html.Node) RawFields {
	image := imageSource(query(frag, "img"))

	name := strings.TrimSpace(textContent(query(doc, "#pdp_product_name")))
	brand := strings.TrimSpace(textContent(query(doc, ".css-1dncbyk.eezztd84")))

	price := "0"
	if pe := query(doc, "#pdp_product_price"); pe != nil {
		if t := strings.TrimSpace(textContent(pe)); t != "" {
			price = t
		}
	}

	return RawFields{Name: name, Image: image, Price: price, Brand: brand}
}
