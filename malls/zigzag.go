package malls

import (
	"strings"

	"golang.org/x/net/html"
)

// zigzagAdapter extracts from zigzag.kr markup. Zigzag is SPA-rendered
// with hashed class names; all fields come from document-level selectors,
// the image from the first <picture>.
type zigzagAdapter struct{}

func (zigzagAdapter) extract(frag, doc *html.Node) RawFields {
	image := ""
	if pic := query(doc, "picture"); pic != nil {
		image = imageSource(query(pic, "img"))
	}

	brand := strings.TrimSpace(textContent(query(doc, ".pdp_shop_info_row .css-gwr30y.e18f5kdz1")))
	name := strings.TrimSpace(textContent(query(doc, ".pdp__title .css-1n8byw.e14n6e5u1")))

	price := "0"
	if pe := query(doc, ".css-no59fe.e1ovj4ty1"); pe != nil {
		if t := strings.TrimSpace(textContent(pe)); t != "" {
			price = t
		}
	}

	return RawFields{Name: name, Image: image, Price: price, Brand: brand}
}
