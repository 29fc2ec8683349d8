package malls

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// musinsaBrandRe pulls a leading "한글 브랜드명 (ROMAN)" pattern out of a
// product name when no explicit brand node exists.
var musinsaBrandRe = regexp.MustCompile(`^([ㄱ-ㅎㅏ-ㅣ가-힣\s]+\([A-Z\s]+\))`)

// musinsaAdapter extracts from musinsa.com markup. The product name lives
// in the image alt text prefixed with the brand, so the brand is stripped
// back out of it.
type musinsaAdapter struct{}

func (musinsaAdapter) extract(frag, doc *html.Node) RawFields {
	img := query(frag, "img")
	image := imageSource(img)

	brand := strings.TrimSpace(textContent(query(frag, ".text-etc_11px_semibold.line-clamp-1")))

	name := strings.TrimSpace(attr(img, "alt"))
	switch {
	case brand != "" && strings.HasPrefix(name, brand):
		name = strings.TrimSpace(strings.TrimPrefix(name, brand))
	case brand == "":
		if m := musinsaBrandRe.FindStringSubmatch(name); m != nil {
			brand = strings.TrimSpace(m[1])
			name = strings.TrimSpace(strings.Replace(name, m[1], "", 1))
		}
	}

	price := "0"
	if a := query(frag, "a[data-price]"); a != nil {
		if p := attr(a, "data-price"); p != "" {
			price = p + "원"
		}
	}

	return RawFields{Name: name, Image: image, Price: price, Brand: brand}
}
