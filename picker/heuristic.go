// Package picker implements the on-page product selection mode: a
// two-state controller that overlays a retailer page, finds the
// product card under the pointer, and on a confirmed click extracts
// the product and publishes it to the shared store.
package picker

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxWalkDepth bounds the ancestor walk from a pointer target.
const maxWalkDepth = 10

// FindProduct walks up from target looking for the nearest ancestor
// that looks like a product card, applying the rules in order:
//
//  1. the "god-item" class marker,
//  2. both a .caption and an img descendant,
//  3. the cunit_t232 / cunit_t / item class markers,
//  4. an img descendant plus priced text plus more than one child.
//
// The walk stops at the document body or after ten levels. Returns nil
// when nothing qualifies.
func FindProduct(target *html.Node) *html.Node {
	depth := 0
	for cur := target; cur != nil && depth < maxWalkDepth; cur = cur.Parent {
		if cur.Type != html.ElementNode || cur.DataAtom == atom.Body {
			return nil
		}
		depth++

		if hasClass(cur, "god-item") {
			return cur
		}
		if hasDescendantClass(cur, "caption") && hasDescendantTag(cur, "img") {
			return cur
		}
		if hasClass(cur, "cunit_t232") || hasClass(cur, "cunit_t") || hasClass(cur, "item") {
			return cur
		}
		if hasDescendantTag(cur, "img") && hasPricedText(textContent(cur)) && elementChildCount(cur) > 1 {
			return cur
		}
	}
	return nil
}

// hasPricedText reports whether s contains won-denominated text.
func hasPricedText(s string) bool {
	return strings.Contains(s, "원")
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// hasDescendantTag reports whether n has a proper descendant element
// with the given tag.
func hasDescendantTag(n *html.Node, tag string) bool {
	return findDescendant(n, func(d *html.Node) bool { return d.Data == tag })
}

// hasDescendantClass reports whether n has a proper descendant element
// carrying the given class.
func hasDescendantClass(n *html.Node, class string) bool {
	return findDescendant(n, func(d *html.Node) bool { return hasClass(d, class) })
}

func findDescendant(n *html.Node, match func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if match(c) || findDescendant(c, match) {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func elementChildCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// RootElement returns the document element of a parsed page.
func RootElement(doc *html.Node) *html.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// NodeAtPath resolves an element-child index path starting at the
// document element, as reported by the in-page payload. Returns nil if
// the path runs off the tree.
func NodeAtPath(doc *html.Node, path []int) *html.Node {
	cur := RootElement(doc)
	for _, idx := range path {
		if cur == nil {
			return nil
		}
		i := 0
		var next *html.Node
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if i == idx {
				next = c
				break
			}
			i++
		}
		cur = next
	}
	return cur
}

// PathOf computes the element-child index path from the document
// element down to n, the inverse of NodeAtPath.
func PathOf(n *html.Node) []int {
	var path []int
	for cur := n; cur.Parent != nil && cur.Parent.Type == html.ElementNode; cur = cur.Parent {
		idx := 0
		for s := cur.Parent.FirstChild; s != nil && s != cur; s = s.NextSibling {
			if s.Type == html.ElementNode {
				idx++
			}
		}
		path = append([]int{idx}, path...)
	}
	return path
}
