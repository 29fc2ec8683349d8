// Package malls extracts normalized product records from retailer page
// markup. Each supported mall has its own adapter encoding that retailer's
// selectors and fallback chains; adapters operate on parsed HTML trees so
// extraction stays testable without a live page.
package malls

import (
	"strings"

	"golang.org/x/net/html"
)

// query returns the first node under root matching any of the
// comma-separated selectors, in selector order.
func query(root *html.Node, selectors string) *html.Node {
	for _, sel := range strings.Split(selectors, ",") {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if matches := queryAll(root, sel); len(matches) > 0 {
			return matches[0]
		}
	}
	return nil
}

// queryAll returns all nodes under root matching a selector. Supported
// subset: tag, .class (chains allowed), #id, [attr], [attr=val], and the
// descendant combinator (space).
func queryAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchSimple(root, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			next = append(next, matchSimple(parent, parts[i])...)
		}
		matches = next
	}
	return matches
}

// matchSimple finds all descendant nodes matching a single compound
// selector part.
func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimple(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n != root && m.matches(n) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
}

// parseSimple parses one compound selector part, e.g. "h2.brand-name",
// ".gods-name#goodDtlTitle", ".text-etc_11px_semibold.line-clamp-1",
// "a[data-price]".
func parseSimple(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	// Split the remainder into a leading tag and a sequence of
	// .class / #id qualifiers.
	for sel != "" {
		dot := strings.IndexByte(sel[1:], '.')
		hash := strings.IndexByte(sel[1:], '#')
		end := len(sel)
		switch {
		case dot >= 0 && (hash < 0 || dot < hash):
			end = dot + 1
		case hash >= 0:
			end = hash + 1
		}
		head := sel[:end]
		switch head[0] {
		case '.':
			s.classes = append(s.classes, head[1:])
		case '#':
			s.id = head[1:]
		default:
			s.tag = head
		}
		sel = sel[end:]
	}
	return s
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && attr(n, "id") != s.id {
		return false
	}
	if len(s.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range s.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if s.attrKey != "" {
		if s.attrVal != "" {
			if attr(n, s.attrKey) != s.attrVal {
				return false
			}
		} else if !hasAttr(n, s.attrKey) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// textContent collects the concatenated text under a node.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
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

// imageSource resolves an <img> source, preferring src over data-src.
func imageSource(img *html.Node) string {
	if img == nil {
		return ""
	}
	if src := attr(img, "src"); src != "" {
		return src
	}
	return attr(img, "data-src")
}
