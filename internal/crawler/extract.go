package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	runSpaces     = regexp.MustCompile(`[ \t]+`)
	runBlankLines = regexp.MustCompile(`\n\s*\n+`)
)

// ExtractLinks returns every hyperlink target in the markup, resolved against
// baseURL, in document order. Unparseable and non-navigational targets
// (mailto:, javascript:, bare fragments) are dropped.
func ExtractLinks(markup string, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "tel:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links, nil
}

// ExtractText derives plain text from rendered markup by stripping
// non-content tags (script, style, meta, link) and collecting every
// remaining text node, one per line. This is a simplification, not semantic
// conversion: layout and link structure are discarded, but mixed content
// (text nodes sharing a parent with inline elements) is preserved.
func ExtractText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, meta, link, noscript").Remove()

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range doc.Nodes {
		walk(node)
	}
	return CollapseWhitespace(strings.Join(parts, "\n")), nil
}

// CollapseWhitespace squeezes space runs and blank-line runs. It is
// idempotent, which keeps repeated extraction stable.
func CollapseWhitespace(text string) string {
	text = runSpaces.ReplaceAllString(text, " ")
	text = runBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
