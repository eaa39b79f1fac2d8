package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractDocument parses the fetched HTML and fills in title, visible text
// and the absolutized outbound links in document order.
func extractDocument(doc Document) (Document, error) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.HTML))
	if err != nil {
		return Document{}, &FetchError{
			URL:       doc.URL,
			Permanent: true,
			Err:       fmt.Errorf("parse html: %w", err),
		}
	}

	doc.Title = strings.TrimSpace(parsed.Find("title").First().Text())
	// Links first: visibleText prunes nav and footer nodes from the tree,
	// and links living there still need to be discovered.
	doc.Links = outboundLinks(parsed, doc.baseURL())
	doc.Text = visibleText(parsed)
	return doc, nil
}

func (d Document) baseURL() *url.URL {
	base := d.FinalURL
	if base == "" {
		base = d.URL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil
	}
	return u
}

// visibleText returns the page's readable text with scripts, styles and
// navigation chrome removed and whitespace collapsed.
func visibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	return strings.Join(strings.Fields(root.Text()), " ")
}

// outboundLinks collects href targets, resolves them against the page URL,
// normalizes them and drops duplicates while preserving document order.
func outboundLinks(doc *goquery.Document, base *url.URL) []string {
	if base == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		normalized, err := NormalizeURL(abs.String())
		if err != nil {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	return links
}

// DefaultHandler is the generic site handler: follow every extracted link
// and emit the page title/text as the structured record.
type DefaultHandler struct{}

// ParseLinks implements SiteHandler.
func (DefaultHandler) ParseLinks(doc Document) []string {
	return doc.Links
}

// ParseContent implements SiteHandler.
func (DefaultHandler) ParseContent(doc Document) (map[string]any, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("page %s has no extractable text", doc.URL)
	}
	return map[string]any{
		"title":   doc.Title,
		"content": doc.Text,
		"url":     doc.URL,
	}, nil
}
