// Package extract pulls the title, readable text and outbound links out of an HTML page.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTitle is used when a page has no usable <title>.
const DefaultTitle = "No Title"

// DefaultTextSelector selects the block elements whose text forms the document body.
const DefaultTextSelector = "p"

// Page is the readable content of one HTML document.
type Page struct {
	Title string
	Text  string
	Links []string
}

// Extractor parses HTML bodies.
type Extractor struct {
	textSelector string
}

// New returns an Extractor reading body text from textSelector (DefaultTextSelector when empty).
func New(textSelector string) *Extractor {
	if strings.TrimSpace(textSelector) == "" {
		textSelector = DefaultTextSelector
	}
	return &Extractor{textSelector: textSelector}
}

// Parse extracts the page content. Links are absolute, fragment-free http(s) URLs
// resolved against base, deduplicated in document order.
func (e *Extractor) Parse(base *url.URL, body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	page := Page{Title: DefaultTitle}
	if title := normalizeSpace(doc.Find("title").First().Text()); title != "" {
		page.Title = title
	}

	blocks := make([]string, 0, 16)
	doc.Find(e.textSelector).Each(func(_ int, s *goquery.Selection) {
		if text := normalizeSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	page.Text = strings.Join(blocks, "\n")

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := ResolveLink(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		page.Links = append(page.Links, link)
	})
	return page, nil
}

// ResolveLink turns href into an absolute URL without fragment. Non-http(s)
// targets and unparseable hrefs report false.
func ResolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
