// -----------------------------------------------------------------------
// Link Extractor - link discovery from fetched HTML
// -----------------------------------------------------------------------

package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// LinkExtractor discovers outbound links from fetched HTML, resolving
// relative hrefs against the source URL. Filtering (whitelist/blacklist,
// host match) is a separate concern handled by LinkFilter.
type LinkExtractor struct {
	logger arbor.ILogger
}

func NewLinkExtractor(logger arbor.ILogger) *LinkExtractor {
	return &LinkExtractor{logger: logger}
}

// ExtractLinks discovers all <a href> and canonical/alternate <link href>
// links from HTML content.
func (le *LinkExtractor) ExtractLinks(html string, sourceURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse HTML for link extraction: %w", err)
	}
	return le.extractLinksFromDocument(doc, sourceURL), nil
}

func (le *LinkExtractor) extractLinksFromDocument(doc *goquery.Document, sourceURL string) []string {
	var links []string
	seen := make(map[string]bool)

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		if le.logger != nil {
			le.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("failed to parse source URL for link resolution")
		}
		baseURL = nil
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" || le.shouldSkipLink(href) {
			return
		}
		resolved := le.resolveURL(href, baseURL)
		if resolved != "" && !seen[resolved] {
			seen[resolved] = true
			links = append(links, resolved)
		}
	})

	doc.Find(`link[rel="canonical"], link[rel="alternate"], link[rel="next"], link[rel="prev"]`).Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		resolved := le.resolveURL(href, baseURL)
		if resolved != "" && !seen[resolved] {
			seen[resolved] = true
			links = append(links, resolved)
		}
	})

	return links
}

func (le *LinkExtractor) shouldSkipLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "sms:", "ftp:", "data:"} {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

func (le *LinkExtractor) resolveURL(href string, baseURL *url.URL) string {
	if baseURL == nil {
		if parsed, err := url.Parse(href); err == nil && parsed.IsAbs() {
			return parsed.String()
		}
		return ""
	}
	resolved, err := baseURL.Parse(href)
	if err != nil {
		return ""
	}
	return resolved.String()
}
