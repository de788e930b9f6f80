package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// FetchMetrics tracks attempts/successes/failures for status reporting,
// per spec §4.8.
type FetchMetrics struct {
	Attempts  int
	Successes int
	Failures  int
}

// FetchedDocument is the fetcher's output on success.
type FetchedDocument struct {
	URL              string
	Title            string
	Markdown         string
	Text             string
	Excerpt          string
	ExtractionMethod string
	Links            []string
}

// FetchFailure is a typed, string-reasoned failure attached to URL
// metadata (spec §4.8): "status=500", "fallback_disabled",
// "fallback_skipped_asset", "timeout", or an exception-class-like string.
type FetchFailure struct {
	Reason string
}

func (e *FetchFailure) Error() string { return e.Reason }

var staticAssetSuffixes = []string{".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".woff", ".woff2", ".ico"}
var staticAssetPathPrefixes = []string{"/_static/", "/static/", "/assets/"}

// FetcherConfig tunes the per-tenant fetch strategy.
type FetcherConfig struct {
	PlaywrightFirstHosts map[string]bool
	HTTPTimeout          time.Duration
	NavigationTimeout    time.Duration
	MarkdownMirrorSuffix string
	FallbackEnabled      bool
	FallbackURL          string
	FallbackMaxRetries   int
	UserAgent            string
}

// Fetcher retrieves and extracts one URL into title/markdown/text/excerpt,
// per spec §4.8, using a per-host dual fetch strategy (§4.6).
type Fetcher struct {
	config      FetcherConfig
	httpClient  *http.Client
	browserPool *ChromeDPPool
	rateLimiter *AdaptiveRateLimiter
	converter   *md.Converter
	logger      arbor.ILogger
	metrics     FetchMetrics
}

// NewFetcher wires an HTTP client, optional browser pool, and adaptive
// rate limiter into a Fetcher.
func NewFetcher(config FetcherConfig, browserPool *ChromeDPPool, rateLimiter *AdaptiveRateLimiter, logger arbor.ILogger) *Fetcher {
	timeout := config.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		config:      config,
		httpClient:  &http.Client{Timeout: timeout},
		browserPool: browserPool,
		rateLimiter: rateLimiter,
		converter:   md.NewConverter("", true, nil),
		logger:      logger,
	}
}

func (f *Fetcher) isStaticAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, prefix := range staticAssetPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, suffix := range staticAssetSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// Fetch retrieves rawURL, trying the markdown mirror shortcut, then the
// primary extractor, then (if enabled and applicable) the fallback
// extractor. Per spec §4.8.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	if f.config.MarkdownMirrorSuffix != "" {
		if doc, ok := f.tryMarkdownMirror(ctx, rawURL); ok {
			return doc, nil
		}
	}

	doc, err := f.primaryFetch(ctx, rawURL)
	if err == nil && doc != nil {
		return doc, nil
	}

	if !f.config.FallbackEnabled {
		if err != nil {
			return nil, err
		}
		return nil, &FetchFailure{Reason: "fallback_disabled"}
	}
	if f.isStaticAsset(rawURL) {
		return nil, &FetchFailure{Reason: "fallback_skipped_asset"}
	}

	return f.fallbackFetch(ctx, rawURL)
}

func (f *Fetcher) tryMarkdownMirror(ctx context.Context, rawURL string) (*FetchedDocument, bool) {
	mirrorURL := rawURL
	switch {
	case strings.HasSuffix(mirrorURL, ".html"):
		mirrorURL = strings.TrimSuffix(mirrorURL, ".html") + f.config.MarkdownMirrorSuffix
	case strings.HasSuffix(mirrorURL, "/"):
		mirrorURL = mirrorURL + "index" + f.config.MarkdownMirrorSuffix
	default:
		mirrorURL = mirrorURL + f.config.MarkdownMirrorSuffix
	}

	body, status, err := f.httpGet(ctx, mirrorURL)
	if err != nil || status != http.StatusOK || strings.TrimSpace(body) == "" {
		return nil, false
	}
	return &FetchedDocument{
		URL:              rawURL,
		Markdown:         body,
		Text:             body,
		ExtractionMethod: "markdown_mirror",
	}, true
}

func (f *Fetcher) primaryFetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	host := f.hostOf(rawURL)
	html, status, err := f.fetchHTML(ctx, rawURL, host)
	f.metrics.Attempts++
	if err != nil {
		f.metrics.Failures++
		return nil, err
	}
	if status != http.StatusOK {
		f.metrics.Failures++
		return nil, &FetchFailure{Reason: fmt.Sprintf("status=%d", status)}
	}

	extracted, err := f.extract(html, rawURL)
	if err != nil {
		f.metrics.Failures++
		return nil, err
	}
	f.metrics.Successes++
	return extracted, nil
}

// fetchHTML chooses the playwright-first or http-first path for host, per
// spec §4.6.
func (f *Fetcher) fetchHTML(ctx context.Context, rawURL, host string) (string, int, error) {
	if f.rateLimiter != nil {
		if err := f.rateLimiter.Wait(ctx, rawURL); err != nil {
			return "", 0, err
		}
	}

	playwrightFirst := f.config.PlaywrightFirstHosts != nil && f.config.PlaywrightFirstHosts[host]

	if playwrightFirst && f.browserPool != nil {
		html, err := f.browserPool.RenderURL(ctx, rawURL, f.config.NavigationTimeout)
		if err == nil {
			if f.rateLimiter != nil {
				f.rateLimiter.OnSuccess(rawURL)
			}
			return html, http.StatusOK, nil
		}
		if f.logger != nil {
			f.logger.Debug().Err(err).Str("url", rawURL).Msg("browser render failed, falling back to HTTP client")
		}
	}

	body, status, err := f.httpGet(ctx, rawURL)
	if err != nil {
		return "", 0, err
	}
	if status == http.StatusTooManyRequests {
		if f.rateLimiter != nil {
			f.rateLimiter.OnRateLimited(rawURL)
		}
		return "", status, nil
	}
	if status == http.StatusForbidden && !playwrightFirst && f.browserPool != nil {
		html, browserErr := f.browserPool.RenderURL(ctx, rawURL, f.config.NavigationTimeout)
		if browserErr == nil {
			return html, http.StatusOK, nil
		}
	}
	if f.rateLimiter != nil && status == http.StatusOK {
		f.rateLimiter.OnSuccess(rawURL)
	}
	return body, status, nil
}

func (f *Fetcher) httpGet(ctx context.Context, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, err
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, &FetchFailure{Reason: "timeout"}
		}
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

func (f *Fetcher) hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// extract converts HTML into {title, markdown, text, excerpt, links} via
// goquery + html-to-markdown, per spec §4.8's primary extractor.
func (f *Fetcher) extract(html, sourceURL string) (*FetchedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	contentSelection := doc.Find("article, main, [role=main]").First()
	if contentSelection.Length() == 0 {
		contentSelection = doc.Find("body")
	}
	contentHTML, _ := contentSelection.Html()

	markdown, err := f.converter.ConvertString(contentHTML)
	if err != nil {
		markdown = strings.TrimSpace(contentSelection.Text())
	}

	text := strings.TrimSpace(contentSelection.Text())
	excerpt := firstNWords(text, 60)

	extractor := NewLinkExtractor(f.logger)
	links, _ := extractor.ExtractLinks(html, sourceURL)

	return &FetchedDocument{
		URL:              sourceURL,
		Title:            title,
		Markdown:         strings.TrimSpace(markdown),
		Text:             text,
		Excerpt:          excerpt,
		ExtractionMethod: "primary",
		Links:            links,
	}, nil
}

func firstNWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ") + "…"
}

// fallbackFetch delegates extraction to an external HTTP service when the
// primary extractor yields nothing, per spec §4.8's optional fallback
// extractor. Retries up to FallbackMaxRetries times; cancellation bubbles
// up via ctx.
func (f *Fetcher) fallbackFetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	if f.config.FallbackURL == "" {
		return nil, &FetchFailure{Reason: "fallback_disabled"}
	}

	policy := NewRetryPolicy()
	policy.MaxAttempts = f.config.FallbackMaxRetries
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	var body string
	var status int
	_, lastErr = policy.ExecuteWithRetry(ctx, f.logger, func() (int, error) {
		endpoint := f.config.FallbackURL + "?url=" + url.QueryEscape(rawURL)
		var err error
		body, status, err = f.httpGet(ctx, endpoint)
		return status, err
	})
	if lastErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, lastErr
	}
	if status != http.StatusOK || strings.TrimSpace(body) == "" {
		return nil, &FetchFailure{Reason: fmt.Sprintf("status=%d", status)}
	}

	return &FetchedDocument{
		URL:              rawURL,
		Markdown:         body,
		Text:             body,
		ExtractionMethod: "fallback",
	}, nil
}

// Metrics returns a snapshot of fetch attempt/success/failure counts.
func (f *Fetcher) Metrics() FetchMetrics {
	return f.metrics
}
