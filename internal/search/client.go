// Package search provides a web search client used to supplement document
// answers with current information. Results come from the DuckDuckGo HTML
// endpoint, which needs no API key; pages behind the result links can be
// fetched and reduced to plain text for prompt context.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/askdoc/askdoc-go/internal/logging"
)

const (
	searchEndpoint = "https://html.duckduckgo.com/html/"

	// userAgent mimics a browser; the HTML endpoint rejects obvious bots.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	// DefaultMaxResults bounds how many results a search returns.
	DefaultMaxResults = 5
)

// ErrRateLimited indicates the search engine is throttling us. Retries back
// off harder on this than on transient failures.
var ErrRateLimited = errors.New("search: rate limited by search engine")

// Result is a single web search hit.
type Result struct {
	// Title is the result's page title.
	Title string
	// URL is the result's destination URL.
	URL string
	// Snippet is the engine-provided text excerpt.
	Snippet string
}

// Client performs web searches with retry and outbound rate limiting.
// Safe for concurrent use.
type Client struct {
	// endpoint is the search URL, overridable for tests.
	endpoint string
	// httpClient performs all outbound requests.
	httpClient *http.Client
	// limiter spaces out requests so a burst of questions does not get the
	// whole deployment throttled.
	limiter *rate.Limiter
	// maxRetries bounds attempts per search.
	maxRetries int
	// maxResults caps how many hits any single search may return.
	maxResults int
	// sleep is time.Sleep, injectable for tests.
	sleep func(time.Duration)
}

// ClientConfig holds the settings for constructing a search Client.
type ClientConfig struct {
	// Endpoint overrides the search URL. Defaults to the DuckDuckGo HTML endpoint.
	Endpoint string
	// MaxRetries bounds attempts per search. Defaults to 3.
	MaxRetries int
	// MaxResults caps how many hits a search may return regardless of what the
	// caller asks for. Defaults to DefaultMaxResults.
	MaxResults int
	// RequestsPerSecond caps outbound search requests. Defaults to 1.
	RequestsPerSecond float64
}

// NewClient constructs a search Client, filling in defaults for unset fields.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = searchEndpoint
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: retries,
		maxResults: maxResults,
		sleep:      time.Sleep,
	}
}

// Search runs a web search and returns up to maxResults hits, capped by the
// client's configured maximum. Rate-limit responses back off two seconds per
// attempt before retrying; other transient failures retry after one second.
// Search never fails the request: when every attempt is exhausted it logs the
// cause and returns an empty slice, so callers answer from whatever other
// context they have.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 || maxResults > c.maxResults {
		maxResults = c.maxResults
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		results, err := c.searchOnce(ctx, query, maxResults)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == c.maxRetries {
			break
		}
		if errors.Is(err, ErrRateLimited) {
			c.sleep(time.Duration(attempt) * 2 * time.Second)
		} else {
			c.sleep(time.Second)
		}
	}

	logging.FromContext(ctx).Warn("search failed, continuing without web results",
		slog.String("query", query),
		slog.Int("attempts", c.maxRetries),
		slog.String("error", lastErr.Error()))
	return []Result{}, nil
}

func (c *Client) searchOnce(ctx context.Context, query string, maxResults int) ([]Result, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// The HTML endpoint signals throttling with 429, and sometimes with an
	// empty 202 while it decides whether we are a bot.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusAccepted {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	results, err := parseResults(resp.Body, maxResults)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// parseResults extracts search hits from the result page. Each hit is an
// anchor with class "result__a" (title and link) optionally followed by an
// element with class "result__snippet".
func parseResults(r io.Reader, maxResults int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				results = append(results, Result{
					Title: nodeText(n),
					URL:   resolveResultURL(attr(n, "href")),
				})
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return results, nil
}

// resolveResultURL unwraps DuckDuckGo's redirect links, which carry the real
// destination in the "uddg" query parameter.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
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

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText returns the concatenated text content of a node with whitespace
// collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
