package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// DefaultPageTextLimit caps how many characters of page text are kept per
// source when building search context.
const DefaultPageTextLimit = 2000

// skippedElements are elements whose text content is never page prose.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"nav":      true,
	"footer":   true,
}

// ExtractPageText fetches a URL and returns its visible text with whitespace
// collapsed, truncated to maxChars with a trailing ellipsis when cut. Scripts,
// styles, and navigation chrome are skipped.
func (c *Client) ExtractPageText(ctx context.Context, pageURL string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = DefaultPageTextLimit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("search: create page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search: fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search: fetch page: HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("search: parse page: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	text := strings.Join(strings.Fields(b.String()), " ")
	if len(text) > maxChars {
		text = text[:maxChars] + "..."
	}
	return text, nil
}

// SearchAndExtract runs a search and assembles a context block from the top
// results, fetching each result page for its text and falling back to the
// engine snippet when the page cannot be fetched. The block is formatted as
// numbered "Source N (title):" sections for inclusion in a model prompt, and
// the results that contributed to it are returned alongside so callers can
// report sources that mirror the context exactly. An empty block with nil
// error means the search worked but found nothing usable.
func (c *Client) SearchAndExtract(ctx context.Context, query string, maxResults int) (string, []Result, error) {
	results, err := c.Search(ctx, query, maxResults)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return "", nil, nil
	}

	var b strings.Builder
	var used []Result
	for _, result := range results {
		content, err := c.ExtractPageText(ctx, result.URL, DefaultPageTextLimit)
		if err != nil || content == "" {
			content = result.Snippet
		}
		if content == "" {
			continue
		}
		used = append(used, result)
		fmt.Fprintf(&b, "Source %d (%s):\n%s\n\n", len(used), result.Title, content)
	}
	return strings.TrimRight(b.String(), "\n"), used, nil
}
