// Package websearch implements network search providers. DuckDuckGo's
// HTML endpoint is the default: no API key, a single form POST, and a
// stable result markup.
package websearch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/search"
)

const (
	duckduckgoEndpoint = "https://html.duckduckgo.com/html/"
	defaultHTTPTimeout = 15 * time.Second

	// A browser-ish agent; the HTML endpoint rejects obvious bots.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) NeroAI/1.0"
)

// DuckDuckGo is a search.Provider over the HTML (non-API) endpoint.
type DuckDuckGo struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// NewDuckDuckGo creates the provider. client and logger may be nil.
func NewDuckDuckGo(client *http.Client, logger *slog.Logger) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDuckGo{client: client, endpoint: duckduckgoEndpoint, logger: logger}
}

// Name identifies the provider in settings and audit payloads.
func (d *DuckDuckGo) Name() string {
	return search.ProviderDuckDuckGo
}

// Search POSTs the query and scrapes the result list. Network and HTTP
// failures are transient; the router may fall back to another provider.
func (d *DuckDuckGo) Search(ctx context.Context, query string, numResults int, safe bool) ([]search.Result, error) {
	if numResults <= 0 {
		numResults = 5
	}

	form := url.Values{"q": {query}}
	if safe {
		form.Set("kp", "1")
	} else {
		form.Set("kp", "-2")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fault.Transient("duckduckgo search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.Transient("duckduckgo search",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	results, err := parseResults(resp.Body, numResults)
	if err != nil {
		return nil, fault.Transient("duckduckgo search", err)
	}
	d.logger.Debug("duckduckgo search finished", "num_results", len(results))
	return results, nil
}

// parseResults walks the result markup: each hit is an a.result__a
// (title and redirect href) optionally followed by an a.result__snippet.
func parseResults(r io.Reader, limit int) ([]search.Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}

	var results []search.Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				href := resolveRedirect(attr(n, "href"))
				title := strings.TrimSpace(textContent(n))
				if href != "" && title != "" {
					results = append(results, search.Result{
						Title:  title,
						URL:    href,
						Source: search.ProviderDuckDuckGo,
						Rank:   len(results) + 1,
					})
				}
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = strings.TrimSpace(textContent(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<encoded> indirection.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

var _ search.Provider = (*DuckDuckGo)(nil)
