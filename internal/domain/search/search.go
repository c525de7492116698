// Package search contains the web-search domain types: results, the
// provider contract, and the manual-input parser used when no network
// provider is available or wanted.
package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// Provider names.
const (
	ProviderDuckDuckGo = "duckduckgo"
	ProviderManual     = "manual"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source_name"`
	Rank    int    `json:"rank"`
}

// Provider fetches results for a query. Network failures surface as
// transient errors; the router falls back to the next provider.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, numResults int, safe bool) ([]Result, error)
}

// ParseManual reads user-pasted search results, one per line. Accepted
// forms:
//
//	https://example.com/page              (bare URL, title = URL)
//	Title|https://example.com|snippet     (snippet optional)
//
// Blank lines are skipped. Input that yields no result is a validation
// error.
func ParseManual(input string) ([]Result, error) {
	var results []Result
	rank := 1
	for _, line := range strings.Split(input, "\n") {
		row := strings.TrimSpace(line)
		if row == "" {
			continue
		}
		if isHTTPURL(row) {
			results = append(results, Result{Title: row, URL: row, Source: ProviderManual, Rank: rank})
			rank++
			continue
		}
		if strings.Contains(row, "|") {
			parts := strings.Split(row, "|")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			if len(parts) >= 2 && isHTTPURL(parts[1]) {
				snippet := ""
				if len(parts) >= 3 {
					snippet = parts[2]
				}
				results = append(results, Result{
					Title:   parts[0],
					URL:     parts[1],
					Snippet: snippet,
					Source:  ProviderManual,
					Rank:    rank,
				})
				rank++
			}
		}
	}
	if len(results) == 0 {
		return nil, fault.Validation("invalid manual input: provide URL lines or title|url|snippet rows")
	}
	return results, nil
}

// isHTTPURL reports whether s parses as an absolute http(s) URL.
func isHTTPURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}
