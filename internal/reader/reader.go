// Package reader fetches an external headline URL and extracts a readable
// text version for in-app display.
package reader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Document is the readable extraction of an external page.
type Document struct {
	Title    string
	Byline   string
	SiteName string
	Text     string
}

// Reader fetches pages and runs readability extraction.
type Reader struct {
	client *http.Client
}

// New creates a Reader with the given fetch timeout.
func New(timeout time.Duration) *Reader {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Reader{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Extract fetches the URL and returns its readable content. Only http and
// https URLs are accepted.
func (r *Reader) Extract(ctx context.Context, pageURL string) (*Document, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid page URL: %s", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "TrendSage/1.0 (reader view)")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching page: %s", http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, fmt.Errorf("no extractable content at %s", pageURL)
	}

	return &Document{
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
		Text:     text,
	}, nil
}
