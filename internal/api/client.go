package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CategoryAll is the pseudo-category meaning "no filter".
const CategoryAll = "All"

// Article is a generated analysis document ("blog post") from the backend.
// Articles are immutable from the front-end's perspective.
type Article struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Headline is a raw news-item summary, distinct from a generated Article.
// Headlines are ephemeral: fetched per search, never persisted.
type Headline struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// ChatMessage is one turn of a chat transcript.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Client talks to the trend-analysis backend. It carries no retry logic;
// retry policy belongs to callers.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a backend API client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitAnalysis triggers a backend analysis job for a topic. The backend
// acknowledges the request; completion is observed by polling ListArticles.
func (c *Client) SubmitAnalysis(ctx context.Context, topic, category string) error {
	body := map[string]string{"topic": topic}
	if category != "" && category != CategoryAll {
		body["category"] = category
	}

	resp, err := c.postJSON(ctx, "/api/analyze-trends", body)
	if err != nil {
		return fmt.Errorf("submitting analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submitting analysis: backend returned %d", resp.StatusCode)
	}
	return nil
}

// ListArticles fetches generated articles, newest first as ordered by the
// backend. An empty category or "All" fetches the unfiltered list.
func (c *Client) ListArticles(ctx context.Context, category string) ([]Article, error) {
	var articles []Article
	if err := c.getJSON(ctx, "/api/blogs", category, &articles); err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	return articles, nil
}

// ListHeadlines fetches trend headlines, optionally filtered by category.
func (c *Client) ListHeadlines(ctx context.Context, category string) ([]Headline, error) {
	var headlines []Headline
	if err := c.getJSON(ctx, "/api/trends", category, &headlines); err != nil {
		return nil, fmt.Errorf("listing headlines: %w", err)
	}
	return headlines, nil
}

// ListCategories fetches the category labels the backend supports.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.getJSON(ctx, "/api/categories", "", &categories); err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// SendChatMessage asks the backend's assistant a question about an article.
// The history should contain the transcript so far, excluding the message
// being sent.
func (c *Client) SendChatMessage(ctx context.Context, articleID, message string, history []ChatMessage) (string, error) {
	if history == nil {
		history = []ChatMessage{}
	}
	body := map[string]any{
		"blog_id":      articleID,
		"query":        message,
		"chat_history": history,
	}

	resp, err := c.postJSON(ctx, "/api/chat", body)
	if err != nil {
		return "", fmt.Errorf("sending chat message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sending chat message: backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return result.Answer, nil
}

func (c *Client) getJSON(ctx context.Context, path, category string, out any) error {
	endpoint := c.baseURL + path
	if category != "" && category != CategoryAll {
		endpoint += "?" + url.Values{"category": {category}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}
