package docsmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Tool names exposed by the AWS documentation MCP server.
const (
	toolSearchDocumentation = "search_documentation"
	toolReadDocumentation   = "read_documentation"
)

const defaultCacheTTL = time.Hour

// SearchResult is one hit returned by the search_documentation tool.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content,omitempty"`
	Context     string `json:"context,omitempty"`
	Description string `json:"description,omitempty"`
}

// DocsClient wraps a connected Client with the documentation server's tool
// surface: searching and reading AWS documentation pages. Results are cached
// in memory with a TTL; the cache never survives the client.
type DocsClient struct {
	client *Client
	logger *slog.Logger

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// DocsClientOption configures a DocsClient.
type DocsClientOption func(*DocsClient)

// WithCacheTTL sets how long search and read results are served from cache.
func WithCacheTTL(ttl time.Duration) DocsClientOption {
	return func(d *DocsClient) {
		d.cacheTTL = ttl
	}
}

// WithDocsLogger sets the logger for the documentation client.
func WithDocsLogger(logger *slog.Logger) DocsClientOption {
	return func(d *DocsClient) {
		d.logger = logger
	}
}

// NewDocsClient wraps an already connected client.
func NewDocsClient(client *Client, options ...DocsClientOption) *DocsClient {
	d := &DocsClient{
		client:   client,
		logger:   slog.Default(),
		cacheTTL: defaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// SearchDocumentation queries the documentation index. Each text content item
// in the tool result is parsed as a JSON array or object of results; items
// that are not JSON are kept as plain-text hits titled by the query.
func (d *DocsClient) SearchDocumentation(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	cacheKey := fmt.Sprintf("search:%s:%d", query, limit)
	if cached, ok := d.fromCache(cacheKey); ok {
		return cached.([]SearchResult), nil
	}

	raw, err := d.client.CallTool(ctx, toolSearchDocumentation, map[string]any{
		"search_phrase": query,
		"limit":         limit,
	})
	if err != nil {
		return nil, err
	}

	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid search result: %v", ErrMalformedMessage, err)
	}

	var results []SearchResult
	for _, item := range result.Content {
		if item.Type != "text" || item.Text == "" {
			continue
		}

		var many []SearchResult
		if err := json.Unmarshal([]byte(item.Text), &many); err == nil {
			results = append(results, many...)
			continue
		}
		var one SearchResult
		if err := json.Unmarshal([]byte(item.Text), &one); err == nil && (one.Title != "" || one.URL != "") {
			results = append(results, one)
			continue
		}
		results = append(results, SearchResult{Title: query, Content: item.Text})
	}

	d.logger.Info("documentation search", "query", query, "results", len(results))
	d.toCache(cacheKey, results)
	return results, nil
}

// ReadDocumentation fetches one documentation page and returns its text
// content, concatenated across content items.
func (d *DocsClient) ReadDocumentation(ctx context.Context, url string, maxLength int) (string, error) {
	cacheKey := fmt.Sprintf("read:%s:%d", url, maxLength)
	if cached, ok := d.fromCache(cacheKey); ok {
		return cached.(string), nil
	}

	raw, err := d.client.CallTool(ctx, toolReadDocumentation, map[string]any{
		"url":        url,
		"max_length": maxLength,
	})
	if err != nil {
		return "", err
	}

	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: invalid read result: %v", ErrMalformedMessage, err)
	}

	var sb strings.Builder
	for _, item := range result.Content {
		if item.Type != "text" {
			continue
		}
		sb.WriteString(item.Text)
		sb.WriteString("\n")
	}

	content := strings.TrimSpace(sb.String())
	d.toCache(cacheKey, content)
	return content, nil
}

// ServiceDocumentation aggregates what the documentation server knows about
// one service: the best search hit plus the page behind it.
type ServiceDocumentation struct {
	ServiceName string `json:"serviceName"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

// GetServiceDocumentation searches for a service overview and reads the most
// relevant page.
func (d *DocsClient) GetServiceDocumentation(ctx context.Context, serviceName string) (*ServiceDocumentation, error) {
	query := fmt.Sprintf("AWS %s service overview features", serviceName)
	results, err := d.SearchDocumentation(ctx, query, 5)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no documentation found for service: %s", serviceName)
	}

	main := results[0]
	doc := &ServiceDocumentation{
		ServiceName: serviceName,
		Title:       main.Title,
		URL:         main.URL,
		Content:     main.Content,
		Description: main.Description,
	}

	if main.URL != "" {
		content, err := d.ReadDocumentation(ctx, main.URL, 3000)
		if err != nil {
			d.logger.Warn("failed to read detail page", "url", main.URL, "err", err)
		} else if content != "" {
			doc.Content = content
		}
	}
	return doc, nil
}

// BestPractices searches the documentation for best-practice statements about
// a service and returns the matching result snippets.
func (d *DocsClient) BestPractices(ctx context.Context, serviceName string) ([]string, error) {
	query := fmt.Sprintf("AWS %s best practices recommendations", serviceName)
	results, err := d.SearchDocumentation(ctx, query, 10)
	if err != nil {
		return nil, err
	}

	var practices []string
	for _, r := range results {
		text := r.Context
		if text == "" {
			text = r.Content
		}
		lower := strings.ToLower(text)
		if strings.Contains(lower, "best practice") || strings.Contains(lower, "recommendation") {
			practices = append(practices, text)
		}
	}
	return practices, nil
}

// ClearCache drops every cached result.
func (d *DocsClient) ClearCache() {
	d.mu.Lock()
	d.cache = make(map[string]cacheEntry)
	d.mu.Unlock()
}

func (d *DocsClient) fromCache(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.cache[key]
	if !ok || time.Now().After(entry.expires) {
		delete(d.cache, key)
		return nil, false
	}
	return entry.value, true
}

func (d *DocsClient) toCache(key string, value any) {
	d.mu.Lock()
	d.cache[key] = cacheEntry{value: value, expires: time.Now().Add(d.cacheTTL)}
	d.mu.Unlock()
}
