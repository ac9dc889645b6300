package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultEndpoint = "https://serpapi.com/search"

// Result is one web search hit: the title/snippet/link triple that becomes a
// web-provenance grounding document.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type ISearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search api key not configured")
	}
	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", c.apiKey)
	params.Add("num", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]Result, 0, len(searchResp.OrganicResults))
	for i, r := range searchResp.OrganicResults {
		if i >= limit {
			break
		}
		results = append(results, Result{
			Title:   r.Title,
			Snippet: r.Snippet,
			Link:    r.Link,
		})
	}
	logutil.GetLogger(ctx).Info("web search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}
