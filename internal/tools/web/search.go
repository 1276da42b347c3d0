// Package web implements the SearchWeb tool: a thin client over a
// configured search service. Grounded authoritatively on
// tools/web/search.rs; the HTTP client shape (*http.Client, JSON
// request/response structs, bearer auth header) follows
// kadirpekel-hector/v2/embedder/openai.go's net/http idiom rather than
// reqwest, since the corpus never imports a third-party HTTP client.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kagent-go/kagent/internal/toolset"
)

const defaultSearchLimit = 5

const description = "Search the web for information. Returns titles, URLs, and snippets for the top results. Set include_content to true to also fetch each page's full content, which consumes significantly more tokens."

// Config points SearchWeb at a search backend. With an empty BaseURL or
// APIKey, every call returns a "Search service not configured" error.
type Config struct {
	BaseURL       string
	APIKey        string
	CustomHeaders map[string]string
}

// SearchWeb posts a query to a configured search service and renders
// the results as plain text.
type SearchWeb struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *SearchWeb {
	return &SearchWeb{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

func (t *SearchWeb) Name() string { return "SearchWeb" }

func (t *SearchWeb) Description() string { return description }

func (t *SearchWeb) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The query text to search for.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "The number of results to return. Typically you do not need to set this value. When the results do not contain what you need, you probably want to give a more concrete query.",
				"minimum":     1,
				"maximum":     20,
			},
			"include_content": map[string]any{
				"type":        "boolean",
				"description": "Whether to include the content of the web pages in the results. It can consume a large amount of tokens when this is set to True. You should avoid enabling this when `limit` is set to a large value.",
			},
		},
		"required": []any{"query"},
	}
}

type searchParams struct {
	Query          string `json:"query"`
	Limit          int64  `json:"limit"`
	IncludeContent bool   `json:"include_content"`
}

type searchRequest struct {
	TextQuery          string `json:"text_query"`
	Limit              int64  `json:"limit"`
	EnablePageCrawling bool   `json:"enable_page_crawling"`
	TimeoutSeconds     int64  `json:"timeout_seconds"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

type searchResponse struct {
	SearchResults []searchResult `json:"search_results"`
}

func (t *SearchWeb) Call(ctx context.Context, args json.RawMessage) toolset.ReturnValue {
	var params searchParams
	if err := json.Unmarshal(args, &params); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Invalid arguments: %v", err), "Invalid arguments")
	}
	if params.Limit <= 0 {
		params.Limit = defaultSearchLimit
	}

	if t.cfg.BaseURL == "" || t.cfg.APIKey == "" {
		return toolset.ErrorReturn("", "Search service is not configured. You may want to try other methods to search.", "Search service not configured")
	}

	call, ok := toolset.CurrentToolCall(ctx)
	if !ok {
		return toolset.ErrorReturn("", "Search service is not available without tool call context.", "Search unavailable")
	}

	body, err := json.Marshal(searchRequest{
		TextQuery:          params.Query,
		Limit:              params.Limit,
		EnablePageCrawling: params.IncludeContent,
		TimeoutSeconds:     30,
	})
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to search. Error: %v", err), "Failed to search")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to search. Error: %v", err), "Failed to search")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("X-Msh-Tool-Call-Id", call.ID)
	for k, v := range t.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to search. Error: %v. This may indicate that the search service is currently unavailable.", err), "Failed to search")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to search. Status: %d. This may indicate that the search service is currently unavailable.", resp.StatusCode), "Failed to search")
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to parse search results. Error: %v. This may indicate that the search service is currently unavailable.", err), "Failed to parse search results")
	}

	var payload searchResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return toolset.ErrorReturn("", fmt.Sprintf("Failed to parse search results. Error: %v. This may indicate that the search service is currently unavailable.", err), "Failed to parse search results")
	}

	var out strings.Builder
	for idx, result := range payload.SearchResults {
		if idx > 0 {
			out.WriteString("---\n\n")
		}
		fmt.Fprintf(&out, "Title: %s\nDate: %s\nURL: %s\nSummary: %s\n\n", result.Title, result.Date, result.URL, result.Snippet)
		if result.Content != "" {
			fmt.Fprintf(&out, "%s\n\n", result.Content)
		}
	}

	return toolset.TextReturn(out.String(), "", "")
}
