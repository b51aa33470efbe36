package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nikibot/niki/models"
)

// InstantAnswer queries the DuckDuckGo instant-answer API, the first
// and cheapest layer of the chain. BaseURL is overridable for tests.
type InstantAnswer struct {
	BaseURL string
	Client  *http.Client
}

func (InstantAnswer) Name() string { return "instant-answer" }

func (s InstantAnswer) Search(ctx context.Context, query string, max int) ([]models.SearchResult, error) {
	base := s.BaseURL
	if base == "" {
		base = "https://api.duckduckgo.com"
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	// https://duckduckgo.com/api
	u := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1", base, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instant answer API returned status %d", resp.StatusCode)
	}

	var raw struct {
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		Heading       string `json:"Heading"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.SearchResult
	if raw.AbstractText != "" {
		out = append(out, models.SearchResult{
			Title:   raw.Heading,
			URL:     raw.AbstractURL,
			Snippet: raw.AbstractText,
		})
	}
	for _, t := range raw.RelatedTopics {
		if len(out) >= max {
			break
		}
		if t.Text == "" || t.FirstURL == "" {
			continue
		}
		out = append(out, models.SearchResult{URL: t.FirstURL, Snippet: t.Text})
	}
	return out, nil
}
