package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nikibot/niki/models"
)

// Serper queries the serper.dev web search API, the key-authed second
// layer of the chain.
type Serper struct {
	APIKey  string
	Sites   []string
	BaseURL string
	Client  *http.Client
}

func (Serper) Name() string { return "serper" }

func (s Serper) Search(ctx context.Context, query string, max int) ([]models.SearchResult, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("serper api key not configured")
	}
	base := s.BaseURL
	if base == "" {
		base = "https://google.serper.dev"
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	// https://serper.dev/ docs
	q := query
	if len(s.Sites) > 0 {
		var sites []string
		for _, site := range s.Sites {
			sites = append(sites, "site:"+site)
		}
		q = query + " (" + strings.Join(sites, " OR ") + ")"
	}
	payload := map[string]any{"q": q, "num": max}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", base+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.SearchResult
	for _, r := range raw.Organic {
		if len(out) >= max {
			break
		}
		out = append(out, models.SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
