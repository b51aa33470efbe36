package websearch

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/nikibot/niki/models"
)

// Layer is one best-effort search backend. Layers are tried in
// priority order; any failure counts as zero results from that layer
// and is never fatal.
type Layer interface {
	Name() string
	Search(ctx context.Context, query string, max int) ([]models.SearchResult, error)
}

// Optimizer compresses a user query plus dialogue context into a
// short English search string.
type Optimizer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Augmenter runs the layered fallback chain, filtering every result
// by the manufacturer-domain allowlist and the device model token.
type Augmenter struct {
	layers       []Layer
	allowDomains []string
	deviceModel  string
	optimizer    Optimizer
	timeout      time.Duration
	logger       *log.Logger
}

func NewAugmenter(layers []Layer, allowDomains []string, deviceModel string, optimizer Optimizer, timeout time.Duration, logger *log.Logger) *Augmenter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[WEBSEARCH] ", log.LstdFlags)
	}
	return &Augmenter{
		layers:       layers,
		allowDomains: allowDomains,
		deviceModel:  deviceModel,
		optimizer:    optimizer,
		timeout:      timeout,
		logger:       logger,
	}
}

const optimizerSystem = "You turn a support question about a tracking device into a web search query. " +
	"Respond with 3-5 technical English search terms on a single line, nothing else. " +
	"Translate non-English terms. Always include the device model."

// OptimizeQuery asks the language model for a compact search string.
// On failure the raw user query is returned so search can still run.
func (a *Augmenter) OptimizeQuery(ctx context.Context, userQuery, historyText string) string {
	user := "History:\n" + historyText + "\n\nQuestion:\n" + userQuery
	out, err := a.optimizer.Complete(ctx, optimizerSystem, user)
	if err != nil {
		a.logger.Printf("query optimization failed, using raw query: %v", err)
		return userQuery
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" {
		return userQuery
	}
	if line, _, found := strings.Cut(out, "\n"); found {
		out = line
	}
	return out
}

// Search walks the layer chain until maxResults accepted results are
// collected. An empty result is a valid outcome: the caller must not
// fabricate snippets.
func (a *Augmenter) Search(ctx context.Context, query string, maxResults int) []models.SearchResult {
	if maxResults <= 0 {
		maxResults = 3
	}

	var accepted []models.SearchResult
	seen := map[string]bool{}
	for _, layer := range a.layers {
		if len(accepted) >= maxResults {
			break
		}
		lctx, cancel := context.WithTimeout(ctx, a.timeout)
		results, err := layer.Search(lctx, query, maxResults)
		cancel()
		if err != nil {
			a.logger.Printf("layer %s failed: %v", layer.Name(), err)
			continue
		}
		for _, r := range results {
			if len(accepted) >= maxResults {
				break
			}
			if seen[r.URL] {
				continue
			}
			if !a.allowed(r) {
				continue
			}
			seen[r.URL] = true
			accepted = append(accepted, r)
		}
	}
	return accepted
}

// allowed enforces the domain allowlist and the device model token:
// both must hold or the result is excluded, whatever layer produced it.
func (a *Augmenter) allowed(r models.SearchResult) bool {
	urlLower := strings.ToLower(r.URL)
	domainOK := false
	for _, d := range a.allowDomains {
		if strings.Contains(urlLower, strings.ToLower(d)) {
			domainOK = true
			break
		}
	}
	if !domainOK {
		return false
	}
	model := strings.ToLower(a.deviceModel)
	haystack := strings.ToLower(r.URL + " " + r.Title + " " + r.Snippet)
	return strings.Contains(haystack, model)
}

// Snippets flattens results into context lines for the assembler.
func Snippets(results []models.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		if r.Title != "" {
			b.WriteString(r.Title)
			b.WriteString(": ")
		}
		b.WriteString(r.Snippet)
		if r.URL != "" {
			b.WriteString(" (")
			b.WriteString(r.URL)
			b.WriteString(")")
		}
		out = append(out, b.String())
	}
	return out
}
