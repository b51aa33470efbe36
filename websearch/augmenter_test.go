package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nikibot/niki/models"
)

type fakeLayer struct {
	name    string
	results []models.SearchResult
	err     error
	calls   int
}

func (f *fakeLayer) Name() string { return f.name }

func (f *fakeLayer) Search(_ context.Context, _ string, _ int) ([]models.SearchResult, error) {
	f.calls++
	return f.results, f.err
}

type fakeOptimizer struct {
	reply string
	err   error
}

func (f fakeOptimizer) Complete(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[TEST] ", 0)
}

func newTestAugmenter(layers []Layer, opt Optimizer) *Augmenter {
	return NewAugmenter(layers, []string{"teltonika-gps.com", "wiki.teltonika-gps.com"}, "FM130", opt, time.Second, testLogger())
}

func TestSearchFiltersByDomainAndModel(t *testing.T) {
	t.Parallel()
	layer := &fakeLayer{name: "l1", results: []models.SearchResult{
		{Title: "FM130 SMS commands", URL: "https://wiki.teltonika-gps.com/view/FM130", Snippet: "command list"},
		{Title: "FM130 review", URL: "https://random-blog.example.com/fm130", Snippet: "off-domain"},
		{Title: "FMB920 page", URL: "https://wiki.teltonika-gps.com/view/FMB920", Snippet: "wrong model"},
	}}
	a := newTestAugmenter([]Layer{layer}, fakeOptimizer{})

	got := a.Search(context.Background(), "fm130 sms", 3)
	if len(got) != 1 {
		t.Fatalf("expected 1 accepted result, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://wiki.teltonika-gps.com/view/FM130" {
		t.Fatalf("wrong result accepted: %s", got[0].URL)
	}
}

func TestSearchModelTokenMayLiveInSnippet(t *testing.T) {
	t.Parallel()
	layer := &fakeLayer{name: "l1", results: []models.SearchResult{
		{Title: "SMS command list", URL: "https://teltonika-gps.com/support/sms", Snippet: "Applies to FM130 and FMB130 trackers"},
	}}
	a := newTestAugmenter([]Layer{layer}, fakeOptimizer{})
	if got := a.Search(context.Background(), "sms list", 3); len(got) != 1 {
		t.Fatalf("model token in the snippet should be enough, got %+v", got)
	}
}

func TestSearchFallsThroughFailedLayers(t *testing.T) {
	t.Parallel()
	broken := &fakeLayer{name: "broken", err: errors.New("api down")}
	empty := &fakeLayer{name: "empty"}
	working := &fakeLayer{name: "working", results: []models.SearchResult{
		{Title: "FM130 wiki", URL: "https://wiki.teltonika-gps.com/view/FM130", Snippet: "parameters"},
	}}
	a := newTestAugmenter([]Layer{broken, empty, working}, fakeOptimizer{})

	got := a.Search(context.Background(), "fm130", 3)
	if len(got) != 1 {
		t.Fatalf("expected the last layer to supply the result, got %+v", got)
	}
	if broken.calls != 1 || empty.calls != 1 || working.calls != 1 {
		t.Fatalf("every layer should have been tried exactly once")
	}
}

func TestSearchStopsWhenSatisfied(t *testing.T) {
	t.Parallel()
	first := &fakeLayer{name: "first", results: []models.SearchResult{
		{Title: "FM130 a", URL: "https://wiki.teltonika-gps.com/a", Snippet: "fm130"},
		{Title: "FM130 b", URL: "https://wiki.teltonika-gps.com/b", Snippet: "fm130"},
	}}
	second := &fakeLayer{name: "second"}
	a := newTestAugmenter([]Layer{first, second}, fakeOptimizer{})

	got := a.Search(context.Background(), "fm130", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if second.calls != 0 {
		t.Fatalf("later layers must not run once maxResults is reached")
	}
}

func TestSearchDeduplicatesByURL(t *testing.T) {
	t.Parallel()
	dup := models.SearchResult{Title: "FM130 wiki", URL: "https://wiki.teltonika-gps.com/view/FM130", Snippet: "fm130"}
	a := newTestAugmenter([]Layer{
		&fakeLayer{name: "l1", results: []models.SearchResult{dup}},
		&fakeLayer{name: "l2", results: []models.SearchResult{dup}},
	}, fakeOptimizer{})

	if got := a.Search(context.Background(), "fm130", 5); len(got) != 1 {
		t.Fatalf("duplicate URL should be dropped, got %d results", len(got))
	}
}

func TestSearchEmptyChainYieldsNoResults(t *testing.T) {
	t.Parallel()
	a := newTestAugmenter([]Layer{&fakeLayer{name: "l1"}}, fakeOptimizer{})
	if got := a.Search(context.Background(), "fm130", 3); len(got) != 0 {
		t.Fatalf("no layer produced results, got %+v", got)
	}
}

func TestOptimizeQueryUsesFirstLine(t *testing.T) {
	t.Parallel()
	a := newTestAugmenter(nil, fakeOptimizer{reply: "FM130 battery voltage SMS\nsecond line noise"})
	got := a.OptimizeQuery(context.Background(), "Batarya durumu?", "")
	if got != "FM130 battery voltage SMS" {
		t.Fatalf("OptimizeQuery = %q", got)
	}
}

func TestOptimizeQueryFallsBackToRawQuery(t *testing.T) {
	t.Parallel()
	a := newTestAugmenter(nil, fakeOptimizer{err: errors.New("model down")})
	if got := a.OptimizeQuery(context.Background(), "Batarya durumu?", ""); got != "Batarya durumu?" {
		t.Fatalf("failed optimization must return the raw query, got %q", got)
	}

	a = newTestAugmenter(nil, fakeOptimizer{reply: "   "})
	if got := a.OptimizeQuery(context.Background(), "Batarya durumu?", ""); got != "Batarya durumu?" {
		t.Fatalf("blank optimization must return the raw query, got %q", got)
	}
}

func TestSnippetsFormat(t *testing.T) {
	t.Parallel()
	lines := Snippets([]models.SearchResult{
		{Title: "FM130 wiki", URL: "https://wiki.teltonika-gps.com/view/FM130", Snippet: "SMS commands"},
		{Snippet: "bare snippet"},
	})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "FM130 wiki: SMS commands (https://wiki.teltonika-gps.com/view/FM130)" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if lines[1] != "bare snippet" {
		t.Fatalf("line 1 = %q", lines[1])
	}
}

func TestInstantAnswerParsesResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Errorf("missing q parameter")
		}
		w.Write([]byte(`{
			"AbstractText": "The FM130 is a GNSS tracker.",
			"AbstractURL": "https://wiki.teltonika-gps.com/view/FM130",
			"Heading": "FM130",
			"RelatedTopics": [
				{"Text": "FM130 SMS commands", "FirstURL": "https://wiki.teltonika-gps.com/view/FM130_SMS"}
			]
		}`))
	}))
	defer srv.Close()

	layer := InstantAnswer{BaseURL: srv.URL}
	got, err := layer.Search(context.Background(), "fm130", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected abstract + related topic, got %d", len(got))
	}
	if got[0].Title != "FM130" || got[0].Snippet != "The FM130 is a GNSS tracker." {
		t.Fatalf("abstract parsed wrong: %+v", got[0])
	}
}

func TestInstantAnswerNonOKStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := (InstantAnswer{BaseURL: srv.URL}).Search(context.Background(), "fm130", 5); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestSerperSendsSiteRestrictedQuery(t *testing.T) {
	t.Parallel()
	var gotKey, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		var payload struct {
			Q string `json:"q"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		gotQuery = payload.Q
		w.Write([]byte(`{"organic": [
			{"title": "FM130 SMS", "link": "https://wiki.teltonika-gps.com/view/FM130", "snippet": "command list"}
		]}`))
	}))
	defer srv.Close()

	layer := Serper{APIKey: "k", Sites: []string{"teltonika-gps.com"}, BaseURL: srv.URL}
	got, err := layer.Search(context.Background(), "fm130 sms", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotKey != "k" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if !strings.Contains(gotQuery, "site:teltonika-gps.com") {
		t.Fatalf("query missing site restriction: %q", gotQuery)
	}
	if len(got) != 1 || got[0].Title != "FM130 SMS" {
		t.Fatalf("organic results parsed wrong: %+v", got)
	}
}

func TestSerperRequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := (Serper{}).Search(context.Background(), "fm130", 3); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestScraperParsesResultsPage(t *testing.T) {
	t.Parallel()
	page := `<div class="result">
		<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwiki.teltonika-gps.com%2Fview%2FFM130">FM130 <b>Wiki</b></a>
		<a class="result__snippet">FM130 SMS command reference</a>
	</div>`
	s := Scraper{FetchHTML: func(_ context.Context, _ string) (string, error) {
		return page, nil
	}}

	got, err := s.Search(context.Background(), "fm130", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].URL != "https://wiki.teltonika-gps.com/view/FM130" {
		t.Fatalf("redirect URL not unwrapped: %s", got[0].URL)
	}
	if got[0].Title != "FM130 Wiki" {
		t.Fatalf("title not cleaned of markup: %q", got[0].Title)
	}
	if got[0].Snippet != "FM130 SMS command reference" {
		t.Fatalf("snippet = %q", got[0].Snippet)
	}
}

func TestScraperFetchFailure(t *testing.T) {
	t.Parallel()
	s := Scraper{FetchHTML: func(_ context.Context, _ string) (string, error) {
		return "", errors.New("render failed")
	}}
	if _, err := s.Search(context.Background(), "fm130", 3); err == nil {
		t.Fatalf("expected error when the results page cannot be rendered")
	}
}
