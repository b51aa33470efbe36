package websearch

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/nikibot/niki/models"
)

// Scraper is the last-resort layer: render a search engine's HTML
// results page headlessly and pull result links out of the markup.
// For hits that survive parsing it optionally fetches the page itself
// and extracts a readable snippet.
type Scraper struct {
	// FetchHTML renders a URL and returns its HTML. Defaults to a
	// headless chromedp session; tests inject a stub.
	FetchHTML func(ctx context.Context, url string) (string, error)
	// FetchSnippets controls whether result pages are fetched for
	// article-quality snippets (one extra render per hit).
	FetchSnippets bool
	MaxSnippet    int
}

func (Scraper) Name() string { return "html-scrape" }

var (
	resultLinkRe    = regexp.MustCompile(`<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	resultSnippetRe = regexp.MustCompile(`<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe           = regexp.MustCompile(`<[^>]+>`)
)

func (s Scraper) Search(ctx context.Context, query string, max int) ([]models.SearchResult, error) {
	fetch := s.FetchHTML
	if fetch == nil {
		fetch = fetchRendered
	}

	page, err := fetch(ctx, "https://html.duckduckgo.com/html/?q="+url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("rendering results page: %w", err)
	}

	links := resultLinkRe.FindAllStringSubmatch(page, -1)
	snippets := resultSnippetRe.FindAllStringSubmatch(page, -1)

	var out []models.SearchResult
	for i, m := range links {
		if len(out) >= max {
			break
		}
		link := decodeResultURL(m[1])
		if link == "" {
			continue
		}
		r := models.SearchResult{
			URL:   link,
			Title: stripTags(m[2]),
		}
		if i < len(snippets) {
			r.Snippet = stripTags(snippets[i][1])
		}
		if s.FetchSnippets && r.Snippet == "" {
			r.Snippet = s.pageSnippet(ctx, fetch, link)
		}
		out = append(out, r)
	}
	return out, nil
}

// pageSnippet renders the result page and extracts leading article
// text. Best-effort: an unreadable page just yields an empty snippet.
func (s Scraper) pageSnippet(ctx context.Context, fetch func(context.Context, string) (string, error), link string) string {
	pageHTML, err := fetch(ctx, link)
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(link)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(pageHTML), parsed)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	limit := s.MaxSnippet
	if limit <= 0 {
		limit = 300
	}
	if r := []rune(text); len(r) > limit {
		text = string(r[:limit])
	}
	return text
}

// decodeResultURL unwraps the engine's redirect links
// (//duckduckgo.com/l/?uddg=<encoded>) to the target URL.
func decodeResultURL(raw string) string {
	raw = html.UnescapeString(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}

func fetchRendered(ctx context.Context, target string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("niki/1.0 (+device-assistant)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var page string
	err := chromedp.Run(bctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	return page, err
}
