package retrieval

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/nikibot/niki/models"
)

// Searcher is the slice of the index store the retrieval service
// depends on.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.ScoredChunk, error)
	HybridSearch(ctx context.Context, query string, k int) ([]models.ScoredChunk, error)
}

// Options tune one retrieval call.
type Options struct {
	// Hybrid switches from pure dense search to dense+lexical fusion.
	Hybrid bool
	// UseMMR enables diversity-aware selection over a fetch pool of
	// 3k candidates.
	UseMMR bool
	// MMRLambda trades relevance (1.0) against diversity (0.0).
	MMRLambda float64
}

// Service wraps the index store with score-threshold quality
// filtering and optional MMR selection.
type Service struct {
	searcher Searcher
	opts     Options
	logger   *log.Logger
}

func NewService(searcher Searcher, opts Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVE] ", log.LstdFlags)
	}
	return &Service{searcher: searcher, opts: opts, logger: logger}
}

// Retrieve returns at most k candidates ordered by non-increasing
// score, with Accepted holding those above threshold. When zero
// candidates pass, Accepted falls back to the full candidate set:
// low-confidence context beats no context.
func (s *Service) Retrieve(ctx context.Context, query string, k int, threshold float64) (models.RetrievalResult, error) {
	fetch := k
	if s.opts.UseMMR {
		fetch = k * 3
	}

	var candidates []models.ScoredChunk
	var err error
	if s.opts.Hybrid {
		candidates, err = s.searcher.HybridSearch(ctx, query, fetch)
	} else {
		candidates, err = s.searcher.Search(ctx, query, fetch)
	}
	if err != nil {
		return models.RetrievalResult{}, fmt.Errorf("similarity search: %w", err)
	}

	if s.opts.UseMMR {
		candidates = selectMMR(candidates, k, s.opts.MMRLambda)
	} else if len(candidates) > k {
		candidates = candidates[:k]
	}

	result := models.RetrievalResult{Query: query, Chunks: candidates}
	for _, c := range candidates {
		if c.Score > threshold {
			result.Accepted = append(result.Accepted, c)
		}
	}
	if len(result.Accepted) == 0 && len(candidates) > 0 {
		s.logger.Printf("no candidate above threshold %.2f for %q, falling back to unfiltered set", threshold, query)
		result.Accepted = candidates
		result.Degraded = true
	}
	return result, nil
}

// selectMMR greedily picks k chunks maximizing
// lambda*relevance - (1-lambda)*max-similarity-to-selected, so near
// duplicate chunks do not crowd out complementary ones. Relevance is
// the candidate's query score; redundancy is cosine similarity
// between chunk embeddings.
func selectMMR(candidates []models.ScoredChunk, k int, lambda float64) []models.ScoredChunk {
	if k <= 0 {
		return nil
	}
	if len(candidates) <= 1 {
		return candidates
	}
	if lambda < 0 || lambda > 1 {
		lambda = 0.5
	}

	remaining := append([]models.ScoredChunk(nil), candidates...)
	selected := make([]models.ScoredChunk, 0, k)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			redundancy := 0.0
			for _, sel := range selected {
				if sim := embeddingCosine(cand.Chunk.Embedding, sel.Chunk.Embedding); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*cand.Score - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	// Output contract stays ordered by descending query score.
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Score > selected[j].Score })
	return selected
}

func embeddingCosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
