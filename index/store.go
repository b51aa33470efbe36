package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/nikibot/niki/models"
)

// ErrIndexNotFound is returned when no persisted snapshot exists at
// the configured location. Callers surface it as a distinct "cannot
// answer, index missing" condition.
var ErrIndexNotFound = errors.New("index snapshot not found; run rebuild-index first")

const (
	snapshotFile = "chunks.json"
	rrfK         = 60 // reciprocal-rank-fusion constant
	embedBatch   = 64
)

// Embedder turns texts into fixed-dimension vectors. The same
// embedder must serve Build and Search or retrieval quality is
// undefined.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists document chunks with their embeddings as a JSON
// snapshot and serves dense, sparse, and hybrid similarity search
// over the loaded snapshot. Loading is lazy; the store never mutates
// a snapshot in place — Build writes a fresh snapshot and swaps it in
// atomically.
type Store struct {
	path         string
	denseWeight  float64
	sparseWeight float64
	embedder     Embedder
	logger       *log.Logger

	mu     sync.RWMutex
	loaded bool
	chunks []models.DocumentChunk
	byID   map[string]models.DocumentChunk
	bleve  bleve.Index
}

// New creates a store rooted at path. Nothing is read from disk until
// the first search or an explicit Load.
func New(path string, denseWeight, sparseWeight float64, embedder Embedder, logger *log.Logger) *Store {
	if denseWeight <= 0 && sparseWeight <= 0 {
		denseWeight, sparseWeight = 0.6, 0.4
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	}
	return &Store{
		path:         path,
		denseWeight:  denseWeight,
		sparseWeight: sparseWeight,
		embedder:     embedder,
		logger:       logger,
	}
}

type snapshot struct {
	EmbeddingDim int                    `json:"embedding_dim"`
	Chunks       []models.DocumentChunk `json:"chunks"`
}

// Build embeds the given chunks and persists a new snapshot,
// replacing any previous one atomically. Rebuilding with the same
// documents and embedding model reproduces an index with the same
// semantic content.
func (s *Store) Build(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to index")
	}

	embedded := make([]models.DocumentChunk, len(chunks))
	copy(embedded, chunks)
	for start := 0; start < len(embedded); start += embedBatch {
		end := start + embedBatch
		if end > len(embedded) {
			end = len(embedded)
		}
		texts := make([]string, 0, end-start)
		for _, c := range embedded[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := s.embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunk batch: %w", err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedding service returned %d vectors for %d texts", len(vecs), len(texts))
		}
		for i, v := range vecs {
			embedded[start+i].Embedding = v
		}
	}

	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	snap := snapshot{Chunks: embedded}
	if len(embedded[0].Embedding) > 0 {
		snap.EmbeddingDim = len(embedded[0].Embedding)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	// Write-then-rename so concurrent readers of the old snapshot
	// never observe a half-written file.
	tmp := filepath.Join(s.path, snapshotFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.path, snapshotFile)); err != nil {
		return fmt.Errorf("swapping snapshot: %w", err)
	}
	s.logger.Printf("indexed %d chunks at %s", len(embedded), s.path)

	return s.load(embedded)
}

// Load reads the persisted snapshot into memory. It is called lazily
// by the search methods and fails with ErrIndexNotFound when no
// snapshot has been built.
func (s *Store) Load() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(s.path, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrIndexNotFound
		}
		return fmt.Errorf("reading snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	return s.load(snap.Chunks)
}

func (s *Store) load(chunks []models.DocumentChunk) error {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("creating lexical index: %w", err)
	}
	byID := make(map[string]models.DocumentChunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
		if err := idx.Index(c.ID, map[string]string{"text": c.Text}); err != nil {
			return fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = chunks
	s.byID = byID
	s.bleve = idx
	s.loaded = true
	return nil
}

// Len returns the number of indexed chunks, loading lazily.
func (s *Store) Len() (int, error) {
	if err := s.Load(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Search runs dense similarity search: the query is embedded and
// compared against every chunk by cosine similarity, normalized to
// [0,1]. Returns at most k chunks ordered by descending score.
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}
	vecs, err := s.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("embedding service returned no vector for query")
	}
	return s.denseSearch(vecs[0], k), nil
}

func (s *Store) denseSearch(qv []float32, k int) []models.ScoredChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]models.ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		scored = append(scored, models.ScoredChunk{
			Chunk: c,
			Score: normalize(cosine(qv, c.Embedding)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// HybridSearch combines dense similarity with lexical term matching
// over the raw chunk text, merging the two ranked lists by fixed
// weighted rank fusion. Not a learned re-ranker.
func (s *Store) HybridSearch(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}

	// Both legs fetch a larger pool so fusion has material to work with.
	pool := k * 3
	if pool <= 0 {
		pool = 15
	}

	dense, err := s.Search(ctx, query, pool)
	if err != nil {
		return nil, err
	}
	sparse, err := s.lexicalSearch(query, pool)
	if err != nil {
		// Lexical leg is best-effort: fall back to dense-only rather
		// than failing the query.
		s.logger.Printf("lexical search failed, using dense only: %v", err)
		if k > 0 && len(dense) > k {
			dense = dense[:k]
		}
		return dense, nil
	}

	fused := s.fuseRanks(dense, sparse, k)
	return fused, nil
}

func (s *Store) lexicalSearch(query string, k int) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	idx := s.bleve
	s.mu.RUnlock()

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return nil, err
	}

	var out []models.ScoredChunk
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, hit := range res.Hits {
		c, ok := s.byID[hit.ID]
		if !ok {
			continue
		}
		out = append(out, models.ScoredChunk{Chunk: c, Score: hit.Score})
	}
	return out, nil
}

// fuseRanks merges two ranked lists with fixed weights applied to
// reciprocal-rank contributions, then renormalizes the fused score so
// the top hit maps near 1.
func (s *Store) fuseRanks(dense, sparse []models.ScoredChunk, k int) []models.ScoredChunk {
	type agg struct {
		chunk models.DocumentChunk
		score float64
	}
	m := map[string]*agg{}
	add := func(list []models.ScoredChunk, weight float64) {
		for rank, hit := range list {
			a, ok := m[hit.Chunk.ID]
			if !ok {
				a = &agg{chunk: hit.Chunk}
				m[hit.Chunk.ID] = a
			}
			a.score += weight / float64(rrfK+rank+1)
		}
	}
	add(dense, s.denseWeight)
	add(sparse, s.sparseWeight)

	fused := make([]models.ScoredChunk, 0, len(m))
	maxScore := (s.denseWeight + s.sparseWeight) / float64(rrfK+1)
	for _, a := range m {
		fused = append(fused, models.ScoredChunk{Chunk: a.chunk, Score: a.score / maxScore})
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}
	return fused
}

func cosine(a, b []float32) float64 {
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

// normalize maps cosine similarity from [-1,1] onto [0,1].
func normalize(sim float64) float64 {
	return (sim + 1) / 2
}
