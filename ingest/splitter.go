package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/nikibot/niki/models"
)

// Splitter cuts document text into overlapping chunks, preferring
// natural boundaries: paragraph breaks first, then line breaks,
// sentence punctuation, word boundaries, and finally raw rune cuts.
// Overlap lets a concept split across a boundary stay retrievable
// from at least one chunk.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: overlap}
}

// Split turns raw documents into chunks with provenance metadata and
// stable content-derived identifiers.
func (s *Splitter) Split(docs []RawDocument) []models.DocumentChunk {
	var chunks []models.DocumentChunk
	for _, doc := range docs {
		parts := s.splitText(doc.Text)
		for i, part := range parts {
			chunks = append(chunks, models.DocumentChunk{
				ID:     ChunkID(doc.Source, part),
				Text:   part,
				Source: doc.Source,
				Metadata: map[string]string{
					"source":       doc.Source,
					"chunk_index":  strconv.Itoa(i),
					"chunk_total":  strconv.Itoa(len(parts)),
					"chunk_size":   strconv.Itoa(len(part)),
					"logical_type": "text",
				},
			})
		}
	}
	return chunks
}

// splitText recursively splits text at the coarsest separator that
// yields pieces within the size budget, then recombines pieces into
// chunks of at most ChunkSize runes with ChunkOverlap runes of
// shared context between neighbors.
func (s *Splitter) splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := s.splitRecursive(text, 0)
	return s.merge(pieces)
}

func (s *Splitter) splitRecursive(text string, sepIdx int) []string {
	if runeLen(text) <= s.ChunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return []string{text}
	}

	sep := separators[sepIdx]
	if sep == "" {
		// Last resort: raw rune cuts.
		return cutRunes(text, s.ChunkSize)
	}

	var out []string
	for _, part := range strings.SplitAfter(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if runeLen(part) > s.ChunkSize {
			out = append(out, s.splitRecursive(part, sepIdx+1)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// merge greedily packs boundary pieces back into chunks near
// ChunkSize, carrying the overlap tail of each chunk into the next.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	current := ""
	onlyOverlap := false
	for _, piece := range pieces {
		if current != "" && !onlyOverlap && runeLen(current)+runeLen(piece) > s.ChunkSize {
			chunk := strings.TrimSpace(current)
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			current = overlapTail(chunk, s.ChunkOverlap)
			onlyOverlap = true
		}
		current += piece
		if strings.TrimSpace(piece) != "" {
			onlyOverlap = false
		}
	}
	// A trailing fragment that is pure overlap of the previous chunk
	// carries no new content and is dropped.
	if tail := strings.TrimSpace(current); tail != "" && !onlyOverlap {
		chunks = append(chunks, tail)
	}
	return chunks
}

func overlapTail(chunk string, overlap int) string {
	if overlap <= 0 || chunk == "" {
		return ""
	}
	r := []rune(chunk)
	if len(r) <= overlap {
		return chunk
	}
	tail := string(r[len(r)-overlap:])
	// Start the overlap at a word boundary when one is close.
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}

func cutRunes(text string, size int) []string {
	r := []rune(text)
	var out []string
	for start := 0; start < len(r); start += size {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

// ChunkID derives a stable identifier from the source name and the
// chunk's leading text, for dedup and debugging across rebuilds.
func ChunkID(source, text string) string {
	lead := text
	if runeLen(lead) > 64 {
		lead = string([]rune(lead)[:64])
	}
	h := sha1.Sum([]byte(source + "|" + lead))
	return hex.EncodeToString(h[:])
}
