package models

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in a session's dialogue. Turns are
// append-only: history is never rewritten, only grown or fully cleared.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentChunk is the atomic unit of retrieval: a bounded span of
// source text with provenance metadata and its embedding vector.
// Immutable after creation.
type DocumentChunk struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// ScoredChunk is a similarity-query hit. Scores are normalized to
// [0,1]; never persisted, produced fresh per query.
type ScoredChunk struct {
	Chunk DocumentChunk
	Score float64
}

// RetrievalResult holds one query's candidates and the subsequence
// that passed the quality threshold. Consumed immediately by the
// assembler, never cached across turns.
type RetrievalResult struct {
	Query    string
	Chunks   []ScoredChunk
	Accepted []ScoredChunk
	// Degraded is set when no candidate passed the threshold and
	// Accepted fell back to the full candidate set.
	Degraded bool
}

// IntentLabel is the classified topical category of a user turn.
type IntentLabel string

const (
	IntentDevice  IntentLabel = "device"
	IntentGeneral IntentLabel = "general"
	IntentUnknown IntentLabel = "unknown"
)

// AssembledContext is the bounded prompt context handed to the
// generator: local passages first, web snippets second, dialogue
// history third, the live question last.
type AssembledContext struct {
	LocalPassages []string
	WebSnippets   []string
	HistoryText   string
	Query         string
}

// SearchResult is one hit from a web search layer.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
