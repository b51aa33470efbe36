package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nikibot/niki/assemble"
	"github.com/nikibot/niki/index"
	"github.com/nikibot/niki/models"
	"github.com/nikibot/niki/session"
	"github.com/nikibot/niki/telemetry"
	"github.com/nikibot/niki/websearch"
)

// Retriever is the retrieval service seen by the engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, threshold float64) (models.RetrievalResult, error)
}

// Router classifies one turn against its history.
type Router interface {
	Route(ctx context.Context, message, historyText string) models.IntentLabel
}

// Augmenter is the optional web search path.
type Augmenter interface {
	OptimizeQuery(ctx context.Context, userQuery, historyText string) string
	Search(ctx context.Context, query string, maxResults int) []models.SearchResult
}

// Generator produces the user-facing answer.
type Generator interface {
	Generate(ctx context.Context, assembled models.AssembledContext) string
	GeneratePlain(ctx context.Context, query string) string
}

// Options carry the per-request retrieval knobs.
type Options struct {
	K              int
	ScoreThreshold float64
	WebMaxResults  int
}

// Engine runs one user turn through the pipeline: classify, retrieve
// (optionally augmented by web search), assemble, generate, append to
// history. Requests across sessions are independent; the session
// store guarantees append ordering within a session.
type Engine struct {
	router    Router
	retriever Retriever
	augmenter Augmenter // nil when web search is disabled
	assembler *assemble.Assembler
	generator Generator
	sessions  session.Store
	tele      *telemetry.Telemetry
	opts      Options
	logger    *log.Logger
}

func New(router Router, retriever Retriever, augmenter Augmenter, assembler *assemble.Assembler, generator Generator, sessions session.Store, tele *telemetry.Telemetry, opts Options, logger *log.Logger) *Engine {
	if opts.K <= 0 {
		opts.K = 5
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = 0.6
	}
	if opts.WebMaxResults <= 0 {
		opts.WebMaxResults = 3
	}
	if logger == nil {
		logger = telemetry.NewLogger("ENGINE")
	}
	return &Engine{
		router:    router,
		retriever: retriever,
		augmenter: augmenter,
		assembler: assembler,
		generator: generator,
		sessions:  sessions,
		tele:      tele,
		opts:      opts,
		logger:    logger,
	}
}

// Respond processes one user turn end to end and appends both turns
// to the session. The only error surfaced to the caller is a missing
// index; everything else degrades to a canned answer inside the
// generator.
func (e *Engine) Respond(ctx context.Context, sessionID, message string) (string, error) {
	historyText, err := session.History(ctx, e.sessions, sessionID)
	if err != nil {
		e.logger.Printf("reading history for %s failed, continuing without: %v", sessionID, err)
		historyText = ""
	}

	start := time.Now()
	intent := e.router.Route(ctx, message, historyText)
	e.tele.ObserveStage(telemetry.StageClassify, start)
	e.tele.RecordRequest(string(intent))

	var answer string
	if intent == models.IntentDevice {
		answer, err = e.respondDevice(ctx, message, historyText)
		if err != nil {
			return "", err
		}
	} else {
		start = time.Now()
		answer = e.generator.GeneratePlain(ctx, message)
		e.tele.ObserveStage(telemetry.StageGenerate, start)
	}

	if err := e.sessions.Append(ctx, sessionID, session.NewTurn(models.RoleUser, message)); err != nil {
		e.logger.Printf("appending user turn for %s: %v", sessionID, err)
	}
	if err := e.sessions.Append(ctx, sessionID, session.NewTurn(models.RoleAssistant, answer)); err != nil {
		e.logger.Printf("appending assistant turn for %s: %v", sessionID, err)
	}
	return answer, nil
}

func (e *Engine) respondDevice(ctx context.Context, message, historyText string) (string, error) {
	// Retrieval and web search have no ordering dependency, so the
	// web chain runs concurrently when enabled.
	type webOut struct{ results []models.SearchResult }
	webCh := make(chan webOut, 1)
	if e.augmenter != nil {
		go func() {
			start := time.Now()
			q := e.augmenter.OptimizeQuery(ctx, message, historyText)
			webCh <- webOut{results: e.augmenter.Search(ctx, q, e.opts.WebMaxResults)}
			e.tele.ObserveStage(telemetry.StageAugment, start)
		}()
	} else {
		webCh <- webOut{}
	}

	start := time.Now()
	result, err := e.retriever.Retrieve(ctx, message, e.opts.K, e.opts.ScoreThreshold)
	e.tele.ObserveStage(telemetry.StageRetrieve, start)
	if err != nil {
		if errors.Is(err, index.ErrIndexNotFound) {
			return "", fmt.Errorf("cannot answer, index missing: %w", err)
		}
		// Any other retrieval failure degrades to an uncontextualized
		// answer rather than killing the conversation.
		e.logger.Printf("retrieval failed, continuing without local context: %v", err)
		e.tele.RecordFailure(telemetry.StageRetrieve)
		result = models.RetrievalResult{Query: message}
	}

	web := <-webCh
	// Local passages are authoritative; web snippets only supplement
	// when local retrieval came back weak.
	var snippets []string
	if result.Degraded || len(result.Accepted) == 0 {
		snippets = websearch.Snippets(web.results)
	}

	start = time.Now()
	assembled := e.assembler.Assemble(result, snippets, historyText, message)
	e.tele.ObserveStage(telemetry.StageAssemble, start)

	start = time.Now()
	answer := e.generator.Generate(ctx, assembled)
	e.tele.ObserveStage(telemetry.StageGenerate, start)
	return answer, nil
}
