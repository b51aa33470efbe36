package assemble

import (
	"strings"

	"github.com/nikibot/niki/models"
)

// Assembler flattens retrieved passages, web snippets, and dialogue
// history into one bounded prompt context. The order is deliberate:
// authoritative local passages first, external corroboration second,
// dialogue context last so the model sees the live question closest
// to where it must answer.
type Assembler struct {
	// MaxChars bounds the flattened context. When the parts exceed
	// it, lowest-priority content goes first: history, then web
	// snippets. Local passages and the query are never truncated.
	MaxChars int
}

func New(maxChars int) *Assembler {
	if maxChars <= 0 {
		maxChars = 12000
	}
	return &Assembler{MaxChars: maxChars}
}

// Assemble is deterministic: identical inputs produce identical
// output.
func (a *Assembler) Assemble(result models.RetrievalResult, webSnippets []string, historyText, query string) models.AssembledContext {
	local := make([]string, 0, len(result.Accepted))
	for _, c := range result.Accepted {
		local = append(local, c.Chunk.Text)
	}

	ctx := models.AssembledContext{
		LocalPassages: local,
		WebSnippets:   append([]string(nil), webSnippets...),
		HistoryText:   historyText,
		Query:         query,
	}
	a.truncate(&ctx)
	return ctx
}

func (a *Assembler) truncate(ctx *models.AssembledContext) {
	budget := a.MaxChars
	fixed := flattenedLen(ctx.LocalPassages) + len(ctx.Query)
	if fixed >= budget {
		// Nothing optional fits; drop the low-priority parts whole.
		ctx.HistoryText = ""
		ctx.WebSnippets = nil
		return
	}

	remaining := budget - fixed
	webLen := flattenedLen(ctx.WebSnippets)
	if webLen > remaining {
		ctx.HistoryText = ""
		ctx.WebSnippets = trimList(ctx.WebSnippets, remaining)
		return
	}
	remaining -= webLen
	if len(ctx.HistoryText) > remaining {
		// Keep the most recent dialogue: cut from the front.
		ctx.HistoryText = cutFront(ctx.HistoryText, remaining)
	}
}

// Flatten renders the assembled context as the single text blob the
// generator template consumes.
func Flatten(ctx models.AssembledContext) string {
	var b strings.Builder
	for _, p := range ctx.LocalPassages {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	for _, s := range ctx.WebSnippets {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	if ctx.HistoryText != "" {
		b.WriteString(ctx.HistoryText)
		b.WriteString("\n")
	}
	b.WriteString("Kullanıcı: ")
	b.WriteString(ctx.Query)
	return b.String()
}

func flattenedLen(parts []string) int {
	n := 0
	for _, p := range parts {
		n += len(p) + 2
	}
	return n
}

func trimList(parts []string, budget int) []string {
	var kept []string
	used := 0
	for _, p := range parts {
		if used+len(p)+2 > budget {
			break
		}
		kept = append(kept, p)
		used += len(p) + 2
	}
	return kept
}

// cutFront keeps the trailing budget bytes of text, snapping to the
// next line start so a half line never leads the history.
func cutFront(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if len(text) <= budget {
		return text
	}
	cut := text[len(text)-budget:]
	if idx := strings.IndexByte(cut, '\n'); idx >= 0 && idx < len(cut)-1 {
		cut = cut[idx+1:]
	}
	return cut
}
