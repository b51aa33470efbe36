package generate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nikibot/niki/assemble"
	"github.com/nikibot/niki/models"
)

// minAnswerLength is the quality floor: anything shorter is replaced
// with the canned no-information response.
const minAnswerLength = 50

// noInfoMarker is the phrase the model emits when the context held
// nothing useful.
const noInfoMarker = "bilgi bulunamadı"

// Completer is the LLM call the generator needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const answerSystem = "Sen Niki'sin, FM130 cihazının SMS komutları konusunda uzman bir asistansın. " +
	"Sana verilen bağlamdaki bilgileri kullanarak Türkçe, net ve doğru yanıtlar ver. " +
	"Komut formatlarını kod bloğu içinde göster. " +
	"Bağlamda yanıt için yeterli bilgi yoksa 'bilgi bulunamadı' yaz, asla bilgi uydurma."

const answerTemplate = `Bağlam:
%s

Soru: %s

Yanıt:`

// Generator formats the assembled context into a prompt, sends it to
// the language model, and gates the output. Per-request failures are
// converted to canned responses; no raw error ever reaches the user.
type Generator struct {
	completer Completer
	logger    *log.Logger
}

func New(completer Completer, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(log.Writer(), "[GENERATE] ", log.LstdFlags)
	}
	return &Generator{completer: completer, logger: logger}
}

// Generate answers a device question from the assembled context.
func (g *Generator) Generate(ctx context.Context, assembled models.AssembledContext) string {
	prompt := fmt.Sprintf(answerTemplate, assemble.Flatten(assembled), assembled.Query)
	raw, err := g.completer.Complete(ctx, answerSystem, prompt)
	if err != nil {
		g.logger.Printf("generation failed: %v", err)
		return ErrorResponse()
	}
	answer := clean(raw)
	if lowQuality(answer) {
		g.logger.Printf("answer below quality gate (%d chars), replacing with canned response", len(answer))
		return NoInfoResponse()
	}
	return answer
}

// GeneratePlain handles the no-retrieval path for general
// conversation: the query goes to the model without external context.
func (g *Generator) GeneratePlain(ctx context.Context, query string) string {
	raw, err := g.completer.Complete(ctx, "", query)
	if err != nil {
		g.logger.Printf("plain generation failed: %v", err)
		return ErrorResponse()
	}
	answer := clean(raw)
	if answer == "" {
		return ErrorResponse()
	}
	return answer
}

func clean(raw string) string {
	return strings.TrimSpace(raw)
}

func lowQuality(answer string) bool {
	if len([]rune(answer)) < minAnswerLength {
		return true
	}
	return strings.Contains(strings.ToLower(answer), noInfoMarker)
}

var exampleQuestions = []string{
	"Batarya durumunu nasıl kontrol ederim?",
	"GPRS parametrelerini nasıl ayarlarım?",
	"SMS/arama bildirimlerini nasıl yapılandırırım?",
	"Cihazı uzaktan nasıl yeniden başlatırım?",
	"Araç plakasını nasıl değiştiririm?",
}

// NoInfoResponse is shown when the quality gate rejects an answer.
func NoInfoResponse() string {
	var b strings.Builder
	b.WriteString("## Bilgi Bulunamadı\n\n")
	b.WriteString("Bu konuda bilgi bulunamadı. Lütfen farklı bir soru sorun veya aşağıdaki örnek sorulardan birini deneyin.\n\n")
	b.WriteString("### Önerilen Sorular:\n")
	for _, q := range exampleQuestions {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	return b.String()
}

// ErrorResponse is shown when generation itself fails.
func ErrorResponse() string {
	var b strings.Builder
	b.WriteString("## Bir Hata Oluştu\n\n")
	b.WriteString("Yanıt oluşturulamadı. Lütfen tekrar deneyin veya farklı bir soru sorun.\n\n")
	b.WriteString("### Önerilen Sorular:\n")
	for _, q := range exampleQuestions[:3] {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	return b.String()
}

// ExampleQuestions exposes the suggested questions for the API layer.
func ExampleQuestions() []string {
	return append([]string(nil), exampleQuestions...)
}
