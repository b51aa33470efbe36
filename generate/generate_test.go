package generate

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/nikibot/niki/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.system = system
	f.user = user
	return f.reply, f.err
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[TEST] ", 0)
}

func assembled(query string, passages ...string) models.AssembledContext {
	return models.AssembledContext{LocalPassages: passages, Query: query}
}

const goodAnswer = "Batarya durumunu kontrol etmek için cihaza `GETPARAM 1` komutunu SMS ile gönderin. " +
	"Yanıtta batarya voltajı milivolt cinsinden döner."

func TestGeneratePassesQualityAnswerThrough(t *testing.T) {
	t.Parallel()
	c := &fakeCompleter{reply: goodAnswer}
	g := New(c, testLogger())

	got := g.Generate(context.Background(), assembled("Batarya durumu?", "GETPARAM 1 batarya voltajını okur."))
	if got != goodAnswer {
		t.Fatalf("Generate = %q, want the model answer", got)
	}
	if !strings.Contains(c.user, "GETPARAM 1 batarya voltajını okur.") {
		t.Fatalf("prompt missing the local passage: %q", c.user)
	}
	if !strings.Contains(c.user, "Soru: Batarya durumu?") {
		t.Fatalf("prompt missing the question: %q", c.user)
	}
}

func TestGenerateGatesShortAnswers(t *testing.T) {
	t.Parallel()
	g := New(&fakeCompleter{reply: "Bilmiyorum."}, testLogger())
	got := g.Generate(context.Background(), assembled("Batarya durumu?"))
	if !strings.Contains(got, "Bilgi Bulunamadı") {
		t.Fatalf("short answer must trigger the canned response, got %q", got)
	}
	if !strings.Contains(got, "Önerilen Sorular") {
		t.Fatalf("canned response must suggest example questions")
	}
}

func TestGenerateGatesNoInfoMarker(t *testing.T) {
	t.Parallel()
	reply := "Üzgünüm, sağlanan bağlamda bu konuda bilgi bulunamadı. Lütfen başka bir şekilde sormayı deneyin."
	g := New(&fakeCompleter{reply: reply}, testLogger())
	got := g.Generate(context.Background(), assembled("Batarya durumu?"))
	if !strings.Contains(got, "Bilgi Bulunamadı") {
		t.Fatalf("marker answer must trigger the canned response even above the length floor, got %q", got)
	}
}

func TestGenerateErrorYieldsErrorResponse(t *testing.T) {
	t.Parallel()
	g := New(&fakeCompleter{err: errors.New("model down")}, testLogger())
	got := g.Generate(context.Background(), assembled("Batarya durumu?"))
	if !strings.Contains(got, "Bir Hata Oluştu") {
		t.Fatalf("completion failure must yield the error response, got %q", got)
	}
}

func TestGeneratePlain(t *testing.T) {
	t.Parallel()
	c := &fakeCompleter{reply: "Merhaba! Size nasıl yardımcı olabilirim?"}
	g := New(c, testLogger())
	got := g.GeneratePlain(context.Background(), "Merhaba")
	if got != "Merhaba! Size nasıl yardımcı olabilirim?" {
		t.Fatalf("GeneratePlain = %q", got)
	}
	// Short answers are fine on the conversational path.
	g = New(&fakeCompleter{reply: "Merhaba!"}, testLogger())
	if got := g.GeneratePlain(context.Background(), "Merhaba"); got != "Merhaba!" {
		t.Fatalf("plain path must not apply the quality gate, got %q", got)
	}
}

func TestGeneratePlainErrorAndEmpty(t *testing.T) {
	t.Parallel()
	g := New(&fakeCompleter{err: errors.New("model down")}, testLogger())
	if got := g.GeneratePlain(context.Background(), "Merhaba"); !strings.Contains(got, "Bir Hata Oluştu") {
		t.Fatalf("plain failure must yield the error response, got %q", got)
	}
	g = New(&fakeCompleter{reply: "   "}, testLogger())
	if got := g.GeneratePlain(context.Background(), "Merhaba"); !strings.Contains(got, "Bir Hata Oluştu") {
		t.Fatalf("blank completion must yield the error response, got %q", got)
	}
}

func TestExampleQuestionsIsACopy(t *testing.T) {
	t.Parallel()
	qs := ExampleQuestions()
	if len(qs) == 0 {
		t.Fatalf("expected example questions")
	}
	qs[0] = "değiştirildi"
	if ExampleQuestions()[0] == "değiştirildi" {
		t.Fatalf("ExampleQuestions must return a copy")
	}
}
