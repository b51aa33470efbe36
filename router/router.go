package router

import (
	"context"
	"log"
	"strings"

	"github.com/nikibot/niki/models"
)

// Classifier decides whether a user turn concerns the device's
// commands and parameters or is general conversation. Implementations
// must consider the full history text, not just the latest turn: a
// follow-up like "and the second parameter?" belongs to an open
// device thread.
type Classifier interface {
	Classify(ctx context.Context, message, historyText string) (models.IntentLabel, error)
}

// Judge is the single LLM call the model-based classifier needs.
type Judge interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Router wraps a classifier with the documented failure default:
// classification errors and unparseable labels resolve to general, so
// a failing judge never triggers retrieval cost.
type Router struct {
	classifier Classifier
	logger     *log.Logger
}

func New(classifier Classifier, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(log.Writer(), "[ROUTER] ", log.LstdFlags)
	}
	return &Router{classifier: classifier, logger: logger}
}

// Route classifies one turn. Never returns an error: failure is the
// general branch.
func (r *Router) Route(ctx context.Context, message, historyText string) models.IntentLabel {
	label, err := r.classifier.Classify(ctx, message, historyText)
	if err != nil {
		r.logger.Printf("classification failed, defaulting to general: %v", err)
		return models.IntentGeneral
	}
	if label != models.IntentDevice && label != models.IntentGeneral {
		return models.IntentGeneral
	}
	return label
}

// topicVocabulary maps topic buckets to trigger terms, Turkish and
// English, matching how users actually ask about the device.
var topicVocabulary = map[string][]string{
	"battery":         {"batarya", "battery", "pil", "şarj", "power", "voltaj"},
	"connectivity":    {"gprs", "internet", "bağlantı", "apn", "operatör", "sim", "gsm", "network", "roaming"},
	"messaging":       {"sms", "mesaj", "bildirim", "arama", "call", "telefon"},
	"configuration":   {"parametre", "parameter", "setparam", "getparam", "ayar", "konfigürasyon", "configuration", "komut", "command", "plaka"},
	"troubleshooting": {"sorun", "hata", "problem", "çalışmıyor", "reboot", "reset", "sıfırla", "yeniden başlat"},
}

// deviceTokens are direct mentions of the device family.
var deviceTokens = []string{"fm130", "fmb130", "fmb120", "fmb", "teltonika", "cihaz"}

// KeywordClassifier matches against a fixed vocabulary. Deterministic,
// zero external calls.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, message, historyText string) (models.IntentLabel, error) {
	if matchesVocabulary(message) {
		return models.IntentDevice, nil
	}
	// A short ambiguous follow-up inherits the open device thread
	// from history.
	if matchesVocabulary(historyText) {
		return models.IntentDevice, nil
	}
	return models.IntentGeneral, nil
}

func matchesVocabulary(text string) bool {
	lower := strings.ToLower(text)
	for _, token := range deviceTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	for _, terms := range topicVocabulary {
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

const judgeSystem = "You are a classifier. Decide if the user's request is about the FM130 tracking device, " +
	"its SMS commands or parameters (including FMB120/FMB130 variants). " +
	"Consider the dialogue history: the user may ask consecutive follow-up questions about the device " +
	"without repeating its name. Answer with a single word: YES if the request concerns the device, NO otherwise."

// ModelClassifier asks the language model a strict yes/no question.
// Anything not starting with an affirmative token counts as general.
type ModelClassifier struct {
	Judge Judge
}

func (c ModelClassifier) Classify(ctx context.Context, message, historyText string) (models.IntentLabel, error) {
	user := "History:\n" + historyText + "\n\nUser:\n" + message + "\n\nAnswer:"
	raw, err := c.Judge.Complete(ctx, judgeSystem, user)
	if err != nil {
		return models.IntentUnknown, err
	}
	label := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(label, "yes") || strings.HasPrefix(label, "evet") {
		return models.IntentDevice, nil
	}
	return models.IntentGeneral, nil
}
