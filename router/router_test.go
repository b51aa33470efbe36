package router

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/nikibot/niki/models"
)

type fakeJudge struct {
	reply string
	err   error
}

func (f fakeJudge) Complete(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

type failingClassifier struct{}

func (failingClassifier) Classify(_ context.Context, _, _ string) (models.IntentLabel, error) {
	return models.IntentUnknown, errors.New("judge unavailable")
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[TEST] ", 0)
}

func TestKeywordClassifierDeviceTerms(t *testing.T) {
	t.Parallel()
	cases := []struct {
		message string
		want    models.IntentLabel
	}{
		{"Batarya durumunu nasıl kontrol ederim?", models.IntentDevice},
		{"FM130 cihazına nasıl komut gönderirim?", models.IntentDevice},
		{"SETPARAM ile APN nasıl değiştirilir?", models.IntentDevice},
		{"Merhaba, nasılsın?", models.IntentGeneral},
		{"What is the weather today?", models.IntentGeneral},
	}
	c := KeywordClassifier{}
	for _, tc := range cases {
		got, err := c.Classify(context.Background(), tc.message, "")
		if err != nil {
			t.Fatalf("Classify(%q): %v", tc.message, err)
		}
		if got != tc.want {
			t.Fatalf("Classify(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func TestKeywordClassifierFollowUpInheritsDeviceThread(t *testing.T) {
	t.Parallel()
	c := KeywordClassifier{}
	history := "Kullanıcı: Batarya durumunu nasıl kontrol ederim?\nAsistan: GETPARAM 1 komutunu gönderin."

	got, err := c.Classify(context.Background(), "Peki ya ikincisi?", history)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != models.IntentDevice {
		t.Fatalf("ambiguous follow-up with device history should stay on the device branch, got %v", got)
	}

	got, err = c.Classify(context.Background(), "Peki ya ikincisi?", "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != models.IntentGeneral {
		t.Fatalf("the same follow-up without history should be general, got %v", got)
	}
}

func TestModelClassifierParsesAffirmatives(t *testing.T) {
	t.Parallel()
	cases := []struct {
		reply string
		want  models.IntentLabel
	}{
		{"YES", models.IntentDevice},
		{"yes, it is about the device", models.IntentDevice},
		{"Evet", models.IntentDevice},
		{"NO", models.IntentGeneral},
		{"maybe", models.IntentGeneral},
		{"", models.IntentGeneral},
	}
	for _, tc := range cases {
		c := ModelClassifier{Judge: fakeJudge{reply: tc.reply}}
		got, err := c.Classify(context.Background(), "soru", "")
		if err != nil {
			t.Fatalf("Classify with reply %q: %v", tc.reply, err)
		}
		if got != tc.want {
			t.Fatalf("reply %q classified as %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestModelClassifierPropagatesJudgeError(t *testing.T) {
	t.Parallel()
	c := ModelClassifier{Judge: fakeJudge{err: errors.New("timeout")}}
	if _, err := c.Classify(context.Background(), "soru", ""); err == nil {
		t.Fatalf("expected judge error to propagate")
	}
}

func TestRouteDefaultsToGeneralOnFailure(t *testing.T) {
	t.Parallel()
	r := New(failingClassifier{}, testLogger())
	if got := r.Route(context.Background(), "soru", ""); got != models.IntentGeneral {
		t.Fatalf("classification failure must default to general, got %v", got)
	}
}

func TestRouteForwardsDeviceLabel(t *testing.T) {
	t.Parallel()
	r := New(KeywordClassifier{}, testLogger())
	if got := r.Route(context.Background(), "FM130 batarya", ""); got != models.IntentDevice {
		t.Fatalf("expected device label, got %v", got)
	}
}
