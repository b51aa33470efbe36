package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikibot/niki/config"
	"github.com/nikibot/niki/models"
)

// Store is the session history capability injected into the core, so
// the pipeline stays stateless and testable without a web server.
// Turns are append-only per session; Clear removes a session whole.
type Store interface {
	Get(ctx context.Context, id string) ([]models.ConversationTurn, error)
	Append(ctx context.Context, id string, turn models.ConversationTurn) error
	Clear(ctx context.Context, id string) error
}

// NewStore creates the configured backend.
func NewStore(cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "", "inmemory":
		return NewInMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}
}

// History formats a session's dialogue the way the generator prompt
// expects it: alternating speaker-labelled lines, oldest first.
func History(ctx context.Context, store Store, id string) (string, error) {
	turns, err := store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return FormatTurns(turns), nil
}

// FormatTurns renders turns as labelled dialogue text.
func FormatTurns(turns []models.ConversationTurn) string {
	var b strings.Builder
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			b.WriteString("Kullanıcı: ")
		case models.RoleAssistant:
			b.WriteString("Asistan: ")
		default:
			continue
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewTurn stamps a turn with the current time.
func NewTurn(role models.Role, content string) models.ConversationTurn {
	return models.ConversationTurn{Role: role, Content: content, Timestamp: time.Now()}
}
