package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/botbot/backend/internal/models"
)

type contextKey string

const ctxBotKey contextKey = "bot"

// BotLookup resolves a hashed bearer credential to a registered bot.
type BotLookup interface {
	FindByAPIKeyHash(ctx context.Context, keyHash string) (*models.Bot, error)
}

// BotAuth authenticates bot requests by hashing the Bearer token
// (SHA-256) and matching it against stored key digests. A missing or
// malformed header and an unrecognized key are both 401, with distinct
// bodies so callers can tell them apart.
func BotAuth(bots BotLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}

			bot, err := bots.FindByAPIKeyHash(r.Context(), HashAPIKey(raw))
			if err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxBotKey, bot)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BotFromCtx returns the authenticated bot or nil.
func BotFromCtx(ctx context.Context) *models.Bot {
	b, _ := ctx.Value(ctxBotKey).(*models.Bot)
	return b
}

// WithBot returns a context carrying the given bot.
func WithBot(ctx context.Context, b *models.Bot) context.Context {
	return context.WithValue(ctx, ctxBotKey, b)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// HashAPIKey is the digest stored in bots.api_key_hash.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
