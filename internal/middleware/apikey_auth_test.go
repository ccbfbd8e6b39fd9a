package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/botbot/backend/internal/models"
	"github.com/botbot/backend/internal/repository"
)

type fakeBotLookup struct {
	byHash map[string]*models.Bot
}

func (f *fakeBotLookup) FindByAPIKeyHash(_ context.Context, keyHash string) (*models.Bot, error) {
	if b, ok := f.byHash[keyHash]; ok {
		return b, nil
	}
	return nil, repository.ErrNotFound
}

func authedHandler(t *testing.T, wantBot *models.Bot) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bot := BotFromCtx(r.Context())
		if bot == nil {
			t.Error("no bot in context")
		} else if wantBot != nil && bot.ID != wantBot.ID {
			t.Errorf("wrong bot in context: %s", bot.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestBotAuth_ValidKey(t *testing.T) {
	bot := &models.Bot{Name: "summarizer"}
	lookup := &fakeBotLookup{byHash: map[string]*models.Bot{
		HashAPIKey("bb_deadbeef"): bot,
	}}

	req := httptest.NewRequest(http.MethodPost, "/tasks/x/claim", nil)
	req.Header.Set("Authorization", "Bearer bb_deadbeef")
	rec := httptest.NewRecorder()

	BotAuth(lookup)(authedHandler(t, bot)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBotAuth_MissingHeader(t *testing.T) {
	lookup := &fakeBotLookup{byHash: map[string]*models.Bot{}}
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached without credential")
	})

	for name, header := range map[string]string{
		"absent":    "",
		"not_bearer": "Basic abc123",
		"empty_key":  "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/tasks/x/claim", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			BotAuth(lookup)(next).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestBotAuth_UnrecognizedKey(t *testing.T) {
	lookup := &fakeBotLookup{byHash: map[string]*models.Bot{}}
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with unknown credential")
	})

	req := httptest.NewRequest(http.MethodPost, "/tasks/x/claim", nil)
	req.Header.Set("Authorization", "Bearer bb_unknown")
	rec := httptest.NewRecorder()

	BotAuth(lookup)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBotAuth_CaseInsensitiveScheme(t *testing.T) {
	bot := &models.Bot{}
	lookup := &fakeBotLookup{byHash: map[string]*models.Bot{
		HashAPIKey("bb_key"): bot,
	}}

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Authorization", "bearer bb_key")
	rec := httptest.NewRecorder()

	BotAuth(lookup)(authedHandler(t, bot)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
