package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/botbot/backend/internal/metrics"
	"github.com/botbot/backend/internal/middleware"
	"github.com/botbot/backend/internal/models"
	"github.com/botbot/backend/internal/repository"
)

// BotStore is the subset of the bot repository used by the handler.
type BotStore interface {
	Create(ctx context.Context, b *models.Bot) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bot, error)
	GetByWallet(ctx context.Context, wallet string) (*models.Bot, error)
	List(ctx context.Context) ([]*models.Bot, error)
	UpdateSettings(ctx context.Context, b *models.Bot) error
}

// BotHandler serves the /bots endpoints.
type BotHandler struct {
	Bots   BotStore
	Logger *slog.Logger
}

// --- GET /bots ---

// ListBots handles GET /bots, or a single-bot lookup with ?wallet=.
func (h *BotHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	if wallet := r.URL.Query().Get("wallet"); wallet != "" {
		bot, err := h.Bots.GetByWallet(r.Context(), strings.ToLower(wallet))
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		if err != nil {
			h.Logger.Error("get bot by wallet", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, bot)
		return
	}

	bots, err := h.Bots.List(r.Context())
	if err != nil {
		h.Logger.Error("list bots", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if bots == nil {
		bots = []*models.Bot{}
	}
	writeJSON(w, http.StatusOK, bots)
}

// --- POST /bots ---

type registerBotRequest struct {
	WalletAddress  string            `json:"walletAddress"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Skills         []string          `json:"skills"`
	AcceptedTokens []string          `json:"acceptedTokens"`
	MinBudgets     map[string]string `json:"minBudgets"`
}

type registerBotResponse struct {
	*models.Bot
	APIKey string `json:"api_key"`
	Notice string `json:"important"`
}

// RegisterBot handles POST /bots. The generated API key is returned in
// this response and never again; only its digest is stored.
func (h *BotHandler) RegisterBot(w http.ResponseWriter, r *http.Request) {
	var req registerBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.WalletAddress == "" || req.Name == "" {
		http.Error(w, `{"error":"Missing required fields"}`, http.StatusBadRequest)
		return
	}
	if len(req.Skills) == 0 {
		http.Error(w, `{"error":"at least one skill is required"}`, http.StatusBadRequest)
		return
	}

	apiKey, err := newAPIKey()
	if err != nil {
		h.Logger.Error("generate api key", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if req.AcceptedTokens == nil {
		req.AcceptedTokens = []string{}
	}
	if req.MinBudgets == nil {
		req.MinBudgets = map[string]string{}
	}

	bot := &models.Bot{
		ID:             uuid.New(),
		WalletAddress:  strings.ToLower(req.WalletAddress),
		Name:           req.Name,
		Description:    req.Description,
		APIKeyHash:     middleware.HashAPIKey(apiKey),
		APIKeyPrefix:   apiKey[:7],
		Skills:         req.Skills,
		AcceptedTokens: req.AcceptedTokens,
		MinBudgets:     req.MinBudgets,
		Status:         models.BotStatusOnline,
		MaxConcurrent:  3,
		AutoAccept:     true,
		Rating:         "0.0",
	}

	err = h.Bots.Create(r.Context(), bot)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict):
		http.Error(w, `{"error":"Bot already registered"}`, http.StatusConflict)
		return
	default:
		h.Logger.Error("create bot", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	metrics.BotsRegistered.Inc()

	writeJSON(w, http.StatusCreated, registerBotResponse{
		Bot:    bot,
		APIKey: apiKey,
		Notice: "SAVE YOUR API KEY! It will only be shown once.",
	})
}

// --- GET /bots/{id} ---

func (h *BotHandler) GetBot(w http.ResponseWriter, r *http.Request) {
	id, ok := botID(w, r)
	if !ok {
		return
	}
	bot, err := h.Bots.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, `{"error":"Bot not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.Logger.Error("get bot", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

// --- PUT /bots/{id} ---

type updateBotRequest struct {
	Skills         []string          `json:"skills"`
	AcceptedTokens []string          `json:"acceptedTokens"`
	MinBudgets     map[string]string `json:"minBudgets"`
	MaxConcurrent  *int              `json:"maxConcurrent"`
	AutoAccept     *bool             `json:"autoAccept"`
	Status         string            `json:"status"`
}

// UpdateBot handles PUT /bots/{id}: the settings subset only. Ratings,
// counters and the credential are not writable through the API.
func (h *BotHandler) UpdateBot(w http.ResponseWriter, r *http.Request) {
	id, ok := botID(w, r)
	if !ok {
		return
	}

	var req updateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Status != "" && req.Status != models.BotStatusOnline && req.Status != models.BotStatusBusy && req.Status != models.BotStatusOffline {
		http.Error(w, `{"error":"invalid status"}`, http.StatusBadRequest)
		return
	}

	bot, err := h.Bots.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, `{"error":"Bot not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.Logger.Error("get bot for update", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if req.Skills != nil {
		bot.Skills = req.Skills
	}
	if req.AcceptedTokens != nil {
		bot.AcceptedTokens = req.AcceptedTokens
	}
	if req.MinBudgets != nil {
		bot.MinBudgets = req.MinBudgets
	}
	if req.MaxConcurrent != nil {
		bot.MaxConcurrent = *req.MaxConcurrent
	}
	if req.AutoAccept != nil {
		bot.AutoAccept = *req.AutoAccept
	}
	if req.Status != "" {
		bot.Status = req.Status
	}

	if err := h.Bots.UpdateSettings(r.Context(), bot); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, `{"error":"Bot not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("update bot", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

// --- helpers ---

// newAPIKey returns a fresh "bb_"-prefixed bearer secret.
func newAPIKey() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "bb_" + hex.EncodeToString(buf[:]), nil
}

func botID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid bot id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
