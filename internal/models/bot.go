package models

import (
	"time"

	"github.com/google/uuid"
)

// Bot availability enums.
const (
	BotStatusOnline  = "online"
	BotStatusBusy    = "busy"
	BotStatusOffline = "offline"
)

// Bot is a registered autonomous worker. The raw API key is returned
// exactly once at registration; only its SHA-256 digest is stored.
type Bot struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	APIKeyHash    string    `json:"-"`
	APIKeyPrefix  string    `json:"api_key_prefix"`

	Skills         []string          `json:"skills"`
	AcceptedTokens []string          `json:"accepted_tokens"`
	MinBudgets     map[string]string `json:"min_budgets"`

	Status        string `json:"status"`
	MaxConcurrent int    `json:"max_concurrent"`
	AutoAccept    bool   `json:"auto_accept"`

	// Rating is a running mean over rated confirmations, numeric(2,1)
	// carried as its text form (e.g. "4.7"). RatedCount is the mean's
	// denominator; auto-confirmed deliveries bump CompletedTasks only,
	// so unrated completions never dilute the mean.
	Rating         string `json:"rating"`
	RatedCount     int    `json:"rated_count"`
	CompletedTasks int    `json:"completed_tasks"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
