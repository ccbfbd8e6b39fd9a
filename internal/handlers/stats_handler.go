package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/botbot/backend/internal/models"
)

// StatsTaskStore provides the task aggregates for /stats.
type StatsTaskStore interface {
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.TaskStatus) (int, error)
	SumBudgetByStatus(ctx context.Context, status models.TaskStatus) (string, error)
}

// StatsBotStore provides the bot count for /stats.
type StatsBotStore interface {
	Count(ctx context.Context) (int, error)
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	Tasks  StatsTaskStore
	Bots   StatsBotStore
	Logger *slog.Logger
}

type statsResponse struct {
	ActiveBots int     `json:"activeBots"`
	TotalTasks int     `json:"totalTasks"`
	Completed  int     `json:"completed"`
	TotalPaid  float64 `json:"totalPaid"`
}

// Stats returns aggregate marketplace counts. totalPaid is a display
// figure, so the float conversion at the very edge is acceptable; money
// paths elsewhere stay on decimal strings.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	activeBots, err := h.Bots.Count(ctx)
	if err != nil {
		h.fail(w, "count bots", err)
		return
	}
	totalTasks, err := h.Tasks.Count(ctx)
	if err != nil {
		h.fail(w, "count tasks", err)
		return
	}
	completed, err := h.Tasks.CountByStatus(ctx, models.TaskStatusConfirmed)
	if err != nil {
		h.fail(w, "count confirmed", err)
		return
	}
	paidStr, err := h.Tasks.SumBudgetByStatus(ctx, models.TaskStatusConfirmed)
	if err != nil {
		h.fail(w, "sum confirmed budgets", err)
		return
	}
	totalPaid, err := strconv.ParseFloat(paidStr, 64)
	if err != nil {
		h.fail(w, "parse paid total", err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		ActiveBots: activeBots,
		TotalTasks: totalTasks,
		Completed:  completed,
		TotalPaid:  totalPaid,
	})
}

func (h *StatsHandler) fail(w http.ResponseWriter, op string, err error) {
	h.Logger.Error(op, "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
