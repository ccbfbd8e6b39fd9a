package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/botbot/backend/internal/models"
)

type staticStatsTasks struct {
	total     int
	confirmed int
	paid      string
}

func (s staticStatsTasks) Count(context.Context) (int, error) { return s.total, nil }
func (s staticStatsTasks) CountByStatus(_ context.Context, status models.TaskStatus) (int, error) {
	if status == models.TaskStatusConfirmed {
		return s.confirmed, nil
	}
	return 0, nil
}
func (s staticStatsTasks) SumBudgetByStatus(context.Context, models.TaskStatus) (string, error) {
	return s.paid, nil
}

type staticStatsBots int

func (s staticStatsBots) Count(context.Context) (int, error) { return int(s), nil }

func TestStats(t *testing.T) {
	h := &StatsHandler{
		Tasks:  staticStatsTasks{total: 12, confirmed: 4, paid: "350.500000"},
		Bots:   staticStatsBots(7),
		Logger: slog.New(slog.DiscardHandler),
	}

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest("GET", "/stats", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ActiveBots != 7 || got.TotalTasks != 12 || got.Completed != 4 {
		t.Errorf("counts = %+v", got)
	}
	if got.TotalPaid != 350.5 {
		t.Errorf("totalPaid = %v, want 350.5", got.TotalPaid)
	}
}

func TestStats_EmptyMarketplace(t *testing.T) {
	h := &StatsHandler{
		Tasks:  staticStatsTasks{paid: "0"},
		Bots:   staticStatsBots(0),
		Logger: slog.New(slog.DiscardHandler),
	}

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest("GET", "/stats", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var got statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalPaid != 0 {
		t.Errorf("totalPaid = %v, want 0", got.TotalPaid)
	}
}
