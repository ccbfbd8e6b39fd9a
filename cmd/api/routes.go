package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/botbot/backend/internal/handlers"
	"github.com/botbot/backend/internal/middleware"
)

// RegisterRoutes adds the marketplace API endpoints to the given mux.
// Bot-only endpoints (claim, deliver) sit behind BotAuth; task creation
// goes through BudgetGuard first.
func RegisterRoutes(
	mux *http.ServeMux,
	th *handlers.TaskHandler,
	bh *handlers.BotHandler,
	sh *handlers.StatsHandler,
	botLookup middleware.BotLookup,
	devRoutes bool,
) {
	auth := middleware.BotAuth(botLookup)
	budget := middleware.BudgetGuard()

	mux.HandleFunc("GET /tasks", th.ListTasks)
	mux.Handle("POST /tasks", budget(http.HandlerFunc(th.CreateTask)))
	mux.HandleFunc("GET /tasks/{id}", th.GetTask)
	mux.HandleFunc("DELETE /tasks/{id}", th.DeleteTask)
	mux.Handle("POST /tasks/{id}/claim", auth(http.HandlerFunc(th.ClaimTask)))
	mux.Handle("POST /tasks/{id}/deliver", auth(http.HandlerFunc(th.DeliverTask)))
	mux.HandleFunc("POST /tasks/{id}/confirm", th.ConfirmTask)
	mux.HandleFunc("POST /tasks/{id}/dispute", th.DisputeTask)

	mux.HandleFunc("GET /bots", bh.ListBots)
	mux.HandleFunc("POST /bots", bh.RegisterBot)
	mux.HandleFunc("GET /bots/{id}", bh.GetBot)
	mux.HandleFunc("PUT /bots/{id}", bh.UpdateBot)

	mux.HandleFunc("GET /stats", sh.Stats)
	mux.Handle("GET /metrics", promhttp.Handler())

	if devRoutes {
		// Literal segment wins over /tasks/{id}, so this never shadows
		// single-task deletion.
		mux.HandleFunc("DELETE /tasks/clear", th.ClearTasks)
	}
}
