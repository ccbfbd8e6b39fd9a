package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/botbot/backend/internal/escrow"
	"github.com/botbot/backend/internal/metrics"
	"github.com/botbot/backend/internal/middleware"
	"github.com/botbot/backend/internal/models"
	"github.com/botbot/backend/internal/repository"
)

// TaskStore is the subset of the task repository used by the handler.
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, status models.TaskStatus, buyer string) ([]*models.Task, error)
	Claim(ctx context.Context, id, botID uuid.UUID) error
	MarkDelivered(ctx context.Context, id, botID uuid.UUID, content string, attachments []string) (time.Time, error)
	ConfirmTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating int, review *string) (*uuid.UUID, error)
	Dispute(ctx context.Context, id uuid.UUID, reason string) error
	DeleteOpen(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// BotReputation is the subset of the bot repository the confirm flow needs.
type BotReputation interface {
	ApplyRatingTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating int) error
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TaskHandler serves the /tasks endpoints.
type TaskHandler struct {
	Pool     TxBeginner
	Tasks    TaskStore
	Bots     BotReputation
	Contract escrow.Contract
	Logger   *slog.Logger
}

// --- GET /tasks ---

type listTasksResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Total int            `json:"total"`
}

// ListTasks handles GET /tasks?status=&buyer=.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := models.TaskStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, `{"error":"unknown status filter"}`, http.StatusBadRequest)
		return
	}
	buyer := strings.ToLower(r.URL.Query().Get("buyer"))

	tasks, err := h.Tasks.List(r.Context(), status, buyer)
	if err != nil {
		h.Logger.Error("list tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, listTasksResponse{Tasks: tasks, Total: len(tasks)})
}

// --- POST /tasks ---

type createTaskRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Budget       string   `json:"budget"`
	Token        string   `json:"token"`
	Mode         string   `json:"mode"`
	Skills       []string `json:"skills"`
	Deadline     string   `json:"deadline"`
	BuyerAddress string   `json:"buyerAddress"`
}

// CreateTask handles POST /tasks. Budget and token were already checked
// by the BudgetGuard middleware.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.BuyerAddress == "" {
		http.Error(w, `{"error":"title and buyerAddress are required"}`, http.StatusBadRequest)
		return
	}
	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		http.Error(w, `{"error":"deadline must be RFC3339"}`, http.StatusBadRequest)
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = models.TaskModeSolo
	}
	if req.Skills == nil {
		req.Skills = []string{}
	}

	task := &models.Task{
		ID:           uuid.New(),
		Title:        req.Title,
		Description:  req.Description,
		Budget:       req.Budget,
		Token:        req.Token,
		Mode:         mode,
		Skills:       req.Skills,
		Deadline:     deadline,
		Status:       models.TaskStatusOpen,
		BuyerAddress: strings.ToLower(req.BuyerAddress),
	}
	if err := h.Tasks.Create(r.Context(), task); err != nil {
		h.Logger.Error("create task", "error", err)
		http.Error(w, `{"error":"failed to create task"}`, http.StatusInternalServerError)
		return
	}
	metrics.TasksCreated.Inc()

	h.mirror(task.ID, "createTask", func(ctx context.Context) error {
		return h.Contract.CreateTask(ctx, task.ID, task.Budget, task.Deadline)
	})

	writeJSON(w, http.StatusCreated, task)
}

// --- GET /tasks/{id} ---

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := h.Tasks.GetByID(r.Context(), id)
	if err != nil {
		h.notFoundOr500(w, err, "get task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- DELETE /tasks/{id} ---

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	err := h.Tasks.DeleteOpen(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, `{"error":"Task not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, repository.ErrInvalidState):
		http.Error(w, `{"error":"Can only delete unclaimed tasks"}`, http.StatusBadRequest)
		return
	default:
		h.Logger.Error("delete task", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	h.mirror(id, "cancelTask", func(ctx context.Context) error {
		return h.Contract.CancelTask(ctx, id)
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

// --- POST /tasks/{id}/claim ---

type claimResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	BotID   string `json:"bot_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ClaimTask handles POST /tasks/{id}/claim. The open->claimed check and
// write are one conditional update in the store, so exactly one of any
// set of concurrent claimants succeeds.
func (h *TaskHandler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	bot := middleware.BotFromCtx(r.Context())
	if bot == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	err := h.Tasks.Claim(r.Context(), id, bot.ID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, `{"error":"Task not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, repository.ErrConflict):
		metrics.ClaimConflicts.Inc()
		http.Error(w, `{"error":"Task already claimed"}`, http.StatusConflict)
		return
	default:
		h.Logger.Error("claim task", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	metrics.TaskTransitions.WithLabelValues(string(models.TaskStatusOpen), string(models.TaskStatusClaimed)).Inc()

	// Bond sizing lives in the contract; the mirror passes zero.
	h.mirror(id, "claimTask", func(ctx context.Context) error {
		return h.Contract.ClaimTask(ctx, id, "0")
	})

	writeJSON(w, http.StatusOK, claimResponse{
		Success: true,
		TaskID:  id.String(),
		BotID:   bot.ID.String(),
		Status:  string(models.TaskStatusClaimed),
		Message: "Task claimed successfully",
	})
}

// --- POST /tasks/{id}/deliver ---

type deliverRequest struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
	Notes       string   `json:"notes"`
}

type deliverResponse struct {
	Success         bool      `json:"success"`
	TaskID          string    `json:"task_id"`
	Status          string    `json:"status"`
	ConfirmDeadline time.Time `json:"confirm_deadline"`
	Message         string    `json:"message"`
}

// DeliverTask handles POST /tasks/{id}/deliver. Ownership is checked
// before status so a non-owner always sees 403 regardless of state.
func (h *TaskHandler) DeliverTask(w http.ResponseWriter, r *http.Request) {
	bot := middleware.BotFromCtx(r.Context())
	if bot == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, `{"error":"Content is required"}`, http.StatusUnprocessableEntity)
		return
	}

	task, err := h.Tasks.GetByID(r.Context(), id)
	if err != nil {
		h.notFoundOr500(w, err, "deliver: fetch task")
		return
	}
	if task.BotID == nil || *task.BotID != bot.ID {
		http.Error(w, `{"error":"caller does not own this task"}`, http.StatusForbidden)
		return
	}

	content := req.Content
	if strings.TrimSpace(req.Notes) != "" {
		content += "\n\n--- Notes ---\n" + req.Notes
	}

	deliveredAt, err := h.Tasks.MarkDelivered(r.Context(), id, bot.ID, content, req.Attachments)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, `{"error":"Task not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, repository.ErrInvalidState):
		http.Error(w, `{"error":"task is not in a deliverable state"}`, http.StatusConflict)
		return
	default:
		h.Logger.Error("deliver task", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	metrics.TaskTransitions.WithLabelValues(string(task.Status), string(models.TaskStatusDelivered)).Inc()

	h.mirror(id, "deliverTask", func(ctx context.Context) error {
		return h.Contract.DeliverTask(ctx, id)
	})

	writeJSON(w, http.StatusOK, deliverResponse{
		Success:         true,
		TaskID:          id.String(),
		Status:          string(models.TaskStatusDelivered),
		ConfirmDeadline: deliveredAt.Add(models.ConfirmWindow),
		Message:         "Delivery submitted. Buyer has 48h to confirm.",
	})
}

// --- POST /tasks/{id}/confirm ---

type confirmRequest struct {
	Rating int     `json:"rating"`
	Review *string `json:"review"`
}

// ConfirmTask handles POST /tasks/{id}/confirm. The task transition and
// the bot's running-mean rating update commit in one transaction.
func (h *TaskHandler) ConfirmTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, `{"error":"Rating must be between 1 and 5"}`, http.StatusBadRequest)
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin confirm tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	botID, err := h.Tasks.ConfirmTx(r.Context(), tx, id, req.Rating, req.Review)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, `{"error":"Task not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, repository.ErrInvalidState):
		http.Error(w, `{"error":"Can only confirm delivered tasks"}`, http.StatusBadRequest)
		return
	default:
		h.Logger.Error("confirm task", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if botID != nil {
		if err := h.Bots.ApplyRatingTx(r.Context(), tx, *botID, req.Rating); err != nil {
			h.Logger.Error("apply rating", "bot_id", *botID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit confirm tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	metrics.TaskTransitions.WithLabelValues(string(models.TaskStatusDelivered), string(models.TaskStatusConfirmed)).Inc()

	h.mirror(id, "confirmTask", func(ctx context.Context) error {
		return h.Contract.ConfirmTask(ctx, id)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task confirmed. Payment released.",
	})
}

// --- POST /tasks/{id}/dispute ---

type disputeRequest struct {
	Reason string `json:"reason"`
}

func (h *TaskHandler) DisputeTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		http.Error(w, `{"error":"Dispute reason is required"}`, http.StatusBadRequest)
		return
	}

	err := h.Tasks.Dispute(r.Context(), id, req.Reason)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, `{"error":"Task not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, repository.ErrInvalidState):
		http.Error(w, `{"error":"Can only dispute delivered tasks"}`, http.StatusBadRequest)
		return
	default:
		h.Logger.Error("dispute task", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	metrics.TaskTransitions.WithLabelValues(string(models.TaskStatusDelivered), string(models.TaskStatusDisputed)).Inc()

	h.mirror(id, "disputeTask", func(ctx context.Context) error {
		return h.Contract.DisputeTask(ctx, id)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Dispute submitted. Our team will review within 48 hours.",
	})
}

// --- DELETE /tasks/clear ---

// ClearTasks purges every task. Registered only when DEV_ROUTES=1.
func (h *TaskHandler) ClearTasks(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.DeleteAll(r.Context()); err != nil {
		h.Logger.Error("clear tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "All tasks deleted"})
}

// --- helpers ---

// mirror forwards a committed transition to the escrow contract in the
// background. Failures are logged and counted, never surfaced to the
// caller; reconciliation against on-chain state is the contract's job.
func (h *TaskHandler) mirror(taskID uuid.UUID, method string, call func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := call(ctx); err != nil {
			metrics.EscrowCallErrors.WithLabelValues(method).Inc()
			h.Logger.Error("escrow mirror call failed", "method", method, "task_id", taskID, "error", err)
		}
	}()
}

func (h *TaskHandler) notFoundOr500(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, `{"error":"Task not found"}`, http.StatusNotFound)
		return
	}
	h.Logger.Error(op, "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
