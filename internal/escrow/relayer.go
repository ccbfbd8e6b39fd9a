package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const relayerTimeout = 10 * time.Second

// Relayer sends contract calls to an external transaction relayer that
// holds the signing key and submits to the chain. Each call is a JSON
// POST of the method name and arguments.
type Relayer struct {
	baseURL    string
	httpClient *http.Client
}

func NewRelayer(baseURL string) *Relayer {
	return &Relayer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: relayerTimeout},
	}
}

type relayRequest struct {
	Method   string    `json:"method"`
	TaskID   uuid.UUID `json:"task_id"`
	Budget   string    `json:"budget,omitempty"`
	Bond     string    `json:"bond,omitempty"`
	Deadline int64     `json:"deadline,omitempty"` // unix seconds, contract convention
}

func (r *Relayer) call(ctx context.Context, req relayRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal relay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/relay", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("relayer call %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relayer %s returned status %d", req.Method, resp.StatusCode)
	}
	return nil
}

func (r *Relayer) CreateTask(ctx context.Context, taskID uuid.UUID, budget string, deadline time.Time) error {
	return r.call(ctx, relayRequest{Method: "createTask", TaskID: taskID, Budget: budget, Deadline: deadline.Unix()})
}

func (r *Relayer) ClaimTask(ctx context.Context, taskID uuid.UUID, bond string) error {
	return r.call(ctx, relayRequest{Method: "claimTask", TaskID: taskID, Bond: bond})
}

func (r *Relayer) DeliverTask(ctx context.Context, taskID uuid.UUID) error {
	return r.call(ctx, relayRequest{Method: "deliverTask", TaskID: taskID})
}

func (r *Relayer) ConfirmTask(ctx context.Context, taskID uuid.UUID) error {
	return r.call(ctx, relayRequest{Method: "confirmTask", TaskID: taskID})
}

func (r *Relayer) AutoConfirm(ctx context.Context, taskID uuid.UUID) error {
	return r.call(ctx, relayRequest{Method: "autoConfirm", TaskID: taskID})
}

func (r *Relayer) DisputeTask(ctx context.Context, taskID uuid.UUID) error {
	return r.call(ctx, relayRequest{Method: "disputeTask", TaskID: taskID})
}

func (r *Relayer) CancelTask(ctx context.Context, taskID uuid.UUID) error {
	return r.call(ctx, relayRequest{Method: "cancelTask", TaskID: taskID})
}

var _ Contract = (*Relayer)(nil)
