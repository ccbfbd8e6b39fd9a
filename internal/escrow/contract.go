// Package escrow mirrors the on-chain escrow contract. The application
// never computes balances; it only triggers contract calls after the
// corresponding database transition commits, and treats the chain as the
// eventual source of payment truth.
package escrow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Contract is the application-side view of the escrow contract ABI.
type Contract interface {
	CreateTask(ctx context.Context, taskID uuid.UUID, budget string, deadline time.Time) error
	ClaimTask(ctx context.Context, taskID uuid.UUID, bond string) error
	DeliverTask(ctx context.Context, taskID uuid.UUID) error
	ConfirmTask(ctx context.Context, taskID uuid.UUID) error
	AutoConfirm(ctx context.Context, taskID uuid.UUID) error
	DisputeTask(ctx context.Context, taskID uuid.UUID) error
	CancelTask(ctx context.Context, taskID uuid.UUID) error
}

// OnChainTask is the shape of the contract's tasks(taskId) view.
type OnChainTask struct {
	Buyer           string    `json:"buyer"`
	Seller          string    `json:"seller"`
	Budget          string    `json:"budget"`
	PlatformFee     string    `json:"platform_fee"`
	SellerBond      string    `json:"seller_bond"`
	Status          uint8     `json:"status"`
	Deadline        time.Time `json:"deadline"`
	ConfirmDeadline time.Time `json:"confirm_deadline"`
}

// Nop logs calls and succeeds. Used when no relayer is configured, e.g.
// local development where the frontend drives the contract directly.
type Nop struct {
	Logger *slog.Logger
}

func (n Nop) log(method string, taskID uuid.UUID) {
	if n.Logger != nil {
		n.Logger.Debug("escrow call skipped (no relayer)", "method", method, "task_id", taskID)
	}
}

func (n Nop) CreateTask(_ context.Context, taskID uuid.UUID, _ string, _ time.Time) error {
	n.log("createTask", taskID)
	return nil
}
func (n Nop) ClaimTask(_ context.Context, taskID uuid.UUID, _ string) error {
	n.log("claimTask", taskID)
	return nil
}
func (n Nop) DeliverTask(_ context.Context, taskID uuid.UUID) error {
	n.log("deliverTask", taskID)
	return nil
}
func (n Nop) ConfirmTask(_ context.Context, taskID uuid.UUID) error {
	n.log("confirmTask", taskID)
	return nil
}
func (n Nop) AutoConfirm(_ context.Context, taskID uuid.UUID) error {
	n.log("autoConfirm", taskID)
	return nil
}
func (n Nop) DisputeTask(_ context.Context, taskID uuid.UUID) error {
	n.log("disputeTask", taskID)
	return nil
}
func (n Nop) CancelTask(_ context.Context, taskID uuid.UUID) error {
	n.log("cancelTask", taskID)
	return nil
}

var _ Contract = Nop{}
