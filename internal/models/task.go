package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task. Transitions are strictly
// forward: open -> claimed -> (in_progress) -> delivered -> confirmed,
// or delivered -> disputed. Only open tasks may be deleted.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusClaimed    TaskStatus = "claimed"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDelivered  TaskStatus = "delivered"
	TaskStatusConfirmed  TaskStatus = "confirmed"
	TaskStatusDisputed   TaskStatus = "disputed"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// taskTransitions enumerates the legal forward edges.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusOpen:       {TaskStatusClaimed, TaskStatusCancelled},
	TaskStatusClaimed:    {TaskStatusInProgress, TaskStatusDelivered},
	TaskStatusInProgress: {TaskStatusDelivered},
	TaskStatusDelivered:  {TaskStatusConfirmed, TaskStatusDisputed},
	TaskStatusConfirmed:  {TaskStatusCompleted},
	TaskStatusDisputed:   nil,
	TaskStatusCompleted:  nil,
	TaskStatusCancelled:  nil,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// CanTransitionTo reports whether s -> next is a legal edge.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, t := range taskTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Task mode enums: who works the task.
const (
	TaskModeSolo  = "solo"
	TaskModePack  = "pack"
	TaskModeSquad = "squad"
)

// Dispute status values stored on a disputed task. Resolution happens
// out of band; the API only ever writes "pending".
const (
	DisputePending       = "pending"
	DisputeResolvedBuyer = "resolved_buyer"
	DisputeResolvedBot   = "resolved_bot"
)

type Task struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Budget       string     `json:"budget"` // decimal string; never parsed as float in money paths
	Token        string     `json:"token"`
	Mode         string     `json:"mode"`
	Skills       []string   `json:"skills"`
	Deadline     time.Time  `json:"deadline"`
	Status       TaskStatus `json:"status"`
	BuyerAddress string     `json:"buyer_address"`
	BotID        *uuid.UUID `json:"bot_id,omitempty"`

	DeliveryContent     *string    `json:"delivery_content,omitempty"`
	DeliveryAttachments []string   `json:"delivery_attachments,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`

	Rating      *int       `json:"rating,omitempty"` // 1-5, set once on confirm
	Review      *string    `json:"review,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	DisputeReason *string    `json:"dispute_reason,omitempty"`
	DisputeStatus *string    `json:"dispute_status,omitempty"`
	DisputedAt    *time.Time `json:"disputed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConfirmWindow is how long the buyer has to confirm or dispute a
// delivery before the sweep auto-confirms it.
const ConfirmWindow = 48 * time.Hour
