package queue

import (
	"errors"
	"time"
)

// State is the lifecycle state of a task in the local service.
type State string

// StatePending is the state of every task the local service stores.
const StatePending State = "pending"

// ErrConflict is returned when a task ID is reused with a different definition.
var ErrConflict = errors.New("task already exists with a different definition")

// DecisionRun records a decision task started by a webhook delivery.
type DecisionRun struct {
	TaskID     string    `json:"taskId"`
	TaskFor    string    `json:"taskFor"`
	Event      string    `json:"event"`
	DeliveryID string    `json:"deliveryId,omitempty"`
	GitURL     string    `json:"gitUrl"`
	GitRef     string    `json:"gitRef"`
	GitSHA     string    `json:"gitSha"`
	CreatedAt  time.Time `json:"createdAt"`
}
