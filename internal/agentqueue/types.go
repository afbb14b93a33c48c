package agentqueue

import "time"

// Status represents the lifecycle stage of an escalated query.
type Status string

const (
	StatusPending  Status = "pending"
	StatusClaimed  Status = "claimed"
	StatusResolved Status = "resolved"
)

// Item is one escalated query waiting for a human agent.
type Item struct {
	ID         string    `json:"id"`
	QueryID    string    `json:"query_id"`
	Question   string    `json:"question"`
	Confidence float64   `json:"confidence"`
	Status     Status    `json:"status"`
	Agent      string    `json:"agent,omitempty"`
	Resolution string    `json:"resolution,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListFilter controls which queue items to return.
type ListFilter struct {
	Status Status
	Agent  string
	Limit  int
	Offset int
}

// Stats summarizes the queue.
type Stats struct {
	Pending       int        `json:"pending"`
	Claimed       int        `json:"claimed"`
	Resolved      int        `json:"resolved"`
	OldestPending *time.Time `json:"oldest_pending,omitempty"`
}
