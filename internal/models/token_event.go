package models

import "time"

// Token lifecycle actions carried on the Kafka topics and the SSE feed.
const (
	TokenEventCreated = "created"
	TokenEventUpdated = "updated"
	TokenEventDeleted = "deleted"
	TokenEventLoaded  = "loaded"
)

// TokenEvent is the wire payload published after a ledger mutation commits.
type TokenEvent struct {
	Action     string    `json:"action"`
	Token      Token     `json:"token"`
	OperatorID string    `json:"operator_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
