package entity

import "time"

type ActivityKind string

const (
	ActivityTicketCreated ActivityKind = "ticket.created"
	ActivityStatusChanged ActivityKind = "ticket.status_changed"
	ActivityTicketDeleted ActivityKind = "ticket.deleted"
	ActivityCommentAdded  ActivityKind = "comment.created"
)

// Activity describes a write confirmed by the API.
type Activity struct {
	Kind     ActivityKind `json:"kind"`
	TicketID string       `json:"ticketId"`
	ActorID  string       `json:"actorId"`
	Status   Status       `json:"status,omitempty"`
	At       time.Time    `json:"at"`
}
