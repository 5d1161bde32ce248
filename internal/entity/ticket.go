package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusClosed     Status = "Closed"
)

var Statuses = []Status{StatusOpen, StatusInProgress, StatusClosed}

func ParseStatus(s string) (Status, error) {
	for _, v := range Statuses {
		if string(v) == s {
			return v, nil
		}
	}

	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func ParsePriority(s string) (Priority, error) {
	for _, v := range Priorities {
		if string(v) == s {
			return v, nil
		}
	}

	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidArgument, s)
}

// UserRef is a user reference as embedded in tickets and comments. Unpopulated
// references arrive as a bare id string and decode with an empty Name.
type UserRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		*r = UserRef{}

		return json.Unmarshal(data, &r.ID)
	}

	type populated UserRef

	var p populated

	err := json.Unmarshal(data, &p)
	if err != nil {
		return err
	}

	*r = UserRef(p)

	return nil
}

type Ticket struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedBy   UserRef   `json:"createdBy"`
	AssignedTo  *UserRef  `json:"assignedTo,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t Ticket) Key() string {
	return t.ID
}

// CreatorName mirrors the "N/A" fallback used when the creator was not populated.
func (t Ticket) CreatorName() string {
	if t.CreatedBy.Name == "" {
		return "N/A"
	}

	return t.CreatedBy.Name
}

// WithRefsFrom copies user names from prev into references the server returned unpopulated.
func (t Ticket) WithRefsFrom(prev Ticket) Ticket {
	if t.CreatedBy.Name == "" && (t.CreatedBy.ID == "" || t.CreatedBy.ID == prev.CreatedBy.ID) {
		t.CreatedBy = prev.CreatedBy
	}

	if t.AssignedTo != nil && t.AssignedTo.Name == "" && prev.AssignedTo != nil && t.AssignedTo.ID == prev.AssignedTo.ID {
		assigned := *prev.AssignedTo
		t.AssignedTo = &assigned
	}

	return t
}

func (t Ticket) AssignedToID(id string) bool {
	return t.AssignedTo != nil && t.AssignedTo.ID != "" && t.AssignedTo.ID == id
}

type NewTicket struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

func (n NewTicket) Validate() error {
	if n.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}

	if n.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidArgument)
	}

	_, err := ParsePriority(string(n.Priority))

	return err
}

// TicketPatch is a partial update merged into a cached ticket. Nil fields are left as is.
type TicketPatch struct {
	Status   *Status
	Priority *Priority
}

func StatusPatch(s Status) TicketPatch {
	return TicketPatch{Status: &s}
}

func (p TicketPatch) Apply(t Ticket) Ticket {
	if p.Status != nil {
		t.Status = *p.Status
	}

	if p.Priority != nil {
		t.Priority = *p.Priority
	}

	return t
}
