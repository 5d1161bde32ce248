// Package view derives what each screen shows from a ticket snapshot and the current identity.
package view

import (
	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/internal/guard"
)

// Filter selects tickets by status and priority. Empty fields match everything.
type Filter struct {
	Status   entity.Status
	Priority entity.Priority
}

func (f Filter) Match(t entity.Ticket) bool {
	return (f.Status == "" || t.Status == f.Status) &&
		(f.Priority == "" || t.Priority == f.Priority)
}

// FilterTickets returns the matching tickets in their original order.
func FilterTickets(snapshot []entity.Ticket, f Filter) []entity.Ticket {
	out := make([]entity.Ticket, 0, len(snapshot))

	for _, t := range snapshot {
		if f.Match(t) {
			out = append(out, t)
		}
	}

	return out
}

type Metrics struct {
	Total      int
	Open       int
	InProgress int
	Closed     int
}

// ComputeMetrics counts tickets by status over the whole snapshot. Open, InProgress and
// Closed sum to Total for every snapshot the client writes itself, since UpdateStatus and
// CreateTicket only produce known statuses. A ticket the server sends with a status outside
// that set breaks the API contract; it still counts towards Total but towards no bucket, so
// the dashboard shows the mismatch instead of hiding the ticket.
func ComputeMetrics(snapshot []entity.Ticket) Metrics {
	m := Metrics{Total: len(snapshot)}

	for _, t := range snapshot {
		switch t.Status {
		case entity.StatusOpen:
			m.Open++
		case entity.StatusInProgress:
			m.InProgress++
		case entity.StatusClosed:
			m.Closed++
		}
	}

	return m
}

// MetricsFor returns the metrics only when identity is an admin.
func MetricsFor(snapshot []entity.Ticket, identity entity.Identity, ok bool) (Metrics, bool) {
	if !ok || !identity.IsAdmin() {
		return Metrics{}, false
	}

	return ComputeMetrics(snapshot), true
}

func CanEditStatus(t entity.Ticket, identity entity.Identity, ok bool) bool {
	return guard.CanEditStatus(t, identity, ok)
}

type Row struct {
	Ticket    entity.Ticket
	Editable  bool
	Deletable bool
}

type Dashboard struct {
	Rows       []Row
	Metrics    Metrics
	HasMetrics bool
}

// BuildDashboard filters the snapshot and computes the metrics from the unfiltered snapshot.
func BuildDashboard(snapshot []entity.Ticket, f Filter, identity entity.Identity, ok bool) Dashboard {
	filtered := FilterTickets(snapshot, f)
	rows := make([]Row, 0, len(filtered))

	for _, t := range filtered {
		rows = append(rows, Row{
			Ticket:   t,
			Editable: guard.CanEditStatus(t, identity, ok),
		})
	}

	metrics, hasMetrics := MetricsFor(snapshot, identity, ok)

	return Dashboard{
		Rows:       rows,
		Metrics:    metrics,
		HasMetrics: hasMetrics,
	}
}

// AdminRows lists every ticket with the controls the admin panel offers.
func AdminRows(snapshot []entity.Ticket, identity entity.Identity, ok bool) []Row {
	rows := make([]Row, 0, len(snapshot))
	deletable := guard.CanDelete(identity, ok)

	for _, t := range snapshot {
		rows = append(rows, Row{
			Ticket:    t,
			Editable:  guard.CanEditStatus(t, identity, ok),
			Deletable: deletable,
		})
	}

	return rows
}

type Details struct {
	Ticket   entity.Ticket
	Comments []entity.Comment
	Editable bool
}
