package view_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/internal/view"
)

var (
	admin    = entity.Identity{ID: "a1", Name: "Ada", Role: entity.RoleAdmin}
	employee = entity.Identity{ID: "e1", Name: "Eve", Role: entity.RoleEmployee}
	guest    = entity.Identity{ID: "g1", Name: "Gus", Role: entity.RoleGuest}
)

func snapshot() []entity.Ticket {
	return []entity.Ticket{
		{ID: "t1", Status: entity.StatusOpen, Priority: entity.PriorityHigh, AssignedTo: &entity.UserRef{ID: "e1"}},
		{ID: "t2", Status: entity.StatusOpen, Priority: entity.PriorityLow},
		{ID: "t3", Status: entity.StatusInProgress, Priority: entity.PriorityHigh},
		{ID: "t4", Status: entity.StatusClosed, Priority: entity.PriorityMedium, AssignedTo: &entity.UserRef{ID: "e2"}},
	}
}

func ids(tickets []entity.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}

	return out
}

func TestFilterTickets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter view.Filter
		want   []string
	}{
		{name: "no filter", filter: view.Filter{}, want: []string{"t1", "t2", "t3", "t4"}},
		{name: "status", filter: view.Filter{Status: entity.StatusOpen}, want: []string{"t1", "t2"}},
		{name: "priority", filter: view.Filter{Priority: entity.PriorityHigh}, want: []string{"t1", "t3"}},
		{name: "both", filter: view.Filter{Status: entity.StatusOpen, Priority: entity.PriorityHigh}, want: []string{"t1"}},
		{name: "nothing matches", filter: view.Filter{Status: entity.StatusClosed, Priority: entity.PriorityLow}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, ids(view.FilterTickets(snapshot(), tt.filter)))
		})
	}
}

func TestFilterTickets_Predicate(t *testing.T) {
	t.Parallel()

	snap := snapshot()

	filters := []view.Filter{{}}
	for _, s := range append(entity.Statuses, "") {
		for _, p := range append(entity.Priorities, "") {
			filters = append(filters, view.Filter{Status: s, Priority: p})
		}
	}

	for _, f := range filters {
		got := view.FilterTickets(snap, f)

		want := make([]entity.Ticket, 0)
		for _, tk := range snap {
			if (f.Status == "" || tk.Status == f.Status) && (f.Priority == "" || tk.Priority == f.Priority) {
				want = append(want, tk)
			}
		}

		require.Equal(t, want, got, "filter %+v", f)
	}

	require.Equal(t, snap, view.FilterTickets(snap, view.Filter{}))
}

func TestComputeMetrics(t *testing.T) {
	t.Parallel()

	tickets := []entity.Ticket{
		{Status: entity.StatusOpen},
		{Status: entity.StatusOpen},
		{Status: entity.StatusInProgress},
		{Status: entity.StatusClosed},
	}

	require.Equal(t, view.Metrics{Total: 4, Open: 2, InProgress: 1, Closed: 1}, view.ComputeMetrics(tickets))
	require.Equal(t, view.Metrics{}, view.ComputeMetrics(nil))

	m := view.ComputeMetrics(snapshot())
	require.Equal(t, m.Total, m.Open+m.InProgress+m.Closed)

	for _, status := range entity.Statuses {
		updated := snapshot()
		updated[0] = entity.StatusPatch(status).Apply(updated[0])

		m = view.ComputeMetrics(updated)
		require.Equal(t, m.Total, m.Open+m.InProgress+m.Closed, status)
	}

	malformed := append(snapshot(), entity.Ticket{ID: "t9", Status: "Archived"})
	require.Equal(t, view.Metrics{Total: 5, Open: 2, InProgress: 1, Closed: 1}, view.ComputeMetrics(malformed))
}

func TestMetricsFor(t *testing.T) {
	t.Parallel()

	m, ok := view.MetricsFor(snapshot(), admin, true)
	require.True(t, ok)
	require.Equal(t, view.Metrics{Total: 4, Open: 2, InProgress: 1, Closed: 1}, m)

	for _, identity := range []entity.Identity{employee, guest} {
		_, ok = view.MetricsFor(snapshot(), identity, true)
		require.False(t, ok)
	}

	_, ok = view.MetricsFor(snapshot(), admin, false)
	require.False(t, ok)
}

func TestBuildDashboard_AssignedEmployee(t *testing.T) {
	t.Parallel()

	d := view.BuildDashboard(snapshot(), view.Filter{Status: entity.StatusOpen}, employee, true)

	require.False(t, d.HasMetrics)
	require.Len(t, d.Rows, 2)
	require.Equal(t, "t1", d.Rows[0].Ticket.ID)
	require.True(t, d.Rows[0].Editable)
	require.Equal(t, "t2", d.Rows[1].Ticket.ID)
	require.False(t, d.Rows[1].Editable)
}

func TestBuildDashboard_AdminMetricsIgnoreFilter(t *testing.T) {
	t.Parallel()

	d := view.BuildDashboard(snapshot(), view.Filter{Priority: entity.PriorityMedium}, admin, true)

	require.True(t, d.HasMetrics)
	require.Equal(t, 4, d.Metrics.Total)
	require.Len(t, d.Rows, 1)
	require.True(t, d.Rows[0].Editable)
	require.False(t, d.Rows[0].Deletable)
}

func TestAdminRows(t *testing.T) {
	t.Parallel()

	rows := view.AdminRows(snapshot(), admin, true)
	require.Len(t, rows, 4)

	for _, r := range rows {
		require.True(t, r.Editable)
		require.True(t, r.Deletable)
	}

	rows = view.AdminRows(snapshot(), employee, true)
	require.True(t, rows[0].Editable)
	require.False(t, rows[0].Deletable)
	require.False(t, rows[3].Editable)
}

func TestCanEditStatus(t *testing.T) {
	t.Parallel()

	snap := snapshot()

	require.True(t, view.CanEditStatus(snap[0], employee, true))
	require.False(t, view.CanEditStatus(snap[1], employee, true))
	require.False(t, view.CanEditStatus(snap[0], guest, true))
	require.True(t, view.CanEditStatus(snap[1], admin, true))
}
