package guard_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/internal/guard"
)

var (
	admin    = entity.Identity{ID: "a1", Name: "Ada", Role: entity.RoleAdmin}
	employee = entity.Identity{ID: "e1", Name: "Eve", Role: entity.RoleEmployee}
	guest    = entity.Identity{ID: "g1", Name: "Gus", Role: entity.RoleGuest}
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path  string
		want  guard.Route
		found bool
	}{
		{path: "/login", want: guard.Route{View: guard.ViewLogin}, found: true},
		{path: "/register", want: guard.Route{View: guard.ViewRegister}, found: true},
		{path: "/dashboard", want: guard.Route{View: guard.ViewDashboard}, found: true},
		{path: "/dashboard/", want: guard.Route{View: guard.ViewDashboard}, found: true},
		{path: "/create-ticket", want: guard.Route{View: guard.ViewCreateTicket}, found: true},
		{path: "/admin", want: guard.Route{View: guard.ViewAdminPanel}, found: true},
		{path: "/ticket/abc123", want: guard.Route{View: guard.ViewTicketDetails, TicketID: "abc123"}, found: true},
		{path: "/ticket/", found: false},
		{path: "/ticket/a/b", found: false},
		{path: "/", found: false},
		{path: "/settings", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			got, found := guard.Resolve(tt.path)
			require.Equal(t, tt.found, found)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	allow := guard.Decision{Kind: guard.Allow}
	toLogin := guard.Decision{Kind: guard.Redirect, Target: "/login"}
	forbidden := guard.Decision{Kind: guard.Forbidden, Message: "Not authorized."}

	tests := []struct {
		name     string
		view     guard.View
		identity entity.Identity
		ok       bool
		want     guard.Decision
	}{
		{name: "public view without session", view: guard.ViewLogin, want: allow},
		{name: "register without session", view: guard.ViewRegister, want: allow},
		{name: "dashboard without session", view: guard.ViewDashboard, want: toLogin},
		{name: "create ticket without session", view: guard.ViewCreateTicket, want: toLogin},
		{name: "details without session", view: guard.ViewTicketDetails, want: toLogin},
		{name: "admin panel without session", view: guard.ViewAdminPanel, want: toLogin},
		{name: "dashboard as guest", view: guard.ViewDashboard, identity: guest, ok: true, want: allow},
		{name: "admin panel as guest", view: guard.ViewAdminPanel, identity: guest, ok: true, want: forbidden},
		{name: "admin panel as employee", view: guard.ViewAdminPanel, identity: employee, ok: true, want: forbidden},
		{name: "admin panel as admin", view: guard.ViewAdminPanel, identity: admin, ok: true, want: allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := guard.Authorize(tt.view, tt.identity, tt.ok)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want.Kind == guard.Allow, got.Allowed())
		})
	}
}

func TestNavigate(t *testing.T) {
	t.Parallel()

	route, decision := guard.Navigate("/nowhere", admin, true)
	require.Equal(t, guard.Route{}, route)
	require.Equal(t, guard.Decision{Kind: guard.Redirect, Target: "/login"}, decision)

	route, decision = guard.Navigate("/ticket/t1", employee, true)
	require.Equal(t, guard.Route{View: guard.ViewTicketDetails, TicketID: "t1"}, route)
	require.True(t, decision.Allowed())

	_, decision = guard.Navigate("/ticket/t1", entity.Identity{}, false)
	require.Equal(t, guard.Redirect, decision.Kind)
}

func TestCanEditStatus(t *testing.T) {
	t.Parallel()

	assignedToEve := entity.Ticket{ID: "t1", AssignedTo: &entity.UserRef{ID: "e1", Name: "Eve"}}
	assignedToOther := entity.Ticket{ID: "t2", AssignedTo: &entity.UserRef{ID: "e2", Name: "Eli"}}
	unassigned := entity.Ticket{ID: "t3"}

	tests := []struct {
		name     string
		ticket   entity.Ticket
		identity entity.Identity
		ok       bool
		want     bool
	}{
		{name: "admin on unassigned", ticket: unassigned, identity: admin, ok: true, want: true},
		{name: "admin on assigned to other", ticket: assignedToOther, identity: admin, ok: true, want: true},
		{name: "assigned employee", ticket: assignedToEve, identity: employee, ok: true, want: true},
		{name: "employee assigned elsewhere", ticket: assignedToOther, identity: employee, ok: true, want: false},
		{name: "employee on unassigned", ticket: unassigned, identity: employee, ok: true, want: false},
		{name: "guest with matching id", ticket: entity.Ticket{AssignedTo: &entity.UserRef{ID: "g1"}}, identity: guest, ok: true, want: false},
		{name: "no session", ticket: assignedToEve, identity: employee, ok: false, want: false},
		{name: "employee without id on ref without id", ticket: entity.Ticket{AssignedTo: &entity.UserRef{}}, identity: entity.Identity{Role: entity.RoleEmployee}, ok: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, guard.CanEditStatus(tt.ticket, tt.identity, tt.ok))
		})
	}
}

func TestCanDelete(t *testing.T) {
	t.Parallel()

	require.True(t, guard.CanDelete(admin, true))
	require.False(t, guard.CanDelete(admin, false))
	require.False(t, guard.CanDelete(employee, true))
	require.False(t, guard.CanDelete(guest, true))
}

func TestNavLinks(t *testing.T) {
	t.Parallel()

	require.Equal(t, []guard.Link{
		{Label: "Login", Path: "/login"},
		{Label: "Register", Path: "/register"},
	}, guard.NavLinks(entity.Identity{}, false))

	require.Equal(t, []guard.Link{
		{Label: "Create Ticket", Path: "/create-ticket"},
		{Label: "Logout", Path: "/login"},
	}, guard.NavLinks(employee, true))

	require.Equal(t, []guard.Link{
		{Label: "Create Ticket", Path: "/create-ticket"},
		{Label: "Logout", Path: "/login"},
		{Label: "Admin Panel", Path: "/admin"},
	}, guard.NavLinks(admin, true))
}

func TestViewString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "admin panel", guard.ViewAdminPanel.String())
	require.Equal(t, "unknown", guard.View(42).String())
}
