// Package guard holds every role check of the client: which views may be entered,
// which tickets may have their status changed and who may delete.
package guard

import (
	"strings"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
)

type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewDashboard
	ViewCreateTicket
	ViewTicketDetails
	ViewAdminPanel
)

const (
	PathLogin        = "/login"
	PathRegister     = "/register"
	PathDashboard    = "/dashboard"
	PathCreateTicket = "/create-ticket"
	PathTicketPrefix = "/ticket/"
	PathAdmin        = "/admin"
)

var viewNames = map[View]string{
	ViewLogin:         "login",
	ViewRegister:      "register",
	ViewDashboard:     "dashboard",
	ViewCreateTicket:  "create ticket",
	ViewTicketDetails: "ticket details",
	ViewAdminPanel:    "admin panel",
}

func (v View) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}

	return "unknown"
}

func (v View) Protected() bool {
	return v != ViewLogin && v != ViewRegister
}

// Route is a resolved path. TicketID is set for ViewTicketDetails only.
type Route struct {
	View     View
	TicketID string
}

// Resolve maps a path to its view. Unknown paths report false.
func Resolve(path string) (Route, bool) {
	path = strings.TrimSuffix(path, "/")

	switch path {
	case PathLogin:
		return Route{View: ViewLogin}, true
	case PathRegister:
		return Route{View: ViewRegister}, true
	case PathDashboard:
		return Route{View: ViewDashboard}, true
	case PathCreateTicket:
		return Route{View: ViewCreateTicket}, true
	case PathAdmin:
		return Route{View: ViewAdminPanel}, true
	}

	id, ok := strings.CutPrefix(path, PathTicketPrefix)
	if ok && id != "" && !strings.Contains(id, "/") {
		return Route{View: ViewTicketDetails, TicketID: id}, true
	}

	return Route{}, false
}

type DecisionKind int

const (
	Allow DecisionKind = iota
	Redirect
	Forbidden
)

// Decision is the outcome of a navigation. Target is set for Redirect, Message for Forbidden.
type Decision struct {
	Kind    DecisionKind
	Target  string
	Message string
}

func (d Decision) Allowed() bool {
	return d.Kind == Allow
}

// Authorize decides whether identity may enter view. It keeps no state and must be called on every navigation.
func Authorize(view View, identity entity.Identity, ok bool) Decision {
	if view.Protected() && !ok {
		return Decision{Kind: Redirect, Target: PathLogin}
	}

	if view == ViewAdminPanel && !identity.IsAdmin() {
		return Decision{Kind: Forbidden, Message: entity.MsgNotAuthorized}
	}

	return Decision{Kind: Allow}
}

// Navigate resolves path and authorizes it. Unknown paths redirect to the login page.
func Navigate(path string, identity entity.Identity, ok bool) (Route, Decision) {
	route, found := Resolve(path)
	if !found {
		return Route{}, Decision{Kind: Redirect, Target: PathLogin}
	}

	return route, Authorize(route.View, identity, ok)
}

// CanEditStatus reports whether identity may change the status of t.
func CanEditStatus(t entity.Ticket, identity entity.Identity, ok bool) bool {
	if !ok {
		return false
	}

	switch identity.Role {
	case entity.RoleAdmin:
		return true
	case entity.RoleEmployee:
		return identity.ID != "" && t.AssignedToID(identity.ID)
	}

	return false
}

func CanDelete(identity entity.Identity, ok bool) bool {
	return ok && identity.IsAdmin()
}

type Link struct {
	Label string
	Path  string
}

// NavLinks returns the navigation entries shown to identity.
func NavLinks(identity entity.Identity, ok bool) []Link {
	if !ok {
		return []Link{
			{Label: "Login", Path: PathLogin},
			{Label: "Register", Path: PathRegister},
		}
	}

	links := []Link{
		{Label: "Create Ticket", Path: PathCreateTicket},
		{Label: "Logout", Path: PathLogin},
	}

	if identity.IsAdmin() {
		links = append(links, Link{Label: "Admin Panel", Path: PathAdmin})
	}

	return links
}
