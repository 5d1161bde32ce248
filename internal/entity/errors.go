package entity

import (
	"errors"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrNoSession       = errors.New("no session")
)

const (
	MsgLoadTickets      = "Failed to load tickets"
	MsgLoadTicket       = "Failed to load ticket or comments"
	MsgTicketNotFound   = "Ticket not found."
	MsgUpdateStatus     = "Failed to update status"
	MsgDeleteTicket     = "Failed to delete ticket"
	MsgAddComment       = "Failed to add comment"
	MsgCreateTicket     = "Failed to create ticket"
	MsgNotAuthorized    = "Not authorized."
	MsgLoginFailed      = "Login failed"
	MsgRegisterFailed   = "Registration failed"
	MsgSessionExpired   = "Session expired, please log in again"
	MsgLoginRequired    = "Please log in"
	MsgSomethingWrong   = "Something went wrong"
	MsgInvalidTicketArg = "Title, description and a valid priority are required"
)

// AuthError is returned for bad credentials, an unreachable auth endpoint or an expired session.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Message
	}

	return "auth: " + e.Message + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError is returned when a read from the API fails.
type FetchError struct {
	Resource string
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return "fetch " + e.Resource + ": " + e.Message
	}

	return "fetch " + e.Resource + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError is returned when a create, update, delete or comment fails.
type WriteError struct {
	Op      string
	Message string
	Err     error
}

func (e *WriteError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Message
	}

	return e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error { return e.Err }

// UserMessage converts any error into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		authErr  *AuthError
		fetchErr *FetchError
		writeErr *WriteError
	)

	switch {
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.As(err, &fetchErr):
		return fetchErr.Message
	case errors.As(err, &writeErr):
		return writeErr.Message
	case errors.Is(err, ErrNotAuthorized):
		return MsgNotAuthorized
	case errors.Is(err, ErrNoSession):
		return MsgLoginRequired
	}

	return MsgSomethingWrong
}
