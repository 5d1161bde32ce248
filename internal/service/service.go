package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samandr77/microservices/ticketflow/internal/cache"
	"github.com/samandr77/microservices/ticketflow/internal/clients/tickets"
	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/internal/guard"
	"github.com/samandr77/microservices/ticketflow/internal/view"
	"github.com/samandr77/microservices/ticketflow/pkg/logger"
)

//go:generate go run go.uber.org/mock/mockgen@latest -source=service.go -destination=../mocks/service.go -package=mocks

type API interface {
	Tickets(ctx context.Context) ([]entity.Ticket, error)
	Ticket(ctx context.Context, id string) (entity.Ticket, error)
	CreateTicket(ctx context.Context, t entity.NewTicket) (entity.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id string, status entity.Status) (entity.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	Comments(ctx context.Context, ticketID string) ([]entity.Comment, error)
	CreateComment(ctx context.Context, c entity.NewComment) (entity.Comment, error)
}

type Session interface {
	Current() (entity.Identity, bool)
	Logout(ctx context.Context) error
}

type Producer interface {
	SendActivity(ctx context.Context, a entity.Activity)
}

// Service runs the user actions of every screen. Each method returns errors that
// entity.UserMessage turns into the text shown to the user.
type Service struct {
	api      API
	session  Session
	producer Producer
	tickets  *cache.TicketCache
	comments *cache.CommentCache
	now      func() time.Time
}

func New(api API, session Session, producer Producer) *Service {
	return &Service{
		api:      api,
		session:  session,
		producer: producer,
		tickets:  cache.NewTicketCache(),
		comments: cache.NewCommentCache(),
		now:      time.Now,
	}
}

// Tickets exposes the shared ticket cache.
func (s *Service) Tickets() *cache.TicketCache {
	return s.tickets
}

// Dashboard loads the ticket list. When the load fails the dashboard is built from the
// previous snapshot and returned together with the error.
func (s *Service) Dashboard(ctx context.Context, f view.Filter) (view.Dashboard, error) {
	ctx, identity, err := s.enter(ctx, guard.ViewDashboard)
	if err != nil {
		return view.Dashboard{}, err
	}

	snapshot, err := s.tickets.Load(ctx, s.api.Tickets)
	if err != nil {
		err = s.handle(ctx, err)
	}

	return view.BuildDashboard(snapshot, f, identity, true), err
}

func (s *Service) AdminPanel(ctx context.Context) ([]view.Row, error) {
	ctx, identity, err := s.enter(ctx, guard.ViewAdminPanel)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.tickets.Load(ctx, s.api.Tickets)
	if err != nil {
		err = s.handle(ctx, err)
	}

	return view.AdminRows(snapshot, identity, true), err
}

// TicketDetails loads a ticket and its comments.
func (s *Service) TicketDetails(ctx context.Context, id string) (view.Details, error) {
	ctx, identity, err := s.enter(ctx, guard.ViewTicketDetails)
	if err != nil {
		return view.Details{}, err
	}

	ticket, err := s.api.Ticket(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return view.Details{}, ctx.Err()
		}

		msg := entity.MsgLoadTicket
		if errors.Is(err, entity.ErrNotFound) {
			msg = entity.MsgTicketNotFound
		}

		return view.Details{}, s.handle(ctx, &entity.FetchError{Resource: "ticket " + id, Message: msg, Err: err})
	}

	s.tickets.Append(ticket)

	comments, err := s.comments.For(id).Load(ctx, func(ctx context.Context) ([]entity.Comment, error) {
		return s.api.Comments(ctx, id)
	})
	if err != nil {
		return view.Details{}, s.handle(ctx, err)
	}

	return view.Details{
		Ticket:   ticket,
		Comments: comments,
		Editable: guard.CanEditStatus(ticket, identity, true),
	}, nil
}

func (s *Service) CreateTicket(ctx context.Context, nt entity.NewTicket) (entity.Ticket, error) {
	ctx, identity, err := s.enter(ctx, guard.ViewCreateTicket)
	if err != nil {
		return entity.Ticket{}, err
	}

	if nt.Priority == "" {
		nt.Priority = entity.PriorityLow
	}

	err = nt.Validate()
	if err != nil {
		return entity.Ticket{}, &entity.WriteError{Op: "create ticket", Message: entity.MsgInvalidTicketArg, Err: err}
	}

	created, err := s.api.CreateTicket(ctx, nt)
	if err != nil {
		msg := tickets.ServerMessage(err)
		if msg == "" {
			msg = entity.MsgCreateTicket
		}

		return entity.Ticket{}, s.handle(ctx, &entity.WriteError{Op: "create ticket", Message: msg, Err: err})
	}

	s.tickets.Append(created)
	s.publish(ctx, entity.ActivityTicketCreated, created.ID, identity, "")

	return created, nil
}

// UpdateStatus changes the status of a ticket. The cached ticket is updated before the
// request is sent and is left as is when the request fails. Unknown statuses are
// rejected before anything is cached.
func (s *Service) UpdateStatus(ctx context.Context, id string, status entity.Status) (entity.Ticket, error) {
	ctx, identity, err := s.enter(ctx, guard.ViewDashboard)
	if err != nil {
		return entity.Ticket{}, err
	}

	status, err = entity.ParseStatus(string(status))
	if err != nil {
		return entity.Ticket{}, &entity.WriteError{Op: "update status", Message: entity.MsgUpdateStatus, Err: err}
	}

	ticket, ok := s.tickets.Get(id)
	if !ok {
		ticket, err = s.api.Ticket(ctx, id)
		if err != nil {
			msg := entity.MsgLoadTicket
			if errors.Is(err, entity.ErrNotFound) {
				msg = entity.MsgTicketNotFound
			}

			return entity.Ticket{}, s.handle(ctx, &entity.FetchError{Resource: "ticket " + id, Message: msg, Err: err})
		}

		s.tickets.Append(ticket)
	}

	if !guard.CanEditStatus(ticket, identity, true) {
		return entity.Ticket{}, fmt.Errorf("update ticket %q status: %w", id, entity.ErrNotAuthorized)
	}

	s.tickets.ApplyOptimisticUpdate(id, entity.StatusPatch(status))

	updated, err := s.api.UpdateTicketStatus(ctx, id, status)
	if err != nil {
		slog.ErrorContext(ctx, "update ticket status", "ticket_id", id, "status", status, "error", err)

		return entity.Ticket{}, s.handle(ctx, &entity.WriteError{Op: "update status", Message: entity.MsgUpdateStatus, Err: err})
	}

	if updated.ID == id {
		s.tickets.Append(updated.WithRefsFrom(ticket))
	}

	current, _ := s.tickets.Get(id)

	s.publish(ctx, entity.ActivityStatusChanged, id, identity, status)

	return current, nil
}

// DeleteTicket removes a ticket on the server and, once confirmed, from the cache.
func (s *Service) DeleteTicket(ctx context.Context, id string) error {
	ctx, identity, err := s.enter(ctx, guard.ViewAdminPanel)
	if err != nil {
		return err
	}

	if !guard.CanDelete(identity, true) {
		return fmt.Errorf("delete ticket %q: %w", id, entity.ErrNotAuthorized)
	}

	err = s.api.DeleteTicket(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "delete ticket", "ticket_id", id, "error", err)

		return s.handle(ctx, &entity.WriteError{Op: "delete ticket", Message: entity.MsgDeleteTicket, Err: err})
	}

	s.tickets.Remove(id)
	s.comments.Forget(id)
	s.publish(ctx, entity.ActivityTicketDeleted, id, identity, "")

	return nil
}

// PostComment adds a comment and returns the refreshed comment list. Comments not loaded yet
// are fetched first so a failed post still returns them. Blank content is ignored.
func (s *Service) PostComment(ctx context.Context, ticketID, content string) ([]entity.Comment, error) {
	ctx, identity, err := s.enter(ctx, guard.ViewTicketDetails)
	if err != nil {
		return nil, err
	}

	comments := s.comments.For(ticketID)

	if strings.TrimSpace(content) == "" {
		return comments.Snapshot(), nil
	}

	if !comments.Loaded() {
		_, err = comments.Load(ctx, func(ctx context.Context) ([]entity.Comment, error) {
			return s.api.Comments(ctx, ticketID)
		})
		if errors.Is(err, entity.ErrUnauthorized) {
			return nil, s.handle(ctx, err)
		}

		if err != nil {
			slog.WarnContext(ctx, "load comments", "ticket_id", ticketID, "error", err)
		}
	}

	created, err := s.api.CreateComment(ctx, entity.NewComment{TicketID: ticketID, Content: content})
	if err != nil {
		slog.ErrorContext(ctx, "create comment", "ticket_id", ticketID, "error", err)

		return comments.Snapshot(), s.handle(ctx, &entity.WriteError{Op: "add comment", Message: entity.MsgAddComment, Err: err})
	}

	s.publish(ctx, entity.ActivityCommentAdded, ticketID, identity, "")

	list, err := comments.Load(ctx, func(ctx context.Context) ([]entity.Comment, error) {
		return s.api.Comments(ctx, ticketID)
	})
	if err != nil {
		slog.WarnContext(ctx, "reload comments", "ticket_id", ticketID, "error", err)

		comments.Append(created)

		return comments.Snapshot(), nil
	}

	return list, nil
}

// Refresh reloads the ticket list in the background. It does nothing without a session.
func (s *Service) Refresh(ctx context.Context) error {
	identity, ok := s.session.Current()
	if !ok {
		return nil
	}

	ctx = logger.WithUserID(ctx, identity.ID)

	_, err := s.tickets.Load(ctx, s.api.Tickets)
	if err != nil {
		return s.handle(ctx, err)
	}

	return nil
}

// enter authorizes view for the current identity and tags ctx with the user id.
func (s *Service) enter(ctx context.Context, v guard.View) (context.Context, entity.Identity, error) {
	identity, ok := s.session.Current()

	decision := guard.Authorize(v, identity, ok)

	switch decision.Kind {
	case guard.Redirect:
		return ctx, entity.Identity{}, fmt.Errorf("%s: %w", v, entity.ErrNoSession)
	case guard.Forbidden:
		return ctx, entity.Identity{}, fmt.Errorf("%s: %w", v, entity.ErrNotAuthorized)
	}

	return logger.WithUserID(ctx, identity.ID), identity, nil
}

// handle logs the session out when the API rejected the token.
func (s *Service) handle(ctx context.Context, err error) error {
	if !errors.Is(err, entity.ErrUnauthorized) {
		return err
	}

	slog.InfoContext(ctx, "token rejected, logging out")

	logoutErr := s.session.Logout(ctx)
	if logoutErr != nil {
		slog.ErrorContext(ctx, "logout", "error", logoutErr)
	}

	return &entity.AuthError{Message: entity.MsgSessionExpired, Err: err}
}

func (s *Service) publish(ctx context.Context, kind entity.ActivityKind, ticketID string, actor entity.Identity, status entity.Status) {
	s.producer.SendActivity(ctx, entity.Activity{
		Kind:     kind,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Status:   status,
		At:       s.now().UTC(),
	})
}
