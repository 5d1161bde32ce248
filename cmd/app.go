package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/samandr77/microservices/ticketflow/internal/clients/tickets"
	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/internal/guard"
	"github.com/samandr77/microservices/ticketflow/internal/repository"
	"github.com/samandr77/microservices/ticketflow/internal/service"
	"github.com/samandr77/microservices/ticketflow/internal/session"
	"github.com/samandr77/microservices/ticketflow/internal/view"
	"github.com/samandr77/microservices/ticketflow/pkg/broker"
	"github.com/samandr77/microservices/ticketflow/pkg/config"
	"github.com/samandr77/microservices/ticketflow/pkg/job"
	"github.com/samandr77/microservices/ticketflow/pkg/logger"
	"github.com/samandr77/microservices/ticketflow/pkg/transport"
)

const expiryCheckInterval = time.Minute

const usage = `Usage: ticketflow <command> [flags]

Commands:
  login --email E --password P
  register --name N --email E --password P
  logout
  whoami
  open <path>
  tickets [--status S] [--priority P]
  show <id>
  create --title T --description D [--priority P]
  status <id> <status>
  delete <id>
  comment <id> <text>
  admin
  watch
`

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type activityProducer interface {
	SendActivity(ctx context.Context, a entity.Activity)
	Close()
}

type app struct {
	cfg      config.Config
	out      io.Writer
	store    *session.Store
	service  *service.Service
	producer activityProducer
}

func newApp(cfg config.Config, db *sql.DB, out io.Writer) *app {
	var store *session.Store

	client := tickets.NewClient(cfg.API, transport.TokenFunc(func() string { return store.Token() }))
	store = session.New(client, repository.NewSessionRepository(db))

	var producer activityProducer = broker.Nop{}
	if cfg.Kafka.Enabled() {
		producer = broker.NewProducer(slog.Default(), cfg.Kafka.Brokers, cfg.Kafka.ActivityTopic)
	}

	return &app{
		cfg:      cfg,
		out:      out,
		store:    store,
		service:  service.New(client, store, producer),
		producer: producer,
	}
}

func (a *app) Close() {
	a.producer.Close()
}

func (a *app) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErrorf("missing command")
	}

	a.store.Restore(ctx)

	name, args := args[0], args[1:]

	switch name {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "open":
		return a.open(args)
	case "tickets":
		return a.tickets(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "status":
		return a.status(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "comment":
		return a.comment(ctx, args)
	case "admin":
		return a.admin(ctx)
	case "watch":
		return a.watch(ctx)
	}

	return usageErrorf("unknown command %q", name)
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)

	err := fs.Parse(args)
	if err != nil {
		return usageErrorf("%s: %s", fs.Name(), err)
	}

	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	var creds entity.Credentials

	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	fs.StringVar(&creds.Email, "email", "", "account e-mail")
	fs.StringVar(&creds.Password, "password", "", "account password")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if creds.Email == "" || creds.Password == "" {
		return usageErrorf("login: --email and --password are required")
	}

	identity, err := a.store.Login(ctx, creds)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", identity.Name, identity.Role)

	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	var reg entity.Registration

	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	fs.StringVar(&reg.Name, "name", "", "display name")
	fs.StringVar(&reg.Email, "email", "", "account e-mail")
	fs.StringVar(&reg.Password, "password", "", "account password")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		return usageErrorf("register: --name, --email and --password are required")
	}

	identity, err := a.store.Register(ctx, reg)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered as %s (%s)\n", identity.Name, identity.Role)

	return nil
}

func (a *app) logout(ctx context.Context) error {
	err := a.store.Logout(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Logged out")

	return nil
}

func (a *app) whoami() error {
	identity, ok := a.store.Current()
	if ok {
		fmt.Fprintf(a.out, "Welcome, %s (%s)\n", identity.Name, identity.Role)
	} else {
		fmt.Fprintln(a.out, "Not logged in")
	}

	links := guard.NavLinks(identity, ok)
	labels := make([]string, 0, len(links))

	for _, l := range links {
		labels = append(labels, fmt.Sprintf("%s %s", l.Label, l.Path))
	}

	fmt.Fprintln(a.out, strings.Join(labels, " | "))

	return nil
}

func (a *app) open(args []string) error {
	if len(args) != 1 {
		return usageErrorf("open: expected a path")
	}

	identity, ok := a.store.Current()
	route, decision := guard.Navigate(args[0], identity, ok)

	switch decision.Kind {
	case guard.Allow:
		fmt.Fprintf(a.out, "allow: %s\n", route.View)
	case guard.Redirect:
		fmt.Fprintf(a.out, "redirect: %s\n", decision.Target)
	case guard.Forbidden:
		fmt.Fprintf(a.out, "forbidden: %s\n", decision.Message)
	}

	return nil
}

func (a *app) tickets(ctx context.Context, args []string) error {
	var status, priority string

	fs := pflag.NewFlagSet("tickets", pflag.ContinueOnError)
	fs.StringVar(&status, "status", "", "Open, In Progress or Closed")
	fs.StringVar(&priority, "priority", "", "Low, Medium or High")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var f view.Filter

	if status != "" {
		s, err := entity.ParseStatus(status)
		if err != nil {
			return usageErrorf("tickets: %s", err)
		}

		f.Status = s
	}

	if priority != "" {
		p, err := entity.ParsePriority(priority)
		if err != nil {
			return usageErrorf("tickets: %s", err)
		}

		f.Priority = p
	}

	d, err := a.service.Dashboard(ctx, f)
	if err != nil {
		return err
	}

	if d.HasMetrics {
		fmt.Fprintf(a.out, "Total: %d | Open: %d | In Progress: %d | Closed: %d\n",
			d.Metrics.Total, d.Metrics.Open, d.Metrics.InProgress, d.Metrics.Closed)
	}

	a.printRows(d.Rows)

	return nil
}

func (a *app) admin(ctx context.Context) error {
	rows, err := a.service.AdminPanel(ctx)
	if err != nil {
		return err
	}

	a.printRows(rows)

	return nil
}

func (a *app) printRows(rows []view.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No tickets found.")
		return
	}

	for _, r := range rows {
		var controls []string

		if r.Editable {
			controls = append(controls, "status")
		}

		if r.Deletable {
			controls = append(controls, "delete")
		}

		line := fmt.Sprintf("%s  %s | Status: %s | Priority: %s | Created by: %s",
			r.Ticket.ID, r.Ticket.Title, r.Ticket.Status, r.Ticket.Priority, r.Ticket.CreatorName())

		if len(controls) > 0 {
			line += " [" + strings.Join(controls, ", ") + "]"
		}

		fmt.Fprintln(a.out, line)
	}
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErrorf("show: expected a ticket id")
	}

	d, err := a.service.TicketDetails(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, d.Ticket.Title)
	fmt.Fprintln(a.out, d.Ticket.Description)
	fmt.Fprintf(a.out, "Status: %s | Priority: %s\n", d.Ticket.Status, d.Ticket.Priority)
	fmt.Fprintf(a.out, "Created by: %s\n", d.Ticket.CreatorName())

	if d.Editable {
		fmt.Fprintf(a.out, "You can change the status: ticketflow status %s <status>\n", d.Ticket.ID)
	}

	a.printComments(d.Comments)

	return nil
}

func (a *app) printComments(comments []entity.Comment) {
	fmt.Fprintln(a.out, "Comments")

	if len(comments) == 0 {
		fmt.Fprintln(a.out, "No comments yet.")
		return
	}

	for _, c := range comments {
		fmt.Fprintf(a.out, "- %s (By: %s | %s)\n", c.Content, c.AuthorName(), c.CreatedAt.Local().Format(time.DateTime))
	}
}

func (a *app) create(ctx context.Context, args []string) error {
	var (
		nt       entity.NewTicket
		priority string
	)

	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	fs.StringVar(&nt.Title, "title", "", "ticket title")
	fs.StringVar(&nt.Description, "description", "", "ticket description")
	fs.StringVar(&priority, "priority", string(entity.PriorityLow), "Low, Medium or High")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	nt.Priority = entity.Priority(priority)

	created, err := a.service.CreateTicket(ctx, nt)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Created ticket %s\n", created.ID)

	return nil
}

func (a *app) status(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageErrorf("status: expected a ticket id and a status")
	}

	status, err := entity.ParseStatus(strings.Join(args[1:], " "))
	if err != nil {
		return usageErrorf("status: %s", err)
	}

	updated, err := a.service.UpdateStatus(ctx, args[0], status)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Ticket %s is now %s\n", updated.ID, updated.Status)

	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErrorf("delete: expected a ticket id")
	}

	err := a.service.DeleteTicket(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Deleted ticket %s\n", args[0])

	return nil
}

func (a *app) comment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageErrorf("comment: expected a ticket id and a text")
	}

	comments, err := a.service.PostComment(ctx, args[0], strings.Join(args[1:], " "))
	if comments != nil || err == nil {
		a.printComments(comments)
	}

	return err
}

// watch keeps the ticket list fresh and ends the session once the token expires.
func (a *app) watch(ctx context.Context) error {
	if _, ok := a.store.Current(); !ok {
		return fmt.Errorf("watch: %w", entity.ErrNoSession)
	}

	var (
		done = make(chan struct{})
		once sync.Once
	)

	unsubscribe := a.store.Subscribe(func(_ entity.Identity, ok bool) {
		if !ok {
			once.Do(func() {
				fmt.Fprintln(a.out, "Session ended")
				close(done)
			})
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := job.NewService().
		WithContext(func(ctx context.Context) context.Context {
			if identity, ok := a.store.Current(); ok {
				return logger.WithUserID(ctx, identity.ID)
			}

			return ctx
		}).
		RegisterJob("refresh tickets", a.cfg.RefreshInterval, func(ctx context.Context) error {
			err := a.service.Refresh(ctx)
			if err != nil {
				fmt.Fprintln(a.out, entity.UserMessage(err))
				return err
			}

			m := view.ComputeMetrics(a.service.Tickets().Snapshot())
			fmt.Fprintf(a.out, "%s  %d tickets (%d open, %d in progress, %d closed)\n",
				time.Now().Format(time.TimeOnly), m.Total, m.Open, m.InProgress, m.Closed)

			return nil
		}).
		RegisterJob("check session expiry", expiryCheckInterval, a.store.CheckExpiry).
		Start(ctx)

	select {
	case <-ctx.Done():
	case <-done:
	}

	cancel()
	jobs.Stop()

	return nil
}
