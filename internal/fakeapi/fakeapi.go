// Package fakeapi is an in-memory implementation of the ticket API used by tests.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
)

type ctxKey struct{}

type user struct {
	identity entity.Identity
	password string
}

type failure struct {
	code  int
	times int
}

type claims struct {
	Name string      `json:"name"`
	Role entity.Role `json:"role"`
	jwt.RegisteredClaims
}

type Backend struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	users    map[string]user
	tickets  []entity.Ticket
	comments []entity.Comment
	failures map[string]*failure
	hits     map[string]int
}

func New() *Backend {
	return &Backend{
		secret:   []byte(uuid.Must(uuid.NewV4()).String()),
		tokenTTL: time.Hour,
		users:    make(map[string]user),
		failures: make(map[string]*failure),
		hits:     make(map[string]int),
	}
}

// Serve starts the backend on a test server and returns its base URL.
func (b *Backend) Serve(t testing.TB) string {
	t.Helper()

	server := httptest.NewServer(b.Handler())
	t.Cleanup(server.Close)

	return server.URL
}

func (b *Backend) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(b.count, b.requireRequestID)

	router.Post("/auth/login", b.login)
	router.Post("/auth/register", b.register)

	router.Group(func(r chi.Router) {
		r.Use(b.auth)

		r.Get("/tickets", b.listTickets)
		r.Post("/tickets", b.createTicket)
		r.Get("/tickets/{id}", b.getTicket)
		r.Put("/tickets/{id}", b.updateTicket)
		r.Delete("/tickets/{id}", b.deleteTicket)

		r.Get("/comments/{ticketID}", b.listComments)
		r.Post("/comments", b.createComment)
	})

	return router
}

func (b *Backend) AddUser(name, email, password string, role entity.Role) entity.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()

	identity := entity.Identity{ID: newID(), Name: name, Email: email, Role: role}
	b.users[email] = user{identity: identity, password: password}

	return identity
}

// AddTicket stores t, assigning an id and timestamps when missing.
func (b *Backend) AddTicket(t entity.Ticket) entity.Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
		t.UpdatedAt = t.CreatedAt
	}

	b.tickets = append(b.tickets, t)

	return t
}

func (b *Backend) AddComment(c entity.Comment) entity.Comment {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}

	b.comments = append(b.comments, c)

	return c
}

func (b *Backend) Tickets() []entity.Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.tickets)
}

// Token issues a signed token for identity that expires after ttl (negative ttl gives an expired token).
func (b *Backend) Token(identity entity.Identity, ttl time.Duration) string {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: identity.Name,
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	s, err := token.SignedString(b.secret)
	if err != nil {
		panic(err)
	}

	return s
}

// Fail makes the next times requests to method+path answer with code.
func (b *Backend) Fail(method, path string, code, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[method+" "+path] = &failure{code: code, times: times}
}

// Hits reports how many requests reached method+path, including forced failures.
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.hits[method+" "+path]
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.hits[key]++
		f := b.failures[key]

		code := 0
		if f != nil && f.times > 0 {
			f.times--
			code = f.code
		}
		b.mu.Unlock()

		if code != 0 {
			sendErr(w, code, "forced failure")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			sendErr(w, http.StatusBadRequest, "missing request id")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (b *Backend) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			sendErr(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		var c claims

		_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, errors.New("unexpected signing method")
			}

			return b.secret, nil
		})
		if err != nil {
			sendErr(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		identity := entity.Identity{ID: c.Subject, Name: c.Name, Role: c.Role}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, identity)))
	})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds entity.Credentials

	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		sendErr(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	u, ok := b.users[creds.Email]
	b.mu.Unlock()

	if !ok || u.password != creds.Password {
		sendErr(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	sendJSON(w, http.StatusOK, entity.AuthResult{Token: b.Token(u.identity, b.tokenTTL), Identity: u.identity})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var reg entity.Registration

	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" || reg.Name == "" {
		sendErr(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}

	b.mu.Lock()
	_, exists := b.users[reg.Email]
	b.mu.Unlock()

	if exists {
		sendErr(w, http.StatusBadRequest, "User already exists")
		return
	}

	identity := b.AddUser(reg.Name, reg.Email, reg.Password, entity.RoleGuest)

	sendJSON(w, http.StatusCreated, entity.AuthResult{Token: b.Token(identity, b.tokenTTL), Identity: identity})
}

func (b *Backend) listTickets(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, b.Tickets())
}

func (b *Backend) getTicket(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	i := b.ticketIndex(chi.URLParam(r, "id"))

	var t entity.Ticket
	if i >= 0 {
		t = b.tickets[i]
	}
	b.mu.Unlock()

	if i < 0 {
		sendErr(w, http.StatusNotFound, "Ticket not found")
		return
	}

	sendJSON(w, http.StatusOK, t)
}

func (b *Backend) createTicket(w http.ResponseWriter, r *http.Request) {
	identity, _ := r.Context().Value(ctxKey{}).(entity.Identity)

	var nt entity.NewTicket

	if err := json.NewDecoder(r.Body).Decode(&nt); err != nil {
		sendErr(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := nt.Validate(); err != nil {
		sendErr(w, http.StatusBadRequest, "Title and description are required")
		return
	}

	t := b.AddTicket(entity.Ticket{
		Title:       nt.Title,
		Description: nt.Description,
		Priority:    nt.Priority,
		Status:      entity.StatusOpen,
		CreatedBy:   identity.Ref(),
	})

	sendJSON(w, http.StatusCreated, t)
}

func (b *Backend) updateTicket(w http.ResponseWriter, r *http.Request) {
	identity, _ := r.Context().Value(ctxKey{}).(entity.Identity)

	var req struct {
		Status string `json:"status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErr(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := entity.ParseStatus(req.Status)
	if err != nil {
		sendErr(w, http.StatusBadRequest, "Invalid status")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.ticketIndex(chi.URLParam(r, "id"))
	if i < 0 {
		sendErr(w, http.StatusNotFound, "Ticket not found")
		return
	}

	if !identity.IsAdmin() && !(identity.Role == entity.RoleEmployee && b.tickets[i].AssignedToID(identity.ID)) {
		sendErr(w, http.StatusForbidden, "Not allowed to update this ticket")
		return
	}

	b.tickets[i].Status = status
	b.tickets[i].UpdatedAt = time.Now().UTC()

	sendJSON(w, http.StatusOK, b.tickets[i])
}

func (b *Backend) deleteTicket(w http.ResponseWriter, r *http.Request) {
	identity, _ := r.Context().Value(ctxKey{}).(entity.Identity)

	if !identity.IsAdmin() {
		sendErr(w, http.StatusForbidden, "Admin only")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.ticketIndex(chi.URLParam(r, "id"))
	if i < 0 {
		sendErr(w, http.StatusNotFound, "Ticket not found")
		return
	}

	b.tickets = slices.Delete(b.tickets, i, i+1)

	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) listComments(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	b.mu.Lock()
	comments := make([]entity.Comment, 0)

	for _, c := range b.comments {
		if c.TicketID == ticketID {
			comments = append(comments, c)
		}
	}
	b.mu.Unlock()

	sendJSON(w, http.StatusOK, comments)
}

func (b *Backend) createComment(w http.ResponseWriter, r *http.Request) {
	identity, _ := r.Context().Value(ctxKey{}).(entity.Identity)

	var nc entity.NewComment

	if err := json.NewDecoder(r.Body).Decode(&nc); err != nil || strings.TrimSpace(nc.Content) == "" {
		sendErr(w, http.StatusBadRequest, "Content is required")
		return
	}

	b.mu.Lock()
	found := b.ticketIndex(nc.TicketID) >= 0
	b.mu.Unlock()

	if !found {
		sendErr(w, http.StatusNotFound, "Ticket not found")
		return
	}

	c := b.AddComment(entity.Comment{
		TicketID:  nc.TicketID,
		Content:   nc.Content,
		Author:    identity.Ref(),
		CreatedAt: time.Now().UTC(),
	})

	sendJSON(w, http.StatusCreated, c)
}

func (b *Backend) ticketIndex(id string) int {
	return slices.IndexFunc(b.tickets, func(t entity.Ticket) bool { return t.ID == id })
}

func newID() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")[:24]
}

type errorResponse struct {
	Message string `json:"message"`
}

func sendErr(w http.ResponseWriter, code int, msg string) {
	sendJSON(w, code, errorResponse{Message: msg})
}

func sendJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
