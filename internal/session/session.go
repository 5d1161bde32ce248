package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/samandr77/microservices/ticketflow/internal/clients/tickets"
	"github.com/samandr77/microservices/ticketflow/internal/entity"
)

//go:generate go run go.uber.org/mock/mockgen@latest -source=session.go -destination=../mocks/session.go -package=mocks

type Authenticator interface {
	Login(ctx context.Context, creds entity.Credentials) (entity.AuthResult, error)
	Register(ctx context.Context, reg entity.Registration) (entity.AuthResult, error)
}

type Storage interface {
	Save(ctx context.Context, s entity.StoredSession) error
	Load(ctx context.Context) (entity.StoredSession, error)
	Delete(ctx context.Context) error
}

// Listener is called with the new identity after every login and logout.
type Listener func(identity entity.Identity, ok bool)

// Store holds the identity of the current user and its bearer token.
type Store struct {
	auth    Authenticator
	storage Storage
	now     func() time.Time

	mu        sync.RWMutex
	identity  entity.Identity
	token     string
	loggedIn  bool
	listeners map[int]Listener
	nextID    int
}

func New(auth Authenticator, storage Storage) *Store {
	return &Store{
		auth:      auth,
		storage:   storage,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

func (s *Store) Login(ctx context.Context, creds entity.Credentials) (entity.Identity, error) {
	res, err := s.auth.Login(ctx, creds)
	if err != nil {
		return entity.Identity{}, &entity.AuthError{Message: authMessage(err, entity.MsgLoginFailed), Err: err}
	}

	return s.establish(ctx, res, entity.MsgLoginFailed)
}

func (s *Store) Register(ctx context.Context, reg entity.Registration) (entity.Identity, error) {
	res, err := s.auth.Register(ctx, reg)
	if err != nil {
		return entity.Identity{}, &entity.AuthError{Message: authMessage(err, entity.MsgRegisterFailed), Err: err}
	}

	return s.establish(ctx, res, entity.MsgRegisterFailed)
}

func (s *Store) establish(ctx context.Context, res entity.AuthResult, failMsg string) (entity.Identity, error) {
	if !valid(res.Identity, res.Token) {
		return entity.Identity{}, &entity.AuthError{
			Message: failMsg,
			Err:     fmt.Errorf("malformed auth response: %w", entity.ErrInvalidArgument),
		}
	}

	err := s.storage.Save(ctx, entity.StoredSession{Identity: res.Identity, Token: res.Token})
	if err != nil {
		slog.WarnContext(ctx, "save session", "error", err)
	}

	s.mu.Lock()
	s.identity = res.Identity
	s.token = res.Token
	s.loggedIn = true
	s.mu.Unlock()

	s.notify(res.Identity, true)

	return res.Identity, nil
}

// Logout clears the session in memory and in storage. It is idempotent.
// Memory is cleared even when storage fails; the storage error is returned.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasLoggedIn := s.loggedIn
	s.identity = entity.Identity{}
	s.token = ""
	s.loggedIn = false
	s.mu.Unlock()

	err := s.storage.Delete(ctx)

	if wasLoggedIn {
		s.notify(entity.Identity{}, false)
	}

	if err != nil {
		slog.ErrorContext(ctx, "delete session", "error", err)
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Restore loads the persisted session. Records that are unreadable, incomplete or carry
// an expired token are deleted and reported as absent.
func (s *Store) Restore(ctx context.Context) (entity.Identity, bool) {
	stored, err := s.storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			slog.WarnContext(ctx, "load session", "error", err)
			s.discard(ctx)
		}

		return entity.Identity{}, false
	}

	if !valid(stored.Identity, stored.Token) || s.expired(stored.Token) {
		slog.InfoContext(ctx, "stored session rejected", "user_id", stored.Identity.ID)
		s.discard(ctx)

		return entity.Identity{}, false
	}

	s.mu.Lock()
	s.identity = stored.Identity
	s.token = stored.Token
	s.loggedIn = true
	s.mu.Unlock()

	s.notify(stored.Identity, true)

	return stored.Identity, true
}

// CheckExpiry logs the user out once the bearer token has expired.
func (s *Store) CheckExpiry(ctx context.Context) error {
	s.mu.RLock()
	token, loggedIn := s.token, s.loggedIn
	s.mu.RUnlock()

	if !loggedIn || !s.expired(token) {
		return nil
	}

	slog.InfoContext(ctx, "session expired")

	return s.Logout(ctx)
}

func (s *Store) Current() (entity.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.identity, s.loggedIn
}

// Token returns the bearer token, or an empty string when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(identity entity.Identity, ok bool) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))

	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(identity, ok)
	}
}

func (s *Store) discard(ctx context.Context) {
	err := s.storage.Delete(ctx)
	if err != nil {
		slog.WarnContext(ctx, "delete invalid session", "error", err)
	}
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque tokens never expire here.
func (s *Store) expired(token string) bool {
	var claims jwt.RegisteredClaims

	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}

	return !s.now().Before(claims.ExpiresAt.Time)
}

func valid(identity entity.Identity, token string) bool {
	return identity.ID != "" && identity.Name != "" && identity.Role.Valid() && token != ""
}

func authMessage(err error, fallback string) string {
	if msg := tickets.ServerMessage(err); msg != "" {
		return msg
	}

	return fallback
}
