package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/samandr77/microservices/ticketflow/internal/clients/tickets"
	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/internal/fakeapi"
	"github.com/samandr77/microservices/ticketflow/internal/mocks"
	"github.com/samandr77/microservices/ticketflow/internal/repository"
	"github.com/samandr77/microservices/ticketflow/internal/session"
)

type TestStore struct {
	auth *mocks.MockAuthenticator
	repo *repository.SessionRepository
	s    *session.Store
}

func NewTestStore(t *testing.T) *TestStore {
	t.Helper()

	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthenticator(ctrl)
	repo := repository.NewSessionRepository(repository.SetupTestDatabase(t))

	return &TestStore{
		auth: auth,
		repo: repo,
		s:    session.New(auth, repo),
	}
}

type event struct {
	identity entity.Identity
	ok       bool
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) listen(identity entity.Identity, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event{identity: identity, ok: ok})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]event(nil), r.events...)
}

var (
	admin = entity.Identity{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: entity.RoleAdmin}
	creds = entity.Credentials{Email: "ada@example.com", Password: "pw"}
)

func TestStore_Login(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()

	var rec recorder

	ts.s.Subscribe(rec.listen)

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: "opaque", Identity: admin}, nil)

	identity, err := ts.s.Login(ctx, creds)
	require.NoError(t, err)
	require.Equal(t, admin, identity)

	current, ok := ts.s.Current()
	require.True(t, ok)
	require.Equal(t, admin, current)
	require.Equal(t, "opaque", ts.s.Token())

	stored, err := ts.repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.StoredSession{Identity: admin, Token: "opaque"}, stored)

	require.Equal(t, []event{{identity: admin, ok: true}}, rec.all())
}

func TestStore_LoginFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "invalid credentials",
			err:     &tickets.APIError{StatusCode: 401, Message: "Invalid email or password", Err: entity.ErrUnauthorized},
			wantMsg: "Invalid email or password",
		},
		{
			name:    "api unreachable",
			err:     errors.New("dial tcp: connection refused"),
			wantMsg: entity.MsgLoginFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := NewTestStore(t)
			ctx := context.Background()

			ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{}, tt.err)

			_, err := ts.s.Login(ctx, creds)

			var authErr *entity.AuthError

			require.ErrorAs(t, err, &authErr)
			require.Equal(t, tt.wantMsg, authErr.Message)
			require.ErrorIs(t, err, tt.err)

			_, ok := ts.s.Current()
			require.False(t, ok)
			require.Empty(t, ts.s.Token())

			_, err = ts.repo.Load(ctx)
			require.ErrorIs(t, err, entity.ErrNotFound)
		})
	}
}

func TestStore_LoginMalformedResponse(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Identity: admin}, nil)

	_, err := ts.s.Login(context.Background(), creds)
	require.ErrorIs(t, err, entity.ErrInvalidArgument)
	require.Equal(t, entity.MsgLoginFailed, entity.UserMessage(err))

	_, ok := ts.s.Current()
	require.False(t, ok)
}

func TestStore_Register(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()

	guest := entity.Identity{ID: "u2", Name: "Gus", Email: "gus@example.com", Role: entity.RoleGuest}
	reg := entity.Registration{Name: "Gus", Email: "gus@example.com", Password: "pw"}

	ts.auth.EXPECT().Register(gomock.Any(), reg).Return(entity.AuthResult{Token: "t", Identity: guest}, nil)

	identity, err := ts.s.Register(ctx, reg)
	require.NoError(t, err)
	require.Equal(t, guest, identity)

	current, ok := ts.s.Current()
	require.True(t, ok)
	require.Equal(t, guest, current)

	ts.auth.EXPECT().Register(gomock.Any(), reg).Return(entity.AuthResult{}, &tickets.APIError{StatusCode: 400, Message: "User already exists"})

	_, err = ts.s.Register(ctx, reg)
	require.Equal(t, "User already exists", entity.UserMessage(err))
}

func TestStore_Logout(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()

	var rec recorder

	ts.s.Subscribe(rec.listen)

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: "opaque", Identity: admin}, nil)

	_, err := ts.s.Login(ctx, creds)
	require.NoError(t, err)

	require.NoError(t, ts.s.Logout(ctx))
	require.NoError(t, ts.s.Logout(ctx))

	_, ok := ts.s.Current()
	require.False(t, ok)
	require.Empty(t, ts.s.Token())

	_, err = ts.repo.Load(ctx)
	require.ErrorIs(t, err, entity.ErrNotFound)

	require.Equal(t, []event{{identity: admin, ok: true}, {ok: false}}, rec.all())
}

func TestStore_LogoutStorageFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthenticator(ctrl)
	storage := mocks.NewMockStorage(ctrl)
	s := session.New(auth, storage)
	ctx := context.Background()

	auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: "opaque", Identity: admin}, nil)
	storage.EXPECT().Save(gomock.Any(), entity.StoredSession{Identity: admin, Token: "opaque"}).Return(nil)
	storage.EXPECT().Delete(gomock.Any()).Return(errors.New("disk full"))

	_, err := s.Login(ctx, creds)
	require.NoError(t, err)

	err = s.Logout(ctx)
	require.Error(t, err)

	_, ok := s.Current()
	require.False(t, ok)
}

func TestStore_Restore(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: "opaque", Identity: admin}, nil)

	_, err := ts.s.Login(ctx, creds)
	require.NoError(t, err)

	restarted := session.New(ts.auth, ts.repo)

	identity, ok := restarted.Restore(ctx)
	require.True(t, ok)
	require.Equal(t, admin, identity)
	require.Equal(t, "opaque", restarted.Token())

	current, ok := restarted.Current()
	require.True(t, ok)
	require.Equal(t, admin, current)
}

func TestStore_RestoreRejects(t *testing.T) {
	t.Parallel()

	backend := fakeapi.New()

	tests := []struct {
		name   string
		stored *entity.StoredSession
	}{
		{
			name: "nothing stored",
		},
		{
			name:   "expired token",
			stored: &entity.StoredSession{Identity: admin, Token: backend.Token(admin, -time.Minute)},
		},
		{
			name:   "unknown role",
			stored: &entity.StoredSession{Identity: entity.Identity{ID: "u1", Name: "Ada", Role: "root"}, Token: "opaque"},
		},
		{
			name:   "missing id",
			stored: &entity.StoredSession{Identity: entity.Identity{Name: "Ada", Role: entity.RoleAdmin}, Token: "opaque"},
		},
		{
			name:   "empty token",
			stored: &entity.StoredSession{Identity: admin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := NewTestStore(t)
			ctx := context.Background()

			if tt.stored != nil {
				require.NoError(t, ts.repo.Save(ctx, *tt.stored))
			}

			_, ok := ts.s.Restore(ctx)
			require.False(t, ok)

			_, ok = ts.s.Current()
			require.False(t, ok)

			_, err := ts.repo.Load(ctx)
			require.ErrorIs(t, err, entity.ErrNotFound)
		})
	}
}

func TestStore_RestoreValidToken(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()

	token := fakeapi.New().Token(admin, time.Hour)
	require.NoError(t, ts.repo.Save(ctx, entity.StoredSession{Identity: admin, Token: token}))

	identity, ok := ts.s.Restore(ctx)
	require.True(t, ok)
	require.Equal(t, admin, identity)
	require.Equal(t, token, ts.s.Token())
}

func TestStore_CheckExpiry(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()
	backend := fakeapi.New()

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: backend.Token(admin, time.Hour), Identity: admin}, nil)

	_, err := ts.s.Login(ctx, creds)
	require.NoError(t, err)

	require.NoError(t, ts.s.CheckExpiry(ctx))

	_, ok := ts.s.Current()
	require.True(t, ok)

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: backend.Token(admin, -time.Second), Identity: admin}, nil)

	_, err = ts.s.Login(ctx, creds)
	require.NoError(t, err)

	require.NoError(t, ts.s.CheckExpiry(ctx))

	_, ok = ts.s.Current()
	require.False(t, ok)

	_, err = ts.repo.Load(ctx)
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestStore_Unsubscribe(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()

	var kept, dropped recorder

	ts.s.Subscribe(kept.listen)
	unsubscribe := ts.s.Subscribe(dropped.listen)

	unsubscribe()
	unsubscribe()

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: "opaque", Identity: admin}, nil)

	_, err := ts.s.Login(ctx, creds)
	require.NoError(t, err)

	require.Len(t, kept.all(), 1)
	require.Empty(t, dropped.all())
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	t.Parallel()

	ts := NewTestStore(t)
	ctx := context.Background()

	var seen entity.Identity

	ts.s.Subscribe(func(entity.Identity, bool) {
		seen, _ = ts.s.Current()
	})

	ts.auth.EXPECT().Login(gomock.Any(), creds).Return(entity.AuthResult{Token: "opaque", Identity: admin}, nil)

	_, err := ts.s.Login(ctx, creds)
	require.NoError(t, err)
	require.Equal(t, admin, seen)
}
