package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
	"github.com/samandr77/microservices/ticketflow/internal/repository"
)

type SessionRepositoryTestSuite struct {
	suite.Suite
	repo *repository.SessionRepository
}

func (ts *SessionRepositoryTestSuite) SetupTest() {
	ts.repo = repository.NewSessionRepository(repository.SetupTestDatabase(ts.T()))
}

func TestSessionRepositoryTestSuite(t *testing.T) { //nolint:paralleltest
	suite.Run(t, new(SessionRepositoryTestSuite))
}

func (ts *SessionRepositoryTestSuite) TestLoadEmpty() {
	_, err := ts.repo.Load(context.Background())
	ts.Require().ErrorIs(err, entity.ErrNotFound)
}

func (ts *SessionRepositoryTestSuite) TestSaveAndLoad() {
	ctx := context.Background()

	stored := entity.StoredSession{
		Identity: entity.Identity{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: entity.RoleAdmin},
		Token:    "token-1",
	}

	err := ts.repo.Save(ctx, stored)
	ts.Require().NoError(err)

	got, err := ts.repo.Load(ctx)
	ts.Require().NoError(err)
	ts.Require().Equal(stored, got)
}

func (ts *SessionRepositoryTestSuite) TestSaveOverwrites() {
	ctx := context.Background()

	err := ts.repo.Save(ctx, entity.StoredSession{
		Identity: entity.Identity{ID: "u1", Name: "Alice", Role: entity.RoleAdmin},
		Token:    "token-1",
	})
	ts.Require().NoError(err)

	second := entity.StoredSession{
		Identity: entity.Identity{ID: "u2", Name: "Bob", Role: entity.RoleEmployee},
		Token:    "token-2",
	}

	err = ts.repo.Save(ctx, second)
	ts.Require().NoError(err)

	got, err := ts.repo.Load(ctx)
	ts.Require().NoError(err)
	ts.Require().Equal(second, got)
}

func (ts *SessionRepositoryTestSuite) TestDelete() {
	ctx := context.Background()

	err := ts.repo.Save(ctx, entity.StoredSession{
		Identity: entity.Identity{ID: "u1", Name: "Alice", Role: entity.RoleGuest},
		Token:    "token-1",
	})
	ts.Require().NoError(err)

	ts.Require().NoError(ts.repo.Delete(ctx))
	ts.Require().NoError(ts.repo.Delete(ctx))

	_, err = ts.repo.Load(ctx)
	ts.Require().ErrorIs(err, entity.ErrNotFound)
}
