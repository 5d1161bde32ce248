package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
)

const (
	sessionTable = "session"
	sessionRowID = 1
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save overwrites the single stored session.
func (r *SessionRepository) Save(ctx context.Context, s entity.StoredSession) error {
	sqlQuery, args, err := sq.Insert(sessionTable).
		Options("OR REPLACE").
		Columns("id", "user_id", "name", "email", "role", "token", "saved_at").
		Values(sessionRowID, s.Identity.ID, s.Identity.Name, s.Identity.Email, string(s.Identity.Role), s.Token, time.Now().Unix()).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return err
	}

	return nil
}

func (r *SessionRepository) Load(ctx context.Context) (entity.StoredSession, error) {
	sqlQuery, args, err := sq.Select("user_id", "name", "email", "role", "token").
		From(sessionTable).
		Where(sq.Eq{"id": sessionRowID}).
		ToSql()
	if err != nil {
		return entity.StoredSession{}, err
	}

	var (
		s    entity.StoredSession
		role string
	)

	err = r.db.QueryRowContext(ctx, sqlQuery, args...).Scan(
		&s.Identity.ID,
		&s.Identity.Name,
		&s.Identity.Email,
		&role,
		&s.Token,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.StoredSession{}, entity.ErrNotFound
		}

		return entity.StoredSession{}, err
	}

	s.Identity.Role = entity.Role(role)

	return s, nil
}

func (r *SessionRepository) Delete(ctx context.Context) error {
	sqlQuery, args, err := sq.Delete(sessionTable).Where(sq.Eq{"id": sessionRowID}).ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return err
	}

	return nil
}
