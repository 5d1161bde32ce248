package repository

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samandr77/microservices/ticketflow/pkg/sqlite"
)

// SetupTestDatabase returns a migrated in-memory database private to the calling test.
func SetupTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Connect(context.Background(), "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}
