package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Runs against a real postgres when STEPCHESS_TEST_DATABASE_URL is set. Each
// subtest starts from empty tables.
func TestGormStore(t *testing.T) {
	dsn := os.Getenv("STEPCHESS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STEPCHESS_TEST_DATABASE_URL not set")
	}
	db, err := Open(dsn, false)
	require.NoError(t, err)
	s := NewGormStore(db, nil)
	t.Cleanup(func() { _ = s.Close() })

	testStore(t, func(t *testing.T) Store {
		require.NoError(t, db.Exec(`TRUNCATE games, active_games, step_balances, hourly_earns,
			queue_entries, match_notifications, leaderboard_records, scored_games`).Error)
		return nopClose{s}
	})
}

// nopClose keeps subtests from closing the shared connection pool.
type nopClose struct{ Store }

func (nopClose) Close() error { return nil }
