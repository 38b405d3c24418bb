package pgdb_test

import (
	"os"
	"testing"

	pgdb "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/postgres"
	"github.com/stretchr/testify/require"
)

func TestNewEventRepository(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			name   string
			config []interface{}
		}{
			{"no config", nil},
			{"too many args", []interface{}{nil, nil}},
			{"not a db", []interface{}{"postgresql://localhost"}},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				repo, err := pgdb.NewEventRepository(f.config...)
				require.Error(t, err)
				require.Nil(t, repo)
			})
		}
	})

	t.Run("valid", func(t *testing.T) {
		dsn := os.Getenv("FLOWERBOX_TEST_PG_EVENT_DSN")
		if dsn == "" {
			dsn = os.Getenv("FLOWERBOX_TEST_PG_DSN")
		}
		if dsn == "" {
			t.Skip("FLOWERBOX_TEST_PG_DSN not set")
		}

		db, err := pgdb.OpenDb(dsn, true)
		require.NoError(t, err)
		t.Cleanup(func() {
			//nolint:errcheck
			db.Close()
		})

		repo, err := pgdb.NewEventRepository(db)
		require.NoError(t, err)
		require.NotNil(t, repo)
		repo.Close()
	})
}
