package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", MigrationURL("postgres://u:p@h:5432/db?sslmode=disable"))
	require.Equal(t, "pgx5://h/db", MigrationURL("postgresql://h/db"))
	require.Equal(t, "pgx5://h/db", MigrationURL("pgx5://h/db"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Equal(t, len(ups), len(downs))
}
