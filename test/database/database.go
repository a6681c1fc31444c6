// Package database provides shared test database setup: each test gets a
// private PostgreSQL schema with the full migration set applied, backed by
// one shared container (or the CI database).
package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/pkg/database"
	"github.com/loglens/loglens/test/util"
)

// NewTestPool creates a schema-isolated connection pool with migrations
// applied. The schema is dropped and the pool closed via t.Cleanup.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	util.SkipWithoutDatabase(t)
	ctx := context.Background()

	baseConnStr := util.GetBaseConnectionString(t)
	schemaName := util.GenerateSchemaName(t)

	db, err := stdsql.Open("pgx", baseConnStr)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	_ = db.Close()

	connStrWithSchema := util.AddSearchPathToConnString(baseConnStr, schemaName)
	require.NoError(t, database.MigrateDSN(connStrWithSchema))

	pool, err := pgxpool.New(ctx, connStrWithSchema)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	t.Cleanup(func() {
		pool.Close()
		cleanDB, err := stdsql.Open("pgx", baseConnStr)
		if err != nil {
			t.Logf("warning: could not connect to drop schema %s: %v", schemaName, err)
			return
		}
		defer func() { _ = cleanDB.Close() }()
		_, err = cleanDB.ExecContext(context.Background(),
			fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		if err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schemaName, err)
		}
	})

	return pool
}

// NewTestClient wraps a schema-isolated pool in a *database.Client.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	return database.NewClientFromPool(NewTestPool(t))
}
