// Package util provides test utilities and helper functions for database testing.
package util

import (
	"context"
	"crypto/rand"
	stdsql "database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
)

var (
	// Shared connection string for all tests in local dev
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// SkipWithoutDatabase skips the test unless a database is reachable: either
// CI provides CI_DATABASE_URL, or a local Docker daemon can run containers.
func SkipWithoutDatabase(t *testing.T) {
	t.Helper()
	if os.Getenv("CI_DATABASE_URL") != "" {
		return
	}
	if _, err := os.Stat("/var/run/docker.sock"); err != nil && os.Getenv("DOCKER_HOST") == "" {
		t.Skip("skipping: no database (set CI_DATABASE_URL or run a Docker daemon)")
	}
}

// GetBaseConnectionString returns the base PostgreSQL connection string
// (without schema search_path). The pgvector extension is already installed
// in the public schema of this database.
func GetBaseConnectionString(t *testing.T) string {
	return getOrCreateSharedDatabase(t)
}

// getOrCreateSharedDatabase returns a connection string to the shared database.
// In CI, uses CI_DATABASE_URL. In local dev, creates a shared testcontainer once.
func getOrCreateSharedDatabase(t *testing.T) string {
	containerOnce.Do(func() {
		ctx := context.Background()

		connStr := os.Getenv("CI_DATABASE_URL")
		if connStr == "" {
			t.Log("Starting shared PostgreSQL testcontainer for all tests")

			// The stock postgres image lacks the vector extension, so the
			// pgvector build of the same major version is used instead.
			pgContainer, err := postgres.Run(ctx,
				"pgvector/pgvector:pg17",
				postgres.WithDatabase("test"),
				postgres.WithUsername("test"),
				postgres.WithPassword("test"),
				testcontainers.WithWaitStrategy(
					wait.ForLog("database system is ready to accept connections").
						WithOccurrence(2).
						WithStartupTimeout(30*time.Second)),
			)
			if err != nil {
				containerErr = fmt.Errorf("failed to start postgres container: %w", err)
				return
			}

			connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
			if err != nil {
				containerErr = fmt.Errorf("failed to get connection string: %w", err)
				return
			}
		} else {
			t.Log("Using external PostgreSQL from CI_DATABASE_URL")
		}

		// Install the extension once in public so every test schema can
		// reference the vector type through its search_path.
		if err := installVectorExtension(ctx, connStr); err != nil {
			containerErr = err
			return
		}

		sharedConnStr = connStr
	})

	require.NoError(t, containerErr, "Failed to setup shared test database")
	return sharedConnStr
}

func installVectorExtension(ctx context.Context, connStr string) error {
	db, err := stdsql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to connect for extension install: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to install vector extension: %w", err)
	}
	return nil
}

// GenerateSchemaName creates a unique, PostgreSQL-safe schema name for the test.
// Format: test_<sanitized_test_name>_<random_hex>
func GenerateSchemaName(t *testing.T) string {
	// Get test name and sanitize it (lowercase, replace invalid chars with _)
	testName := strings.ToLower(t.Name())
	testName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, testName)

	// Limit length to avoid PostgreSQL's 63 char identifier limit
	if len(testName) > 40 {
		testName = testName[:40]
	}

	// Add random suffix for uniqueness
	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	if err != nil {
		t.Fatalf("failed to generate random bytes for schema name: %v", err)
	}
	randomHex := hex.EncodeToString(randomBytes)

	return fmt.Sprintf("test_%s_%s", testName, randomHex)
}

// AddSearchPathToConnString appends a search_path parameter to a PostgreSQL
// connection string. The public schema stays in the path so the vector type
// resolves from test schemas.
func AddSearchPathToConnString(connStr, schemaName string) string {
	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%ssearch_path=%s,public", connStr, separator, schemaName)
}
