package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// GetTestDatabasePool creates a database connection pool for testing
func GetTestDatabasePool(ctx context.Context) (*pgxpool.Pool, error) {
	databaseURL := buildDatabaseURL()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// buildDatabaseURL constructs the database URL from environment variables
func buildDatabaseURL() string {
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "remap-orchestrator-db-rw.template-studio.svc"
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "remap_orchestrator"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=prefer",
		user, password, host, port, dbname)
}

// TestDatabase provides database utilities for testing
type TestDatabase struct {
	Pool *pgxpool.Pool
	ctx  context.Context
}

// NewTestDatabase creates a new test database instance. Tests that need a
// real database are skipped when neither TEST_DATABASE_URL nor
// POSTGRES_HOST is set, so the suite stays runnable on a bare checkout.
func NewTestDatabase(t *testing.T) *TestDatabase {
	if os.Getenv("TEST_DATABASE_URL") == "" && os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database integration test")
	}

	ctx := context.Background()

	pool, err := GetTestDatabasePool(ctx)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	db := &TestDatabase{
		Pool: pool,
		ctx:  ctx,
	}
	db.ensureSchema(t)
	return db
}

// Close closes the database connection
func (db *TestDatabase) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// ensureSchema creates the tables the service expects. Idempotent, so
// repeated suite runs against the same database are fine.
func (db *TestDatabase) ensureSchema(t *testing.T) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			layer_tree JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS slot_snapshots (
			node_id TEXT NOT NULL,
			slot_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (node_id, slot_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Pool.Exec(db.ctx, stmt); err != nil {
			t.Fatalf("Failed to ensure schema: %v", err)
		}
	}
}

// BeginTransaction starts a new transaction for test isolation
// Tests should use transaction rollback instead of deleting data
func (db *TestDatabase) BeginTransaction(t *testing.T) (context.Context, func()) {
	tx, err := db.Pool.Begin(db.ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	txCtx := context.WithValue(db.ctx, "tx", tx)

	rollback := func() {
		if err := tx.Rollback(db.ctx); err != nil {
			t.Logf("Warning: Failed to rollback transaction: %v", err)
		}
	}

	return txCtx, rollback
}

// CreateTestUser creates a test user with a bcrypt-hashed password and
// returns the user ID.
func (db *TestDatabase) CreateTestUser(t *testing.T, email, password string) string {
	hashed, err := db.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	var userID string
	err = db.Pool.QueryRow(db.ctx, `
		INSERT INTO users (name, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id
	`, "Test Designer", email, hashed).Scan(&userID)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}

// DeleteTestUser removes a test user by email.
func (db *TestDatabase) DeleteTestUser(t *testing.T, email string) {
	if _, err := db.Pool.Exec(db.ctx, `DELETE FROM users WHERE email = $1`, email); err != nil {
		t.Logf("Warning: Failed to delete test user %s: %v", email, err)
	}
}

// SnapshotCount returns the number of stored slot snapshots.
func (db *TestDatabase) SnapshotCount(t *testing.T) int {
	var count int
	err := db.Pool.QueryRow(db.ctx, "SELECT COUNT(*) FROM slot_snapshots").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to get snapshot count: %v", err)
	}
	return count
}

// DocumentCount returns the number of registered documents.
func (db *TestDatabase) DocumentCount(t *testing.T) int {
	var count int
	err := db.Pool.QueryRow(db.ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to get document count: %v", err)
	}
	return count
}

// CleanupSlots removes every snapshot row for a node.
func (db *TestDatabase) CleanupSlots(t *testing.T, nodeID string) {
	if _, err := db.Pool.Exec(db.ctx, `DELETE FROM slot_snapshots WHERE node_id = $1`, nodeID); err != nil {
		t.Logf("Warning: Failed to cleanup slots for node %s: %v", nodeID, err)
	}
}

// HashPassword hashes a password using bcrypt for testing
func (db *TestDatabase) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// WaitForDatabase waits for database to be ready
func WaitForDatabase(ctx context.Context, maxAttempts int) error {
	for i := 0; i < maxAttempts; i++ {
		pool, err := GetTestDatabasePool(ctx)
		if err == nil {
			pool.Close()
			return nil
		}

		if i < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}

	return fmt.Errorf("database not ready after %d attempts", maxAttempts)
}
