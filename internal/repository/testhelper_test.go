package repository

import (
	"database/sql"
	"testing"

	"github.com/aiolosmedia/estimateai-api/internal/crypto"
	"github.com/aiolosmedia/estimateai-api/internal/database/migrations"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database with migrations applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// testEncryptor returns an encryptor with a fixed test key.
func testEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

// setupTestRepo creates a widget repository over a fresh in-memory database.
func setupTestRepo(t *testing.T) *SQLiteWidgetRepository {
	t.Helper()
	return NewSQLiteWidgetRepository(setupTestDB(t), testEncryptor(t))
}
