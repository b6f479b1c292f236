// Package repository implements data access over SQLite/libsql.
package repository

import (
	"context"
	"database/sql"

	"github.com/aiolosmedia/estimateai-api/internal/crypto"
	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// WidgetRepository manages persisted widget profiles.
// GetByID returns (nil, nil) when no row matches.
type WidgetRepository interface {
	Create(ctx context.Context, widget *models.SavedWidget) error
	GetByID(ctx context.Context, id string) (*models.SavedWidget, error)
	Update(ctx context.Context, widget *models.SavedWidget) error
	Delete(ctx context.Context, id string) error
	ListByUserID(ctx context.Context, userID string) ([]*models.SavedWidget, error)
}

// Repositories bundles all repositories over one database handle.
type Repositories struct {
	Widgets WidgetRepository
}

// NewRepositories creates all repositories.
func NewRepositories(db *sql.DB, enc *crypto.Encryptor) *Repositories {
	return &Repositories{
		Widgets: NewSQLiteWidgetRepository(db, enc),
	}
}
