package repository

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/aiolosmedia/estimateai-api/internal/crypto"
	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// Store is a swappable database handle. Handlers hold a *Store for the
// lifetime of the process; the settings update operation replaces the
// backing database atomically, so requests in flight finish against the
// connection they started on and new requests see the new one.
//
// Store itself satisfies WidgetRepository by delegating to the current
// backing repositories.
type Store struct {
	current atomic.Pointer[storeState]
}

type storeState struct {
	db    *sql.DB
	enc   *crypto.Encryptor
	repos *Repositories
}

// NewStore creates a store backed by the given database handle.
func NewStore(db *sql.DB, enc *crypto.Encryptor) *Store {
	s := &Store{}
	s.current.Store(&storeState{db: db, enc: enc, repos: NewRepositories(db, enc)})
	return s
}

// Swap replaces the backing database and returns the previous handle.
// The caller owns closing the returned handle; sql.DB.Close waits for
// queries already running on it to finish.
func (s *Store) Swap(db *sql.DB) *sql.DB {
	prev := s.current.Load()
	old := s.current.Swap(&storeState{db: db, enc: prev.enc, repos: NewRepositories(db, prev.enc)})
	return old.db
}

// DB returns the current backing database handle.
func (s *Store) DB() *sql.DB {
	return s.current.Load().db
}

// Close closes the current backing database.
func (s *Store) Close() error {
	return s.current.Load().db.Close()
}

func (s *Store) widgets() WidgetRepository {
	return s.current.Load().repos.Widgets
}

func (s *Store) Create(ctx context.Context, widget *models.SavedWidget) error {
	return s.widgets().Create(ctx, widget)
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.SavedWidget, error) {
	return s.widgets().GetByID(ctx, id)
}

func (s *Store) Update(ctx context.Context, widget *models.SavedWidget) error {
	return s.widgets().Update(ctx, widget)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.widgets().Delete(ctx, id)
}

func (s *Store) ListByUserID(ctx context.Context, userID string) ([]*models.SavedWidget, error) {
	return s.widgets().ListByUserID(ctx, userID)
}
