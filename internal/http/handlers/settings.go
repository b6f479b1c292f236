package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aiolosmedia/estimateai-api/internal/database"
	"github.com/aiolosmedia/estimateai-api/internal/repository"
)

// SettingsHandler manages runtime-changeable server settings. Currently
// that is one thing: pointing the widget store at a different database
// without restarting the process.
type SettingsHandler struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewSettingsHandler creates a settings handler over the swappable store.
func NewSettingsHandler(store *repository.Store, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{store: store, logger: logger.With("component", "settings-handler")}
}

// UpdateStoreInput is the request to repoint the widget store.
type UpdateStoreInput struct {
	Body struct {
		DatabaseURL string `json:"databaseUrl" minLength:"1" doc:"libsql DSN for the new widget store"`
	}
}

// UpdateStoreOutput confirms the swap.
type UpdateStoreOutput struct {
	Body struct {
		SchemaVersion string `json:"schemaVersion" doc:"Latest applied migration on the new store"`
	}
}

// UpdateStore connects to the given database, migrates it, and swaps it in
// as the active widget store. The previous connection is closed after its
// in-flight queries finish; requests that started on it complete normally.
func (h *SettingsHandler) UpdateStore(ctx context.Context, input *UpdateStoreInput) (*UpdateStoreOutput, error) {
	db, err := database.New(input.Body.DatabaseURL)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("cannot connect to database", err)
	}

	if err := database.MigrateWithLogger(db, h.logger); err != nil {
		_ = db.Close()
		return nil, huma.Error500InternalServerError("failed to migrate database", err)
	}

	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		h.logger.Warn("failed to get schema version after swap", "error", err)
	}

	old := h.store.Swap(db)
	go func() {
		if err := old.Close(); err != nil {
			h.logger.Warn("failed to close previous store", "error", err)
		}
	}()

	h.logger.Info("widget store swapped", "schema_version", schemaVersion)

	resp := &UpdateStoreOutput{}
	resp.Body.SchemaVersion = schemaVersion
	return resp, nil
}
