package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aiolosmedia/estimateai-api/internal/crypto"
	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// SQLiteWidgetRepository implements WidgetRepository for SQLite/libsql.
// The profile is stored as JSON in a TEXT column; lead-channel credentials
// inside it are encrypted before marshal and decrypted on scan.
type SQLiteWidgetRepository struct {
	db  *sql.DB
	enc *crypto.Encryptor
}

// NewSQLiteWidgetRepository creates a new SQLite widget repository.
func NewSQLiteWidgetRepository(db *sql.DB, enc *crypto.Encryptor) *SQLiteWidgetRepository {
	return &SQLiteWidgetRepository{db: db, enc: enc}
}

// Create inserts a new widget.
func (r *SQLiteWidgetRepository) Create(ctx context.Context, widget *models.SavedWidget) error {
	now := time.Now()
	if widget.ID == "" {
		widget.ID = ulid.Make().String()
	}
	if widget.UserID == "" {
		widget.UserID = models.PlaceholderUserID
	}
	widget.CreatedAt = now
	widget.UpdatedAt = now
	widget.Profile.Normalize()

	profileJSON, err := r.marshalProfile(&widget.Profile)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO widgets (id, user_id, name, profile, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		widget.ID,
		widget.UserID,
		widget.Name,
		profileJSON,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	return err
}

// GetByID retrieves a widget by ID. Returns (nil, nil) when not found.
func (r *SQLiteWidgetRepository) GetByID(ctx context.Context, id string) (*models.SavedWidget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, profile, created_at, updated_at
		FROM widgets
		WHERE id = ?
	`, id)
	return r.scanWidget(row)
}

// Update persists profile and name changes for an existing widget.
func (r *SQLiteWidgetRepository) Update(ctx context.Context, widget *models.SavedWidget) error {
	widget.UpdatedAt = time.Now()
	widget.Profile.Normalize()

	profileJSON, err := r.marshalProfile(&widget.Profile)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE widgets SET name = ?, profile = ?, updated_at = ?
		WHERE id = ?
	`,
		widget.Name,
		profileJSON,
		widget.UpdatedAt.Format(time.RFC3339),
		widget.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a widget by ID.
func (r *SQLiteWidgetRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM widgets WHERE id = ?`, id)
	return err
}

// ListByUserID returns a user's widgets, most recently updated first.
func (r *SQLiteWidgetRepository) ListByUserID(ctx context.Context, userID string) ([]*models.SavedWidget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, profile, created_at, updated_at
		FROM widgets
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var widgets []*models.SavedWidget
	for rows.Next() {
		w, err := r.scanWidgetRow(rows)
		if err != nil {
			return nil, err
		}
		widgets = append(widgets, w)
	}
	return widgets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteWidgetRepository) scanWidget(row *sql.Row) (*models.SavedWidget, error) {
	w, err := r.scanWidgetRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func (r *SQLiteWidgetRepository) scanWidgetRow(row rowScanner) (*models.SavedWidget, error) {
	var widget models.SavedWidget
	var profileJSON string
	var createdAt, updatedAt string

	if err := row.Scan(
		&widget.ID,
		&widget.UserID,
		&widget.Name,
		&profileJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(profileJSON), &widget.Profile); err != nil {
		return nil, fmt.Errorf("corrupt profile for widget %s: %w", widget.ID, err)
	}
	if err := r.decryptLeadSecrets(&widget.Profile.LeadGen); err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials for widget %s: %w", widget.ID, err)
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		widget.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		widget.UpdatedAt = t
	}
	return &widget, nil
}

// marshalProfile encrypts lead-channel credentials on a copy and marshals
// it; the caller's profile keeps its plaintext values.
func (r *SQLiteWidgetRepository) marshalProfile(p *models.BusinessProfile) (string, error) {
	stored := *p
	if err := r.encryptLeadSecrets(&stored.LeadGen); err != nil {
		return "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile: %w", err)
	}
	return string(data), nil
}

func (r *SQLiteWidgetRepository) encryptLeadSecrets(cfg *models.LeadGenConfig) error {
	if r.enc == nil {
		return nil
	}
	return transformLeadSecrets(cfg, r.enc.Encrypt)
}

func (r *SQLiteWidgetRepository) decryptLeadSecrets(cfg *models.LeadGenConfig) error {
	if r.enc == nil {
		return nil
	}
	return transformLeadSecrets(cfg, r.enc.Decrypt)
}

// transformLeadSecrets applies fn to every credential-bearing field of the
// lead configuration. Webhook URLs count: Slack and sheet webhook URLs are
// capability tokens.
func transformLeadSecrets(cfg *models.LeadGenConfig, fn func(string) (string, error)) error {
	fields := []*string{
		&cfg.ResendAPIKey,
		&cfg.WebhookURL,
		&cfg.SlackWebhookURL,
		&cfg.SheetWebhookURL,
		&cfg.Twilio.AuthToken,
	}
	for _, f := range fields {
		v, err := fn(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
