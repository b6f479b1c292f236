package handlers

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// fakeWidgetRepo is an in-memory WidgetRepository for handler tests.
type fakeWidgetRepo struct {
	widgets map[string]*models.SavedWidget
	err     error
	nextID  int
}

func newFakeWidgetRepo() *fakeWidgetRepo {
	return &fakeWidgetRepo{widgets: make(map[string]*models.SavedWidget)}
}

func (r *fakeWidgetRepo) Create(ctx context.Context, w *models.SavedWidget) error {
	if r.err != nil {
		return r.err
	}
	r.nextID++
	if w.ID == "" {
		w.ID = "01TESTWIDGET" + string(rune('A'+r.nextID))
	}
	if w.UserID == "" {
		w.UserID = models.PlaceholderUserID
	}
	now := time.Now().UTC().Truncate(time.Second)
	w.CreatedAt = now
	w.UpdatedAt = now
	w.Profile.Normalize()
	stored := *w
	r.widgets[w.ID] = &stored
	return nil
}

func (r *fakeWidgetRepo) GetByID(ctx context.Context, id string) (*models.SavedWidget, error) {
	if r.err != nil {
		return nil, r.err
	}
	w, ok := r.widgets[id]
	if !ok {
		return nil, nil
	}
	copied := *w
	return &copied, nil
}

func (r *fakeWidgetRepo) Update(ctx context.Context, w *models.SavedWidget) error {
	if r.err != nil {
		return r.err
	}
	existing, ok := r.widgets[w.ID]
	if !ok {
		return sql.ErrNoRows
	}
	w.UserID = existing.UserID
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	w.Profile.Normalize()
	stored := *w
	r.widgets[w.ID] = &stored
	return nil
}

func (r *fakeWidgetRepo) Delete(ctx context.Context, id string) error {
	if r.err != nil {
		return r.err
	}
	delete(r.widgets, id)
	return nil
}

func (r *fakeWidgetRepo) ListByUserID(ctx context.Context, userID string) ([]*models.SavedWidget, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.SavedWidget
	for _, w := range r.widgets {
		if w.UserID == userID {
			copied := *w
			out = append(out, &copied)
		}
	}
	return out, nil
}

// adminProfile is a minimal profile for handler tests.
func adminProfile() models.BusinessProfile {
	p := models.BusinessProfile{
		Name:         "Bright Roofing",
		Services:     []string{"Roof repair", "Gutter cleaning"},
		PricingRules: "Minimum call-out $100.",
	}
	p.LeadGen.Enabled = true
	p.LeadGen.Fields[models.FieldName] = models.LeadField{Visible: true, Required: true}
	p.LeadGen.Fields[models.FieldEmail] = models.LeadField{Visible: true, Required: true}
	p.Normalize()
	return p
}

// statusOf extracts the HTTP status from a huma error.
func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected a status error, got %v", err)
	}
	return se.GetStatus()
}
