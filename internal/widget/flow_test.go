package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

type stubEstimator struct {
	result  *models.EstimationResult
	err     error
	release chan struct{} // when non-nil, blocks until closed
	calls   int
}

func (s *stubEstimator) GenerateEstimate(ctx context.Context, task models.EstimateTask, profile *models.BusinessProfile) (*models.EstimationResult, error) {
	s.calls++
	if s.release != nil {
		<-s.release
	}
	return s.result, s.err
}

type stubDispatcher struct {
	err   error
	calls int
	lead  *models.Lead
}

func (s *stubDispatcher) Dispatch(ctx context.Context, lead *models.Lead, result *models.EstimationResult, profile *models.BusinessProfile) error {
	s.calls++
	s.lead = lead
	return s.err
}

func testProfile() *models.BusinessProfile {
	p := &models.BusinessProfile{
		Name:               "Bright Roofing",
		Industry:           "Roofing",
		Services:           []string{"Repair", "Replacement"},
		DefaultLanguage:    "en",
		SupportedLanguages: []string{"en", "es"},
		CuratedRecommendations: []models.RecommendedService{
			{ID: "u1", Label: "Gutter Guards", SuggestedPrice: "$50 one-time", Approved: true},
			{ID: "u2", Label: "Skylight", SuggestedPrice: "$900", Approved: false},
		},
	}
	p.LeadGen.Fields[models.FieldName] = models.LeadField{Visible: true, Required: true}
	p.LeadGen.Fields[models.FieldEmail] = models.LeadField{Visible: true, Required: true}
	p.Normalize()
	return p
}

func rangeResult(min, max float64) *models.EstimationResult {
	return &models.EstimationResult{
		EstimatedCostRange: "$100 - $150",
		BaseMinCost:        min,
		BaseMaxCost:        max,
	}
}

func newTestFlow(t *testing.T, est Estimator, disp Dispatcher) *Flow {
	t.Helper()
	f := NewFlow(testProfile(), est, disp, nil)
	f.Open()
	return f
}

func TestFlowLifecycle(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150)}
	disp := &stubDispatcher{}
	f := newTestFlow(t, est, disp)

	if f.State() != StateIdle {
		t.Fatalf("expected IDLE after open, got %s", f.State())
	}

	task := models.EstimateTask{Description: "fix shingles", ZipCode: "30301"}
	if err := f.SubmitEstimate(context.Background(), task); err != nil {
		t.Fatalf("SubmitEstimate: %v", err)
	}
	if f.State() != StateResult {
		t.Fatalf("expected RESULT, got %s", f.State())
	}

	if err := f.ProceedToLeadForm(); err != nil {
		t.Fatalf("ProceedToLeadForm: %v", err)
	}
	if f.State() != StateLeadForm {
		t.Fatalf("expected LEAD_FORM, got %s", f.State())
	}

	err := f.Advance(context.Background(), map[string]string{
		"name": "Ada", "email": "ada@example.com",
	})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if f.State() != StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", f.State())
	}
	if disp.calls != 1 {
		t.Errorf("expected 1 dispatch, got %d", disp.calls)
	}

	if err := f.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if f.State() != StateIdle {
		t.Fatalf("expected IDLE after reset, got %s", f.State())
	}
	if f.Snapshot().Result != nil {
		t.Error("reset should clear the result")
	}
}

func TestSubmitEstimateInvalidTask(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150)}
	f := newTestFlow(t, est, nil)

	err := f.SubmitEstimate(context.Background(), models.EstimateTask{ZipCode: "30301"})
	if !errors.Is(err, models.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	if f.State() != StateIdle {
		t.Errorf("validation failure must not change state, got %s", f.State())
	}
	if est.calls != 0 {
		t.Errorf("oracle must not be called for invalid input")
	}
}

func TestSubmitEstimateOracleFailure(t *testing.T) {
	est := &stubEstimator{err: errors.New("model overloaded")}
	f := newTestFlow(t, est, nil)

	err := f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.State() != StateIdle {
		t.Errorf("oracle failure must return flow to IDLE, got %s", f.State())
	}
}

func TestSubmitEstimateWrongState(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150)}
	f := NewFlow(testProfile(), est, nil, nil) // still CLOSED

	err := f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestLateResultAfterCloseIsDropped(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150), release: make(chan struct{})}
	f := newTestFlow(t, est, nil)

	done := make(chan error, 1)
	go func() {
		done <- f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"})
	}()

	// Wait for the flow to enter LOADING, then close it out from under the
	// in-flight call.
	for f.State() != StateLoading {
		time.Sleep(time.Millisecond)
	}
	f.Close()
	close(est.release)

	if err := <-done; err != nil {
		t.Fatalf("dropped result must not surface an error, got %v", err)
	}
	if f.State() != StateClosed {
		t.Errorf("late result must not resurrect the session, got %s", f.State())
	}
	if f.Snapshot().Result != nil {
		t.Error("late result must be discarded")
	}
}

func TestTotalCost(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150)}
	f := newTestFlow(t, est, nil)
	if err := f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"}); err != nil {
		t.Fatalf("SubmitEstimate: %v", err)
	}

	t.Run("base range with no upsells", func(t *testing.T) {
		total := f.TotalCost()
		if total.Display != "$100 - $150" || !total.IsRange {
			t.Errorf("got %+v", total)
		}
	})

	t.Run("selected upsell shifts both bounds", func(t *testing.T) {
		if err := f.ToggleUpsell("u1"); err != nil {
			t.Fatalf("ToggleUpsell: %v", err)
		}
		total := f.TotalCost()
		if total.Display != "$150 - $200" || total.Min != 150 || total.Max != 200 {
			t.Errorf("got %+v", total)
		}
	})

	t.Run("deselect restores base", func(t *testing.T) {
		if err := f.ToggleUpsell("u1"); err != nil {
			t.Fatalf("ToggleUpsell: %v", err)
		}
		if total := f.TotalCost(); total.Display != "$100 - $150" {
			t.Errorf("got %+v", total)
		}
	})

	t.Run("unapproved upsell rejected", func(t *testing.T) {
		if err := f.ToggleUpsell("u2"); !errors.Is(err, ErrUnknownUpsell) {
			t.Errorf("expected ErrUnknownUpsell, got %v", err)
		}
	})
}

func TestTotalCostCollapsesToSingleValue(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
		want     string
	}{
		{"max equals min", 200, 200, "$200"},
		{"max below min", 200, 150, "$200"},
		{"no upper bound", 180, 0, "$180"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := &stubEstimator{result: rangeResult(tt.min, tt.max)}
			f := newTestFlow(t, est, nil)
			if err := f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"}); err != nil {
				t.Fatalf("SubmitEstimate: %v", err)
			}
			total := f.TotalCost()
			if total.Display != tt.want || total.IsRange {
				t.Errorf("got %+v, want display %q", total, tt.want)
			}
		})
	}
}

func TestPriceValue(t *testing.T) {
	tests := []struct {
		display string
		want    float64
	}{
		{"$50 one-time", 50},
		{"from $199.99/mo", 199.99},
		{"call for pricing", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := priceValue(tt.display); got != tt.want {
			t.Errorf("priceValue(%q) = %v, want %v", tt.display, got, tt.want)
		}
	}
}

func TestDispatchFailureStillSucceeds(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150)}
	disp := &stubDispatcher{err: errors.New("webhook down")}
	f := newTestFlow(t, est, disp)

	if err := f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"}); err != nil {
		t.Fatalf("SubmitEstimate: %v", err)
	}
	if err := f.ProceedToLeadForm(); err != nil {
		t.Fatalf("ProceedToLeadForm: %v", err)
	}
	err := f.Advance(context.Background(), map[string]string{"name": "Ada", "email": "a@b.c"})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if f.State() != StateSuccess {
		t.Errorf("dispatch failure must still reach SUCCESS, got %s", f.State())
	}
}

func TestLeadCarriesChosenUpgrades(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150)}
	disp := &stubDispatcher{}
	f := newTestFlow(t, est, disp)

	if err := f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"}); err != nil {
		t.Fatalf("SubmitEstimate: %v", err)
	}
	if err := f.ToggleUpsell("u1"); err != nil {
		t.Fatalf("ToggleUpsell: %v", err)
	}
	if err := f.ProceedToLeadForm(); err != nil {
		t.Fatalf("ProceedToLeadForm: %v", err)
	}
	if err := f.Advance(context.Background(), map[string]string{"name": "Ada", "email": "a@b.c"}); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if disp.lead == nil {
		t.Fatal("lead not dispatched")
	}
	if got := disp.lead.Value(models.FieldNotes); got != "Chosen Upgrades: Gutter Guards" {
		t.Errorf("notes = %q", got)
	}
}

func TestRetreatFromFirstPageReturnsToResult(t *testing.T) {
	est := &stubEstimator{result: rangeResult(100, 150)}
	f := newTestFlow(t, est, nil)
	if err := f.SubmitEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"}); err != nil {
		t.Fatalf("SubmitEstimate: %v", err)
	}
	if err := f.ProceedToLeadForm(); err != nil {
		t.Fatalf("ProceedToLeadForm: %v", err)
	}
	if err := f.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if f.State() != StateResult {
		t.Errorf("expected RESULT, got %s", f.State())
	}
}

func TestSetLanguage(t *testing.T) {
	f := newTestFlow(t, &stubEstimator{}, nil)

	f.SetLanguage("es")
	if f.Language() != "es" {
		t.Errorf("expected es, got %q", f.Language())
	}

	f.SetLanguage("fr") // not supported by this profile
	if f.Language() != "es" {
		t.Errorf("unsupported language must be ignored, got %q", f.Language())
	}
}

func TestQuickQuestion(t *testing.T) {
	f := newTestFlow(t, &stubEstimator{result: rangeResult(10, 0)}, nil)
	if err := f.QuickQuestion("Roof leak?"); err != nil {
		t.Fatalf("QuickQuestion: %v", err)
	}
	f.mu.Lock()
	desc := f.task.Description
	f.mu.Unlock()
	if desc != "Roof leak?" {
		t.Errorf("description = %q", desc)
	}
}

type stubVoice struct{ stops int }

func (s *stubVoice) Stop() { s.stops++ }

func TestCloseStopsVoice(t *testing.T) {
	f := newTestFlow(t, &stubEstimator{}, nil)
	v := &stubVoice{}
	f.AttachVoice(v)
	f.Close()
	if v.stops != 1 {
		t.Errorf("expected voice stopped once, got %d", v.stops)
	}
}
