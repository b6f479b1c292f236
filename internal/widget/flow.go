package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// State is the estimation flow state of one widget session.
type State string

const (
	StateClosed   State = "CLOSED"
	StateIdle     State = "IDLE"
	StateLoading  State = "LOADING"
	StateResult   State = "RESULT"
	StateLeadForm State = "LEAD_FORM"
	StateSuccess  State = "SUCCESS"
)

var (
	ErrInvalidState  = errors.New("operation not valid in current state")
	ErrBusy          = errors.New("an estimate is already in progress")
	ErrUnknownUpsell = errors.New("unknown upsell id")
	ErrFieldRequired = errors.New("required field is empty")
	ErrUnknownChoice = errors.New("value is not one of the offered choices")
)

// Estimator produces a quote for a task. Implemented by the generation
// service; tests substitute stubs.
type Estimator interface {
	GenerateEstimate(ctx context.Context, task models.EstimateTask, profile *models.BusinessProfile) (*models.EstimationResult, error)
}

// Dispatcher delivers a captured lead to the configured channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, lead *models.Lead, result *models.EstimationResult, profile *models.BusinessProfile) error
}

// VoiceStopper is the part of a voice session the flow needs for teardown.
type VoiceStopper interface {
	Stop()
}

// Rotating status line shown while the oracle works.
var loadingMessages = [...]string{
	"Visual Inspector scanning...",
	"Pricing Analyst calculating...",
	"Orchestrator finalizing...",
}

const (
	loadingMessageInterval = 1800 * time.Millisecond
	initialLoadingMessage  = "Assembling Agent Crew..."
	dispatchLoadingMessage = "Dispatching..."
)

// Flow is the state machine of one widget session. All methods are safe for
// concurrent use; blocking oracle and dispatch calls release the lock so the
// session can still be inspected or closed while they run.
type Flow struct {
	mu sync.Mutex

	profile    *models.BusinessProfile
	estimator  Estimator
	dispatcher Dispatcher
	logger     *slog.Logger

	state          State
	language       string
	task           models.EstimateTask
	result         *models.EstimationResult
	selected       map[string]bool
	wizard         *Wizard
	loadingMessage string
	busy           bool
	// generation increments on Reset/Close; results of calls started under
	// an older generation are dropped on return.
	generation uint64
	voice      VoiceStopper
	lastActive time.Time
}

// NewFlow creates a session flow in the CLOSED state.
func NewFlow(profile *models.BusinessProfile, estimator Estimator, dispatcher Dispatcher, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		profile:    profile,
		estimator:  estimator,
		dispatcher: dispatcher,
		logger:     logger.With("component", "widget-flow"),
		state:      StateClosed,
		language:   profile.DefaultLanguage,
		selected:   make(map[string]bool),
		lastActive: time.Now(),
	}
}

// Open transitions CLOSED -> IDLE. Opening an already open flow is a no-op.
func (f *Flow) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	if f.state == StateClosed {
		f.state = StateIdle
	}
}

// Close tears the session down from any state, including an in-flight
// estimate (its result is dropped on return). Any active voice session is
// stopped.
func (f *Flow) Close() {
	f.mu.Lock()
	voice := f.voice
	f.voice = nil
	f.generation++
	f.state = StateClosed
	f.task = models.EstimateTask{}
	f.result = nil
	f.selected = make(map[string]bool)
	f.wizard = nil
	f.touch()
	f.mu.Unlock()

	if voice != nil {
		voice.Stop()
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetLanguage selects the session language for UI strings and generation.
func (f *Flow) SetLanguage(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	for _, lang := range f.profile.SupportedLanguages {
		if lang == code {
			f.language = code
			return
		}
	}
}

// Language returns the active session language.
func (f *Flow) Language() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.language
}

// QuickQuestion prefills the task description from a suggested question.
func (f *Flow) QuickQuestion(q string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	if f.state != StateIdle {
		return ErrInvalidState
	}
	f.task.Description = q
	return nil
}

// AttachVoice registers the session's active voice handle so Close can tear
// it down.
func (f *Flow) AttachVoice(v VoiceStopper) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voice = v
}

// DetachVoice clears the registered voice handle.
func (f *Flow) DetachVoice() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voice = nil
}

// Profile returns the profile this session runs against.
func (f *Flow) Profile() *models.BusinessProfile {
	return f.profile
}

// SubmitEstimate validates the task and runs the estimate oracle:
// IDLE -> LOADING -> RESULT on success, back to IDLE on failure. While the
// oracle runs a rotating status message ticks every 1.8s. A second submit
// while one is in flight returns ErrBusy.
func (f *Flow) SubmitEstimate(ctx context.Context, task models.EstimateTask) error {
	f.mu.Lock()
	f.touch()
	if f.state != StateIdle {
		f.mu.Unlock()
		return ErrInvalidState
	}
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if task.Language == "" {
		task.Language = f.language
	}
	if err := task.Validate(); err != nil {
		f.mu.Unlock()
		return err
	}

	f.busy = true
	gen := f.generation
	f.state = StateLoading
	f.loadingMessage = initialLoadingMessage
	f.task = task
	stop := f.startLoadingTicker(gen)
	f.mu.Unlock()

	result, err := f.estimator.GenerateEstimate(ctx, task, f.profile)
	stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.generation != gen {
		// Session was closed or reset while the oracle worked; the caller
		// is gone, drop the outcome.
		f.logger.Debug("dropping stale estimate result")
		return nil
	}
	if err != nil {
		f.state = StateIdle
		return fmt.Errorf("estimate generation failed: %w", err)
	}
	f.result = result
	f.selected = make(map[string]bool)
	f.state = StateResult
	return nil
}

// startLoadingTicker rotates the loading message until stopped. The returned
// stop function is idempotent.
func (f *Flow) startLoadingTicker(gen uint64) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(loadingMessageInterval)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				i++
				f.mu.Lock()
				if f.generation == gen && f.state == StateLoading {
					f.loadingMessage = loadingMessages[i%len(loadingMessages)]
				}
				f.mu.Unlock()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ToggleUpsell adds or removes an approved upsell from the quote. Only valid
// while a result is shown.
func (f *Flow) ToggleUpsell(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	if f.state != StateResult {
		return ErrInvalidState
	}
	for _, u := range f.profile.ApprovedUpsells() {
		if u.ID == id {
			if f.selected[id] {
				delete(f.selected, id)
			} else {
				f.selected[id] = true
			}
			return nil
		}
	}
	return ErrUnknownUpsell
}

// SelectedUpsells returns the labels of the currently chosen upsells in
// catalogue order.
func (f *Flow) SelectedUpsells() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectedLabelsLocked()
}

func (f *Flow) selectedLabelsLocked() []string {
	var labels []string
	for _, u := range f.profile.ApprovedUpsells() {
		if f.selected[u.ID] {
			labels = append(labels, u.Label)
		}
	}
	return labels
}

// Total is the derived quote total including chosen upsells.
type Total struct {
	Display string  `json:"display"`
	IsRange bool    `json:"isRange"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

var priceRe = regexp.MustCompile(`\d+(\.\d+)?`)

// priceValue extracts the first decimal number from a display price, 0 when
// none is present.
func priceValue(display string) float64 {
	m := priceRe.FindString(display)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// TotalCost derives the quote total: the base range shifted up by the sum of
// the selected upsell prices. The display collapses to a single value when
// the range is degenerate (max <= min, or the oracle gave no upper bound).
func (f *Flow) TotalCost() Total {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalCostLocked()
}

func (f *Flow) totalCostLocked() Total {
	if f.result == nil {
		return Total{}
	}

	var additional float64
	for _, u := range f.profile.ApprovedUpsells() {
		if f.selected[u.ID] {
			additional += priceValue(u.SuggestedPrice)
		}
	}

	min := f.result.BaseMinCost + additional
	max := f.result.BaseMaxCost + additional

	if max <= min || f.result.BaseMaxCost <= 0 {
		return Total{Display: formatUSD(min), Min: min, Max: min}
	}
	return Total{
		Display: formatUSD(min) + " - " + formatUSD(max),
		IsRange: true,
		Min:     min,
		Max:     max,
	}
}

// formatUSD renders a whole-dollar amount with thousands separators.
func formatUSD(amount float64) string {
	n := int64(amount + 0.5)
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ProceedToLeadForm moves RESULT -> LEAD_FORM and (re)starts the wizard at
// its first page.
func (f *Flow) ProceedToLeadForm() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	if f.state != StateResult {
		return ErrInvalidState
	}
	f.wizard = NewWizard(&f.profile.LeadGen)
	f.state = StateLeadForm
	return nil
}

// Advance records the supplied values, validates the current wizard page, and
// either moves to the next page or, on the last page, submits the lead.
// Dispatch failures are logged and swallowed: the end user always reaches
// SUCCESS once their input validates.
func (f *Flow) Advance(ctx context.Context, values map[string]string) error {
	f.mu.Lock()
	f.touch()
	if f.state != StateLeadForm || f.wizard == nil {
		f.mu.Unlock()
		return ErrInvalidState
	}

	f.wizard.Record(values)
	if err := f.wizard.ValidatePage(&f.profile.LeadGen, f.profile.Services); err != nil {
		f.mu.Unlock()
		return err
	}
	if !f.wizard.LastPage() {
		f.wizard.Advance()
		f.mu.Unlock()
		return nil
	}

	// Final page: capture the lead and dispatch it.
	lead := &models.Lead{
		ProfileName: f.profile.Name,
		Values:      f.wizard.Values(),
		Result:      f.result,
	}
	lead.Finalize(f.selectedLabelsLocked())

	gen := f.generation
	result := f.result
	f.state = StateLoading
	f.loadingMessage = dispatchLoadingMessage
	f.mu.Unlock()

	if f.dispatcher != nil {
		if err := f.dispatcher.Dispatch(ctx, lead, result, f.profile); err != nil {
			f.logger.Error("lead dispatch failed", "error", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation != gen {
		return nil
	}
	f.state = StateSuccess
	return nil
}

// Retreat steps the wizard back one page, or returns to the result view from
// the first page.
func (f *Flow) Retreat() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	if f.state != StateLeadForm || f.wizard == nil {
		return ErrInvalidState
	}
	if !f.wizard.Retreat() {
		f.wizard = nil
		f.state = StateResult
	}
	return nil
}

// Reset returns to IDLE from a terminal or result state, clearing the task,
// result, and selections.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	if f.state != StateSuccess && f.state != StateResult {
		return ErrInvalidState
	}
	f.generation++
	f.task = models.EstimateTask{}
	f.result = nil
	f.selected = make(map[string]bool)
	f.wizard = nil
	f.state = StateIdle
	return nil
}

// Snapshot is a point-in-time view of the session for the state endpoint.
type Snapshot struct {
	State          State                    `json:"state"`
	Language       string                   `json:"language"`
	LoadingMessage string                   `json:"loadingMessage,omitempty"`
	Result         *models.EstimationResult `json:"result,omitempty"`
	SelectedIDs    []string                 `json:"selectedUpsellIds"`
	Total          *Total                   `json:"total,omitempty"`
	WizardStep     int                      `json:"wizardStep"`
	WizardPages    int                      `json:"wizardPages"`
	StepInfo       string                   `json:"stepInfo,omitempty"`
}

// Snapshot returns the current view of the session.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		State:       f.state,
		Language:    f.language,
		SelectedIDs: []string{},
	}
	for _, u := range f.profile.ApprovedUpsells() {
		if f.selected[u.ID] {
			snap.SelectedIDs = append(snap.SelectedIDs, u.ID)
		}
	}
	if f.state == StateLoading {
		snap.LoadingMessage = f.loadingMessage
	}
	if f.result != nil {
		snap.Result = f.result
		total := f.totalCostLocked()
		snap.Total = &total
	}
	if f.wizard != nil {
		snap.WizardStep = f.wizard.Step()
		snap.WizardPages = f.wizard.PageCount()
		snap.StepInfo = Lookup(f.language).Step(f.wizard.Step()+1, f.wizard.PageCount())
	}
	return snap
}

// LastActive reports when the session was last touched by a client action.
func (f *Flow) LastActive() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActive
}

func (f *Flow) touch() {
	f.lastActive = time.Now()
}
