package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/aiolosmedia/estimateai-api/internal/http/mw"
	"github.com/aiolosmedia/estimateai-api/internal/models"
	"github.com/aiolosmedia/estimateai-api/internal/repository"
	"github.com/aiolosmedia/estimateai-api/internal/voice"
	"github.com/aiolosmedia/estimateai-api/internal/widget"
)

// SessionHandler handles the public widget session endpoints.
type SessionHandler struct {
	registry   *widget.Registry
	repo       repository.WidgetRepository
	estimator  widget.Estimator
	dispatcher widget.Dispatcher
	voice      *voice.Manager // nil when no voice agent is configured
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewSessionHandler creates a new widget session handler.
func NewSessionHandler(registry *widget.Registry, repo repository.WidgetRepository, estimator widget.Estimator, dispatcher widget.Dispatcher, voiceManager *voice.Manager, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		registry:   registry,
		repo:       repo,
		estimator:  estimator,
		dispatcher: dispatcher,
		voice:      voiceManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The widget is embedded on arbitrary host pages.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "session-handler"),
	}
}

// mapFlowError translates flow errors into HTTP errors: state conflicts are
// 409, rejected input is 422, anything else means the oracle failed (502).
func mapFlowError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, widget.ErrInvalidState), errors.Is(err, widget.ErrBusy):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, widget.ErrUnknownUpsell),
		errors.Is(err, widget.ErrFieldRequired),
		errors.Is(err, widget.ErrUnknownChoice),
		errors.Is(err, models.ErrEmptyDescription),
		errors.Is(err, models.ErrEmptyZipCode):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error502BadGateway(err.Error())
	}
}

func (h *SessionHandler) getFlow(id string) (*widget.Flow, error) {
	flow, err := h.registry.Get(id)
	if err != nil {
		return nil, huma.Error404NotFound("session not found")
	}
	return flow, nil
}

// OpenSessionInput represents open session request.
type OpenSessionInput struct {
	Body struct {
		WidgetID string                  `json:"widgetId,omitempty" doc:"Saved widget whose profile drives the session"`
		Profile  *models.BusinessProfile `json:"profile,omitempty" doc:"Inline profile for dashboard previews"`
		Language string                  `json:"language,omitempty" doc:"Initial language code"`
	}
}

// OpenSessionOutput represents open session response.
type OpenSessionOutput struct {
	Body struct {
		SessionID          string            `json:"sessionId" doc:"Session ID for the other widget endpoints"`
		Translations       widget.Bundle     `json:"translations" doc:"UI string bundle for the session language"`
		Languages          []widget.Language `json:"languages,omitempty" doc:"Language switcher options, absent when fewer than two"`
		SuggestedQuestions []string          `json:"suggestedQuestions" doc:"Quick question chips"`
		VoiceAvailable     bool              `json:"voiceAvailable" doc:"Whether the voice relay endpoint is live"`
		Snapshot           widget.Snapshot   `json:"snapshot" doc:"Initial session state"`
	}
}

// OpenSession creates a widget flow session from a saved widget or an inline
// profile and opens it. When the request carries an embed token, the session
// is bound to the token's widget: a token minted for one widget cannot open
// a session for another, and inline profiles are reserved for deployments
// without embed tokens (dashboard previews behind admin auth).
func (h *SessionHandler) OpenSession(ctx context.Context, input *OpenSessionInput) (*OpenSessionOutput, error) {
	if tokenWidgetID := mw.GetWidgetID(ctx); tokenWidgetID != "" {
		if input.Body.Profile != nil {
			return nil, huma.Error403Forbidden("inline profiles are not allowed with an embed token")
		}
		if input.Body.WidgetID == "" {
			input.Body.WidgetID = tokenWidgetID
		} else if input.Body.WidgetID != tokenWidgetID {
			return nil, huma.Error403Forbidden("embed token does not match widget")
		}
	}

	var profile *models.BusinessProfile
	switch {
	case input.Body.WidgetID != "":
		saved, err := h.repo.GetByID(ctx, input.Body.WidgetID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load widget: " + err.Error())
		}
		if saved == nil {
			return nil, huma.Error404NotFound("widget not found")
		}
		p := saved.Profile
		profile = &p
	case input.Body.Profile != nil:
		p := *input.Body.Profile
		profile = &p
	default:
		return nil, huma.Error422UnprocessableEntity("widgetId or profile is required")
	}
	profile.Normalize()

	flow := widget.NewFlow(profile, h.estimator, h.dispatcher, h.logger)
	flow.Open()
	if input.Body.Language != "" {
		flow.SetLanguage(input.Body.Language)
	}
	id := h.registry.Add(flow)

	output := &OpenSessionOutput{}
	output.Body.SessionID = id
	output.Body.Translations = widget.Lookup(flow.Language())
	output.Body.Languages = widget.LanguageOptions(profile)
	output.Body.SuggestedQuestions = profile.SuggestedQuestions
	output.Body.VoiceAvailable = h.voice != nil
	output.Body.Snapshot = flow.Snapshot()
	return output, nil
}

// SessionInput identifies a session by path ID.
type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// SnapshotOutput represents the session state response shared by most
// session endpoints.
type SnapshotOutput struct {
	Body widget.Snapshot
}

// GetSession returns the current session state with derived totals.
func (h *SessionHandler) GetSession(ctx context.Context, input *SessionInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// EstimateInput represents estimate request.
type EstimateInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Description string `json:"description" doc:"What the customer needs done"`
		Urgency     string `json:"urgency,omitempty" doc:"same-day, next-day, within-3-days or flexible"`
		ZipCode     string `json:"zipCode" doc:"Job location zip code"`
		Image       string `json:"image,omitempty" doc:"Optional photo as a base64 data URL"`
		Language    string `json:"language,omitempty" doc:"Overrides the session language for this estimate"`
	}
}

// Estimate submits the customer's task to the oracle and moves the session
// to the result state.
func (h *SessionHandler) Estimate(ctx context.Context, input *EstimateInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}

	task := models.EstimateTask{
		Description: input.Body.Description,
		Urgency:     models.Urgency(input.Body.Urgency),
		ZipCode:     input.Body.ZipCode,
		Image:       input.Body.Image,
		Language:    input.Body.Language,
	}
	if err := flow.SubmitEstimate(ctx, task); err != nil {
		return nil, mapFlowError(err)
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// UpsellInput represents upsell toggle request.
type UpsellInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		UpsellID string `json:"upsellId" minLength:"1" doc:"ID of the approved upsell to toggle"`
	}
}

// ToggleUpsell toggles an approved upsell on the current estimate.
func (h *SessionHandler) ToggleUpsell(ctx context.Context, input *UpsellInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	if err := flow.ToggleUpsell(input.Body.UpsellID); err != nil {
		return nil, mapFlowError(err)
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// Proceed moves from the result view into the lead form wizard.
func (h *SessionHandler) Proceed(ctx context.Context, input *SessionInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	if err := flow.ProceedToLeadForm(); err != nil {
		return nil, mapFlowError(err)
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// AdvanceInput represents wizard advance request.
type AdvanceInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Values map[string]string `json:"values" doc:"Field values for the current wizard page, keyed by field name"`
	}
}

// Advance records the current wizard page and moves forward; on the last
// page the lead is dispatched and the session reaches the success state.
func (h *SessionHandler) Advance(ctx context.Context, input *AdvanceInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	if err := flow.Advance(ctx, input.Body.Values); err != nil {
		return nil, mapFlowError(err)
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// Retreat steps the wizard back one page, or returns to the result view
// from the first page.
func (h *SessionHandler) Retreat(ctx context.Context, input *SessionInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	if err := flow.Retreat(); err != nil {
		return nil, mapFlowError(err)
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// Reset clears the finished session back to the idle prompt.
func (h *SessionHandler) Reset(ctx context.Context, input *SessionInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	if err := flow.Reset(); err != nil {
		return nil, mapFlowError(err)
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// LanguageInput represents language switch request.
type LanguageInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Language string `json:"language" minLength:"1" doc:"Language code from the session's language options"`
	}
}

// LanguageOutput represents language switch response.
type LanguageOutput struct {
	Body struct {
		Translations widget.Bundle   `json:"translations" doc:"UI string bundle for the new language"`
		Snapshot     widget.Snapshot `json:"snapshot" doc:"Session state"`
	}
}

// SetLanguage switches the session language. Unsupported codes leave the
// session unchanged.
func (h *SessionHandler) SetLanguage(ctx context.Context, input *LanguageInput) (*LanguageOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	flow.SetLanguage(input.Body.Language)

	output := &LanguageOutput{}
	output.Body.Translations = widget.Lookup(flow.Language())
	output.Body.Snapshot = flow.Snapshot()
	return output, nil
}

// QuestionInput represents quick question request.
type QuestionInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Question string `json:"question" minLength:"1" doc:"Suggested question chip text"`
	}
}

// QuickQuestion pre-fills the task description from a suggested question.
func (h *SessionHandler) QuickQuestion(ctx context.Context, input *QuestionInput) (*SnapshotOutput, error) {
	flow, err := h.getFlow(input.ID)
	if err != nil {
		return nil, err
	}
	if err := flow.QuickQuestion(input.Body.Question); err != nil {
		return nil, mapFlowError(err)
	}
	return &SnapshotOutput{Body: flow.Snapshot()}, nil
}

// CloseSessionOutput represents close session response.
type CloseSessionOutput struct {
	Body struct {
		Success bool `json:"success" doc:"Whether the session was closed"`
	}
}

// CloseSession tears the session down, stopping any voice relay.
func (h *SessionHandler) CloseSession(ctx context.Context, input *SessionInput) (*CloseSessionOutput, error) {
	h.registry.Remove(input.ID)
	output := &CloseSessionOutput{}
	output.Body.Success = true
	return output, nil
}

// VoiceRelay is a raw HTTP handler that upgrades to a websocket and relays
// voice audio between the browser and the upstream conversational agent.
func (h *SessionHandler) VoiceRelay(w http.ResponseWriter, r *http.Request) {
	if h.voice == nil {
		http.Error(w, `{"error":"voice agent not configured"}`, http.StatusNotImplemented)
		return
	}

	id := chi.URLParam(r, "id")
	flow, err := h.registry.Get(id)
	if err != nil {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("voice websocket upgrade failed", "session_id", id, "error", err)
		return
	}

	sess, err := h.voice.Start(r.Context(), id, flow.Profile(), flow.Language(), conn)
	if err != nil {
		_ = conn.WriteJSON(voice.Message{Type: "error", Error: err.Error()})
		_ = conn.Close()
		return
	}
	flow.AttachVoice(sess)

	defer func() {
		flow.DetachVoice()
		sess.Stop()
		_ = conn.Close()
	}()

	// Unblock the read loop when the upstream leg dies first.
	go func() {
		<-sess.Done()
		_ = conn.Close()
	}()

	for {
		var msg voice.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "audio":
			frame, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				h.logger.Debug("dropping malformed capture frame", "session_id", id, "error", err)
				continue
			}
			sess.HandleCapture(frame)
		case "stop":
			return
		}
	}
}
