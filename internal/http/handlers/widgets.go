package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aiolosmedia/estimateai-api/internal/http/mw"
	"github.com/aiolosmedia/estimateai-api/internal/models"
	"github.com/aiolosmedia/estimateai-api/internal/repository"
)

// WidgetsHandler handles widget profile CRUD and embed snippet endpoints.
type WidgetsHandler struct {
	repo    repository.WidgetRepository
	tokens  *mw.EmbedTokens
	baseURL string
}

// NewWidgetsHandler creates a new widgets handler.
func NewWidgetsHandler(repo repository.WidgetRepository, tokens *mw.EmbedTokens, baseURL string) *WidgetsHandler {
	return &WidgetsHandler{repo: repo, tokens: tokens, baseURL: strings.TrimRight(baseURL, "/")}
}

// WidgetOutput represents a saved widget in API responses.
type WidgetOutput struct {
	ID        string                 `json:"id" doc:"Widget ID"`
	UserID    string                 `json:"user_id" doc:"Owner user ID"`
	Name      string                 `json:"name" doc:"Widget display name"`
	Profile   models.BusinessProfile `json:"profile" doc:"Business profile driving the widget"`
	CreatedAt string                 `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt string                 `json:"updated_at" doc:"Last update timestamp"`
}

func widgetToOutput(w *models.SavedWidget) WidgetOutput {
	return WidgetOutput{
		ID:        w.ID,
		UserID:    w.UserID,
		Name:      w.Name,
		Profile:   w.Profile,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	}
}

// ListWidgetsOutput represents list widgets response.
type ListWidgetsOutput struct {
	Body struct {
		Widgets []WidgetOutput `json:"widgets" doc:"List of saved widgets"`
	}
}

// ListWidgets returns all saved widgets, most recently updated first.
func (h *WidgetsHandler) ListWidgets(ctx context.Context, input *struct{}) (*ListWidgetsOutput, error) {
	widgets, err := h.repo.ListByUserID(ctx, models.PlaceholderUserID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list widgets: " + err.Error())
	}

	output := &ListWidgetsOutput{}
	output.Body.Widgets = []WidgetOutput{}
	for _, w := range widgets {
		output.Body.Widgets = append(output.Body.Widgets, widgetToOutput(w))
	}
	return output, nil
}

// GetWidgetInput represents get widget request.
type GetWidgetInput struct {
	ID string `path:"id" doc:"Widget ID"`
}

// GetWidgetOutput represents get widget response.
type GetWidgetOutput struct {
	Body WidgetOutput
}

// GetWidget retrieves a single widget.
func (h *WidgetsHandler) GetWidget(ctx context.Context, input *GetWidgetInput) (*GetWidgetOutput, error) {
	widget, err := h.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get widget: " + err.Error())
	}
	if widget == nil {
		return nil, huma.Error404NotFound("widget not found")
	}
	return &GetWidgetOutput{Body: widgetToOutput(widget)}, nil
}

// CreateWidgetInput represents create widget request.
type CreateWidgetInput struct {
	Body struct {
		Name    string                 `json:"name" minLength:"1" doc:"Widget display name"`
		Profile models.BusinessProfile `json:"profile" doc:"Business profile driving the widget"`
	}
}

// CreateWidgetOutput represents create widget response.
type CreateWidgetOutput struct {
	Body WidgetOutput
}

// CreateWidget persists a new widget profile.
func (h *WidgetsHandler) CreateWidget(ctx context.Context, input *CreateWidgetInput) (*CreateWidgetOutput, error) {
	widget := &models.SavedWidget{
		Name:    input.Body.Name,
		Profile: input.Body.Profile,
	}
	if err := h.repo.Create(ctx, widget); err != nil {
		return nil, huma.Error500InternalServerError("failed to create widget: " + err.Error())
	}
	return &CreateWidgetOutput{Body: widgetToOutput(widget)}, nil
}

// UpdateWidgetInput represents update widget request.
type UpdateWidgetInput struct {
	ID   string `path:"id" doc:"Widget ID"`
	Body struct {
		Name    string                 `json:"name" minLength:"1" doc:"Widget display name"`
		Profile models.BusinessProfile `json:"profile" doc:"Business profile driving the widget"`
	}
}

// UpdateWidgetOutput represents update widget response.
type UpdateWidgetOutput struct {
	Body WidgetOutput
}

// UpdateWidget replaces a widget's name and profile.
func (h *WidgetsHandler) UpdateWidget(ctx context.Context, input *UpdateWidgetInput) (*UpdateWidgetOutput, error) {
	widget := &models.SavedWidget{
		ID:      input.ID,
		Name:    input.Body.Name,
		Profile: input.Body.Profile,
	}
	if err := h.repo.Update(ctx, widget); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, huma.Error404NotFound("widget not found")
		}
		return nil, huma.Error500InternalServerError("failed to update widget: " + err.Error())
	}
	return &UpdateWidgetOutput{Body: widgetToOutput(widget)}, nil
}

// DeleteWidgetInput represents delete widget request.
type DeleteWidgetInput struct {
	ID string `path:"id" doc:"Widget ID"`
}

// DeleteWidgetOutput represents delete widget response.
type DeleteWidgetOutput struct {
	Body struct {
		Success bool `json:"success" doc:"Whether the widget was deleted"`
	}
}

// DeleteWidget removes a widget.
func (h *WidgetsHandler) DeleteWidget(ctx context.Context, input *DeleteWidgetInput) (*DeleteWidgetOutput, error) {
	if err := h.repo.Delete(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete widget: " + err.Error())
	}
	output := &DeleteWidgetOutput{}
	output.Body.Success = true
	return output, nil
}

// EmbedSnippetInput represents embed snippet request.
type EmbedSnippetInput struct {
	ID string `path:"id" doc:"Widget ID"`
}

// EmbedSnippetOutput represents embed snippet response.
type EmbedSnippetOutput struct {
	Body struct {
		Snippet string `json:"snippet" doc:"HTML bootstrap snippet to paste into the host page"`
		Token   string `json:"token,omitempty" doc:"Signed embed token referenced by the snippet"`
	}
}

// EmbedSnippet renders the copy-paste bootstrap snippet for a widget. The
// snippet exposes the profile as a page global, flags widget-only mode and
// carries a signed embed token for the session endpoints.
func (h *WidgetsHandler) EmbedSnippet(ctx context.Context, input *EmbedSnippetInput) (*EmbedSnippetOutput, error) {
	widget, err := h.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get widget: " + err.Error())
	}
	if widget == nil {
		return nil, huma.Error404NotFound("widget not found")
	}

	profileJSON, err := json.MarshalIndent(widget.Profile, "  ", "  ")
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode profile: " + err.Error())
	}

	var token string
	if h.tokens.Enabled() {
		token, err = h.tokens.Issue(widget.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to sign embed token: " + err.Error())
		}
	}

	output := &EmbedSnippetOutput{}
	output.Body.Snippet = embedSnippet(h.baseURL, widget.ID, string(profileJSON), token)
	output.Body.Token = token
	return output, nil
}

func embedSnippet(baseURL, widgetID, profileJSON, token string) string {
	var b strings.Builder
	b.WriteString("<!-- EstimateAI Widget Bootstrap -->\n")
	b.WriteString("<div id=\"estimate-ai-root\"></div>\n")
	b.WriteString("<script>\n")
	fmt.Fprintf(&b, "  window.ESTIMATE_AI_CONFIG = %s;\n", profileJSON)
	b.WriteString("  window.ESTIMATE_AI_WIDGET_ONLY = true;\n")
	fmt.Fprintf(&b, "  window.ESTIMATE_AI_API = %q;\n", baseURL)
	fmt.Fprintf(&b, "  window.ESTIMATE_AI_WIDGET_ID = %q;\n", widgetID)
	if token != "" {
		fmt.Fprintf(&b, "  window.ESTIMATE_AI_TOKEN = %q;\n", token)
	}
	b.WriteString("</script>\n")
	fmt.Fprintf(&b, "<script src=%q type=\"module\"></script>", baseURL+"/index.js")
	return b.String()
}
