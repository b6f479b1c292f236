package handlers

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/danielgtaylor/huma/v2"
	"github.com/oklog/ulid/v2"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// generationOracle is the slice of the generation service these handlers use.
type generationOracle interface {
	AuditProfile(ctx context.Context, url, instruction string) (*models.ProfileAudit, error)
	GenerateColdEmail(ctx context.Context, targetURL string, profile *models.BusinessProfile) (*models.ColdEmailResult, error)
	GenerateProposal(ctx context.Context, targetURL string, profile *models.BusinessProfile) (*models.ProposalResult, error)
	GeneratePricingStrategy(ctx context.Context) (*models.PricingStrategy, error)
}

// collateralStorer is the slice of the storage service these handlers use.
type collateralStorer interface {
	IsEnabled() bool
	StoreCollateral(ctx context.Context, profileName, html string) (string, error)
}

// Collateral is one generated document kept for clipboard export.
type Collateral struct {
	ID          string
	ProfileName string
	Kind        string // outreach, proposal
	HTML        string
	StorageKey  string
	CreatedAt   time.Time
}

// GenerateHandler handles the content generation endpoints. Generated
// documents are held in memory for export and mirrored to object storage
// when that is configured.
type GenerateHandler struct {
	oracle  generationOracle
	storage collateralStorer
	logger  *slog.Logger

	mu         sync.Mutex
	collateral map[string]*Collateral
}

// NewGenerateHandler creates a new generation handler.
func NewGenerateHandler(oracle generationOracle, storage collateralStorer, logger *slog.Logger) *GenerateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateHandler{
		oracle:     oracle,
		storage:    storage,
		logger:     logger.With("component", "generate-handler"),
		collateral: make(map[string]*Collateral),
	}
}

// AuditProfileInput represents profile audit request.
type AuditProfileInput struct {
	Body struct {
		URL       string                  `json:"url" minLength:"1" doc:"Business website to scan"`
		Directive string                  `json:"directive,omitempty" doc:"Optional steering instruction for the audit"`
		Profile   *models.BusinessProfile `json:"profile,omitempty" doc:"Current profile to merge audit results into"`
	}
}

// AuditProfileOutput represents profile audit response.
type AuditProfileOutput struct {
	Body struct {
		Audit   models.ProfileAudit     `json:"audit" doc:"Raw audit produced by the oracle"`
		Profile *models.BusinessProfile `json:"profile,omitempty" doc:"Merged profile, present when one was supplied"`
	}
}

// AuditProfile scans a business website and proposes profile settings.
// When the request carries the current profile the audit is merged into it,
// leaving fields the audit did not mention untouched.
func (h *GenerateHandler) AuditProfile(ctx context.Context, input *AuditProfileInput) (*AuditProfileOutput, error) {
	audit, err := h.oracle.AuditProfile(ctx, input.Body.URL, input.Body.Directive)
	if err != nil {
		return nil, huma.Error502BadGateway("profile audit failed: " + err.Error())
	}

	output := &AuditProfileOutput{}
	output.Body.Audit = *audit
	if input.Body.Profile != nil {
		merged := *input.Body.Profile
		merged.ApplyAudit(audit)
		output.Body.Profile = &merged
	}
	return output, nil
}

// OutreachInput represents cold outreach email request.
type OutreachInput struct {
	Body struct {
		TargetURL string                 `json:"targetUrl" minLength:"1" doc:"Website of the business being pitched"`
		Profile   models.BusinessProfile `json:"profile" doc:"Active profile, used for branding"`
	}
}

// OutreachOutput represents cold outreach email response.
type OutreachOutput struct {
	Body struct {
		Result       models.ColdEmailResult `json:"result" doc:"Generated outreach email"`
		CollateralID string                 `json:"collateralId" doc:"ID for the clipboard export endpoint"`
	}
}

// GenerateOutreach produces a branded cold outreach email for a target
// business website.
func (h *GenerateHandler) GenerateOutreach(ctx context.Context, input *OutreachInput) (*OutreachOutput, error) {
	profile := input.Body.Profile
	profile.Normalize()

	result, err := h.oracle.GenerateColdEmail(ctx, input.Body.TargetURL, &profile)
	if err != nil {
		return nil, huma.Error502BadGateway("outreach generation failed: " + err.Error())
	}

	output := &OutreachOutput{}
	output.Body.Result = *result
	output.Body.CollateralID = h.keepCollateral(ctx, profile.Name, "outreach", result.HTML)
	return output, nil
}

// ProposalInput represents enterprise proposal request.
type ProposalInput struct {
	Body struct {
		TargetURL string                 `json:"targetUrl" minLength:"1" doc:"Website of the business being pitched"`
		Profile   models.BusinessProfile `json:"profile" doc:"Active profile, used for branding"`
	}
}

// ProposalOutput represents enterprise proposal response.
type ProposalOutput struct {
	Body struct {
		Result       models.ProposalResult `json:"result" doc:"Generated proposal"`
		CollateralID string                `json:"collateralId" doc:"ID for the clipboard export endpoint"`
	}
}

// GenerateProposal produces an enterprise proposal document for a target
// business website.
func (h *GenerateHandler) GenerateProposal(ctx context.Context, input *ProposalInput) (*ProposalOutput, error) {
	profile := input.Body.Profile
	profile.Normalize()

	result, err := h.oracle.GenerateProposal(ctx, input.Body.TargetURL, &profile)
	if err != nil {
		return nil, huma.Error502BadGateway("proposal generation failed: " + err.Error())
	}

	output := &ProposalOutput{}
	output.Body.Result = *result
	output.Body.CollateralID = h.keepCollateral(ctx, profile.Name, "proposal", result.HTMLFull)
	return output, nil
}

// PricingOutput represents pricing strategy response.
type PricingOutput struct {
	Body models.PricingStrategy
}

// GeneratePricing produces the three-tier pricing strategy for the
// dashboard's pricing page.
func (h *GenerateHandler) GeneratePricing(ctx context.Context, input *struct{}) (*PricingOutput, error) {
	strategy, err := h.oracle.GeneratePricingStrategy(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway("pricing generation failed: " + err.Error())
	}
	return &PricingOutput{Body: *strategy}, nil
}

// keepCollateral registers a generated document for later export and mirrors
// it to object storage when enabled. Storage failures are logged, the
// in-memory copy still serves exports.
func (h *GenerateHandler) keepCollateral(ctx context.Context, profileName, kind, html string) string {
	c := &Collateral{
		ID:          ulid.Make().String(),
		ProfileName: profileName,
		Kind:        kind,
		HTML:        html,
		CreatedAt:   time.Now(),
	}

	if h.storage != nil && h.storage.IsEnabled() {
		key, err := h.storage.StoreCollateral(ctx, profileName, html)
		if err != nil {
			h.logger.Warn("failed to store collateral", "kind", kind, "error", err)
		} else {
			c.StorageKey = key
		}
	}

	h.mu.Lock()
	h.collateral[c.ID] = c
	h.mu.Unlock()
	return c.ID
}

// getCollateral looks up a kept document by ID.
func (h *GenerateHandler) getCollateral(id string) *Collateral {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collateral[id]
}

// htmlToText flattens an HTML document to plain text for the text/plain
// clipboard representation.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	// Block elements become line breaks so the text keeps its shape.
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, h1, h2, h3, h4, h5, h6, li, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}
