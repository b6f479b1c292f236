package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aiolosmedia/estimateai-api/internal/models"
	"github.com/aiolosmedia/estimateai-api/internal/widget"
)

// llmCaller abstracts the LLM client for testing.
type llmCaller interface {
	Call(ctx context.Context, config *LLMConfig, prompt string, opts LLMCallOptions) (*LLMCallResult, error)
}

// pageFetcher abstracts the audit page fetcher for testing.
type pageFetcher interface {
	Fetch(url string) (*PageSummary, error)
}

// GenerationService is the content generation gateway: every operation
// builds a prompt, calls the oracle in JSON mode, validates the output
// against a declared schema, and unmarshals the typed result.
type GenerationService struct {
	caller     llmCaller
	fetcher    pageFetcher
	cfg        LLMConfig
	auditModel string // heavier model for audit/outreach/proposal/pricing
	logger     *slog.Logger
}

// NewGenerationService creates the generation gateway. cfg.Model is used for
// end-user estimates; auditModel (falling back to cfg.Model) for the slower
// admin-side operations.
func NewGenerationService(caller llmCaller, fetcher pageFetcher, cfg LLMConfig, auditModel string, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditModel == "" {
		auditModel = cfg.Model
	}
	return &GenerationService{
		caller:     caller,
		fetcher:    fetcher,
		cfg:        cfg,
		auditModel: auditModel,
		logger:     logger.With("component", "generation"),
	}
}

// callJSON runs one oracle call and decodes its schema-validated output.
func (s *GenerationService) callJSON(ctx context.Context, model, schemaName, prompt string, out any) error {
	cfg := s.cfg
	cfg.Model = model

	result, err := s.caller.Call(ctx, &cfg, prompt, LLMCallOptions{JSONMode: true, MaxTokens: 8192})
	if err != nil {
		return fmt.Errorf("oracle call failed: %w", err)
	}
	if err := result.TruncationError(); err != nil {
		return err
	}

	doc := stripCodeFences(result.Content)
	if err := validateOutput(schemaName, doc); err != nil {
		s.logger.Warn("oracle output rejected", "schema", schemaName, "error", err)
		return err
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("failed to decode oracle output: %w", err)
	}

	s.logger.Debug("generation complete",
		"schema", schemaName,
		"model", model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
	)
	return nil
}

// AuditProfile performs a comprehensive audit of a business website and
// returns a partial profile the operator can merge. The target page is
// fetched for grounding context; a fetch failure degrades to a URL-only
// audit rather than failing the operation.
func (s *GenerationService) AuditProfile(ctx context.Context, url, instruction string) (*models.ProfileAudit, error) {
	pageContext := ""
	if s.fetcher != nil {
		if summary, err := s.fetcher.Fetch(url); err != nil {
			s.logger.Warn("audit target fetch failed, auditing from URL only", "url", url, "error", err)
		} else {
			pageContext = "\nPAGE CONTENT:\n" + summary.PromptContext()
		}
	}

	prompt := fmt.Sprintf(`You are the Lead Coordinator for a "SaaS Enterprise Crew". Perform a high-speed comprehensive audit of: %s.

USER DIRECTIVE: %s
%s
YOUR CREW MEMBERS:
1. Brand Auditor: Extracts name, industry, primary colors, and visual identity.
2. Market Pricing Analyst: Scans for pricing patterns and sets a competitive labor/service rate structure.
3. Product Strategist: Identifies core service categories and creates a "Manual Pricing Rules" list.
4. Sales Architect: Suggests high-margin "Smart Upsells" that align with their business model.
5. User Experience Specialist: Creates exactly 3 suggested questions that a user might ask the agent. EACH question must be exactly TWO WORDS (e.g., "Price leak?", "Labor rate?", "Emergency repair?").

Return a comprehensive JSON config object with keys: name, industry, primaryColor, services, pricingRules, pricingKnowledgeBase, headerTitle, headerSubtitle, locationContext, hoverTitle, suggestedQuestions, manualPriceList (id/label/price), curatedRecommendations (id/label/description/suggestedPrice/isApproved).`,
		url, instruction, pageContext)

	var audit models.ProfileAudit
	if err := s.callJSON(ctx, s.auditModel, "audit", prompt, &audit); err != nil {
		return nil, err
	}
	audit.SuggestedQuestions = normalizeQuestions(audit.SuggestedQuestions)
	return &audit, nil
}

// Fallbacks when the oracle ignores the two-word question requirement.
var defaultQuestions = [3]string{"Price quote?", "Labor rate?", "Emergency help?"}

// normalizeQuestions forces exactly three non-empty questions of at most
// two words each.
func normalizeQuestions(qs []string) []string {
	out := make([]string, 0, 3)
	for _, q := range qs {
		words := strings.Fields(q)
		if len(words) == 0 {
			continue
		}
		if len(words) > 2 {
			words = words[:2]
		}
		out = append(out, strings.Join(words, " "))
		if len(out) == 3 {
			break
		}
	}
	for len(out) < 3 {
		out = append(out, defaultQuestions[len(out)])
	}
	return out
}

// GenerateColdEmail writes a branded outreach email pitching the estimator
// to a prospect website.
func (s *GenerationService) GenerateColdEmail(ctx context.Context, targetURL string, profile *models.BusinessProfile) (*models.ColdEmailResult, error) {
	strategy := profile.OutreachInstructions
	if strategy == "" {
		strategy = "Focus on speed to quote."
	}

	prompt := fmt.Sprintf(`You are the "Conversion Copywriter" for Aiolos Media pitching to %s.
%s
ADMIN STRATEGY / CUSTOM INSTRUCTIONS: %s

Requirements:
- Email Body: ~300 words.
- html: The full HTML for the email following the template structure.

Return JSON with 'subject', 'html', 'recipientName', and 'businessName'.`,
		targetURL, templateInstructions(profile.EmailTemplate), strategy)

	var email models.ColdEmailResult
	if err := s.callJSON(ctx, s.auditModel, "coldEmail", prompt, &email); err != nil {
		return nil, err
	}
	return &email, nil
}

// GenerateProposal writes a full enterprise proposal for a prospect website,
// including a complete branded HTML rendition.
func (s *GenerationService) GenerateProposal(ctx context.Context, targetURL string, profile *models.BusinessProfile) (*models.ProposalResult, error) {
	strategy := profile.ProposalInstructions
	if strategy == "" {
		strategy = "Generate a high-end enterprise proposal focusing on ROI and conversion metrics."
	}

	prompt := fmt.Sprintf(`You are leading the "Award-Winning Enterprise Proposal Crew".
Target Prospect Website: %s.
%s
ADMIN STRATEGY / CUSTOM INSTRUCTIONS: %s

The Crew must generate:
- title: Catchy proposal name.
- executiveSummary: Vision for %s.
- businessAnalysis: Pain point analysis of their current site.
- solutionArchitecture: Custom estimator features for them.
- roiAnalysis: Calculated revenue lift.
- investmentTableHtml: Clean HTML table for costs.
- requirements: List of assets needed.
- nextSteps: Closing call to action.
- htmlFull: A COMPLETE, stylized HTML document using the template above.

Return the result as a single JSON object.`,
		targetURL, templateInstructions(profile.EmailTemplate), strategy, targetURL)

	var proposal models.ProposalResult
	if err := s.callJSON(ctx, s.auditModel, "proposal", prompt, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GenerateEstimate produces the end-user quote, including the branded
// emailHtml follow-up document.
func (s *GenerationService) GenerateEstimate(ctx context.Context, task models.EstimateTask, profile *models.BusinessProfile) (*models.EstimationResult, error) {
	var knowledge strings.Builder
	if profile.PricingRules != "" {
		fmt.Fprintf(&knowledge, "Pricing Rules: %s\n", profile.PricingRules)
	}
	if profile.PricingKnowledgeBase != "" {
		fmt.Fprintf(&knowledge, "Pricing Knowledge Base: %s\n", profile.PricingKnowledgeBase)
	}
	if len(profile.ManualPriceList) > 0 {
		knowledge.WriteString("Manual Price List:\n")
		for _, item := range profile.ManualPriceList {
			fmt.Fprintf(&knowledge, "- %s: %s\n", item.Label, item.Price)
		}
	}
	if profile.LocationContext != "" {
		fmt.Fprintf(&knowledge, "Location Context: %s\n", profile.LocationContext)
	}
	if profile.CustomAgentInstruction != "" {
		fmt.Fprintf(&knowledge, "Agent Instruction: %s\n", profile.CustomAgentInstruction)
	}

	imageNote := ""
	if task.Image != "" {
		imageNote = "\nThe customer attached a photo of the job; assume it supports their description."
	}

	prompt := fmt.Sprintf(`You are the Estimation Agent for %s.
Task: %s. Zip: %s. Urgency: %s.
%s
%s
%s
Respond in %s.
Provide a detailed estimate as JSON with keys: estimatedCostRange, baseMinCost, baseMaxCost, laborEstimate, materialsEstimate, timeEstimate, tasks, recommendations, caveats, upsellServices, emailHtml.
ALSO, generate a COMPLETE 'emailHtml' that follows the Mandatory Branding structure above.
The email content should be a professional response to the customer's quote request, including the cost breakdown.`,
		profile.Name, task.Description, task.ZipCode, task.Urgency,
		knowledge.String(), templateInstructions(profile.EmailTemplate), imageNote,
		widget.LanguageName(task.Language))

	var result models.EstimationResult
	if err := s.callJSON(ctx, s.cfg.Model, "estimate", prompt, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GeneratePricingStrategy designs three pricing tiers for selling the
// estimator itself.
func (s *GenerationService) GeneratePricingStrategy(ctx context.Context) (*models.PricingStrategy, error) {
	prompt := `Design 3 pricing tiers for an AI estimation widget SaaS business. Include a detailed analysis string and an array of exactly 3 plan objects, each with: name, setupFee, monthlySubscription, features, targetAudience, strategicValue. Return a single JSON object with keys 'analysis' and 'plans'.`

	var strategy models.PricingStrategy
	if err := s.callJSON(ctx, s.auditModel, "pricing", prompt, &strategy); err != nil {
		return nil, err
	}
	return &strategy, nil
}
