package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

type stubCaller struct {
	content string
	err     error
	prompt  string
	model   string
	finish  string
}

func (s *stubCaller) Call(ctx context.Context, config *LLMConfig, prompt string, opts LLMCallOptions) (*LLMCallResult, error) {
	s.prompt = prompt
	s.model = config.Model
	if s.err != nil {
		return nil, s.err
	}
	finish := s.finish
	if finish == "" {
		finish = "stop"
	}
	return &LLMCallResult{Content: s.content, FinishReason: finish, Model: config.Model, MaxTokens: opts.MaxTokens}, nil
}

type stubFetcher struct {
	summary *PageSummary
	err     error
}

func (s *stubFetcher) Fetch(url string) (*PageSummary, error) {
	return s.summary, s.err
}

const validEstimateJSON = `{
	"estimatedCostRange": "$100 - $150",
	"baseMinCost": 100,
	"baseMaxCost": 150,
	"laborEstimate": "2 hours",
	"materialsEstimate": "$40",
	"timeEstimate": "Same day",
	"tasks": ["inspect", "repair"],
	"recommendations": ["seal the joint"],
	"caveats": ["hidden damage extra"],
	"upsellServices": ["annual check"],
	"emailHtml": "<html></html>"
}`

func newGenService(caller llmCaller, fetcher pageFetcher) *GenerationService {
	cfg := LLMConfig{Provider: ProviderOpenAI, APIKey: "k", Model: "fast-model"}
	return NewGenerationService(caller, fetcher, cfg, "pro-model", nil)
}

func TestGenerateEstimate(t *testing.T) {
	caller := &stubCaller{content: validEstimateJSON}
	svc := newGenService(caller, nil)

	profile := &models.BusinessProfile{
		Name:         "Bright Roofing",
		PricingRules: "$95/hr",
		ManualPriceList: []models.ManualPriceItem{
			{ID: "1", Label: "Shingle patch", Price: "$120"},
		},
	}
	task := models.EstimateTask{Description: "leaky roof", ZipCode: "30301", Urgency: models.UrgencySameDay, Language: "es"}

	result, err := svc.GenerateEstimate(context.Background(), task, profile)
	if err != nil {
		t.Fatalf("GenerateEstimate: %v", err)
	}
	if result.BaseMinCost != 100 || result.BaseMaxCost != 150 {
		t.Errorf("unexpected result: %+v", result)
	}
	if caller.model != "fast-model" {
		t.Errorf("estimate should use the fast model, got %q", caller.model)
	}
	for _, want := range []string{"leaky roof", "30301", "Shingle patch", "$95/hr", "Español", "MANDATORY HTML STRUCTURE"} {
		if !strings.Contains(caller.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateEstimateRejectsMalformedOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		finish  string
	}{
		{"missing required fields", `{"estimatedCostRange": "$1"}`, ""},
		{"wrong type", strings.Replace(validEstimateJSON, "100,", `"100",`, 1), ""},
		{"not json", "here is your estimate!", ""},
		{"truncated", validEstimateJSON[:50], "length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &stubCaller{content: tt.content, finish: tt.finish}
			svc := newGenService(caller, nil)
			_, err := svc.GenerateEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"}, &models.BusinessProfile{})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerateEstimateStripsCodeFences(t *testing.T) {
	caller := &stubCaller{content: "```json\n" + validEstimateJSON + "\n```"}
	svc := newGenService(caller, nil)
	result, err := svc.GenerateEstimate(context.Background(), models.EstimateTask{Description: "x", ZipCode: "1"}, &models.BusinessProfile{})
	if err != nil {
		t.Fatalf("GenerateEstimate: %v", err)
	}
	if result.EstimatedCostRange != "$100 - $150" {
		t.Errorf("unexpected result: %+v", result)
	}
}

const validAuditJSON = `{
	"name": "Acme Plumbing",
	"industry": "Plumbing",
	"primaryColor": "#0044cc",
	"services": ["Drains"],
	"pricingRules": "hourly",
	"pricingKnowledgeBase": "base",
	"suggestedQuestions": ["Price for a full drain cleaning?", "Labor rate?"],
	"manualPriceList": [],
	"curatedRecommendations": []
}`

func TestAuditProfile(t *testing.T) {
	caller := &stubCaller{content: validAuditJSON}
	fetcher := &stubFetcher{summary: &PageSummary{Title: "Acme Plumbing | Home", Text: "We fix drains."}}
	svc := newGenService(caller, fetcher)

	audit, err := svc.AuditProfile(context.Background(), "https://acme.example", "focus on drains")
	if err != nil {
		t.Fatalf("AuditProfile: %v", err)
	}

	if audit.Name == nil || *audit.Name != "Acme Plumbing" {
		t.Errorf("unexpected audit: %+v", audit)
	}
	if caller.model != "pro-model" {
		t.Errorf("audit should use the heavier model, got %q", caller.model)
	}
	if !strings.Contains(caller.prompt, "Acme Plumbing | Home") {
		t.Error("prompt missing fetched page context")
	}
	if !strings.Contains(caller.prompt, "focus on drains") {
		t.Error("prompt missing user directive")
	}

	// Questions normalized: two words max, exactly three entries.
	if len(audit.SuggestedQuestions) != 3 {
		t.Fatalf("expected 3 questions, got %v", audit.SuggestedQuestions)
	}
	if audit.SuggestedQuestions[0] != "Price for" {
		t.Errorf("question not trimmed to two words: %q", audit.SuggestedQuestions[0])
	}
}

func TestAuditProfileSurvivesFetchFailure(t *testing.T) {
	caller := &stubCaller{content: validAuditJSON}
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	svc := newGenService(caller, fetcher)

	if _, err := svc.AuditProfile(context.Background(), "https://acme.example", ""); err != nil {
		t.Fatalf("fetch failure must degrade, not fail: %v", err)
	}
}

func TestNormalizeQuestions(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"already valid", []string{"Price leak?", "Labor rate?", "Emergency repair?"}, []string{"Price leak?", "Labor rate?", "Emergency repair?"}},
		{"long questions trimmed", []string{"How much does a repair cost?", "b c", "d e"}, []string{"How much", "b c", "d e"}},
		{"padded to three", []string{"Price leak?"}, []string{"Price leak?", "Labor rate?", "Emergency help?"}},
		{"empty entries dropped", []string{"", "  ", "Price leak?"}, []string{"Price leak?", "Labor rate?", "Emergency help?"}},
		{"extra entries dropped", []string{"a b", "c d", "e f", "g h"}, []string{"a b", "c d", "e f"}},
		{"nil input", nil, []string{"Price quote?", "Labor rate?", "Emergency help?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeQuestions(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestGenerateColdEmail(t *testing.T) {
	caller := &stubCaller{content: `{"subject": "Quote faster", "html": "<html></html>", "recipientName": "Pat", "businessName": "Acme"}`}
	svc := newGenService(caller, nil)

	profile := &models.BusinessProfile{OutreachInstructions: "mention their slow contact form"}
	email, err := svc.GenerateColdEmail(context.Background(), "https://acme.example", profile)
	if err != nil {
		t.Fatalf("GenerateColdEmail: %v", err)
	}
	if email.Subject != "Quote faster" {
		t.Errorf("unexpected email: %+v", email)
	}
	if !strings.Contains(caller.prompt, "mention their slow contact form") {
		t.Error("prompt missing outreach instructions")
	}
}

func TestGeneratePricingStrategyRequiresThreePlans(t *testing.T) {
	plan := `{"name": "Starter", "setupFee": "$0", "monthlySubscription": "$49", "features": ["widget"], "targetAudience": "solo", "strategicValue": "entry"}`

	t.Run("three plans accepted", func(t *testing.T) {
		caller := &stubCaller{content: `{"analysis": "a", "plans": [` + plan + `,` + plan + `,` + plan + `]}`}
		svc := newGenService(caller, nil)
		strategy, err := svc.GeneratePricingStrategy(context.Background())
		if err != nil {
			t.Fatalf("GeneratePricingStrategy: %v", err)
		}
		if len(strategy.Plans) != 3 {
			t.Errorf("expected 3 plans, got %d", len(strategy.Plans))
		}
	})

	t.Run("two plans rejected", func(t *testing.T) {
		caller := &stubCaller{content: `{"analysis": "a", "plans": [` + plan + `,` + plan + `]}`}
		svc := newGenService(caller, nil)
		if _, err := svc.GeneratePricingStrategy(context.Background()); err == nil {
			t.Fatal("expected schema rejection for two plans")
		}
	})
}

func TestTemplateInstructions(t *testing.T) {
	t.Run("nil template uses fallback branding", func(t *testing.T) {
		got := templateInstructions(nil)
		if !strings.Contains(got, "Instant Quotes") {
			t.Error("fallback promo title missing")
		}
	})

	t.Run("profile template parameterizes the skeleton", func(t *testing.T) {
		got := templateInstructions(&models.EmailTemplate{
			HeaderBgColor: "#112233",
			PromoTitle:    "Roofs Done Right",
			MenuItems:     []models.MenuItem{{Label: "Book", URL: "https://x.example/book"}},
		})
		for _, want := range []string{"#112233", "Roofs Done Right", "https://x.example/book", "MANDATORY HTML STRUCTURE"} {
			if !strings.Contains(got, want) {
				t.Errorf("instructions missing %q", want)
			}
		}
	})
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
