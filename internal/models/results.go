package models

import (
	"errors"
	"strings"
)

// Urgency represents how soon the end user needs the work done.
type Urgency string

const (
	UrgencySameDay     Urgency = "same-day"
	UrgencyNextDay     Urgency = "next-day"
	UrgencyWithin3Days Urgency = "within-3-days"
	UrgencyFlexible    Urgency = "flexible"
)

// EstimateTask is the end user's quote request.
type EstimateTask struct {
	Description string  `json:"description"`
	Urgency     Urgency `json:"urgency"`
	ZipCode     string  `json:"zipCode"`
	Image       string  `json:"image,omitempty"`    // base64 data URL
	Language    string  `json:"language,omitempty"` // overrides the session language
}

var (
	ErrEmptyDescription = errors.New("task description is required")
	ErrEmptyZipCode     = errors.New("zip code is required")
)

// Validate checks the task and fills the urgency default.
func (t *EstimateTask) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.ZipCode) == "" {
		return ErrEmptyZipCode
	}
	switch t.Urgency {
	case UrgencySameDay, UrgencyNextDay, UrgencyWithin3Days, UrgencyFlexible:
	default:
		t.Urgency = UrgencyWithin3Days
	}
	return nil
}

// EstimationResult is the oracle's quote for one task.
type EstimationResult struct {
	EstimatedCostRange string   `json:"estimatedCostRange"`
	BaseMinCost        float64  `json:"baseMinCost"`
	BaseMaxCost        float64  `json:"baseMaxCost"`
	LaborEstimate      string   `json:"laborEstimate"`
	MaterialsEstimate  string   `json:"materialsEstimate"`
	TimeEstimate       string   `json:"timeEstimate"`
	Tasks              []string `json:"tasks"`
	Recommendations    []string `json:"recommendations"`
	Caveats            []string `json:"caveats"`
	UpsellServices     []string `json:"upsellServices"`
	EmailHTML          string   `json:"emailHtml"`
}

// ColdEmailResult is a generated outreach email for a prospect site.
type ColdEmailResult struct {
	Subject       string `json:"subject"`
	HTML          string `json:"html"`
	RecipientName string `json:"recipientName"`
	BusinessName  string `json:"businessName"`
}

// ProposalResult is a generated multi-section business proposal.
type ProposalResult struct {
	Title               string   `json:"title"`
	ExecutiveSummary    string   `json:"executiveSummary"`
	BusinessAnalysis    string   `json:"businessAnalysis"`
	SolutionArchitecture string  `json:"solutionArchitecture"`
	ROIAnalysis         string   `json:"roiAnalysis"`
	InvestmentTableHTML string   `json:"investmentTableHtml"`
	Requirements        []string `json:"requirements"`
	NextSteps           string   `json:"nextSteps"`
	HTMLFull            string   `json:"htmlFull,omitempty"`
}

// PricingPlan is one tier in a generated pricing strategy.
type PricingPlan struct {
	Name                string   `json:"name"`
	SetupFee            string   `json:"setupFee"`
	MonthlySubscription string   `json:"monthlySubscription"`
	Features            []string `json:"features"`
	TargetAudience      string   `json:"targetAudience"`
	StrategicValue      string   `json:"strategicValue"`
}

// PricingStrategy is the oracle's three-tier pricing recommendation.
type PricingStrategy struct {
	Analysis string        `json:"analysis"`
	Plans    []PricingPlan `json:"plans"`
}

// Lead is one captured lead: the ten field values plus the widget and quote
// it was captured against.
type Lead struct {
	ProfileName string             `json:"profileName"`
	WidgetID    string             `json:"widgetId,omitempty"`
	Values      [NumLeadFields]string `json:"values"`
	Result      *EstimationResult  `json:"result,omitempty"`
}

// Value returns the captured value for one field.
func (l *Lead) Value(k FieldKey) string {
	if k < 0 || k >= NumLeadFields {
		return ""
	}
	return l.Values[k]
}

// SetValue records the value for one field.
func (l *Lead) SetValue(k FieldKey, v string) {
	if k >= 0 && k < NumLeadFields {
		l.Values[k] = v
	}
}

// Finalize appends the labels of the chosen upsells to the notes field so
// the delivered lead carries the full quote context.
func (l *Lead) Finalize(chosenUpsells []string) {
	if len(chosenUpsells) == 0 {
		return
	}
	note := "Chosen Upgrades: " + strings.Join(chosenUpsells, ", ")
	if l.Values[FieldNotes] != "" {
		l.Values[FieldNotes] += "\n" + note
	} else {
		l.Values[FieldNotes] = note
	}
}
