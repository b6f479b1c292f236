// Package models defines the domain models for the application.
// A BusinessProfile is the full configuration of one embeddable estimator
// widget; everything else is either a persisted snapshot of a profile
// (SavedWidget) or a transient generation result.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WidgetIcon selects the launcher icon rendered by the embedded widget.
type WidgetIcon string

const (
	IconCalculator WidgetIcon = "calculator"
	IconWrench     WidgetIcon = "wrench"
	IconHome       WidgetIcon = "home"
	IconSparkles   WidgetIcon = "sparkles"
	IconChat       WidgetIcon = "chat"
	IconCurrency   WidgetIcon = "currency"
)

// MenuItem is a single navigation link in the branded email header.
type MenuItem struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// EmailTemplate parameterizes the branded HTML skeleton imposed on every
// generated document (quote emails, outreach, proposals).
type EmailTemplate struct {
	HeaderBgColor    string     `json:"headerBgColor"`
	FooterBgColor    string     `json:"footerBgColor"`
	BannerURL        string     `json:"bannerUrl"`
	LogoURL          string     `json:"logoUrl"`
	LogoSize         string     `json:"logoSize"`
	PromoTitle       string     `json:"promoTitle"`
	PromoDescription string     `json:"promoDescription"`
	MenuItems        []MenuItem `json:"menuItems"`
}

// DefaultEmailTemplate returns the template used when a profile carries none.
func DefaultEmailTemplate() *EmailTemplate {
	return &EmailTemplate{
		HeaderBgColor:    "#1e293b",
		FooterBgColor:    "#0f172a",
		BannerURL:        "https://images.unsplash.com/photo-1521737604893-d14cc237f11d?q=80&w=1200",
		LogoURL:          "",
		LogoSize:         "40px",
		PromoTitle:       "Quality Service, Guaranteed",
		PromoDescription: "We deliver professional results on time and on budget, backed by our dedicated local team of certified experts.",
		MenuItems: []MenuItem{
			{Label: "Services", URL: "#"},
			{Label: "About Us", URL: "#"},
			{Label: "Contact", URL: "#"},
		},
	}
}

// ManualPriceItem is one operator-entered line in the price list fed to the
// estimate oracle.
type ManualPriceItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Price string `json:"price"`
}

// RecommendedService is a curated upsell. Only approved entries are offered
// to end users and counted in the quote total.
type RecommendedService struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Description    string `json:"description"`
	SuggestedPrice string `json:"suggestedPrice"`
	Approved       bool   `json:"isApproved"`
}

// TwilioConfig holds the credentials for the optional SMS lead notification.
type TwilioConfig struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	FromNumber string `json:"fromNumber"`
	ToNumber   string `json:"toNumber"`
}

// FieldKey identifies one of the ten lead-capture fields. The numeric order
// is the canonical display order of the wizard.
type FieldKey int

const (
	FieldName FieldKey = iota
	FieldEmail
	FieldPhone
	FieldCity
	FieldCompany
	FieldNotes
	FieldCustomField
	FieldServiceType
	FieldDate
	FieldTime

	NumLeadFields
)

var fieldKeyNames = [NumLeadFields]string{
	"name", "email", "phone", "city", "company",
	"notes", "customField", "serviceType", "date", "time",
}

func (k FieldKey) String() string {
	if k < 0 || k >= NumLeadFields {
		return fmt.Sprintf("FieldKey(%d)", int(k))
	}
	return fieldKeyNames[k]
}

// FieldOrder returns all field keys in canonical order.
func FieldOrder() []FieldKey {
	keys := make([]FieldKey, NumLeadFields)
	for i := range keys {
		keys[i] = FieldKey(i)
	}
	return keys
}

// LeadField is the visibility/requirement toggle pair for one field.
// A field that is not visible can never be required in practice: the wizard
// only validates fields it shows.
type LeadField struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
}

// LeadFields holds the configuration of all ten lead-capture fields. It is a
// fixed-size array indexed by FieldKey so every field always exists; there is
// no partial or sparse configuration.
type LeadFields [NumLeadFields]LeadField

// MarshalJSON encodes the array as an object keyed by field name, matching
// the stored profile format.
func (f LeadFields) MarshalJSON() ([]byte, error) {
	obj := make(map[string]LeadField, NumLeadFields)
	for i, lf := range f {
		obj[fieldKeyNames[i]] = lf
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes the keyed-object form. Unknown keys are ignored and
// missing keys leave the zero value (hidden, optional).
func (f *LeadFields) UnmarshalJSON(data []byte) error {
	obj := make(map[string]LeadField)
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for i, name := range fieldKeyNames {
		if lf, ok := obj[name]; ok {
			f[i] = lf
		}
	}
	return nil
}

// LeadDestination selects the primary channel a captured lead is sent to.
type LeadDestination string

const (
	DestinationEmail   LeadDestination = "email"
	DestinationSheet   LeadDestination = "sheet"
	DestinationSlack   LeadDestination = "slack"
	DestinationWebhook LeadDestination = "webhook"
)

// LeadGenConfig configures lead capture and delivery for one widget.
// Credential-bearing fields (ResendAPIKey, webhook URLs, Twilio) are
// encrypted at rest by the repository.
type LeadGenConfig struct {
	Enabled          bool            `json:"enabled"`
	Destination      LeadDestination `json:"destination"`
	TargetEmail      string          `json:"targetEmail"`
	ResendAPIKey     string          `json:"resendApiKey"`
	WebhookURL       string          `json:"webhookUrl"`
	SlackWebhookURL  string          `json:"slackWebhookUrl"`
	SheetWebhookURL  string          `json:"sheetWebhookUrl,omitempty"`
	Twilio           TwilioConfig    `json:"twilioConfig"`
	SuccessMessage   string          `json:"successMessage,omitempty"`
	CustomFieldLabel string          `json:"customFieldLabel,omitempty"`
	Fields           LeadFields      `json:"fields"`
}

// BusinessProfile is the complete configuration of one widget: branding,
// pricing knowledge, upsell catalogue, lead capture, and languages.
type BusinessProfile struct {
	Name                   string               `json:"name"`
	Industry               string               `json:"industry"`
	PrimaryColor           string               `json:"primaryColor"`
	HeaderTitle            string               `json:"headerTitle"`
	HeaderSubtitle         string               `json:"headerSubtitle"`
	ProfilePic             string               `json:"profilePic"`
	HoverTitle             string               `json:"hoverTitle"`
	HoverTitleBgColor      string               `json:"hoverTitleBgColor"`
	WidgetIcon             WidgetIcon           `json:"widgetIcon"`
	Services               []string             `json:"services"`
	LocationContext        string               `json:"locationContext"`
	PricingRules           string               `json:"pricingRules"`
	PricingKnowledgeBase   string               `json:"pricingKnowledgeBase"`
	CustomAgentInstruction string               `json:"customAgentInstruction"`
	OutreachInstructions   string               `json:"outreachInstructions,omitempty"`
	ProposalInstructions   string               `json:"proposalInstructions,omitempty"`
	UpsellInstructions     string               `json:"upsellInstructions,omitempty"`
	ManualPriceList        []ManualPriceItem    `json:"manualPriceList"`
	CuratedRecommendations []RecommendedService `json:"curatedRecommendations"`
	SuggestedQuestions     []string             `json:"suggestedQuestions"`
	LeadGen                LeadGenConfig        `json:"leadGenConfig"`
	DefaultLanguage        string               `json:"defaultLanguage"`
	SupportedLanguages     []string             `json:"supportedLanguages"`
	EmailTemplate          *EmailTemplate       `json:"emailTemplate,omitempty"`
}

// Normalize repairs a profile so the widget invariants hold:
// the default language always appears in the supported set (prepended when
// absent), the widget icon falls back to the calculator, and the suggested
// questions are padded/truncated to exactly three entries.
func (p *BusinessProfile) Normalize() {
	if p.DefaultLanguage == "" {
		p.DefaultLanguage = "en"
	}
	found := false
	for _, lang := range p.SupportedLanguages {
		if lang == p.DefaultLanguage {
			found = true
			break
		}
	}
	if !found {
		p.SupportedLanguages = append([]string{p.DefaultLanguage}, p.SupportedLanguages...)
	}

	switch p.WidgetIcon {
	case IconCalculator, IconWrench, IconHome, IconSparkles, IconChat, IconCurrency:
	default:
		p.WidgetIcon = IconCalculator
	}

	for len(p.SuggestedQuestions) < 3 {
		p.SuggestedQuestions = append(p.SuggestedQuestions, "")
	}
	p.SuggestedQuestions = p.SuggestedQuestions[:3]

	if p.LeadGen.Destination == "" {
		p.LeadGen.Destination = DestinationEmail
	}
}

// ApprovedUpsells returns the curated recommendations end users may select.
func (p *BusinessProfile) ApprovedUpsells() []RecommendedService {
	var out []RecommendedService
	for _, r := range p.CuratedRecommendations {
		if r.Approved {
			out = append(out, r)
		}
	}
	return out
}

// PlaceholderUserID is the fixed owner identity used in single-operator
// deployments where no real user accounts exist.
const PlaceholderUserID = "00000000-0000-0000-0000-000000000000"

// SavedWidget is one persisted widget: a named BusinessProfile snapshot.
type SavedWidget struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Profile   BusinessProfile `json:"profile"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
