package models

// ProfileAudit is the partial profile produced by the website audit
// operation. Nil pointers and nil slices mean "no suggestion for this
// field"; present values overwrite on merge.
type ProfileAudit struct {
	Name                   *string              `json:"name,omitempty"`
	Industry               *string              `json:"industry,omitempty"`
	PrimaryColor           *string              `json:"primaryColor,omitempty"`
	HeaderTitle            *string              `json:"headerTitle,omitempty"`
	HeaderSubtitle         *string              `json:"headerSubtitle,omitempty"`
	LocationContext        *string              `json:"locationContext,omitempty"`
	HoverTitle             *string              `json:"hoverTitle,omitempty"`
	Services               []string             `json:"services,omitempty"`
	PricingRules           *string              `json:"pricingRules,omitempty"`
	PricingKnowledgeBase   *string              `json:"pricingKnowledgeBase,omitempty"`
	SuggestedQuestions     []string             `json:"suggestedQuestions,omitempty"`
	ManualPriceList        []ManualPriceItem    `json:"manualPriceList,omitempty"`
	CuratedRecommendations []RecommendedService `json:"curatedRecommendations,omitempty"`
}

// ApplyAudit merges an audit into the profile. Each field is handled
// explicitly: a present field overwrites, an absent field is preserved.
// Applying the same audit twice leaves the profile unchanged after the
// first application.
func (p *BusinessProfile) ApplyAudit(a *ProfileAudit) {
	if a == nil {
		return
	}
	if a.Name != nil {
		p.Name = *a.Name
	}
	if a.Industry != nil {
		p.Industry = *a.Industry
	}
	if a.PrimaryColor != nil {
		p.PrimaryColor = *a.PrimaryColor
	}
	if a.HeaderTitle != nil {
		p.HeaderTitle = *a.HeaderTitle
	}
	if a.HeaderSubtitle != nil {
		p.HeaderSubtitle = *a.HeaderSubtitle
	}
	if a.LocationContext != nil {
		p.LocationContext = *a.LocationContext
	}
	if a.HoverTitle != nil {
		p.HoverTitle = *a.HoverTitle
	}
	if a.Services != nil {
		p.Services = a.Services
	}
	if a.PricingRules != nil {
		p.PricingRules = *a.PricingRules
	}
	if a.PricingKnowledgeBase != nil {
		p.PricingKnowledgeBase = *a.PricingKnowledgeBase
	}
	if a.SuggestedQuestions != nil {
		p.SuggestedQuestions = a.SuggestedQuestions
	}
	if a.ManualPriceList != nil {
		p.ManualPriceList = a.ManualPriceList
	}
	if a.CuratedRecommendations != nil {
		p.CuratedRecommendations = a.CuratedRecommendations
	}
	p.Normalize()
}
