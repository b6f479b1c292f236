package service

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Declared output schemas for each generation operation. The oracle is told
// the shape in its prompt; its output is then validated against the same
// schema before unmarshalling, so a malformed or partial answer fails fast
// instead of producing a half-empty result.

const auditSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"industry": {"type": "string"},
		"primaryColor": {"type": "string"},
		"services": {"type": "array", "items": {"type": "string"}},
		"pricingRules": {"type": "string"},
		"pricingKnowledgeBase": {"type": "string"},
		"headerTitle": {"type": "string"},
		"headerSubtitle": {"type": "string"},
		"locationContext": {"type": "string"},
		"hoverTitle": {"type": "string"},
		"suggestedQuestions": {"type": "array", "items": {"type": "string"}, "minItems": 3, "maxItems": 3},
		"manualPriceList": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"label": {"type": "string"},
					"price": {"type": "string"}
				},
				"required": ["id", "label", "price"]
			}
		},
		"curatedRecommendations": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"label": {"type": "string"},
					"description": {"type": "string"},
					"suggestedPrice": {"type": "string"},
					"isApproved": {"type": "boolean"}
				},
				"required": ["id", "label", "description", "suggestedPrice", "isApproved"]
			}
		}
	},
	"required": ["name", "industry", "primaryColor", "services", "pricingRules", "pricingKnowledgeBase", "manualPriceList", "curatedRecommendations", "suggestedQuestions"]
}`

const coldEmailSchema = `{
	"type": "object",
	"properties": {
		"subject": {"type": "string"},
		"html": {"type": "string"},
		"recipientName": {"type": "string"},
		"businessName": {"type": "string"}
	},
	"required": ["subject", "html", "recipientName", "businessName"]
}`

const proposalSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"executiveSummary": {"type": "string"},
		"businessAnalysis": {"type": "string"},
		"solutionArchitecture": {"type": "string"},
		"roiAnalysis": {"type": "string"},
		"investmentTableHtml": {"type": "string"},
		"requirements": {"type": "array", "items": {"type": "string"}},
		"nextSteps": {"type": "string"},
		"htmlFull": {"type": "string"}
	},
	"required": ["title", "executiveSummary", "businessAnalysis", "solutionArchitecture", "roiAnalysis", "investmentTableHtml", "requirements", "nextSteps", "htmlFull"]
}`

const estimateSchema = `{
	"type": "object",
	"properties": {
		"estimatedCostRange": {"type": "string"},
		"baseMinCost": {"type": "number"},
		"baseMaxCost": {"type": "number"},
		"laborEstimate": {"type": "string"},
		"materialsEstimate": {"type": "string"},
		"timeEstimate": {"type": "string"},
		"tasks": {"type": "array", "items": {"type": "string"}},
		"recommendations": {"type": "array", "items": {"type": "string"}},
		"caveats": {"type": "array", "items": {"type": "string"}},
		"upsellServices": {"type": "array", "items": {"type": "string"}},
		"emailHtml": {"type": "string"}
	},
	"required": ["estimatedCostRange", "baseMinCost", "baseMaxCost", "laborEstimate", "materialsEstimate", "timeEstimate", "tasks", "recommendations", "caveats", "upsellServices", "emailHtml"]
}`

const pricingSchema = `{
	"type": "object",
	"properties": {
		"analysis": {"type": "string"},
		"plans": {
			"type": "array",
			"minItems": 3,
			"maxItems": 3,
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"setupFee": {"type": "string"},
					"monthlySubscription": {"type": "string"},
					"features": {"type": "array", "items": {"type": "string"}},
					"targetAudience": {"type": "string"},
					"strategicValue": {"type": "string"}
				},
				"required": ["name", "setupFee", "monthlySubscription", "features", "targetAudience", "strategicValue"]
			}
		}
	},
	"required": ["analysis", "plans"]
}`

var compiledSchemas = map[string]*gojsonschema.Schema{}

func init() {
	for name, raw := range map[string]string{
		"audit":     auditSchema,
		"coldEmail": coldEmailSchema,
		"proposal":  proposalSchema,
		"estimate":  estimateSchema,
		"pricing":   pricingSchema,
	} {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid %s schema: %v", name, err))
		}
		compiledSchemas[name] = s
	}
}

// validateOutput checks an oracle JSON document against a declared schema.
func validateOutput(schemaName, doc string) error {
	schema, ok := compiledSchemas[schemaName]
	if !ok {
		return fmt.Errorf("unknown schema %q", schemaName)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("output failed schema validation: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// stripCodeFences removes a ```json ... ``` wrapper some models add even in
// JSON mode.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
