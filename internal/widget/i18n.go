// Package widget implements the server side of the embeddable estimator:
// the per-session estimation flow state machine, the lead-capture wizard,
// the UI translation table, and the session registry.
package widget

import (
	"strconv"
	"strings"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// Bundle is the set of UI strings served to one widget session.
type Bundle map[string]string

// Step substitutes the wizard progress placeholders in the stepInfo string.
func (b Bundle) Step(current, total int) string {
	s := b["stepInfo"]
	s = strings.ReplaceAll(s, "{{current}}", strconv.Itoa(current))
	s = strings.ReplaceAll(s, "{{total}}", strconv.Itoa(total))
	return s
}

var translations = map[string]Bundle{
	"en": {
		"back":                "Back",
		"next":                "Next",
		"getEstimate":         "Get Estimate",
		"confirmQuote":        "Confirm Quote",
		"newRequest":          "New Request",
		"zipCode":             "Zip Code",
		"urgency":             "Urgency",
		"placeholder":         "What do you need help with?",
		"voiceStart":          "Start Conversation",
		"voiceListening":      "Listening...",
		"voiceSpeaking":       "Crew Speaking...",
		"labor":               "Labor",
		"parts":               "Parts",
		"time":                "Time",
		"submitGetQuote":      "Submit & Get HTML Quote",
		"selectService":       "Select a service...",
		"within3Days":         "Within 3 Days",
		"sameDay":             "Same Day",
		"flexible":            "Flexible",
		"stepInfo":            "Step {{current}} of {{total}}",
		"recommendedUpgrades": "Recommended Upgrades",
		"baseEstimate":        "Base Estimate",
		"totalWithUpgrades":   "Total with Upgrades",
		"addedCost":           "Added Cost",
		"language":            "Language",
		"finalDetails":        "Final Details",
		"date":                "Preferred Date",
		"timeField":           "Preferred Time",
	},
	"es": {
		"back":                "Volver",
		"next":                "Siguiente",
		"getEstimate":         "Obtener Presupuesto",
		"confirmQuote":        "Confirmar Presupuesto",
		"newRequest":          "Nueva Solicitud",
		"zipCode":             "Código Postal",
		"urgency":             "Urgencia",
		"placeholder":         "¿En qué podemos ayudarte?",
		"voiceStart":          "Iniciar Conversación",
		"voiceListening":      "Escuchando...",
		"voiceSpeaking":       "Equipo Hablando...",
		"labor":               "Mano de obra",
		"parts":               "Materiales",
		"time":                "Tiempo",
		"submitGetQuote":      "Enviar y Obtener Presupuesto HTML",
		"selectService":       "Selecciona un servicio...",
		"within3Days":         "En 3 días",
		"sameDay":             "Mismo día",
		"flexible":            "Flexible",
		"stepInfo":            "Paso {{current}} de {{total}}",
		"recommendedUpgrades": "Mejoras Recomendadas",
		"baseEstimate":        "Presupuesto Base",
		"totalWithUpgrades":   "Total con Mejoras",
		"addedCost":           "Costo Adicional",
		"language":            "Idioma",
		"finalDetails":        "Detalles Finales",
		"date":                "Fecha Preferida",
		"timeField":           "Hora Preferida",
	},
}

// Lookup returns the UI bundle for a language, falling back to English for
// languages without a dedicated bundle.
func Lookup(lang string) Bundle {
	if b, ok := translations[lang]; ok {
		return b
	}
	return translations["en"]
}

// Language pairs a BCP-47-ish code with its native display name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists every language the widget can be configured to offer,
// in display order.
var Languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Español"},
	{Code: "fr", Name: "Français"},
	{Code: "de", Name: "Deutsch"},
	{Code: "pt", Name: "Português"},
	{Code: "it", Name: "Italiano"},
	{Code: "nl", Name: "Nederlands"},
	{Code: "ja", Name: "日本語"},
	{Code: "zh", Name: "中文"},
}

// LanguageName returns the display name for a code, defaulting to English.
func LanguageName(code string) string {
	for _, l := range Languages {
		if l.Code == code {
			return l.Name
		}
	}
	return "English"
}

// LanguageOptions returns the switcher choices for a profile: the supported
// languages in display order with the configured default first. A profile
// supporting fewer than two languages gets no switcher (nil).
func LanguageOptions(p *models.BusinessProfile) []Language {
	supported := make(map[string]bool, len(p.SupportedLanguages))
	for _, code := range p.SupportedLanguages {
		supported[code] = true
	}

	var opts []Language
	for _, l := range Languages {
		if supported[l.Code] {
			opts = append(opts, l)
		}
	}
	if len(opts) < 2 {
		return nil
	}

	for i, l := range opts {
		if l.Code == p.DefaultLanguage && i > 0 {
			opts = append([]Language{l}, append(opts[:i:i], opts[i+1:]...)...)
			break
		}
	}
	return opts
}
