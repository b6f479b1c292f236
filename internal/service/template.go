package service

import (
	"fmt"
	"strings"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

// fallbackTemplate brands documents for profiles that carry no template of
// their own.
var fallbackTemplate = models.EmailTemplate{
	HeaderBgColor:    "#000000",
	FooterBgColor:    "#f1f5f9",
	BannerURL:        "https://images.unsplash.com/photo-1460925895917-afdab827c52f?q=80&w=600&h=250&auto=format&fit=crop",
	LogoURL:          "https://www.aiolosmedia.com/public_uploads/689e0c06e8220.png",
	LogoSize:         "32px",
	PromoTitle:       "Instant Quotes",
	PromoDescription: "Get accurate cost estimations in seconds with our advanced AI-powered project assessment platform today.",
	MenuItems: []models.MenuItem{
		{Label: "Solutions", URL: "#"},
		{Label: "Pricing", URL: "#"},
		{Label: "Contact", URL: "#"},
	},
}

// templateInstructions renders the mandatory branding contract included in
// every HTML-producing prompt. The skeleton is fixed; the profile's email
// template only parameterizes colors, images, and copy. The oracle renders
// the document; nothing is templated locally.
func templateInstructions(tpl *models.EmailTemplate) string {
	c := tpl
	if c == nil {
		c = &fallbackTemplate
	}

	var menu strings.Builder
	for _, m := range c.MenuItems {
		fmt.Fprintf(&menu, `<a href="%s" style="color: #ffffff; text-decoration: none; font-weight: bold; margin-left: 15px;">%s</a>`, m.URL, m.Label)
	}

	logoSize := c.LogoSize
	if logoSize == "" {
		logoSize = "32px"
	}

	return fmt.Sprintf(`
MANDATORY HTML STRUCTURE (Branding):
1. HEADER: Background %s. Left Logo: %s. Logo Height: %s. Right: Navigation containing the following links: %s.
2. BANNER: Full-width Image: %s.
3. PROMOTIONAL STRIP: Title: "%s". Description (exactly 15 words): "%s".
4. BODY: #ffffff background.
5. FOOTER: Background %s. Text: "© 2025 Aiolos Media | aiolosmedia.com".
`, c.HeaderBgColor, c.LogoURL, logoSize, menu.String(), c.BannerURL, c.PromoTitle, c.PromoDescription, c.FooterBgColor)
}
