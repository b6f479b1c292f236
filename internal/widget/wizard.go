package widget

import (
	"fmt"
	"strings"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

const fieldsPerPage = 2

// Wizard is the paged lead-capture form of one session. Pages are the
// visible fields in canonical order split into consecutive pairs; a
// configuration with no visible fields still yields one (empty) page so the
// form can be submitted.
type Wizard struct {
	pages  [][]models.FieldKey
	step   int
	values [models.NumLeadFields]string
}

// NewWizard builds the page layout from the lead configuration.
func NewWizard(cfg *models.LeadGenConfig) *Wizard {
	var visible []models.FieldKey
	for _, k := range models.FieldOrder() {
		if cfg.Fields[k].Visible {
			visible = append(visible, k)
		}
	}

	var pages [][]models.FieldKey
	for i := 0; i < len(visible); i += fieldsPerPage {
		end := i + fieldsPerPage
		if end > len(visible) {
			end = len(visible)
		}
		pages = append(pages, visible[i:end])
	}
	if len(pages) == 0 {
		pages = [][]models.FieldKey{{}}
	}

	return &Wizard{pages: pages}
}

// PageCount returns the number of pages (always at least 1).
func (w *Wizard) PageCount() int {
	return len(w.pages)
}

// Step returns the current zero-based page index.
func (w *Wizard) Step() int {
	return w.step
}

// CurrentPage returns the fields shown on the current page.
func (w *Wizard) CurrentPage() []models.FieldKey {
	return w.pages[w.step]
}

// LastPage reports whether the wizard is on its final page.
func (w *Wizard) LastPage() bool {
	return w.step == len(w.pages)-1
}

// Record stores submitted values for fields on the current page. Values for
// fields not on this page are ignored.
func (w *Wizard) Record(values map[string]string) {
	for _, k := range w.pages[w.step] {
		if v, ok := values[k.String()]; ok {
			w.values[k] = v
		}
	}
}

// ValidatePage checks the current page: every visible-and-required field must
// be non-empty, and serviceType (when filled) must be one of the configured
// services. Fields the configuration hides are never validated.
func (w *Wizard) ValidatePage(cfg *models.LeadGenConfig, services []string) error {
	for _, k := range w.pages[w.step] {
		field := cfg.Fields[k]
		value := strings.TrimSpace(w.values[k])

		if field.Required && value == "" {
			return fmt.Errorf("%s: %w", k, ErrFieldRequired)
		}
		if k == models.FieldServiceType && value != "" {
			ok := false
			for _, s := range services {
				if s == value {
					ok = true
					break
				}
			}
			if !ok {
				return fmt.Errorf("%s: %w", k, ErrUnknownChoice)
			}
		}
	}
	return nil
}

// Advance moves to the next page. The step index never leaves
// [0, PageCount-1]; advancing past the last page is a no-op.
func (w *Wizard) Advance() {
	if w.step < len(w.pages)-1 {
		w.step++
	}
}

// Retreat moves back one page; it returns false when already on the first
// page (the caller leaves the wizard entirely).
func (w *Wizard) Retreat() bool {
	if w.step == 0 {
		return false
	}
	w.step--
	return true
}

// Values returns the captured field values.
func (w *Wizard) Values() [models.NumLeadFields]string {
	return w.values
}
