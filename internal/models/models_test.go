package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Run("prepends missing default language", func(t *testing.T) {
		p := BusinessProfile{
			DefaultLanguage:    "es",
			SupportedLanguages: []string{"en", "fr"},
		}
		p.Normalize()
		if p.SupportedLanguages[0] != "es" {
			t.Errorf("expected default prepended, got %v", p.SupportedLanguages)
		}
	})

	t.Run("keeps default already in supported set", func(t *testing.T) {
		p := BusinessProfile{
			DefaultLanguage:    "en",
			SupportedLanguages: []string{"es", "en"},
		}
		p.Normalize()
		if !reflect.DeepEqual(p.SupportedLanguages, []string{"es", "en"}) {
			t.Errorf("supported languages changed: %v", p.SupportedLanguages)
		}
	})

	t.Run("empty default falls back to en", func(t *testing.T) {
		p := BusinessProfile{}
		p.Normalize()
		if p.DefaultLanguage != "en" {
			t.Errorf("expected en, got %q", p.DefaultLanguage)
		}
		if p.SupportedLanguages[0] != "en" {
			t.Errorf("expected en in supported set, got %v", p.SupportedLanguages)
		}
	})

	t.Run("invalid icon falls back to calculator", func(t *testing.T) {
		p := BusinessProfile{WidgetIcon: "rocket"}
		p.Normalize()
		if p.WidgetIcon != IconCalculator {
			t.Errorf("expected calculator, got %q", p.WidgetIcon)
		}
	})

	t.Run("suggested questions padded to three", func(t *testing.T) {
		p := BusinessProfile{SuggestedQuestions: []string{"Fix leak?"}}
		p.Normalize()
		if len(p.SuggestedQuestions) != 3 {
			t.Fatalf("expected 3 questions, got %d", len(p.SuggestedQuestions))
		}
	})

	t.Run("suggested questions truncated to three", func(t *testing.T) {
		p := BusinessProfile{SuggestedQuestions: []string{"a", "b", "c", "d"}}
		p.Normalize()
		if len(p.SuggestedQuestions) != 3 {
			t.Fatalf("expected 3 questions, got %d", len(p.SuggestedQuestions))
		}
	})
}

func TestApplyAudit(t *testing.T) {
	name := "Acme Plumbing"
	color := "#ff0000"

	base := BusinessProfile{
		Name:               "Old Name",
		Industry:           "Plumbing",
		PricingRules:       "hourly",
		DefaultLanguage:    "en",
		SupportedLanguages: []string{"en"},
		SuggestedQuestions: []string{"a", "b", "c"},
	}

	audit := &ProfileAudit{
		Name:         &name,
		PrimaryColor: &color,
		Services:     []string{"Drains", "Heaters"},
	}

	p := base
	p.ApplyAudit(audit)

	if p.Name != "Acme Plumbing" || p.PrimaryColor != "#ff0000" {
		t.Errorf("present fields not applied: %+v", p)
	}
	if p.Industry != "Plumbing" || p.PricingRules != "hourly" {
		t.Errorf("absent fields not preserved: %+v", p)
	}
	if len(p.Services) != 2 {
		t.Errorf("services not applied: %v", p.Services)
	}

	t.Run("idempotent", func(t *testing.T) {
		again := p
		again.ApplyAudit(audit)
		if !reflect.DeepEqual(again, p) {
			t.Errorf("second application changed profile:\nfirst:  %+v\nsecond: %+v", p, again)
		}
	})

	t.Run("nil audit is a no-op", func(t *testing.T) {
		before := p
		p.ApplyAudit(nil)
		if !reflect.DeepEqual(before, p) {
			t.Errorf("nil audit changed profile")
		}
	})
}

func TestEstimateTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    EstimateTask
		wantErr error
	}{
		{"valid", EstimateTask{Description: "leaky faucet", Urgency: UrgencySameDay, ZipCode: "90210"}, nil},
		{"empty description", EstimateTask{ZipCode: "90210"}, ErrEmptyDescription},
		{"whitespace description", EstimateTask{Description: "   ", ZipCode: "90210"}, ErrEmptyDescription},
		{"empty zip", EstimateTask{Description: "leaky faucet"}, ErrEmptyZipCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("unknown urgency defaults", func(t *testing.T) {
		task := EstimateTask{Description: "x", ZipCode: "1", Urgency: "yesterday"}
		if err := task.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if task.Urgency != UrgencyWithin3Days {
			t.Errorf("expected default urgency, got %q", task.Urgency)
		}
	})
}

func TestLeadFinalize(t *testing.T) {
	t.Run("appends to empty notes", func(t *testing.T) {
		var l Lead
		l.Finalize([]string{"Gutter Guards", "Power Wash"})
		want := "Chosen Upgrades: Gutter Guards, Power Wash"
		if got := l.Value(FieldNotes); got != want {
			t.Errorf("notes = %q, want %q", got, want)
		}
	})

	t.Run("appends below existing notes", func(t *testing.T) {
		var l Lead
		l.SetValue(FieldNotes, "call after 5pm")
		l.Finalize([]string{"Gutter Guards"})
		want := "call after 5pm\nChosen Upgrades: Gutter Guards"
		if got := l.Value(FieldNotes); got != want {
			t.Errorf("notes = %q, want %q", got, want)
		}
	})

	t.Run("no upsells leaves notes alone", func(t *testing.T) {
		var l Lead
		l.SetValue(FieldNotes, "call after 5pm")
		l.Finalize(nil)
		if got := l.Value(FieldNotes); got != "call after 5pm" {
			t.Errorf("notes = %q", got)
		}
	})
}

func TestLeadFieldsJSON(t *testing.T) {
	var f LeadFields
	f[FieldName] = LeadField{Visible: true, Required: true}
	f[FieldTime] = LeadField{Visible: true}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back LeadFields
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != f {
		t.Errorf("roundtrip mismatch: %+v != %+v", back, f)
	}

	t.Run("missing keys default to hidden", func(t *testing.T) {
		var g LeadFields
		if err := json.Unmarshal([]byte(`{"email":{"visible":true,"required":true}}`), &g); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !g[FieldEmail].Visible {
			t.Errorf("email field not decoded")
		}
		if g[FieldName].Visible || g[FieldName].Required {
			t.Errorf("missing field should be zero, got %+v", g[FieldName])
		}
	})
}

func TestApprovedUpsells(t *testing.T) {
	p := BusinessProfile{
		CuratedRecommendations: []RecommendedService{
			{ID: "1", Label: "Gutter Guards", Approved: true},
			{ID: "2", Label: "Unvetted Thing"},
			{ID: "3", Label: "Power Wash", Approved: true},
		},
	}
	got := p.ApprovedUpsells()
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("unexpected approved set: %+v", got)
	}
}
