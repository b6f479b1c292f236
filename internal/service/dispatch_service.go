package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	twilio "github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/aiolosmedia/estimateai-api/internal/models"
)

const defaultResendBaseURL = "https://api.resend.com"

// DispatchService delivers captured leads to the channel each widget is
// configured for: branded email via Resend, a Slack incoming webhook, a
// generic webhook, or a sheet-ingest webhook, plus an optional SMS ping when
// Twilio credentials are present. Delivery is best-effort; the widget flow
// never exposes a dispatch failure to the end user.
type DispatchService struct {
	logger           *slog.Logger
	client           *http.Client
	resendBaseURL    string
	defaultResendKey string
	backoffUnit      time.Duration
	sms              smsSender
}

type smsSender interface {
	Send(cfg models.TwilioConfig, body string) error
}

// NewDispatchService creates a dispatch service. defaultResendKey is used
// for widgets that carry no key of their own.
func NewDispatchService(defaultResendKey string, logger *slog.Logger) *DispatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchService{
		logger:           logger.With("component", "dispatch"),
		client:           &http.Client{Timeout: 30 * time.Second},
		resendBaseURL:    defaultResendBaseURL,
		defaultResendKey: defaultResendKey,
		backoffUnit:      time.Second,
		sms:              twilioSender{},
	}
}

// leadPayload is the JSON shape sent to webhook and sheet destinations.
type leadPayload struct {
	Profile   string            `json:"profile"`
	Fields    map[string]string `json:"fields"`
	Estimate  string            `json:"estimate,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func buildPayload(lead *models.Lead, result *models.EstimationResult) leadPayload {
	fields := make(map[string]string, models.NumLeadFields)
	for _, k := range models.FieldOrder() {
		if v := lead.Value(k); v != "" {
			fields[k.String()] = v
		}
	}
	p := leadPayload{
		Profile:   lead.ProfileName,
		Fields:    fields,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if result != nil {
		p.Estimate = result.EstimatedCostRange
	}
	return p
}

func summaryLine(lead *models.Lead, result *models.EstimationResult) string {
	estimate := "n/a"
	if result != nil && result.EstimatedCostRange != "" {
		estimate = result.EstimatedCostRange
	}
	return fmt.Sprintf("New lead for %s: %s (%s) — estimate %s",
		lead.ProfileName, lead.Value(models.FieldName), lead.Value(models.FieldEmail), estimate)
}

// Dispatch delivers one lead according to the profile's lead configuration.
// The returned error is informational; callers log it and move on.
func (s *DispatchService) Dispatch(ctx context.Context, lead *models.Lead, result *models.EstimationResult, profile *models.BusinessProfile) error {
	cfg := &profile.LeadGen
	if !cfg.Enabled {
		s.logger.Debug("lead capture disabled, skipping dispatch", "profile", profile.Name)
		return nil
	}

	var err error
	switch cfg.Destination {
	case models.DestinationEmail:
		err = s.sendResendEmail(ctx, cfg, lead, result)
	case models.DestinationSlack:
		err = s.postJSON(ctx, cfg.SlackWebhookURL, map[string]string{"text": summaryLine(lead, result)})
	case models.DestinationWebhook:
		err = s.deliverWebhook(cfg.WebhookURL, buildPayload(lead, result))
	case models.DestinationSheet:
		err = s.deliverWebhook(cfg.SheetWebhookURL, buildPayload(lead, result))
	default:
		err = fmt.Errorf("unknown lead destination %q", cfg.Destination)
	}

	// SMS ping is additive: it rides along whichever primary channel is
	// configured, and its failures never mask the primary outcome.
	if t := cfg.Twilio; t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != "" && t.ToNumber != "" {
		if smsErr := s.sms.Send(t, summaryLine(lead, result)); smsErr != nil {
			s.logger.Warn("sms notification failed", "error", smsErr)
		}
	}

	if err != nil {
		s.logger.Error("lead dispatch failed",
			"profile", profile.Name,
			"destination", cfg.Destination,
			"error", err,
		)
		return err
	}
	s.logger.Info("lead dispatched", "profile", profile.Name, "destination", cfg.Destination)
	return nil
}

// sendResendEmail sends the branded quote email through the Resend API.
func (s *DispatchService) sendResendEmail(ctx context.Context, cfg *models.LeadGenConfig, lead *models.Lead, result *models.EstimationResult) error {
	apiKey := cfg.ResendAPIKey
	if apiKey == "" {
		apiKey = s.defaultResendKey
	}
	if apiKey == "" {
		return fmt.Errorf("no Resend API key configured")
	}
	if cfg.TargetEmail == "" {
		return fmt.Errorf("no target email configured")
	}

	html := ""
	if result != nil {
		html = result.EmailHTML
	}
	if html == "" {
		html = "<p>" + summaryLine(lead, result) + "</p>"
	}

	body, err := json.Marshal(map[string]any{
		"from":    fmt.Sprintf("%s <quotes@aiolosmedia.com>", lead.ProfileName),
		"to":      []string{cfg.TargetEmail},
		"subject": summaryLine(lead, result),
		"html":    html,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.resendBaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("resend rejected email with status %d", resp.StatusCode)
	}
	return nil
}

// postJSON makes a single JSON POST without retries (Slack notifications are
// not worth retrying; the lead summary is also in the logs).
func (s *DispatchService) postJSON(ctx context.Context, url string, payload any) error {
	if url == "" {
		return fmt.Errorf("no destination URL configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery failed with status %d", resp.StatusCode)
	}
	return nil
}

// deliverWebhook posts a payload with up to 3 attempts and quadratic
// backoff.
func (s *DispatchService) deliverWebhook(url string, payload any) error {
	if url == "" {
		return fmt.Errorf("no webhook URL configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * s.backoffUnit)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "EstimateAI-Webhook/1.0")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("webhook delivery failed", "url", url, "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook delivery failed with status %d", resp.StatusCode)
		s.logger.Warn("webhook non-success status", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
	}
	return lastErr
}

// twilioSender sends the SMS ping through the Twilio REST API.
type twilioSender struct{}

func (twilioSender) Send(cfg models.TwilioConfig, body string) error {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(cfg.ToNumber)
	params.SetFrom(cfg.FromNumber)
	params.SetBody(body)
	_, err := client.Api.CreateMessage(params)
	return err
}
