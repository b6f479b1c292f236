package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aiolosmedia/estimateai-api/internal/models"
	"github.com/aiolosmedia/estimateai-api/internal/widget"
)

// ErrSessionActive is returned when a voice session is started for a widget
// session that already has one.
var ErrSessionActive = errors.New("voice session already active")

// AgentConfig points at the upstream conversational agent.
type AgentConfig struct {
	URL    string
	APIKey string
	Voice  string
}

// Message is the JSON envelope used on both websocket legs.
type Message struct {
	Type        string `json:"type"` // setup, audio, speaking, stop, error
	Data        string `json:"data,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Voice       string `json:"voice,omitempty"`
	Language    string `json:"language,omitempty"`
	Speaking    *bool  `json:"speaking,omitempty"`
	StartInMs   int64  `json:"startInMs,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Session is one live relay: browser capture frames go up to the agent,
// agent audio comes back down with playback scheduling.
type Session struct {
	logger    *slog.Logger
	scheduler *Scheduler
	browser   *websocket.Conn
	upstream  *websocket.Conn
	cancel    context.CancelFunc

	writeMu  sync.Mutex // serializes browser writes
	stopOnce sync.Once
	done     chan struct{}
	onStop   func()
}

// Manager starts and tracks voice sessions, one at most per widget session.
type Manager struct {
	cfg    AgentConfig
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a voice session manager.
func NewManager(cfg AgentConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger.With("component", "voice"),
		sessions: make(map[string]*Session),
	}
}

// Active reports whether a session is live for the given widget session.
func (m *Manager) Active(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// Start dials the upstream agent and begins relaying for one widget session.
// A second start while the first is live returns ErrSessionActive; a dial
// failure leaves no session registered.
func (m *Manager) Start(ctx context.Context, sessionID string, profile *models.BusinessProfile, lang string, browser *websocket.Conn) (*Session, error) {
	m.mu.Lock()
	if _, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	// Reserve the slot before the dial so a concurrent start fails fast.
	m.sessions[sessionID] = nil
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
	}

	header := http.Header{}
	if m.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}
	upstream, resp, err := m.dialer.DialContext(ctx, m.cfg.URL, header)
	if err != nil {
		release()
		if resp != nil {
			return nil, fmt.Errorf("agent dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("agent dial failed: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		logger:   m.logger.With("session_id", sessionID),
		browser:  browser,
		upstream: upstream,
		cancel:   cancel,
		done:     make(chan struct{}),
		onStop:   release,
	}
	s.scheduler = NewScheduler(func(speaking bool) {
		sp := speaking
		s.writeBrowser(Message{Type: "speaking", Speaking: &sp})
	})

	setup := Message{
		Type:        "setup",
		Instruction: buildInstruction(profile, lang),
		Voice:       m.cfg.Voice,
		Language:    lang,
	}
	if err := upstream.WriteJSON(setup); err != nil {
		cancel()
		upstream.Close()
		release()
		return nil, fmt.Errorf("agent setup failed: %w", err)
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	go s.pumpUpstream(sctx)
	return s, nil
}

// Stop tears down one widget session's voice relay, if any.
func (m *Manager) Stop(sessionID string) {
	m.mu.Lock()
	s := m.sessions[sessionID]
	m.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// buildInstruction assembles the agent system prompt from the profile plus a
// hard language constraint.
func buildInstruction(p *models.BusinessProfile, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are leading a voice-enabled \"Crew\" for %s.\n", p.Name)
	fmt.Fprintf(&b, "Industry: %s.\n", p.Industry)
	fmt.Fprintf(&b, "Core Services: %s.\n", strings.Join(p.Services, ", "))
	fmt.Fprintf(&b, "Pricing Rules: %s.\n", p.PricingRules)
	if p.CustomAgentInstruction != "" {
		b.WriteString(p.CustomAgentInstruction)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "IMPORTANT: The conversation language MUST be %s.\n", widget.LanguageName(lang))
	b.WriteString("Your goal is to guide users through project requirements conversationally.")
	return b.String()
}

// HandleCapture forwards one browser capture frame (little-endian float32
// samples at 16kHz) to the agent as base64 16-bit PCM. Send errors drop the
// frame; the relay keeps going.
func (s *Session) HandleCapture(frame []byte) {
	samples, err := DecodeFloat32Frame(frame)
	if err != nil {
		s.logger.Debug("dropping malformed capture frame", "error", err)
		return
	}
	msg := Message{
		Type:     "audio",
		Data:     EncodePCM16(Float32ToPCM16(samples)),
		MimeType: fmt.Sprintf("audio/pcm;rate=%d", CaptureSampleRate),
	}
	if err := s.upstream.WriteJSON(msg); err != nil {
		s.logger.Debug("dropping capture frame", "error", err)
	}
}

// pumpUpstream reads agent messages and schedules their audio for playback
// on the browser leg.
func (s *Session) pumpUpstream(ctx context.Context) {
	defer s.Stop()
	for {
		var msg Message
		if err := s.upstream.ReadJSON(&msg); err != nil {
			select {
			case <-ctx.Done():
			default:
				s.logger.Debug("agent leg closed", "error", err)
			}
			return
		}

		switch msg.Type {
		case "audio":
			pcm, err := DecodePCM16(msg.Data)
			if err != nil {
				s.logger.Warn("discarding malformed agent chunk", "error", err)
				continue
			}
			start := s.scheduler.Schedule(PCM16Duration(pcm, PlaybackSampleRate))
			delay := time.Until(start)
			if delay < 0 {
				delay = 0
			}
			s.writeBrowser(Message{
				Type:      "audio",
				Data:      msg.Data,
				MimeType:  fmt.Sprintf("audio/pcm;rate=%d", PlaybackSampleRate),
				StartInMs: delay.Milliseconds(),
			})
		case "error":
			s.logger.Error("agent reported error", "error", msg.Error)
			s.writeBrowser(msg)
		}
	}
}

func (s *Session) writeBrowser(msg Message) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.browser.WriteJSON(msg); err != nil {
		s.logger.Debug("browser write failed", "error", err)
	}
}

// Speaking reports whether agent audio is still playing out.
func (s *Session) Speaking() bool {
	return s.scheduler.Speaking()
}

// Stop shuts the relay down: the agent leg is closed, all unplayed chunks
// are cancelled, and the session slot is released. Safe to call repeatedly.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.scheduler.Cancel()
		s.upstream.Close()
		if s.onStop != nil {
			s.onStop()
		}
		close(s.done)
	})
}

// Done is closed when the session has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
