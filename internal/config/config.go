// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Admin authentication. A single static bearer key protects the
	// dashboard routes; empty disables the check (local development).
	AdminAPIKey string

	// Embed tokens
	EmbedTokenSecret string        // HMAC secret for signed widget embed tokens
	EmbedTokenExpiry time.Duration // Lifetime of issued embed tokens

	// EncryptionKey is the 32-byte key for AES-256-GCM encryption of
	// lead-channel credentials at rest.
	EncryptionKey []byte

	// Generation oracle (chat-completions API)
	LLMProvider string // openai, openrouter, anthropic
	LLMAPIKey   string
	LLMBaseURL  string // Optional override for openai-compatible endpoints
	LLMModel    string
	AuditModel  string // Larger model used for profile audits and proposals

	// Voice agent
	VoiceAgentURL   string // Websocket endpoint of the remote conversational agent
	VoiceAgentKey   string
	VoiceAgentVoice string

	// Lead dispatch defaults (per-profile settings override these)
	ResendAPIKey string

	// CORS
	CORSOrigins []string

	// Widget sessions
	SessionTTL time.Duration // Idle lifetime of a widget flow session

	// Object storage for generated collateral (S3-compatible, optional)
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:estimateai.db?_journal=WAL&_timeout=5000"),

		AdminAPIKey:      getEnv("ADMIN_API_KEY", ""),
		EmbedTokenSecret: getEnv("EMBED_TOKEN_SECRET", ""),
		EmbedTokenExpiry: getEnvDuration("EMBED_TOKEN_EXPIRY", 720*time.Hour),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		AuditModel:  getEnv("LLM_AUDIT_MODEL", "gpt-4o"),

		VoiceAgentURL:   getEnv("VOICE_AGENT_URL", ""),
		VoiceAgentKey:   getEnv("VOICE_AGENT_KEY", ""),
		VoiceAgentVoice: getEnv("VOICE_AGENT_VOICE", "zephyr"),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*time.Minute),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),
	}

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	// Embed tokens need a signing secret; generate one for throwaway
	// deployments so the widget still works out of the box.
	embedSecretConfigured := cfg.EmbedTokenSecret != ""
	if !embedSecretConfigured {
		cfg.EmbedTokenSecret = generateRandomSecret(48)
	}

	// The encryption key must be stable across restarts: ciphertext written
	// under one key is unreadable under any other, and the widgets table
	// outlives the process. A key derived from the generated per-process
	// secret would orphan every stored credential, so with neither
	// ENCRYPTION_KEY nor EMBED_TOKEN_SECRET configured the key stays nil
	// and credentials are stored in plaintext.
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	switch {
	case encKeyStr != "":
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	case embedSecretConfigured:
		cfg.EncryptionKey = deriveEncryptionKey(cfg.EmbedTokenSecret)
	}

	return cfg, nil
}

// EncryptionEnabled returns true if lead credentials are encrypted at rest.
func (c *Config) EncryptionEnabled() bool {
	return len(c.EncryptionKey) > 0
}

// VoiceEnabled returns true if a remote voice agent is configured.
func (c *Config) VoiceEnabled() bool {
	return c.VoiceAgentURL != ""
}

// AdminAuthEnabled returns true if dashboard routes require a bearer key.
func (c *Config) AdminAuthEnabled() bool {
	return c.AdminAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback (should never happen)
		return "estimateai-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

func deriveEncryptionKey(secret string) []byte {
	// HKDF with SHA-256. Salt is fixed but unique to this application;
	// info binds the key to its purpose.
	salt := []byte("estimateai-api-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
