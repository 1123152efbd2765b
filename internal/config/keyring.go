package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name in the OS keychain
const KeyringService = "teamgraph"

// Item names a credential stored in the keychain
type Item string

const (
	ItemGitHubToken Item = "github-token"
	ItemSlackToken  Item = "slack-token"
	ItemOpenAIKey   Item = "openai-api-key"
	ItemGeminiKey   Item = "gemini-api-key"
)

// Items lists every credential teamgraph knows about
var Items = []Item{ItemGitHubToken, ItemSlackToken, ItemOpenAIKey, ItemGeminiKey}

// ParseItem maps a provider name ("github", "slack", "openai", "gemini")
// to its credential item.
func ParseItem(name string) (Item, bool) {
	switch name {
	case "github":
		return ItemGitHubToken, true
	case "slack":
		return ItemSlackToken, true
	case "openai":
		return ItemOpenAIKey, true
	case "gemini":
		return ItemGeminiKey, true
	}
	return "", false
}

// EnvVar returns the environment variable that overrides the item
func (i Item) EnvVar() string {
	switch i {
	case ItemGitHubToken:
		return "GITHUB_TOKEN"
	case ItemSlackToken:
		return "SLACK_TOKEN"
	case ItemOpenAIKey:
		return "OPENAI_API_KEY"
	case ItemGeminiKey:
		return "GEMINI_API_KEY"
	}
	return ""
}

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// Set stores a secret in the OS keychain
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
func (km *KeyringManager) Set(item Item, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}
	if err := keyring.Set(KeyringService, string(item), secret); err != nil {
		km.logger.Error("failed to save to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("saved to keychain", "service", KeyringService, "item", item)
	return nil
}

// Get retrieves a secret. A missing item is not an error.
func (km *KeyringManager) Get(item Item) (string, error) {
	secret, err := keyring.Get(KeyringService, string(item))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		km.logger.Debug("failed to read from keychain", "item", item, "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return secret, nil
}

// Delete removes a secret. Deleting a missing item is not an error.
func (km *KeyringManager) Delete(item Item) error {
	err := keyring.Delete(KeyringService, string(item))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	km.logger.Info("deleted from keychain", "item", item)
	return nil
}

// IsAvailable checks if OS keychain is available.
// Returns false on headless systems (CI) without a secret service.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	km.logger.Debug("keychain not available", "error", err)
	return false
}

// MaskSecret masks a secret for display: "sk-proj...c123"
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:7], secret[len(secret)-4:])
}
