package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/teamgraph/internal/errors"
)

// CredentialManager resolves secrets with the precedence
// environment > keychain > credentials file.
type CredentialManager struct {
	keyring  *KeyringManager
	filePath string
}

// Credentials is the on-disk fallback when no keychain is available
type Credentials map[Item]string

// NewCredentialManager creates a manager backed by ~/.teamgraph/credentials.yaml
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{
		keyring:  NewKeyringManager(),
		filePath: filepath.Join(HomeDir(), "credentials.yaml"),
	}
}

// Resolve returns the secret for item. fallback is the value already
// present in the config file and wins over the keychain only when the
// keychain has nothing.
func (cm *CredentialManager) Resolve(item Item, fallback string) string {
	if v := os.Getenv(item.EnvVar()); v != "" {
		return v
	}
	if secret, err := cm.keyring.Get(item); err == nil && secret != "" {
		return secret
	}
	if fallback != "" {
		return fallback
	}
	if creds, err := cm.loadFile(); err == nil {
		return creds[item]
	}
	return ""
}

// Source reports where the secret for item would come from
func (cm *CredentialManager) Source(item Item) string {
	if os.Getenv(item.EnvVar()) != "" {
		return "env"
	}
	if secret, err := cm.keyring.Get(item); err == nil && secret != "" {
		return "keychain"
	}
	if creds, err := cm.loadFile(); err == nil && creds[item] != "" {
		return "file"
	}
	return "none"
}

// Save stores the secret in the keychain, or in the credentials file with
// user-only permissions when no keychain is available. It returns where
// the secret went.
func (cm *CredentialManager) Save(item Item, secret string) (string, error) {
	if secret == "" {
		return "", errors.ValidationErrorf("%s cannot be empty", item)
	}
	if cm.keyring.IsAvailable() {
		if err := cm.keyring.Set(item, secret); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
				"failed to save credential to keychain")
		}
		return "keychain", nil
	}

	creds, err := cm.loadFile()
	if err != nil {
		creds = Credentials{}
	}
	creds[item] = secret
	if err := cm.saveFile(creds); err != nil {
		return "", errors.FileSystemError(err, "failed to write credentials file")
	}
	return cm.filePath, nil
}

func (cm *CredentialManager) loadFile() (Credentials, error) {
	data, err := os.ReadFile(cm.filePath)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	if creds == nil {
		creds = Credentials{}
	}
	return creds, nil
}

func (cm *CredentialManager) saveFile(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(cm.filePath), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(cm.filePath, data, 0600)
}

// ReadSecret prints prompt and reads a secret without echo when stdin is a
// terminal, or a single line from piped input otherwise.
func ReadSecret(prompt string, out io.Writer) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
