// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFile is the settings document location relative to the working
// directory, overridable through FLB_SETTINGS.
const DefaultFile = "settings.json"

// tokenFile is the legacy fallback location for the mod.io bearer token.
const tokenFile = "modio_token.txt"

// ErrCreated is returned by Load when no settings document existed and
// a default one was written for the operator to fill in.
var ErrCreated = errors.New("config: settings file created, fill it in and restart")

// Auth is the platform credential pair.
type Auth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ImapAuth configures the mailbox used for automated email-code
// resolution. An incomplete block disables the inbox resolver.
type ImapAuth struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Preferences are saved operator choices, replayed on later launches
// when Use is set.
type Preferences struct {
	Use         bool   `json:"use"`
	LogLevel    string `json:"logLevel"`
	AuthHandler string `json:"authHandler"`
}

// Settings is the persisted settings document.
type Settings struct {
	// Interval is the lobby refresh period in seconds.
	Interval int `json:"interval"`

	// ModIOToken is the bearer token for the thumbnail API. Empty
	// disables the thumbnail cache.
	ModIOToken string `json:"modio_token"`

	Auth        Auth         `json:"auth"`
	IMAP        ImapAuth     `json:"imap"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Defaults is written out when no settings document exists.
var Defaults = Settings{
	Interval:   30,
	ModIOToken: "your-token",
	IMAP: ImapAuth{
		Host: "imap.gmail.com",
		Port: 993,
	},
}

// Path resolves the settings document location.
func Path() string {
	if p := os.Getenv("FLB_SETTINGS"); p != "" {
		return p
	}
	return DefaultFile
}

// Load reads the settings document at path. When the file is missing a
// default document is written and ErrCreated returned so the caller can
// tell the operator to fill it in.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := Save(path, &Defaults); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrCreated, path)
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if s.Interval <= 0 {
		s.Interval = Defaults.Interval
	}
	return &s, nil
}

// Save writes the settings document to path.
func Save(path string, s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// RefreshInterval returns the lobby refresh period as a duration.
func (s *Settings) RefreshInterval() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// HasIMAP reports whether the mailbox block is complete enough for
// automated code resolution.
func (s *Settings) HasIMAP() bool {
	return strings.TrimSpace(s.IMAP.Host) != "" &&
		strings.TrimSpace(s.IMAP.Username) != "" &&
		strings.TrimSpace(s.IMAP.Password) != ""
}

// Token returns the mod.io bearer token from the settings document,
// falling back to the legacy token file beside it. Empty means the
// thumbnail feature is disabled, not an error.
func (s *Settings) Token(settingsPath string) string {
	tok := strings.TrimSpace(s.ModIOToken)
	if tok != "" && tok != Defaults.ModIOToken {
		return tok
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(settingsPath), tokenFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
