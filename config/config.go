// Package config loads, validates, and watches the notifier
// configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Superl3/OpenCode-Discord-Notifier/classify"
	"github.com/Superl3/OpenCode-Discord-Notifier/discord"
)

// Config is the full notifier configuration.
type Config struct {
	// Enabled turns the whole notifier on or off.
	Enabled bool `yaml:"enabled" json:"enabled"`

	Trigger     Trigger     `yaml:"trigger" json:"trigger"`
	Message     Message     `yaml:"message" json:"message"`
	Discord     Discord     `yaml:"discord" json:"discord"`
	Environment Environment `yaml:"environment" json:"environment"`

	// Classify overrides the built-in classifier keyword lists. Empty
	// lists fall back to the defaults.
	Classify classify.RuleSet `yaml:"classify" json:"classify"`

	// RoutesPath is where thread routes are persisted. Empty selects a
	// per-user default under the OS config directory.
	RoutesPath string `yaml:"routesPath" json:"routesPath"`
}

// Trigger controls when a notification fires.
type Trigger struct {
	// NotifyOnSessionIdle fires on session.idle events.
	NotifyOnSessionIdle bool `yaml:"notifyOnSessionIdle" json:"notifyOnSessionIdle"`

	// NotifyOnStatusIdle additionally fires on session.status events
	// reporting idle.
	NotifyOnStatusIdle bool `yaml:"notifyOnStatusIdle" json:"notifyOnStatusIdle"`

	// CooldownMs is the minimum gap between notifications for one
	// session. Interrupt notices bypass it.
	CooldownMs int `yaml:"cooldownMs" json:"cooldownMs" jsonschema:"minimum=0"`

	// DedupeWindowMs is how long identical content is suppressed.
	DedupeWindowMs int `yaml:"dedupeWindowMs" json:"dedupeWindowMs" jsonschema:"minimum=0"`

	// ReadyWindowMs is the debounce window for CLI line matches;
	// matches inside one window coalesce into a single notification.
	ReadyWindowMs int `yaml:"readyWindowMs" json:"readyWindowMs" jsonschema:"minimum=0"`

	// RequireAssistantMessage suppresses plain ready notifications for
	// sessions that never produced an assistant message.
	RequireAssistantMessage bool `yaml:"requireAssistantMessage" json:"requireAssistantMessage"`
}

// Message controls how the notification text is rendered.
type Message struct {
	// Mode is raw, clean, or summary.
	Mode string `yaml:"mode" json:"mode" jsonschema:"enum=raw,enum=clean,enum=summary"`

	// Title is the header line title.
	Title string `yaml:"title" json:"title"`

	// IncludeMetadata adds the timestamp/elapsed/trigger line.
	IncludeMetadata bool `yaml:"includeMetadata" json:"includeMetadata"`

	// IncludeRawInCodeBlock appends the raw output tail in a fence.
	IncludeRawInCodeBlock bool `yaml:"includeRawInCodeBlock" json:"includeRawInCodeBlock"`

	// MaxChars caps the rendered message; the platform ceiling of 2000
	// applies on top.
	MaxChars int `yaml:"maxChars" json:"maxChars" jsonschema:"minimum=1,maximum=2000"`

	// SummaryMaxBullets caps summary-mode bullets.
	SummaryMaxBullets int `yaml:"summaryMaxBullets" json:"summaryMaxBullets" jsonschema:"minimum=1"`
}

// Discord holds delivery credentials and targets.
type Discord struct {
	// BotToken authenticates the bot. The template placeholder keeps
	// the notifier silently disabled.
	BotToken string `yaml:"botToken" json:"botToken"`

	// Targets are the destinations every notification goes to.
	Targets []discord.Target `yaml:"targets" json:"targets"`

	// MentionUserID, when set, prepends a mention to notifications.
	MentionUserID string `yaml:"mentionUserId" json:"mentionUserId"`

	// TimeoutMs bounds each delivery call.
	TimeoutMs int `yaml:"timeoutMs" json:"timeoutMs" jsonschema:"minimum=0"`

	// SessionThreadsEnabled routes channel-target notifications into a
	// per-session thread.
	SessionThreadsEnabled bool `yaml:"sessionThreadsEnabled" json:"sessionThreadsEnabled"`

	// SessionThreadAutoArchiveMinutes is passed to thread creation.
	// Discord accepts 60, 1440, 4320 or 10080.
	SessionThreadAutoArchiveMinutes int `yaml:"sessionThreadAutoArchiveMinutes" json:"sessionThreadAutoArchiveMinutes"`
}

// Environment describes where the notifier runs.
type Environment struct {
	// RuntimeKey identifies this runtime, e.g. "opencode".
	RuntimeKey string `yaml:"runtimeKey" json:"runtimeKey"`

	// Label is the human name shown in headers, e.g. "work laptop".
	Label string `yaml:"label" json:"label"`

	// RequiresSetup adds a setup warning to every notification until
	// the environment is registered.
	RequiresSetup bool `yaml:"requiresSetup" json:"requiresSetup"`
}

// Default returns the built-in configuration. The Discord token is a
// placeholder, so a default config is valid but not usable.
func Default() *Config {
	return &Config{
		Enabled: true,
		Trigger: Trigger{
			NotifyOnSessionIdle:     true,
			NotifyOnStatusIdle:      false,
			CooldownMs:              30000,
			DedupeWindowMs:          15000,
			ReadyWindowMs:           1500,
			RequireAssistantMessage: true,
		},
		Message: Message{
			Mode:              "clean",
			Title:             "OpenCode",
			IncludeMetadata:   true,
			MaxChars:          1800,
			SummaryMaxBullets: 5,
		},
		Discord: Discord{
			BotToken:                        "YOUR_BOT_TOKEN",
			TimeoutMs:                       10000,
			SessionThreadAutoArchiveMinutes: 1440,
		},
		Classify: classify.DefaultRuleSet(),
	}
}

// Cooldown returns CooldownMs as a duration.
func (t Trigger) Cooldown() time.Duration { return time.Duration(t.CooldownMs) * time.Millisecond }

// DedupeWindow returns DedupeWindowMs as a duration.
func (t Trigger) DedupeWindow() time.Duration {
	return time.Duration(t.DedupeWindowMs) * time.Millisecond
}

// ReadyWindow returns ReadyWindowMs as a duration.
func (t Trigger) ReadyWindow() time.Duration {
	return time.Duration(t.ReadyWindowMs) * time.Millisecond
}

// Timeout returns TimeoutMs as a duration.
func (d Discord) Timeout() time.Duration { return time.Duration(d.TimeoutMs) * time.Millisecond }

// EnvName returns the best human name for this environment.
func (e Environment) EnvName() string {
	if e.Label != "" {
		return e.Label
	}
	return e.RuntimeKey
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "opencode-discord-notifier", "config.yaml")
}

// DefaultRoutesPath returns the per-user thread-route store location.
func DefaultRoutesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "opencode-discord-notifier", "threads.json")
}
