package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholderXsRE = regexp.MustCompile(`(?i)^x{3,}$`)

// Load reads the config at path on top of the defaults. A missing file
// returns the defaults; a present but broken file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.backfill()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// backfill replaces zeroed numeric and string knobs with defaults, so
// a sparse file still yields a complete config.
func (c *Config) backfill() {
	def := Default()
	if c.Trigger.CooldownMs <= 0 {
		c.Trigger.CooldownMs = def.Trigger.CooldownMs
	}
	if c.Trigger.DedupeWindowMs <= 0 {
		c.Trigger.DedupeWindowMs = def.Trigger.DedupeWindowMs
	}
	if c.Trigger.ReadyWindowMs <= 0 {
		c.Trigger.ReadyWindowMs = def.Trigger.ReadyWindowMs
	}
	if c.Message.Mode == "" {
		c.Message.Mode = def.Message.Mode
	}
	if c.Message.Title == "" {
		c.Message.Title = def.Message.Title
	}
	if c.Message.MaxChars <= 0 {
		c.Message.MaxChars = def.Message.MaxChars
	}
	if c.Message.SummaryMaxBullets <= 0 {
		c.Message.SummaryMaxBullets = def.Message.SummaryMaxBullets
	}
	if c.Discord.TimeoutMs <= 0 {
		c.Discord.TimeoutMs = def.Discord.TimeoutMs
	}
	if c.Discord.SessionThreadAutoArchiveMinutes <= 0 {
		c.Discord.SessionThreadAutoArchiveMinutes = def.Discord.SessionThreadAutoArchiveMinutes
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Message.Mode {
	case "raw", "clean", "summary":
	default:
		return fmt.Errorf("message.mode %q is not raw, clean or summary", c.Message.Mode)
	}
	for i, t := range c.Discord.Targets {
		if t.Type != "user" && t.Type != "channel" {
			return fmt.Errorf("discord.targets[%d].type %q is not user or channel", i, t.Type)
		}
	}
	return nil
}

// IsPlaceholder reports whether a credential or id is still a template
// value rather than something real.
func IsPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return true
	}
	upper := strings.ToUpper(s)
	if strings.Contains(upper, "YOUR_") ||
		strings.Contains(upper, "REPLACE") ||
		strings.Contains(upper, "CHANGEME") {
		return true
	}
	return placeholderXsRE.MatchString(s)
}

// Usable reports whether delivery can work at all: enabled, a real
// token, and at least one real target. An unusable config silently
// disables notifications instead of failing the host.
func (c *Config) Usable() bool {
	if !c.Enabled || IsPlaceholder(c.Discord.BotToken) {
		return false
	}
	for _, t := range c.Discord.Targets {
		if !IsPlaceholder(t.ID) {
			return true
		}
	}
	return false
}
