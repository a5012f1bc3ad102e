package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(DefaultAppConfig(), cfg); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `mail:
  host: imap
  imap:
    host: imap.example.com
    username: ana@example.com
providers:
  claude:
    model: claude-3-haiku
  timeout: 30s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAILASSIST_PROVIDERS_MAX_TOKENS", "2048")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Mail.Host != MailHostIMAP || cfg.Mail.IMAP.Host != "imap.example.com" {
		t.Errorf("mail = %+v", cfg.Mail)
	}
	if cfg.Mail.IMAP.Port != "993" || cfg.Mail.IMAP.DraftsMailbox != "Drafts" {
		t.Errorf("imap defaults lost: %+v", cfg.Mail.IMAP)
	}
	if cfg.Providers.Claude.Model != "claude-3-haiku" {
		t.Errorf("claude model = %q", cfg.Providers.Claude.Model)
	}
	if cfg.Providers.Claude.BaseURL != "https://api.anthropic.com" {
		t.Errorf("claude base url = %q", cfg.Providers.Claude.BaseURL)
	}
	if cfg.Providers.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Providers.Timeout)
	}
	if cfg.Providers.MaxTokens != 2048 {
		t.Errorf("max tokens = %d, want env override 2048", cfg.Providers.MaxTokens)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "unknown host", mutate: func(c *AppConfig) { c.Mail.Host = "pop3" }, wantErr: "unknown host"},
		{name: "ews without url", mutate: func(c *AppConfig) { c.Mail.Host = MailHostEWS }, wantErr: "mail.ews.url"},
		{
			name: "ews bad auth",
			mutate: func(c *AppConfig) {
				c.Mail.Host = MailHostEWS
				c.Mail.EWS.URL = "https://mail.example.com/EWS/Exchange.asmx"
				c.Mail.EWS.Auth = "ntlm"
			},
			wantErr: "unknown auth",
		},
		{name: "imap without host", mutate: func(c *AppConfig) { c.Mail.Host = MailHostIMAP }, wantErr: "mail.imap.host"},
		{name: "bad backend", mutate: func(c *AppConfig) { c.Settings.Backend = "redis" }, wantErr: "unknown backend"},
		{name: "negative timeout", mutate: func(c *AppConfig) { c.Providers.Timeout = -time.Second }, wantErr: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAppConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := DefaultAppConfig()
	want.Mail.Host = MailHostEWS
	want.Mail.EWS.URL = "https://mail.example.com/EWS/Exchange.asmx"
	want.Mail.EWS.Username = "ana"

	if err := SaveConfig(path, want); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got.Mail.EWS.URL != want.Mail.EWS.URL || got.Mail.EWS.Username != "ana" {
		t.Errorf("ews = %+v", got.Mail.EWS)
	}
}

func TestParseProviderAndMode(t *testing.T) {
	if p, err := ParseProvider(" Claude "); err != nil || p != ProviderClaude {
		t.Errorf("ParseProvider(Claude) = %v, %v", p, err)
	}
	if _, err := ParseProvider("llama"); err == nil {
		t.Error("ParseProvider(llama) should fail")
	}
	if m, err := ParseMode(""); err != nil || m != ModeCurrent {
		t.Errorf("ParseMode(\"\") = %v, %v", m, err)
	}
	if m, err := ParseMode("SEARCH"); err != nil || m != ModeSearch {
		t.Errorf("ParseMode(SEARCH) = %v, %v", m, err)
	}
	if _, err := ParseMode("all"); err == nil {
		t.Error("ParseMode(all) should fail")
	}
}

func TestWithCredentialCopies(t *testing.T) {
	base := DefaultSettings()
	next := base.WithCredential(ProviderGemini, "gk")

	if base.Credential(ProviderGemini) != "" {
		t.Error("WithCredential mutated the receiver")
	}
	if next.Credential(ProviderGemini) != "gk" || next.SelectedProvider != ProviderOpenAI {
		t.Errorf("next = %+v", next)
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":                "(not set)",
		"abc":             "***",
		"sk-1234567890ab": "********90ab",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
