package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.LLM.WeeklyModel != "gpt-4.1" {
		t.Errorf("weekly model = %q, want gpt-4.1", cfg.LLM.WeeklyModel)
	}
}

func TestLLMConfig_UnknownProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.Provider = "mystery"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "llm") {
		t.Fatalf("err = %v, want llm validation failure", err)
	}
}

func TestLLMConfig_WeeklyModelDefaultsToModel(t *testing.T) {
	cfg := LLMConfig{Provider: ProviderDeepSeek, Model: "deepseek-chat", Temperature: 0.3,
		MaxTokens: 100, TimeoutSeconds: 5, RetryAttempts: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.WeeklyModel != "deepseek-chat" {
		t.Errorf("weekly model = %q, want deepseek-chat", cfg.WeeklyModel)
	}
}

func TestAudioConfig_MaxBelowMin(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Audio.MinDuration = 60
	cfg.Audio.MaxDuration = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("max_duration below min_duration should fail")
	}
}

func TestPathsConfig_Resolve(t *testing.T) {
	p := PathsConfig{Vault: "/data/vault", DailyNotes: "Daily Notes", Projects: ".",
		Inbox: "/mnt/phone/inbox", SQLite: ".worklog/index.db"}
	if got := p.DailyNotesDir(); got != "/data/vault/Daily Notes" {
		t.Errorf("daily = %q", got)
	}
	if got := p.ProjectsDir(); got != "/data/vault" {
		t.Errorf("projects = %q", got)
	}
	if got := p.InboxDir(); got != "/mnt/phone/inbox" {
		t.Errorf("inbox = %q, want absolute path kept", got)
	}
	if got := p.LocksDir(); got != "/data/vault/.worklog/locks" {
		t.Errorf("locks = %q", got)
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := ApplicationConfig{HTTP: HTTPConfig{Port: 80}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("log format = %q, want json", cfg.LogFormat)
	}
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown log format should fail")
	}
}
