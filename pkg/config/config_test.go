package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("WORKLOG_TEST_NAME", "vault")
	p := writeFile(t, "name: ${WORKLOG_TEST_NAME}\n")

	cfg := &sample{Count: 7}
	if err := Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "vault" {
		t.Errorf("name = %q, want %q", cfg.Name, "vault")
	}
	if cfg.Count != 7 {
		t.Errorf("count = %d, want default 7", cfg.Count)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeFile(t, "count: 1\n")
	err := Load(p, &sample{})
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg := &sample{Name: "default"}
	if err := LoadOptional(missing, cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q, want default", cfg.Name)
	}

	if err := LoadOptional(missing, &sample{}); err == nil {
		t.Fatal("expected defaults to be validated")
	}
}

func TestExpandEnv_Fallback(t *testing.T) {
	t.Setenv("WORKLOG_TEST_SET", "set")
	t.Setenv("WORKLOG_TEST_EMPTY", "")

	cases := map[string]string{
		"${WORKLOG_TEST_SET:-other}":     "set",
		"${WORKLOG_TEST_EMPTY:-other}":   "other",
		"${WORKLOG_TEST_UNSET:-./vault}": "./vault",
		"${WORKLOG_TEST_UNSET}":          "",
		"$WORKLOG_TEST_SET/x":            "set/x",
	}
	for in, want := range cases {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
