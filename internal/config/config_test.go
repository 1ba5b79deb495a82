package config_test

import (
	"strings"
	"testing"

	"afkari/internal/config"
	"afkari/internal/prompt"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Model.Name != "gemini-2.5-flash" || cfg.Prompt.Version != prompt.VersionV2 {
		t.Fatalf("defaults: %#v", cfg)
	}
}

func TestFromYAMLPartialOverride(t *testing.T) {
	cfg, err := config.FromYAML([]byte("model:\n  timeout_seconds: 30\nprompt:\n  version: v1.0\n"))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	if cfg.Model.TimeoutSeconds != 30 {
		t.Fatalf("override lost: %d", cfg.Model.TimeoutSeconds)
	}
	if cfg.Prompt.Version != prompt.VersionV1 {
		t.Fatalf("version override lost: %q", cfg.Prompt.Version)
	}
	if cfg.Generation.Temperature != 0.4 {
		t.Fatalf("unset fields must keep defaults: %v", cfg.Generation.Temperature)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		yaml string
		want string
	}{
		{"prompt:\n  version: v3.0\n", "prompt.version"},
		{"generation:\n  temperature: 5\n", "temperature"},
		{"generation:\n  top_p: 2\n", "top_p"},
		{"model:\n  timeout_seconds: 0\n", "timeout_seconds"},
	}
	for _, c := range cases {
		_, err := config.FromYAML([]byte(c.yaml))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("yaml %q: expected error about %s, got %v", c.yaml, c.want, err)
		}
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name == "" {
		t.Fatalf("missing file must fall back to defaults")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Prompt.Locale = "fr"
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Prompt.Locale != "fr" {
		t.Fatalf("round trip lost locale: %q", loaded.Prompt.Locale)
	}
}
