package config

import (
	"strings"
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	data map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]any)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *memBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *memBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *memBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("expected default port 4000, got %d", cfg.Server.Port)
	}
	if cfg.Limits.SubmitPerMinute != 6 {
		t.Errorf("expected default submit limit 6, got %d", cfg.Limits.SubmitPerMinute)
	}
	if cfg.OpenAI.ImageModel != "dall-e-3" {
		t.Errorf("expected default image model dall-e-3, got %s", cfg.OpenAI.ImageModel)
	}
	if cfg.Client.Voice != "nova" {
		t.Errorf("expected default voice nova, got %s", cfg.Client.Voice)
	}
}

func TestLoad_BackendOverridesDefaults(t *testing.T) {
	b := newMemBackend()
	b.data["server.port"] = 5000
	b.data["client.server_url"] = "http://example.test:5000"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected port 5000 from backend, got %d", cfg.Server.Port)
	}
	if cfg.Client.ServerURL != "http://example.test:5000" {
		t.Errorf("unexpected server url: %s", cfg.Client.ServerURL)
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	b := newMemBackend()
	b.data["server.port"] = 5000
	t.Setenv("LINGOSCENE_SERVER_PORT", "6000")
	t.Setenv("LINGOSCENE_OPENAI_API_KEY", "sk-test")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("env must win over backend, got %d", cfg.Server.Port)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key must come from env, got %q", cfg.OpenAI.APIKey)
	}
}

func TestLoad_BadEnvIntKeepsDefault(t *testing.T) {
	t.Setenv("LINGOSCENE_LIMITS_SUBMIT_PER_MINUTE", "lots")

	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Limits.SubmitPerMinute != 6 {
		t.Errorf("unparsable env int must keep the default, got %d", cfg.Limits.SubmitPerMinute)
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.RequireAPIKey(); err == nil {
		t.Fatal("expected an error without an API key")
	}

	cfg.OpenAI.APIKey = "sk-test"
	if err := cfg.RequireAPIKey(); err != nil {
		t.Fatalf("unexpected error with key set: %v", err)
	}
}

func TestSetKey_RejectsSecrets(t *testing.T) {
	err := SetKey("openai.api_key", "sk-leak")
	if err == nil {
		t.Fatal("expected error setting a secret key")
	}
	if !strings.Contains(err.Error(), "LINGOSCENE_OPENAI_API_KEY") {
		t.Fatalf("error should point at the env var, got: %v", err)
	}
}

func TestSetKey_UnknownKey(t *testing.T) {
	if err := SetKey("no.such.key", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestShowAll_ExcludesSecrets(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, info := range ShowAll(cfg) {
		if info.Key == "openai.api_key" || info.Key == "server.internal_token" {
			t.Fatalf("secret key %s must not be listed", info.Key)
		}
	}
}
