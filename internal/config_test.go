package internal

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
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

func TestEmbeddingConfig_EmptyProviderDefaultsLocal(t *testing.T) {
	cfg := EmbeddingConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty provider should default to local: %v", err)
	}
	if cfg.Provider != EmbeddingProviderLocal {
		t.Errorf("provider = %q, want %q", cfg.Provider, EmbeddingProviderLocal)
	}
}

func TestEmbeddingConfig_OpenAIRequiresKey(t *testing.T) {
	cfg := EmbeddingConfig{Provider: "openai"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("openai provider without api_key should fail")
	}
	if !strings.Contains(err.Error(), "api_key is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEmbeddingConfig_UnknownProvider(t *testing.T) {
	if err := (&EmbeddingConfig{Provider: "oracle"}).Validate(); err == nil {
		t.Fatal("unknown provider should fail validation")
	}
}

func TestVaultConfig_RequiresOwner(t *testing.T) {
	cfg := VaultConfig{Path: "./vault"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing owner_id should fail validation")
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var s struct {
		Window Duration `yaml:"window"`
	}
	if err := yaml.Unmarshal([]byte("window: 10s\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Window.Std() != 10*time.Second {
		t.Errorf("window = %v, want 10s", s.Window.Std())
	}

	if err := yaml.Unmarshal([]byte("window: soon\n"), &s); err == nil {
		t.Error("invalid duration should fail to parse")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Sync.DebounceWindow.Std() != 10*time.Second {
		t.Errorf("debounce window = %v, want 10s", cfg.Sync.DebounceWindow.Std())
	}
	if cfg.Idempotency.TTL.Std() != 24*time.Hour {
		t.Errorf("idempotency ttl = %v, want 24h", cfg.Idempotency.TTL.Std())
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
