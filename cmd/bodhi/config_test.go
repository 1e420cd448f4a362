package main

import "testing"

func TestLoadEnvConfigDefaults(t *testing.T) {
	cfg, err := loadEnvConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %q", cfg.Host)
	}
	if cfg.Port != 1135 {
		t.Errorf("expected default port 1135, got %d", cfg.Port)
	}
	if cfg.LlamaServerExec != "llama-server" {
		t.Errorf("expected default exec llama-server, got %q", cfg.LlamaServerExec)
	}
	if cfg.KeycloakRealm != "bodhi" {
		t.Errorf("expected default realm bodhi, got %q", cfg.KeycloakRealm)
	}
}

func TestLoadEnvConfigOverrides(t *testing.T) {
	t.Setenv("BODHI_HOME", "/tmp/bodhi-test-home")
	t.Setenv("BODHI_PORT", "9999")
	t.Setenv("BODHI_KEYCLOAK_URL", "https://idp.example.com")
	t.Setenv("BODHI_LOG_JSON", "true")

	cfg, err := loadEnvConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Home != "/tmp/bodhi-test-home" {
		t.Errorf("expected BODHI_HOME override, got %q", cfg.Home)
	}
	if cfg.Port != 9999 {
		t.Errorf("expected BODHI_PORT override, got %d", cfg.Port)
	}
	if cfg.KeycloakBaseURL != "https://idp.example.com" {
		t.Errorf("expected BODHI_KEYCLOAK_URL override, got %q", cfg.KeycloakBaseURL)
	}
	if !cfg.LogJSON {
		t.Error("expected BODHI_LOG_JSON override to parse true")
	}
}
