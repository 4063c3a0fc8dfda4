package config

import "testing"

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "receptionist", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Vapi:  VapiConfig{WebhookSecret: "hook", ToolSecret: "tool"},
		Trial: TrialConfig{APISecret: "meter"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "receptionist"
	c.Auth.JWTAudience = "api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RequiresVapiSecrets(t *testing.T) {
	c := validBase()
	c.Vapi.WebhookSecret = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing VAPI_WEBHOOK_SECRET")
	}

	c = validBase()
	c.Vapi.ToolSecret = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing VAPI_TOOL_SECRET")
	}

	c = validBase()
	c.Trial.APISecret = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing USAGE_API_SECRET")
	}
}

func TestValidate_DefaultsUpgradeURL(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Trial.UpgradeURL != "/upgrade" {
		t.Fatalf("expected default upgrade url, got %q", c.Trial.UpgradeURL)
	}
}
