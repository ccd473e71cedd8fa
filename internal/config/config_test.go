package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_SQL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DatabaseURL == "" {
		t.Error("expected a default database URL")
	}
	if cfg.LogSQL {
		t.Error("expected SQL logging off by default")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("LOG_SQL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DatabaseURL != "postgres://test:test@db:5432/test" {
		t.Errorf("unexpected database URL %q", cfg.DatabaseURL)
	}
	if !cfg.LogSQL {
		t.Error("expected SQL logging enabled")
	}
}
