/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 8888 {
		t.Errorf("expected default port 8888, got %d", cfg.Port)
	}
	if cfg.ReplicationPort != 8897 {
		t.Errorf("expected default replication_port 8897, got %d", cfg.ReplicationPort)
	}
	if cfg.AuditPort != 8898 {
		t.Errorf("expected default audit_port 8898, got %d", cfg.AuditPort)
	}
	if cfg.Role != "standalone" {
		t.Errorf("expected default role 'standalone', got %q", cfg.Role)
	}
	if cfg.StorePath != "oplog.store" {
		t.Errorf("expected default store_path 'oplog.store', got %q", cfg.StorePath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level 'info', got %q", cfg.LogLevel)
	}
	if cfg.LogJSON {
		t.Errorf("expected default log_json false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid standalone", func(c *Config) {}, false},
		{"valid peer", func(c *Config) { c.Role = "peer"; c.SeedAddr = "localhost:8897" }, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"port conflict", func(c *Config) { c.ReplicationPort = c.Port }, true},
		{"audit port conflicts with port", func(c *Config) { c.AuditPort = c.Port }, true},
		{"audit port conflicts with replication port", func(c *Config) { c.AuditPort = c.ReplicationPort }, true},
		{"audit port disabled is fine", func(c *Config) { c.AuditPort = 0 }, false},
		{"invalid role", func(c *Config) { c.Role = "bogus" }, true},
		{"peer without seed_addr", func(c *Config) { c.Role = "peer" }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "bogus" }, true},
		{"empty store_path", func(c *Config) { c.StorePath = "" }, true},
		{"empty actor_id", func(c *Config) { c.ActorID = "" }, true},
		{"invalid compression", func(c *Config) { c.Compression = "bogus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `# test configuration
actor_id = "node-b"
log_id = "orders"
role = "peer"
port = 9000
replication_port = 9001
seed_addr = "10.0.0.1:8897"
store_path = "/tmp/test.store"
log_level = "debug"
log_json = true
`
	configPath := filepath.Join(tmpDir, "oplog.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	cfg := mgr.Get()
	if cfg.ActorID != "node-b" {
		t.Errorf("expected actor_id 'node-b', got %q", cfg.ActorID)
	}
	if cfg.Role != "peer" {
		t.Errorf("expected role 'peer', got %q", cfg.Role)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.LogJSON != true {
		t.Errorf("expected log_json true, got %v", cfg.LogJSON)
	}
	if cfg.ConfigFile != configPath {
		t.Errorf("expected ConfigFile %q, got %q", configPath, cfg.ConfigFile)
	}
}

func TestLoadFromEnv(t *testing.T) {
	for k, v := range map[string]string{
		EnvPort:     "7777",
		EnvRole:     "peer",
		EnvSeedAddr: "localhost:8897",
		EnvLogLevel: "debug",
		EnvLogJSON:  "true",
	} {
		t.Setenv(k, v)
	}

	mgr := NewManager()
	mgr.LoadFromEnv()
	cfg := mgr.Get()

	if cfg.Port != 7777 {
		t.Errorf("expected port 7777 from env, got %d", cfg.Port)
	}
	if cfg.Role != "peer" {
		t.Errorf("expected role 'peer' from env, got %q", cfg.Role)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.LogLevel)
	}
	if !cfg.LogJSON {
		t.Errorf("expected log_json true from env")
	}
}

func TestConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := "port = 9000\nrole = \"standalone\"\n"
	configPath := filepath.Join(tmpDir, "oplog.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv(EnvPort, "7777")

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	mgr.LoadFromEnv()

	if got := mgr.Get().Port; got != 7777 {
		t.Errorf("expected env to override file value: got %d, want 7777", got)
	}
}

func TestToTOML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Role = "peer"
	cfg.SeedAddr = "localhost:8897"

	toml := cfg.ToTOML()
	for _, want := range []string{`role = "peer"`, `seed_addr = "localhost:8897"`, "port = 8888"} {
		if !strings.Contains(toml, want) {
			t.Errorf("ToTOML() missing %q, got:\n%s", want, toml)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Port = 7777

	path := filepath.Join(tmpDir, "nested", "oplog.conf")
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if got := mgr.Get().Port; got != 7777 {
		t.Errorf("expected reloaded port 7777, got %d", got)
	}

	reloaded := false
	mgr.OnReload(func(c *Config) { reloaded = true })

	if err := os.WriteFile(path, []byte("port = 6666\nrole = \"standalone\"\nactor_id = \"node-a\"\nlog_id = \"default\"\nstore_path = \"oplog.store\"\nlog_level = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config file: %v", err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := mgr.Get().Port; got != 6666 {
		t.Errorf("expected reloaded port 6666, got %d", got)
	}
	if !reloaded {
		t.Error("expected OnReload callback to fire")
	}
}

func TestGlobalManager(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
}

func TestConfigString(t *testing.T) {
	str := DefaultConfig().String()
	if !strings.Contains(str, "Role:") || !strings.Contains(str, "standalone") {
		t.Errorf("String() missing expected content: %s", str)
	}
}
