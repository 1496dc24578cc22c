package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
ise:
  address: ise.example.net
  username: admin
  password: secret
policy:
  policy_set_name: Jira RW Policy
  shell_profile_name: Priv15
  command_set_names:
    - PermitAll
`

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ISE.Address != "ise.example.net" {
		t.Errorf("address = %q", cfg.ISE.Address)
	}
	if cfg.Policy.PolicySetName != "Jira RW Policy" {
		t.Errorf("policy set = %q", cfg.Policy.PolicySetName)
	}
	// defaults
	if cfg.HTTP.Addr != ":8000" {
		t.Errorf("addr default = %q", cfg.HTTP.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level default = %q", cfg.LogLevel)
	}
	if cfg.Schedule.Start || cfg.Schedule.End {
		t.Errorf("scheduling must default to off")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("ISEBRIDGE_ISE_ADDRESS", "other.example.net")
	t.Setenv("ISEBRIDGE_HTTP_ADDR", ":9000")
	t.Setenv("ISEBRIDGE_SCHEDULE_START", "true")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ISE.Address != "other.example.net" {
		t.Errorf("address = %q", cfg.ISE.Address)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.HTTP.Addr)
	}
	if !cfg.Schedule.Start {
		t.Error("schedule.start override not applied")
	}
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	cases := map[string]string{
		"missing ise address": `
ise:
  username: admin
  password: secret
policy:
  policy_set_name: P
  shell_profile_name: S
  command_set_names: [C]
`,
		"missing credentials": `
ise:
  address: ise.example.net
policy:
  policy_set_name: P
  shell_profile_name: S
  command_set_names: [C]
`,
		"missing command sets": `
ise:
  address: ise.example.net
  username: admin
  password: secret
policy:
  policy_set_name: P
  shell_profile_name: S
`,
	}

	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
	cfg.LogLevel = "nonsense"
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("fallback level = %v", cfg.SlogLevel())
	}
}
