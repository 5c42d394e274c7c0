package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jcgs2503/vestbridge/internal/errors"
)

func TestLoad_FirstRunWritesTemplateAndDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker != "paper" {
		t.Errorf("broker = %q, want paper", cfg.Broker)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Console || !cfg.Logging.File {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	// Directory layout and the config template exist afterwards.
	for _, path := range []string{
		cfg.MandatesDir(),
		cfg.AgentsDir(),
		cfg.PaperDir(),
		filepath.Join(dir, "config.yaml"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", path, err)
		}
	}
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := "broker: paper\ndefault_agent: agt_12345678\nlogging:\n  level: debug\n  console: false\n  file: true\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultAgent != "agt_12345678" {
		t.Errorf("default agent = %q", cfg.DefaultAgent)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Console {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VEST_AGENT", "agt_env00001")
	t.Setenv("VEST_LOG_LEVEL", "warn")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultAgent != "agt_env00001" {
		t.Errorf("default agent = %q", cfg.DefaultAgent)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("broker: paper\nlogging:\n  level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("invalid log level accepted")
	}
	if !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("err = %v", err)
	}
}

func TestPaths_UnderBaseDir(t *testing.T) {
	cfg := &Config{BaseDir: "/data/vest"}

	paths := map[string]string{
		"audit":  cfg.AuditPath(),
		"db":     cfg.DBPath(),
		"log":    cfg.LogPath(),
		"owner":  cfg.OwnerKeyPath(),
		"paper":  cfg.PaperDir(),
		"agents": cfg.AgentsDir(),
	}
	for name, p := range paths {
		if !filepath.IsAbs(p) || p[:len("/data/vest")] != "/data/vest" {
			t.Errorf("%s path = %q, want under base dir", name, p)
		}
	}
	if filepath.Base(cfg.AuditPath()) != "audit.jsonl" {
		t.Errorf("audit path = %q", cfg.AuditPath())
	}
}
