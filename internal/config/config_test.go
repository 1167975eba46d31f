package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/go-dominance/internal/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"NamePrefix", cfg.NamePrefix, "b"},
		{"Parallelism", cfg.Parallelism, 1},
		{"Verify", cfg.Verify, false},
		{"FailFast", cfg.FailFast, false},
		{"Format", cfg.Format, FormatText},
		{"LogLevel", cfg.LogLevel, "info"},
		{"Verbose", cfg.Verbose, false},
		{"LogJSON", cfg.LogJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() does not validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "every format",
			mutate:  func(c *Config) { c.Format = FormatMsgpack },
			wantErr: false,
		},
		{
			name:        "empty prefix",
			mutate:      func(c *Config) { c.NamePrefix = "" },
			wantErr:     true,
			errContains: "name_prefix must not be empty",
		},
		{
			name:        "prefix with dot",
			mutate:      func(c *Config) { c.NamePrefix = "b." },
			wantErr:     true,
			errContains: "must not contain whitespace or dots",
		},
		{
			name:        "zero parallelism",
			mutate:      func(c *Config) { c.Parallelism = 0 },
			wantErr:     true,
			errContains: "parallelism must be positive",
		},
		{
			name:        "unknown log level",
			mutate:      func(c *Config) { c.LogLevel = "loud" },
			wantErr:     true,
			errContains: "invalid log_level",
		},
		{
			name:        "unknown format",
			mutate:      func(c *Config) { c.Format = "xml" },
			wantErr:     true,
			errContains: "invalid format: xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(*testing.T, *Config)
		wantErr bool
	}{
		{
			name: "full config",
			content: `name_prefix: blk
parallelism: 4
verify: true
fail_fast: true
format: json
log_level: warn
verbose: true
log_json: true
`,
			check: func(t *testing.T, cfg *Config) {
				want := Config{NamePrefix: "blk", Parallelism: 4, Verify: true, FailFast: true, Format: "json", LogLevel: "warn", Verbose: true, LogJSON: true}
				if *cfg != want {
					t.Errorf("LoadFromFile() = %+v, want %+v", *cfg, want)
				}
			},
		},
		{
			name:    "partial config keeps defaults",
			content: "verify: true\n",
			check: func(t *testing.T, cfg *Config) {
				if !cfg.Verify {
					t.Error("Verify not loaded")
				}
				if cfg.NamePrefix != "b" || cfg.Parallelism != 1 || cfg.Format != FormatText {
					t.Errorf("defaults lost: %+v", *cfg)
				}
			},
		},
		{
			name:    "invalid yaml",
			content: "parallelism: [1, 2\n",
			wantErr: true,
		},
		{
			name:    "invalid values",
			content: "parallelism: -2\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadFromFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromFile() on a missing file returned no error")
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(project); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	global := &Config{NamePrefix: "g", Parallelism: 2, Format: FormatYAML}
	if err := global.Save(filepath.Join(home, ".gdom", "config.yaml")); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(".gdom", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(".gdom", "config.yaml"), []byte("name_prefix: p\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GDOM_VERIFY", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NamePrefix != "p" {
		t.Errorf("NamePrefix = %q, want project value", cfg.NamePrefix)
	}
	if cfg.Parallelism != 2 || cfg.Format != FormatYAML {
		t.Errorf("global values lost: %+v", *cfg)
	}
	if !cfg.Verify {
		t.Error("GDOM_VERIFY not applied")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GDOM_NAME_PREFIX", "n")
	t.Setenv("GDOM_PARALLELISM", "8")
	t.Setenv("GDOM_FAIL_FAST", "1")
	t.Setenv("GDOM_FORMAT", "DOT")
	t.Setenv("GDOM_LOG_LEVEL", "error")
	t.Setenv("GDOM_VERBOSE", "true")
	t.Setenv("GDOM_LOG_JSON", "no")

	cfg := DefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatal(err)
	}

	want := Config{NamePrefix: "n", Parallelism: 8, FailFast: true, Format: FormatDOT, LogLevel: "error", Verbose: true}
	if *cfg != want {
		t.Errorf("applyEnvOverrides() = %+v, want %+v", *cfg, want)
	}

	t.Setenv("GDOM_PARALLELISM", "many")
	if err := applyEnvOverrides(DefaultConfig()); err == nil {
		t.Error("non-numeric GDOM_PARALLELISM accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	cfg := DefaultConfig()
	cfg.Verify = true
	cfg.Parallelism = 3

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip = %+v, want %+v", *loaded, *cfg)
	}
}

func TestConfigLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    log.Level
	}{
		{"info", false, log.InfoLevel},
		{"warn", false, log.WarnLevel},
		{"", false, log.InfoLevel},
		{"error", true, log.DebugLevel},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.LogLevel, cfg.Verbose = tt.level, tt.verbose
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level() with log_level=%q verbose=%v = %v, want %v", tt.level, tt.verbose, got, tt.want)
		}
	}
}
