package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config      string
	Port        int      `toml:"server.port" env:"PORT"`
	Host        string   `toml:"server.host" env:"HOST"`
	Debug       bool     `toml:"debug" env:"DEBUG"`
	StreamsFile string   `toml:"streams_file" env:"STREAMS_FILE"`
	Tags        []string `toml:"tags" env:"TAGS"`
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
debug = true
streams_file = "streams.toml"
tags = ["a", "b"]

[server]
port = 9000
host = "0.0.0.0"
`)

	opts := testOptions{Config: path, Port: 8080}
	if err := Load(&opts, nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.Port != 9000 || opts.Host != "0.0.0.0" || !opts.Debug {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.StreamsFile != "streams.toml" {
		t.Fatalf("streams_file = %q", opts.StreamsFile)
	}
	if len(opts.Tags) != 2 || opts.Tags[0] != "a" {
		t.Fatalf("tags = %v", opts.Tags)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 9000\n")
	t.Setenv("STREAMRELAY_PORT", "7070")
	t.Setenv("STREAMRELAY_DEBUG", "true")
	t.Setenv("STREAMRELAY_TAGS", "x, y, z")

	opts := testOptions{Config: path}
	if err := Load(&opts, nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.Port != 7070 {
		t.Fatalf("port = %d, want env override 7070", opts.Port)
	}
	if !opts.Debug {
		t.Fatal("debug not set from env")
	}
	if len(opts.Tags) != 3 || opts.Tags[1] != "y" {
		t.Fatalf("tags = %v", opts.Tags)
	}
}

func TestLoadCLIBeatsEverything(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 9000\n")
	t.Setenv("STREAMRELAY_PORT", "7070")

	opts := testOptions{Config: path}
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&opts.Port, "port", 8080, "")
	if err := cmd.Flags().Set("port", "6060"); err != nil {
		t.Fatal(err)
	}

	if err := Load(&opts, cmd); err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.Port != 6060 {
		t.Fatalf("port = %d, want CLI value 6060", opts.Port)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	opts := testOptions{Config: "/nonexistent/config.toml", Port: 8080}
	if err := Load(&opts, nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.Port != 8080 {
		t.Fatalf("port = %d, want default preserved", opts.Port)
	}
}

func TestFlagName(t *testing.T) {
	cases := map[string]string{
		"Port":        "port",
		"MetricsPort": "metrics-port",
		"StreamsFile": "streams-file",
	}
	for in, want := range cases {
		if got := flagName(in); got != want {
			t.Errorf("flagName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLogging(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
relay = "warn"
`)

	cfg := LoadLogging(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Modules["relay"] != "warn" {
		t.Fatalf("modules = %v", cfg.Modules)
	}

	defaults := LoadLogging("/nonexistent/config.toml")
	if defaults.Level != "info" || defaults.Format != "text" {
		t.Fatalf("defaults = %+v", defaults)
	}
}
