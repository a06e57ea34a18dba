package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func load(t *testing.T, register func(*pflag.FlagSet), args []string, out validator) error {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return Load(fs, out)
}

func TestLineDefaults(t *testing.T) {
	var c Line
	if err := load(t, LineFlags, nil, &c); err != nil {
		t.Fatal(err)
	}
	if c.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", c.Addr())
	}
	if c.IdleTimeout != 30*time.Second || c.WriteTimeout != 10*time.Second {
		t.Errorf("timeouts = %v, %v", c.IdleTimeout, c.WriteTimeout)
	}
	if c.MaxLines != 100 || c.MaxLineBytes != 8<<10 {
		t.Errorf("limits = %d, %d", c.MaxLines, c.MaxLineBytes)
	}
	if c.AbortOnError {
		t.Error("abort-on-error should default to false")
	}
	if c.Log.Level != "info" || c.Log.Format != "console" {
		t.Errorf("log = %+v", c.Log)
	}
}

func TestGreeterDefaults(t *testing.T) {
	var c Greeter
	if err := load(t, GreeterFlags, nil, &c); err != nil {
		t.Fatal(err)
	}
	if c.Addr() != "127.0.0.1:50051" {
		t.Errorf("Addr() = %q", c.Addr())
	}
	if c.Transport != TransportGRPC {
		t.Errorf("Transport = %q", c.Transport)
	}
	if c.Registry.Enabled() {
		t.Error("registry should be off by default")
	}
	if c.AdvertiseAddr() != c.Addr() {
		t.Errorf("AdvertiseAddr() = %q, want listen address", c.AdvertiseAddr())
	}
}

func TestPrecedence(t *testing.T) {
	t.Setenv("HELLO_PORT", "9090")
	t.Setenv("HELLO_LOG_LEVEL", "debug")
	t.Setenv("HELLO_REGISTRY_ENDPOINTS", "10.0.0.1:2379,10.0.0.2:2379")

	var fromEnv Greeter
	if err := load(t, GreeterFlags, nil, &fromEnv); err != nil {
		t.Fatal(err)
	}
	if fromEnv.Port != 9090 {
		t.Errorf("env port: got %d", fromEnv.Port)
	}
	if fromEnv.Log.Level != "debug" {
		t.Errorf("env log level: got %q", fromEnv.Log.Level)
	}
	if got := fromEnv.Registry.Endpoints; len(got) != 2 || got[1] != "10.0.0.2:2379" {
		t.Errorf("env endpoints: got %v", got)
	}

	var fromFlag Greeter
	if err := load(t, GreeterFlags, []string{"--port", "7070", "--log-level", "warn"}, &fromFlag); err != nil {
		t.Fatal(err)
	}
	if fromFlag.Port != 7070 || fromFlag.Log.Level != "warn" {
		t.Errorf("flags should win over env: port %d, level %q", fromFlag.Port, fromFlag.Log.Level)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.yaml")
	content := "port: 6000\nidle_timeout: 2s\nabort_on_error: true\nlog:\n  format: json\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	var c Line
	if err := load(t, LineFlags, []string{"--config", path, "--max-lines", "5"}, &c); err != nil {
		t.Fatal(err)
	}
	if c.Port != 6000 || c.IdleTimeout != 2*time.Second || !c.AbortOnError {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Log.Format != "json" || c.Log.Level != "info" {
		t.Errorf("log = %+v", c.Log)
	}
	if c.MaxLines != 5 {
		t.Errorf("flag should still apply next to the file, got max lines %d", c.MaxLines)
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if err := load(t, LineFlags, []string{"--config", missing}, &Line{}); err == nil {
		t.Error("expect an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		register func(*pflag.FlagSet)
		args     []string
		out      validator
		want     string
	}{
		{"greeter transport", GreeterFlags, []string{"--transport", "smoke"}, &Greeter{}, "unknown transport"},
		{"greeter port", GreeterFlags, []string{"--port", "70000"}, &Greeter{}, "out of range"},
		{"greeter rate", GreeterFlags, []string{"--rate-limit=-1"}, &Greeter{}, "negative rate"},
		{"greeter ttl", GreeterFlags, []string{"--registry-endpoints", "127.0.0.1:2379", "--registry-ttl", "0"}, &Greeter{}, "ttl"},
		{"line limits", LineFlags, []string{"--max-lines", "0"}, &Line{}, "must be positive"},
		{"line timeout", LineFlags, []string{"--idle-timeout=-1s"}, &Line{}, "negative"},
		{"client timeout", ClientFlags, []string{"--timeout", "0s"}, &Client{}, "timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := load(t, tc.register, tc.args, tc.out)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expect error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFlagKey(t *testing.T) {
	cases := map[string]string{
		"port":               "port",
		"idle-timeout":       "idle_timeout",
		"log-level":          "log.level",
		"registry-endpoints": "registry.endpoints",
		"logger":             "logger",
	}
	for in, want := range cases {
		if got := flagKey(in); got != want {
			t.Errorf("flagKey(%q) = %q, want %q", in, got, want)
		}
	}
}
