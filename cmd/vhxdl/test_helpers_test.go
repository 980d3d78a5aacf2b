package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	destDir    string
	stateDir   string
	configPath string
}

// setupCLITestEnv isolates HOME and credential variables and writes a config
// whose directories live under a temp dir. extra is appended verbatim.
func setupCLITestEnv(t *testing.T, extra string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, key := range []string{"VHX_CLIENT_ID", "VHX_CLIENT_SECRET", "VHX_USERNAME", "VHX_PASSWORD", "VHX_SITE_ID"} {
		t.Setenv(key, "")
	}

	env := &cliTestEnv{
		baseDir:    base,
		destDir:    filepath.Join(base, "dest"),
		stateDir:   filepath.Join(base, "state"),
		configPath: filepath.Join(base, "config.toml"),
	}
	content := fmt.Sprintf(`[paths]
dest_dir = %q
state_dir = %q
log_dir = %q

[logging]
level = "error"
retention_days = 0
`, env.destDir, env.stateDir, filepath.Join(base, "logs"))
	if err := os.WriteFile(env.configPath, []byte(content+extra), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if env != nil {
		args = append([]string{"--config", env.configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

// writeScript creates an executable shell script in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}
