package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(out, "pokedex version dev") {
		t.Errorf("output = %q", out)
	}

	code, out, _ = runCLI(t, "--version")
	if code != 0 || !strings.Contains(out, "version dev") {
		t.Errorf("--version = %d %q", code, out)
	}
}

func TestUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "catch")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unknown command") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCachePurge_RequiresRedis(t *testing.T) {
	code, _, stderr := runCLI(t, "cache", "purge")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, ErrPurgeNeedsRedis.Error()) {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestServe_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokedex.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  backend: memcached\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runCLI(t, "--config", path, "serve")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "memcached") {
		t.Errorf("stderr = %q, want the invalid backend named", stderr)
	}
}
