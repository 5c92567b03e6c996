//go:build !windows

package sandbox

import (
	"context"
	"strings"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := FromPreset(PresetDefault, t.TempDir())
	return cfg
}

func TestProcessExecutorRun(t *testing.T) {
	e := &ProcessExecutor{}
	cfg := testConfig(t)

	res, err := e.Run(context.Background(), []string{"sh", "-c", "echo out; echo err 1>&2"}, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if res.Truncated.Stdout || res.Truncated.Stderr {
		t.Error("small output should not be truncated")
	}
}

func TestProcessExecutorExitCode(t *testing.T) {
	e := &ProcessExecutor{}
	res, err := e.Run(context.Background(), []string{"sh", "-c", "exit 3"}, "", testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
}

func TestProcessExecutorStdin(t *testing.T) {
	e := &ProcessExecutor{}
	res, err := e.Run(context.Background(), []string{"cat"}, "hello stdin", testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.Stdout != "hello stdin" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestProcessExecutorWallTimeout(t *testing.T) {
	e := &ProcessExecutor{}
	cfg := testConfig(t)
	cfg.Resources.WallTimeMs = 100

	res, err := e.Run(context.Background(), []string{"sleep", "5"}, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !res.TimedOut {
		t.Error("expected timeout")
	}
	// Wall-time kills report 124 by convention.
	if res.ExitCode != 124 {
		t.Errorf("exit code = %d, want 124", res.ExitCode)
	}
}

func TestProcessExecutorOutputTruncation(t *testing.T) {
	e := &ProcessExecutor{}
	cfg := testConfig(t)
	cfg.Resources.MaxOutputBytes = 64

	res, err := e.Run(context.Background(), []string{"sh", "-c", "yes x | head -c 4096"}, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truncated.Stdout {
		t.Error("expected stdout truncation")
	}
	if int64(len(res.Stdout)) > 64 {
		t.Errorf("stdout kept %d bytes, cap is 64", len(res.Stdout))
	}
}

func TestProcessExecutorEnvironment(t *testing.T) {
	e := &ProcessExecutor{}
	cfg := testConfig(t)
	cfg.Environment = map[string]string{"VELLUM_TEST_VAR": "42", "PATH": "/usr/bin:/bin"}

	res, err := e.Run(context.Background(), []string{"sh", "-c", "echo $VELLUM_TEST_VAR"}, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Stdout) != "42" {
		t.Errorf("stdout = %q, want 42", res.Stdout)
	}
}

func TestProcessExecutorEmptyArgv(t *testing.T) {
	e := &ProcessExecutor{}
	if _, err := e.Run(context.Background(), nil, "", testConfig(t)); err == nil {
		t.Error("expected error for empty argv")
	}
}
