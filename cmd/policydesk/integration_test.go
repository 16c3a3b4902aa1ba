package main

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/csheth/policydesk/internal/tuitest"
)

func TestPolicyDeskManagerSetupFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary and drives it through a PTY")
	}
	if runtime.GOOS == "windows" {
		t.Skip("pty harness is unix only")
	}

	cmdDir := moduleDir(t)
	binary := buildBinary(t, cmdDir)
	home := t.TempDir()

	rec, err := tuitest.Run(context.Background(), tuitest.Config{
		Command: []string{binary, "--no-alt-screen"},
		Dir:     home,
		Env: []string{
			"HOME=" + home,
			"XDG_CACHE_HOME=" + filepath.Join(home, ".cache"),
			"OPENAI_API_KEY=",
			"POLICYDESK_LOG_FILE=" + filepath.Join(home, "policydesk.log"),
		},
		Width:  100,
		Height: 32,
		Steps: []tuitest.Step{
			{WaitFor: "Select your role"},
			{Input: tuitest.KeyDown},
			{Delay: 100 * time.Millisecond, Input: tuitest.KeyEnter},
			{WaitFor: "Manager setup"},
			{Input: tuitest.KeyCtrlC},
		},
		Timeout:        10 * time.Second,
		AllowInterrupt: true,
	})
	if err != nil {
		t.Fatalf("run CLI: %v", err)
	}

	plain := rec.PlainText()
	if !strings.Contains(plain, "Manager setup") {
		t.Fatalf("manager setup never rendered:\n%s", plain)
	}
	if !strings.Contains(plain, "PolicyDesk") {
		t.Fatalf("expected the hero title:\n%s", plain)
	}
}

func moduleDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	return filepath.Dir(file)
}

func buildBinary(t *testing.T, cmdDir string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "policydesk-integration")
	cmd := exec.Command("go", "build", "-o", binPath, ".")
	cmd.Dir = cmdDir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build CLI: %v\n%s", err, output)
	}
	return binPath
}
