package health

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// FFprobeChecker verifies the ffprobe binary the analysis sources
// depend on is present and working.
type FFprobeChecker struct {
	binaryPath string
	timeout    time.Duration
}

// NewFFprobeChecker creates a new ffprobe health checker.
func NewFFprobeChecker(binaryPath string) *FFprobeChecker {
	if binaryPath == "" {
		if path, err := exec.LookPath("ffprobe"); err == nil {
			binaryPath = path
		}
	}

	return &FFprobeChecker{
		binaryPath: binaryPath,
		timeout:    5 * time.Second,
	}
}

// Name returns the name of the checker.
func (f *FFprobeChecker) Name() string {
	return "ffprobe"
}

// Check performs the ffprobe health check.
func (f *FFprobeChecker) Check(ctx context.Context) error {
	if f.binaryPath == "" {
		return fmt.Errorf("ffprobe binary not found in PATH")
	}

	if !filepath.IsAbs(f.binaryPath) {
		if _, err := exec.LookPath(f.binaryPath); err != nil {
			return fmt.Errorf("ffprobe binary not executable: %w", err)
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, f.binaryPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("ffprobe version check failed: %w", err)
	}

	if !strings.Contains(string(output), "ffprobe version") {
		return fmt.Errorf("unexpected ffprobe version output")
	}

	return nil
}

// Version returns the first line of ffprobe -version output.
func (f *FFprobeChecker) Version(ctx context.Context) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, f.binaryPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "", fmt.Errorf("no version information found")
}
