package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination commits each export to a file in a local clone and pushes
// it to origin.
type GitDestination struct {
	repo   string
	file   string
	branch string
}

// NewGitDestination returns a destination writing file (relative to the
// clone at repo) on branch.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

// Write replaces the export file, then commits and pushes if it changed.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if _, err := d.gitOutput(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// Best effort: the branch may not exist on origin yet.
	_, _ = d.gitOutput(ctx, "pull", "--ff-only", "origin", d.branch)

	if err := writeFileAtomic(filepath.Join(d.repo, d.file), data); err != nil {
		return err
	}
	if _, err := d.gitOutput(ctx, "add", "--", d.file); err != nil {
		return err
	}

	status, err := d.gitOutput(ctx, "status", "--porcelain", "--", d.file)
	if err != nil {
		return err
	}
	if status == "" {
		return nil
	}

	msg := fmt.Sprintf("kvcomments: export %s (%d comments)", filepath.Base(d.file), countComments(data))
	if _, err := d.gitOutput(ctx, "commit", "-m", msg, "--", d.file); err != nil {
		return err
	}
	_, err = d.gitOutput(ctx, "push", "origin", d.branch)
	return err
}

// gitOutput runs git in the clone and returns its trimmed stdout. Combined
// output is included in the error on failure.
func (d *GitDestination) gitOutput(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String() + stdout.String())
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, detail)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("creating temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp export: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing export: %w", err)
	}
	return nil
}

func countComments(data []byte) int {
	return bytes.Count(data, []byte(`{"type":"comment"`))
}
