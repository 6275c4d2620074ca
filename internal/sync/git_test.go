package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newClone creates a bare origin with one commit on main and returns the
// path of a working clone plus the origin path.
func newClone(t *testing.T) (clone, origin string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	origin = t.TempDir()
	gitIn(t, origin, "init", "--bare", "--initial-branch=main")

	clone = filepath.Join(t.TempDir(), "clone")
	gitIn(t, filepath.Dir(clone), "clone", origin, clone)
	gitIn(t, clone, "config", "user.email", "export@example.com")
	gitIn(t, clone, "config", "user.name", "kvcomments")
	gitIn(t, clone, "checkout", "-B", "main")
	gitIn(t, clone, "commit", "--allow-empty", "-m", "init")
	gitIn(t, clone, "push", "origin", "main")
	return clone, origin
}

func gitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestGitDestination_CommitsOnlyChanges(t *testing.T) {
	clone, origin := newClone(t)
	dest := NewGitDestination(clone, "comments.jsonl", "main")
	ctx := context.Background()

	first := []byte(`{"version":"1","type":"header","comment_count":1}` + "\n" +
		`{"type":"comment","data":{"id":"1","content":"hi","time":"2024/03/09 12:30"}}` + "\n")
	second := []byte(`{"version":"1","type":"header","comment_count":0}` + "\n")

	for _, step := range []struct {
		name        string
		data        []byte
		wantCommits string
	}{
		{"Initial", first, "2"},
		{"Unchanged", first, "2"},
		{"Changed", second, "3"},
	} {
		if err := dest.Write(ctx, step.data); err != nil {
			t.Fatalf("%s: Write: %v", step.name, err)
		}
		got, err := os.ReadFile(filepath.Join(clone, "comments.jsonl"))
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if string(got) != string(step.data) {
			t.Errorf("%s: file = %q", step.name, got)
		}
		if n := gitIn(t, origin, "rev-list", "--count", "main"); n != step.wantCommits {
			t.Errorf("%s: origin has %s commits, want %s", step.name, n, step.wantCommits)
		}
	}

	if msg := gitIn(t, origin, "log", "-1", "--format=%s", "main"); msg != "kvcomments: export comments.jsonl (0 comments)" {
		t.Errorf("last commit message = %q", msg)
	}
	if msg := gitIn(t, origin, "log", "-1", "--skip=1", "--format=%s", "main"); msg != "kvcomments: export comments.jsonl (1 comments)" {
		t.Errorf("first export message = %q", msg)
	}
}

func TestGitDestination_NestedFile(t *testing.T) {
	clone, origin := newClone(t)
	dest := NewGitDestination(clone, "backups/guestbook/comments.jsonl", "main")

	data := []byte(`{"version":"1","type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := gitIn(t, origin, "show", "main:backups/guestbook/comments.jsonl"); got+"\n" != string(data) {
		t.Errorf("pushed content = %q", got)
	}

	entries, err := os.ReadDir(filepath.Join(clone, "backups", "guestbook"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestGitDestination_MissingBranch(t *testing.T) {
	clone, _ := newClone(t)
	dest := NewGitDestination(clone, "comments.jsonl", "does-not-exist")
	err := dest.Write(context.Background(), []byte("x\n"))
	if err == nil || !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("expected checkout error, got %v", err)
	}
}

func TestCountComments(t *testing.T) {
	data := []byte(`{"type":"header"}` + "\n" + `{"type":"comment","data":{}}` + "\n" + `{"type":"comment","data":{}}` + "\n")
	if got := countComments(data); got != 2 {
		t.Errorf("countComments = %d, want 2", got)
	}
}
