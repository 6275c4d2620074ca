package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// useRemotesFile points the remotes file at a fresh temp path.
func useRemotesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remotes.toml")
	t.Setenv("KVC_REMOTES_FILE", path)
	t.Setenv("NO_COLOR", "1")
	return path
}

// runRemote executes "kc remote args..." with flags reset to defaults.
func runRemote(t *testing.T, args ...string) (string, error) {
	t.Helper()
	_ = rootCmd.PersistentFlags().Set("json", "false")
	for name, def := range map[string]string{"token": "", "nats": "", "base-path": "", "use": "false"} {
		_ = remoteAddCmd.Flags().Set(name, def)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"remote"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRemote(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runRemote(t, args...)
	if err != nil {
		t.Fatalf("kc remote %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRemotesConfig_SaveLoad(t *testing.T) {
	path := useRemotesFile(t)

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {URL: "https://guestbook.example.com", Token: "tok_abc", BasePath: "/guestbook", NATSURL: "nats://prod:4222"},
			"local": {URL: "http://localhost:8080"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %04o, want 0600", info.Mode().Perm())
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" || got.Remotes["prod"] != in.Remotes["prod"] || got.Remotes["local"] != in.Remotes["local"] {
		t.Errorf("round trip = %+v", got)
	}
}

func TestRemotesConfig_Missing(t *testing.T) {
	useRemotesFile(t)
	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Active != "" || cfg.Remotes == nil || len(cfg.Remotes) != 0 {
		t.Errorf("expected an empty usable config, got %+v", cfg)
	}
}

func TestRemotesConfig_Corrupt(t *testing.T) {
	path := useRemotesFile(t)
	if err := os.WriteFile(path, []byte("active = ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRemotesConfig(); err == nil {
		t.Fatal("expected a decode error")
	}
	// A failed load must not clobber the file.
	if _, err := runRemote(t, "add", "x", "http://x"); err == nil {
		t.Fatal("expected add to fail on a corrupt file")
	}
	if data, _ := os.ReadFile(path); string(data) != "active = [" {
		t.Errorf("file was rewritten: %q", data)
	}
}

func TestRemoteConfigPath(t *testing.T) {
	t.Setenv("KVC_REMOTES_FILE", "")

	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	if p, _ := remoteConfigPath(); p != filepath.Join(state, "kvcomments", "remotes.toml") {
		t.Errorf("XDG path = %s", p)
	}

	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)
	if p, _ := remoteConfigPath(); p != filepath.Join(home, ".local", "state", "kvcomments", "remotes.toml") {
		t.Errorf("home path = %s", p)
	}

	if err := saveRemotesConfig(RemotesConfig{}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(home, ".local", "state", "kvcomments"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("state dir permissions = %04o, want 0700", info.Mode().Perm())
	}
}

func TestRemoteLifecycle(t *testing.T) {
	useRemotesFile(t)

	// The first remote becomes active automatically.
	mustRemote(t, "add", "local", "http://localhost:8080")
	mustRemote(t, "add", "edge", "https://edge.example.com", "--base-path", "/", "--token", "tok_edgesecret")
	if cfg, _ := loadRemotesConfig(); cfg.Active != "local" {
		t.Fatalf("Active = %q, want local", cfg.Active)
	}

	out := mustRemote(t, "list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "  edge") || !strings.HasPrefix(lines[2], "* local") {
		t.Errorf("unexpected list:\n%s", out)
	}
	if strings.Contains(out, "tok_edgesecret") || !strings.Contains(out, "tok_**********") {
		t.Errorf("token not masked in list:\n%s", out)
	}

	mustRemote(t, "use", "edge")
	out = mustRemote(t, "show")
	for _, want := range []string{"edge (active)", "https://edge.example.com", "base_path:", "tok_***"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}

	mustRemote(t, "rm", "edge")
	cfg, _ := loadRemotesConfig()
	if _, ok := cfg.Remotes["edge"]; ok || cfg.Active != "" {
		t.Errorf("after remove: %+v", cfg)
	}
	if out := mustRemote(t, "show", "local"); strings.Contains(out, "(active)") {
		t.Errorf("local should not be active:\n%s", out)
	}
}

func TestRemoteAddUse(t *testing.T) {
	useRemotesFile(t)
	mustRemote(t, "add", "a", "http://a.example.com")
	mustRemote(t, "add", "b", "http://b.example.com", "--use", "--nats", "nats://b:4222")

	cfg, _ := loadRemotesConfig()
	if cfg.Active != "b" || cfg.Remotes["b"].NATSURL != "nats://b:4222" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestRemoteListJSON(t *testing.T) {
	useRemotesFile(t)
	mustRemote(t, "add", "prod", "https://guestbook.example.com", "--token", "abcdefgh")

	out := mustRemote(t, "list", "--json")
	var views []remoteView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("list --json: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].Name != "prod" || !views[0].Active || views[0].Token != "abcd****" {
		t.Errorf("unexpected views: %+v", views)
	}
}

func TestRemoteErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{"UseUnknown", []string{"use", "ghost"}, `remote "ghost" not found`},
		{"RemoveUnknown", []string{"remove", "ghost"}, `remote "ghost" not found`},
		{"ShowNoActive", []string{"show"}, "no active remote"},
		{"BadURL", []string{"add", "x", "localhost:8080"}, "invalid remote URL"},
		{"BadNATS", []string{"add", "x", "http://x", "--nats", "http://x:4222"}, "invalid NATS URL"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			useRemotesFile(t)
			_, err := runRemote(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestRemoteMasked(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"", ""},
		{"abc", "****"},
		{"abcdef", "abcd**"},
	} {
		if got := (Remote{Token: tc.in}).masked().Token; got != tc.want {
			t.Errorf("masked(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
