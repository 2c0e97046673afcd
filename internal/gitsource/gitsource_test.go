package gitsource

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestIsGitURL(t *testing.T) {
	testCases := []struct {
		source string
		want   bool
	}{
		{"https://github.com/owner/notes.git", true},
		{"https://github.com/owner/notes", true},
		{"git@github.com:owner/notes.git", true},
		{"ssh://git@github.com/owner/notes", true},
		{"./decks", false},
		{"/home/me/notes", false},
	}
	for _, tc := range testCases {
		t.Run(tc.source, func(t *testing.T) {
			if got := IsGitURL(tc.source); got != tc.want {
				t.Errorf("IsGitURL(%q) = %v, want %v", tc.source, got, tc.want)
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"https", "https://github.com/owner/notes.git", filepath.Join("repos", "github.com", "owner", "notes"), false},
		{"https with port", "https://git.example.com:8443/team/deck", filepath.Join("repos", "git.example.com", "team", "deck"), false},
		{"scp syntax", "git@github.com:owner/notes.git", filepath.Join("repos", "github.com", "owner", "notes"), false},
		{"no path", "https://github.com/", "", true},
		{"escapes base", "git@github.com:../../etc", "", true},
		{"dot-dot host", "https://../owner/repo.git", "", true},
		{"scp dot-dot host", "git@..:owner/repo.git", "", true},
		{"scp dot host", "git@.:owner/repo.git", "", true},
		{"garbage", "not a url", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error, but got path %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath() returned an unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, but got %q", tc.want, got)
			}
		})
	}
}

func TestFetchClonesThenPulls(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available for the file transport")
	}

	src := t.TempDir()
	repo, err := git.PlainInit(src, false)
	if err != nil {
		t.Fatalf("failed to init source repo: %v", err)
	}
	commitFile(t, repo, src, "deck.md", "Q: First?\nA: yes\n")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dst := filepath.Join(t.TempDir(), "checkout")
	if err := Fetch(context.Background(), logger, src, dst); err != nil {
		t.Fatalf("Fetch() clone returned an unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "deck.md")); err != nil {
		t.Fatalf("Expected deck.md in the checkout: %v", err)
	}

	commitFile(t, repo, src, "more.md", "Q: Second?\nA: also yes\n")
	if err := Fetch(context.Background(), logger, src, dst); err != nil {
		t.Fatalf("Fetch() pull returned an unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "more.md")); err != nil {
		t.Errorf("Expected more.md after pulling: %v", err)
	}

	// Nothing new upstream is not an error.
	if err := Fetch(context.Background(), logger, src, dst); err != nil {
		t.Errorf("Fetch() on an up-to-date checkout returned an error: %v", err)
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("failed to add %s: %v", name, err)
	}
	_, err = wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit %s: %v", name, err)
	}
}
