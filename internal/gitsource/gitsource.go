// Package gitsource keeps local checkouts of git repositories that decks are
// imported from.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// IsGitURL reports whether source names a remote repository rather than a
// local directory.
func IsGitURL(source string) bool {
	if strings.HasSuffix(source, ".git") {
		return true
	}
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "https" || u.Scheme == "http" || u.Scheme == "ssh" || u.Scheme == "git") {
		return true
	}
	return strings.HasPrefix(source, "git@")
}

// LocalPath maps a repository URL to its checkout directory under baseDir.
// Both https://host/owner/repo.git and git@host:owner/repo.git map to
// baseDir/host/owner/repo.
func LocalPath(baseDir, repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err == nil && u.Host != "" && u.Scheme != "" {
		return join(baseDir, u.Hostname(), u.Path, repoURL)
	}

	// scp-like syntax: user@host:path
	at := strings.Index(repoURL, "@")
	colon := strings.Index(repoURL, ":")
	if at > 0 && colon > at+1 {
		return join(baseDir, repoURL[at+1:colon], repoURL[colon+1:], repoURL)
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}

func join(baseDir, host, repoPath, repoURL string) (string, error) {
	if host == "" || host == "." || host == ".." || strings.ContainsAny(host, `/\`) {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	repoPath = strings.Trim(strings.TrimSuffix(repoPath, ".git"), "/")
	if repoPath == "" || strings.Contains(repoPath, "..") {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	local := filepath.Join(baseDir, host, filepath.FromSlash(repoPath))
	rel, err := filepath.Rel(baseDir, local)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("git URL %s escapes %s", repoURL, baseDir)
	}
	return local, nil
}

// Fetch clones repoURL into dir, or pulls when dir already holds a checkout.
func Fetch(ctx context.Context, logger *slog.Logger, repoURL, dir string) error {
	_, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("cloning repository", "url", repoURL, "path", dir)
		if _, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: repoURL}); err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("error checking path %s: %w", dir, err)
	}

	logger.Info("pulling repository", "path", dir)
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("failed to open existing repo at %s: %w", dir, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree for repo at %s: %w", dir, err)
	}
	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull changes for repo at %s: %w", dir, err)
	}
	return nil
}
