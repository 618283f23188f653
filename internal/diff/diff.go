// Package diff produces textual unified diffs by shelling out to the
// repository's own VCS tooling. The rest of the system consumes a single
// capability: a diff for a revision range, or for uncommitted local
// changes, rooted at a working copy.
package diff

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes a VCS command in dir and returns its stdout. Replaced
// in tests.
type Runner func(ctx context.Context, dir, name string, args ...string) (string, error)

// ExecRunner runs the command for real, surfacing stderr on failure.
func ExecRunner(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Provider generates a unified diff for a working copy. Zero revisions
// means uncommitted local changes; one or two revisions select a range.
type Provider interface {
	Diff(ctx context.Context, root string, revisions ...string) (string, error)
}

// GitProvider diffs through the git CLI.
type GitProvider struct {
	Run Runner
}

func (p GitProvider) Diff(ctx context.Context, root string, revisions ...string) (string, error) {
	args := append([]string{"diff", "--no-color"}, diffRangeArgs(revisions, "HEAD")...)
	return p.Run(ctx, root, "git", args...)
}

// SvnProvider diffs through the svn CLI.
type SvnProvider struct {
	Run Runner
}

func (p SvnProvider) Diff(ctx context.Context, root string, revisions ...string) (string, error) {
	args := []string{"diff"}
	switch len(revisions) {
	case 0:
	case 1:
		args = append(args, "-r", revisions[0])
	case 2:
		args = append(args, "-r", revisions[0]+":"+revisions[1])
	default:
		return "", fmt.Errorf("svn diff: at most two revisions, got %d", len(revisions))
	}
	return p.Run(ctx, root, "svn", args...)
}

// RBToolsProvider diffs through rbt, letting RBTools pick the backend.
type RBToolsProvider struct {
	Run Runner
}

func (p RBToolsProvider) Diff(ctx context.Context, root string, revisions ...string) (string, error) {
	args := append([]string{"diff"}, revisions...)
	return p.Run(ctx, root, "rbt", args...)
}

func diffRangeArgs(revisions []string, localBase string) []string {
	switch len(revisions) {
	case 0:
		// Uncommitted local changes against the last commit.
		return []string{localBase}
	case 1:
		return []string{revisions[0]}
	default:
		return []string{revisions[0], revisions[1]}
	}
}

// Detect picks a provider for the working copy at root by probing VCS
// markers. useRBTools forces rbt regardless of the backing VCS.
func Detect(root string, useRBTools bool) (Provider, error) {
	if useRBTools {
		return RBToolsProvider{Run: ExecRunner}, nil
	}
	if isDir(filepath.Join(root, ".git")) {
		return GitProvider{Run: ExecRunner}, nil
	}
	if isDir(filepath.Join(root, ".svn")) {
		return SvnProvider{Run: ExecRunner}, nil
	}
	return nil, fmt.Errorf("no supported VCS working copy at %s", root)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
