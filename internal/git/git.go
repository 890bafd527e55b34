// Package git performs version-control checkpoints of the working tree.
package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNothingToCommit is returned by Commit when the working tree is clean.
var ErrNothingToCommit = errors.New("nothing to commit")

// Status represents the git workspace status.
type Status struct {
	Clean bool
	Files []string
}

// Signature identifies the checkpoint author.
type Signature struct {
	Name  string
	Email string
}

// Repo is a working-tree repository opened with go-git.
type Repo struct {
	repo   *gogit.Repository
	remote string
	author Signature
	now    func() time.Time
}

// Open opens the repository containing dir, searching parent directories.
func Open(dir, remote string, author Signature) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", dir, err)
	}
	return &Repo{repo: repo, remote: remote, author: author, now: time.Now}, nil
}

// IsRepo reports whether dir is inside a git working tree.
func IsRepo(dir string) bool {
	_, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// Branch returns the checked-out branch name, or empty when HEAD is
// detached or unborn.
func (r *Repo) Branch() string {
	head, err := r.repo.Head()
	if err != nil {
		return ""
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return ""
}

// Status returns the files with uncommitted changes, including untracked
// files.
func (r *Repo) Status() (*Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, err
	}
	st, err := wt.Status()
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(st))
	for path, fs := range st {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return &Status{Clean: len(files) == 0, Files: files}, nil
}

// Stage adds every working-tree change, including deletions, to the index.
func (r *Repo) Stage(ctx context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.AddWithOptions(&gogit.AddOptions{All: true})
}

// Commit records the index and returns the new commit hash.
func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	st, err := r.Status()
	if err != nil {
		return "", err
	}
	if st.Clean {
		return "", ErrNothingToCommit
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return "", err
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  r.author.Name,
			Email: r.author.Email,
			When:  r.now(),
		},
	})
	if errors.Is(err, gogit.ErrEmptyCommit) {
		return "", ErrNothingToCommit
	}
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// Push sends the current branch to the configured remote. An up-to-date
// remote is not an error.
func (r *Repo) Push(ctx context.Context) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("HEAD is detached, nothing to push")
	}
	ref := head.Name().String()
	err = r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref + ":" + ref)},
	})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// Remote returns the configured remote name.
func (r *Repo) Remote() string {
	return r.remote
}
