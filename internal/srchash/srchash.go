// Package srchash computes content identities for source subtrees.
//
// The identities feed the index keys of cacheable build tasks: as long as
// a subtree is unchanged its key is unchanged, and the task that built it
// is found in the index instead of being scheduled again.
package srchash

import (
	"context"
	"fmt"

	"github.com/mozilla/appservices-decision/internal/config"
)

// Hasher returns a stable identity for the content of dir, a path relative
// to the repository root.
type Hasher interface {
	HashDir(ctx context.Context, dir string) (string, error)
}

// New returns the hasher selected by cfg.SourceHash.
func New(cfg *config.Config) (Hasher, error) {
	switch cfg.SourceHash {
	case config.SourceHashGit:
		return &GitTree{RepoRoot: cfg.RepoRoot}, nil
	case config.SourceHashBlake3:
		return &Blake3{RepoRoot: cfg.RepoRoot}, nil
	default:
		return nil, fmt.Errorf("unknown source hash strategy %q", cfg.SourceHash)
	}
}
