package srchash

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"strings"
)

// GitTree identifies a directory by the id of its git tree object at HEAD.
// Only committed content counts; the working tree is ignored.
type GitTree struct {
	RepoRoot string
}

// HashDir runs `git rev-parse HEAD:<dir>`.
func (g *GitTree) HashDir(ctx context.Context, dir string) (string, error) {
	dir = strings.Trim(path.Clean(dir), "/")
	if dir == "" || dir == "." || strings.HasPrefix(dir, "..") {
		return "", fmt.Errorf("invalid source directory %q", dir)
	}

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD:"+dir)
	cmd.Dir = g.RepoRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD:%s: %w: %s", dir, err, strings.TrimSpace(stderr.String()))
	}

	sha := strings.TrimSpace(string(out))
	if sha == "" {
		return "", fmt.Errorf("git rev-parse HEAD:%s returned nothing", dir)
	}
	return sha, nil
}
