package decision

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dockerfileSuffix = ".dockerfile"
	includeMarker    = "#include "

	// maxIncludeDepth bounds #include chains.
	maxIncludeDepth = 16
)

// ExpandDockerfile reads a dockerfile, resolving a leading
// "#include <relative path>" line by substituting the included file
// (recursively) followed by a newline and the rest of the file.
func ExpandDockerfile(path string) ([]byte, error) {
	return expandDockerfile(path, 0)
}

func expandDockerfile(path string, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("dockerfile %s: #include nested deeper than %d", path, maxIncludeDepth)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dockerfile: %w", err)
	}
	if !bytes.HasPrefix(contents, []byte(includeMarker)) {
		return contents, nil
	}

	includeLine, rest, _ := bytes.Cut(contents, []byte("\n"))
	included := strings.TrimSpace(string(includeLine[len(includeMarker):]))
	if included == "" {
		return nil, fmt.Errorf("dockerfile %s: empty #include", path)
	}

	expanded, err := expandDockerfile(filepath.Join(filepath.Dir(path), included), depth+1)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(expanded)+1+len(rest))
	out = append(out, expanded...)
	out = append(out, '\n')
	out = append(out, rest...)
	return out, nil
}

// dockerImageName derives the image name from a "<name>.dockerfile" path.
func dockerImageName(path string) (string, error) {
	base := filepath.Base(path)
	name, ok := strings.CutSuffix(base, dockerfileSuffix)
	if !ok || name == "" {
		return "", fmt.Errorf("dockerfile %q: name must end in %s", path, dockerfileSuffix)
	}
	return name, nil
}
