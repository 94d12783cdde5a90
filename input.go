package zxing

import (
	"fmt"
	"path/filepath"
)

type pathProvider interface {
	Path() string
}

type nameProvider interface {
	Name() string
}

// inputPath turns a decode input into an absolute file path. The server may
// have been started from another working directory, so relative paths are
// resolved here.
func inputPath(input any) (string, error) {
	var path string
	switch v := input.(type) {
	case string:
		path = v
	case pathProvider:
		path = v.Path()
	case nameProvider:
		path = v.Name()
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedInput, input)
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsupportedInput)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}
