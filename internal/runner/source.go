package runner

import (
	"fmt"
	"io"
	"os"

	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
)

// Source is one named piece of markup to scan. Load is called once, from a
// worker goroutine.
type Source struct {
	Name string
	Load func() (string, error)
}

// FileSource reads the file at path.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Load: func() (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("%w: %s: %v", sharedErrors.ErrSourceUnreadable, path, err)
			}
			return string(data), nil
		},
	}
}

// ReaderSource drains r. It is meant for stdin and must not be shared.
func ReaderSource(name string, r io.Reader) Source {
	return Source{
		Name: name,
		Load: func() (string, error) {
			data, err := io.ReadAll(r)
			if err != nil {
				return "", fmt.Errorf("%w: %s: %v", sharedErrors.ErrSourceUnreadable, name, err)
			}
			return string(data), nil
		},
	}
}

// StringSource wraps text that is already in memory.
func StringSource(name, text string) Source {
	return Source{
		Name: name,
		Load: func() (string, error) { return text, nil },
	}
}
