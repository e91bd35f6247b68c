package orchestrator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const scratchTimeLayout = "20060102_150405"

// Scratch tracks the temporary files owned by one job. Every path handed
// out by Path is removed by Cleanup.
type Scratch struct {
	dir    string
	prefix string

	mu    sync.Mutex
	paths []string
}

// NewScratch namespaces files under dir by timestamp and session id.
func NewScratch(dir, sessionID string, at time.Time) *Scratch {
	return &Scratch{
		dir:    dir,
		prefix: at.UTC().Format(scratchTimeLayout) + "_" + sessionID + "_",
	}
}

// Path registers and returns the scratch path for name.
func (s *Scratch) Path(name string) string {
	p := filepath.Join(s.dir, s.prefix+name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.paths {
		if existing == p {
			return p
		}
	}
	s.paths = append(s.paths, p)
	return p
}

// Paths returns the registered paths.
func (s *Scratch) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Cleanup removes every registered path. Missing files are not an error, so
// calling it again is harmless.
func (s *Scratch) Cleanup() error {
	var errs []error
	for _, p := range s.Paths() {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
