package trace

import (
	"fmt"
	"os"
	"path/filepath"
)

// A Dir locates the files a harness run writes to disk, per spec.md §6:
// the events.trace NDJSON log, a dataplane_trace binary, and one
// stdout/stderr pair per controller process.
type Dir struct {
	Root string
}

// NewDir returns a Dir rooted at root. The directory is not created; call
// Ensure first for a fresh run.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Ensure creates the trace directory (and any missing parents) if absent.
func (d *Dir) Ensure() error {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return fmt.Errorf("trace: create directory %s: %w", d.Root, err)
	}
	return nil
}

// EventsPath returns the path to the events.trace NDJSON log.
func (d *Dir) EventsPath() string {
	return filepath.Join(d.Root, "events.trace")
}

// DataplaneTracePath returns the path to the dataplane_trace binary blob.
func (d *Dir) DataplaneTracePath() string {
	return filepath.Join(d.Root, "dataplane_trace")
}

// ControllerStdoutPath returns the path to controllerID's captured stdout.
func (d *Dir) ControllerStdoutPath(controllerID string) string {
	return filepath.Join(d.Root, fmt.Sprintf("%s.stdout", controllerID))
}

// ControllerStderrPath returns the path to controllerID's captured stderr.
func (d *Dir) ControllerStderrPath(controllerID string) string {
	return filepath.Join(d.Root, fmt.Sprintf("%s.stderr", controllerID))
}

// OpenEventsWriter creates (or truncates) events.trace and returns a Writer
// over it.
func (d *Dir) OpenEventsWriter() (*Writer, error) {
	if err := d.Ensure(); err != nil {
		return nil, err
	}
	f, err := os.Create(d.EventsPath())
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", d.EventsPath(), err)
	}
	return NewWriter(f, nil), nil
}

// OpenEventsReader opens events.trace for reading and returns a Reader over
// it. The caller is responsible for closing the returned file handle once
// done; Reader itself has no Close method since it only ever reads.
func (d *Dir) OpenEventsReader() (*Reader, *os.File, error) {
	f, err := os.Open(d.EventsPath())
	if err != nil {
		return nil, nil, fmt.Errorf("trace: open %s: %w", d.EventsPath(), err)
	}
	return NewReader(f), f, nil
}
