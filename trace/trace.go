// Package trace implements the `events.trace` NDJSON stream described in
// spec.md §6: one encoded event per line, written as the replay core
// observes it and read back for replay. The encoder/decoder pairing here
// mirrors the teacher's ovsdb/internal/jsonrpc Conn — a mutex-guarded
// encoder for the write side, a line-oriented reader on the read side —
// generalized from one JSON-RPC connection to an append-only log file.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ahassany/sts/event"
)

// A Writer appends encoded events to an underlying io.WriteCloser, one JSON
// object per line. Atomicity is per line only, per spec.md §6.
type Writer struct {
	mu sync.Mutex
	w  io.WriteCloser
	ll *log.Logger
}

// NewWriter wraps w for line-delimited event writes. If ll is non-nil, every
// written line is also logged through it, mirroring the teacher's
// debugReadWriteCloser idiom.
func NewWriter(w io.WriteCloser, ll *log.Logger) *Writer {
	return &Writer{w: w, ll: ll}
}

// WriteEvent encodes e and appends it as one line.
func (w *Writer) WriteEvent(e event.Event) error {
	body, err := event.Encode(e)
	if err != nil {
		return fmt.Errorf("trace: encode %s %s: %w", e.Class(), e.Label(), err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(body); err != nil {
		return fmt.Errorf("trace: write event: %w", err)
	}
	if _, err := w.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("trace: write newline: %w", err)
	}
	if w.ll != nil {
		w.ll.Printf("trace: wrote %s %s", e.Class(), e.Label())
	}
	return nil
}

// Close closes the underlying writer.
func (w *Writer) Close() error {
	return w.w.Close()
}

// A Reader decodes a newline-delimited event stream, tolerating an
// unfinished final line by dropping it (spec.md §6's "the reader MUST
// tolerate an unfinished final line"). It keeps a one-line lookahead so it
// can tell a mid-stream decode error (fatal) apart from a truncated last
// line (dropped silently).
type Reader struct {
	sc      *bufio.Scanner
	peeked  []byte
	hasMore bool
}

// NewReader wraps r for line-delimited event reads.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	reader := &Reader{sc: sc}
	reader.advance()
	return reader
}

// advance pulls the next non-empty line into the lookahead slot.
func (r *Reader) advance() {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		r.peeked = append([]byte(nil), line...)
		r.hasMore = true
		return
	}
	r.peeked = nil
	r.hasMore = false
}

// ReadEvent returns the next decoded event, or io.EOF once the stream is
// exhausted. A line that fails to decode and has no successor is treated as
// an unfinished final line and dropped rather than erroring.
func (r *Reader) ReadEvent() (event.Event, error) {
	if !r.hasMore {
		if err := r.sc.Err(); err != nil {
			return nil, fmt.Errorf("trace: read line: %w", err)
		}
		return nil, io.EOF
	}

	line := r.peeked
	hadSuccessor := func() bool { r.advance(); return r.hasMore }

	e, err := event.Decode(line)
	if err != nil {
		if !hadSuccessor() {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("trace: decode event: %w", err)
	}
	r.advance()
	return e, nil
}

// ReadAll decodes every event in the stream, dropping a trailing unfinished
// line rather than erroring on it.
func (r *Reader) ReadAll() ([]event.Event, error) {
	var events []event.Event
	for {
		e, err := r.ReadEvent()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}
