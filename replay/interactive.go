package replay

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// InteractiveHandler drops the operator into a real shell so they can
// inspect simulation state before resuming, per spec.md §6's `interactive`
// mode and the fail_to_interactive escape hatch in §4.3/§9.
type InteractiveHandler func(reason string) error

// DefaultInteractiveHandler spawns $SHELL (falling back to /bin/sh) on a
// pty, puts the controlling terminal into raw mode for the duration, and
// blocks until the shell process exits. Grounded on the teacher pack's
// creack/pty + golang.org/x/term terminal-tooling idiom.
func DefaultInteractiveHandler(reason string) error {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	fmt.Fprintf(os.Stderr, "\n--- dropping to interactive shell: %s ---\n", reason)

	cmd := exec.Command(shell)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("replay: spawn interactive shell: %w", err)
	}
	defer ptmx.Close()

	if w, h, err := pty.Getsize(os.Stdin); err == nil {
		_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
	}

	stdinFD := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(stdinFD)
	if err != nil {
		return fmt.Errorf("replay: put terminal in raw mode: %w", err)
	}
	defer term.Restore(stdinFD, oldState)

	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	_, _ = io.Copy(os.Stdout, ptmx)

	return cmd.Wait()
}
