package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Toolchain compiles and executes a probe program, returning its stdout.
// The production implementation shells out to a C compiler; tests substitute
// a fake. This is the single side-effecting collaborator in the pipeline.
type Toolchain interface {
	// Check verifies the toolchain can be invoked at all. A failure here is
	// the fatal configuration error class: no probing can proceed.
	Check(ctx context.Context) error
	// Run compiles req.Source with req.Flags, executes the result, and
	// returns captured stdout. Each invocation uses its own isolated
	// workspace, released on every exit path.
	Run(ctx context.Context, req Request) (string, error)
}

// Request is one probe compilation.
type Request struct {
	// Source is the complete probe program text.
	Source string
	// Flags are extra compiler arguments (the probe flag set, which may
	// legitimately differ from the parse flags).
	Flags []string
	// Timeout bounds compile and execution together. A probe that blows
	// the deadline is abandoned, never retried.
	Timeout time.Duration
	// KeepWorkspace leaves the temp directory behind for debugging.
	KeepWorkspace bool
}

// ErrTimeout marks probes abandoned at their deadline.
var ErrTimeout = errors.New("probe timed out")

// NotFoundError is the fatal toolchain configuration error.
type NotFoundError struct {
	CC  string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("C compiler %q cannot be invoked: %v", e.CC, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// CompileError carries the compiler's diagnostic text for one failed probe.
type CompileError struct {
	Output string
}

func (e *CompileError) Error() string {
	first := e.Output
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	return "probe failed to compile: " + first
}

// ExecError marks a probe binary that compiled but did not run cleanly.
type ExecError struct {
	Output string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("probe failed to execute: %v", e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Local invokes the host C compiler.
type Local struct {
	// CC is the compiler command, "cc" when empty.
	CC string
	// Env overrides the subprocess environment when non-nil.
	Env []string
}

func (l *Local) cc() string {
	if l == nil || l.CC == "" {
		return "cc"
	}
	return l.CC
}

// Check resolves the compiler on PATH.
func (l *Local) Check(ctx context.Context) error {
	if _, err := exec.LookPath(l.cc()); err != nil {
		return &NotFoundError{CC: l.cc(), Err: err}
	}
	return nil
}

// Version returns an identifying string for the compiler, used to key the
// persistent probe cache. Best effort: an empty string disables caching.
func (l *Local) Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, l.cc(), "--version").Output()
	if err != nil {
		return ""
	}
	if i := bytes.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	return string(bytes.TrimSpace(out))
}

// Run implements Toolchain. The workspace (probe source plus compiled
// binary) is scoped to this call: it is removed on success, compile failure,
// execution failure, timeout and cancellation alike.
func (l *Local) Run(ctx context.Context, req Request) (string, error) {
	dir, err := os.MkdirTemp("", "cffigen-probe-*")
	if err != nil {
		return "", fmt.Errorf("creating probe workspace: %w", err)
	}
	if !req.KeepWorkspace {
		defer func() {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				fmt.Fprintf(os.Stderr, "cffigen: failed to remove probe workspace: %v\n", rmErr)
			}
		}()
	}

	srcPath := filepath.Join(dir, "probe.c")
	binPath := filepath.Join(dir, "probe")
	if err := os.WriteFile(srcPath, []byte(req.Source), 0o644); err != nil {
		return "", fmt.Errorf("writing probe source: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, req.Flags...), "-o", binPath, srcPath)
	compile := exec.CommandContext(ctx, l.cc(), args...)
	if l.Env != nil {
		compile.Env = l.Env
	}
	var compileOut bytes.Buffer
	compile.Stdout = &compileOut
	compile.Stderr = &compileOut
	if err := compile.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", &NotFoundError{CC: l.cc(), Err: err}
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w (compiling)", ErrTimeout)
		}
		return "", &CompileError{Output: compileOut.String()}
	}

	run := exec.CommandContext(ctx, binPath)
	var runOut, runErr bytes.Buffer
	run.Stdout = &runOut
	run.Stderr = &runErr
	if err := run.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w (executing)", ErrTimeout)
		}
		return "", &ExecError{Output: runErr.String(), Err: err}
	}
	return runOut.String(), nil
}
