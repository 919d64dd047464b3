// Package cmdexec is the single choke point for running external storage
// tools. Backends never talk to subprocesses directly: they hand a fully
// constructed argument vector to an Executor, which spawns the program,
// waits for it to exit, captures its output, and classifies the result.
//
// Arguments are always passed as discrete tokens, never joined into a
// shell command line.
//
// The executor blocks the calling goroutine until the child exits. It
// imposes no timeout of its own; callers that need one layer it through the
// context.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoOutput reports a command that exited successfully but wrote nothing
// to standard output. This is a distinct classification, not a generic
// failure: for query tools "no output" usually means "no rows", and backends
// decide whether that is an empty result set or an error.
var ErrNoOutput = errors.New("command produced no output")

// CommandError describes a failed external command invocation: either the
// process could not be spawned, or it exited non-zero. It always carries the
// tool's own diagnostic output so operators can see why a command failed,
// not just that it did.
type CommandError struct {
	Argv     []string
	ExitCode int    // -1 when the process never ran
	Output   string // stderr, or stdout if that is where the tool wrote its diagnostics
	Err      error  // underlying spawn/wait error, if any
}

func (e *CommandError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("failed to run %q: %v", e.Argv[0], e.Err)
	}
	if e.Output != "" {
		return fmt.Sprintf("%q exited with status %d: %s", e.Argv[0], e.ExitCode, strings.TrimSpace(e.Output))
	}
	return fmt.Sprintf("%q exited with status %d", e.Argv[0], e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Invocation is the record of one completed external command run, delivered
// to the optional Recorder after the process has exited.
type Invocation struct {
	ID       string
	Argv     []string
	ExitCode int
	Success  bool
	Output   string
	Started  time.Time
	Duration time.Duration
}

// Runner is the executor surface backends depend on. The concrete Executor
// satisfies it; tests substitute fakes.
type Runner interface {
	// Run executes argv and reports non-zero exit as a *CommandError.
	Run(ctx context.Context, argv []string) error

	// RunInput is Run with data supplied on the child's standard input.
	// Used for tools that read secrets from stdin so they never appear in
	// an argument vector.
	RunInput(ctx context.Context, argv []string, input string) error

	// Capture executes argv and returns captured standard output. Empty
	// output on success is reported as an error matching ErrNoOutput.
	Capture(ctx context.Context, argv []string) (string, error)
}

// Recorder receives a record of every completed invocation. Implementations
// must not block for long; recording happens on the calling goroutine.
type Recorder interface {
	Record(ctx context.Context, inv Invocation)
}

// Executor runs external commands and classifies their outcomes.
type Executor struct {
	logger   *zap.Logger
	metrics  *Metrics
	recorder Recorder
}

// Compile-time interface guard.
var _ Runner = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics attaches prometheus instrumentation to every invocation.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithRecorder attaches an invocation journal.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// New creates an Executor.
func New(logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes argv[0] with the remaining elements as arguments and waits
// for completion. A non-zero exit status is returned as a *CommandError
// carrying the tool's diagnostic output.
func (e *Executor) Run(ctx context.Context, argv []string) error {
	_, err := e.run(ctx, argv, "")
	return err
}

// RunInput is Run with input written to the child's standard input.
func (e *Executor) RunInput(ctx context.Context, argv []string, input string) error {
	_, err := e.run(ctx, argv, input)
	return err
}

// Capture executes argv and returns the full captured standard output on
// success. A successful run with empty stdout returns an error matching
// ErrNoOutput, distinguishable from a non-zero exit.
func (e *Executor) Capture(ctx context.Context, argv []string) (string, error) {
	stdout, err := e.run(ctx, argv, "")
	if err != nil {
		return "", err
	}
	if stdout == "" {
		return "", fmt.Errorf("%q: %w", argv[0], ErrNoOutput)
	}
	return stdout, nil
}

func (e *Executor) run(ctx context.Context, argv []string, input string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("cmdexec: empty argument vector")
	}

	id := uuid.NewString()
	started := time.Now()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	e.logger.Debug("running command",
		zap.String("invocation_id", id),
		zap.Strings("argv", argv),
	)

	err := cmd.Run()
	duration := time.Since(started)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	e.observe(ctx, Invocation{
		ID:       id,
		Argv:     argv,
		ExitCode: exitCode,
		Success:  err == nil,
		Output:   stdout.String(),
		Started:  started,
		Duration: duration,
	}, stderr.String())

	if err == nil {
		return stdout.String(), nil
	}

	// The interesting diagnostics are usually on stderr, but some tools
	// write them to stdout.
	diag := stderr.String()
	if diag == "" {
		diag = stdout.String()
	}
	return "", &CommandError{
		Argv:     argv,
		ExitCode: exitCode,
		Output:   diag,
		Err:      err,
	}
}

func (e *Executor) observe(ctx context.Context, inv Invocation, stderr string) {
	if inv.Success {
		e.logger.Debug("command finished",
			zap.String("invocation_id", inv.ID),
			zap.String("command", inv.Argv[0]),
			zap.Duration("duration", inv.Duration),
		)
	} else {
		e.logger.Warn("command failed",
			zap.String("invocation_id", inv.ID),
			zap.Strings("argv", inv.Argv),
			zap.Int("exit_code", inv.ExitCode),
			zap.String("stderr", strings.TrimSpace(stderr)),
		)
	}

	if e.metrics != nil {
		e.metrics.observe(inv)
	}
	if e.recorder != nil {
		e.recorder.Record(ctx, inv)
	}
}
