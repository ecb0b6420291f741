package cpanel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Tool is one of the two panel query binaries the exporter is allowed to
// spawn. Everything else is rejected before reaching exec.
type Tool string

const (
	ToolWHMAPI Tool = "whmapi1"
	ToolUAPI   Tool = "uapi"
)

type FailureKind int

const (
	// KindSpawn: binary not found, not executable, or not allow-listed.
	KindSpawn FailureKind = iota
	// KindTimeout: the per-call deadline elapsed (or the caller went away)
	// and the process was killed.
	KindTimeout
	// KindNonZeroExit: the tool ran and reported failure.
	KindNonZeroExit
	// KindIO: reading the output streams failed.
	KindIO
)

func (k FailureKind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindTimeout:
		return "timeout"
	case KindNonZeroExit:
		return "non_zero_exit"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// CommandError is the typed failure for one panel command invocation.
type CommandError struct {
	Kind     FailureKind
	Tool     Tool
	Args     []string
	ExitCode int
	Stderr   string
	err      error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case KindNonZeroExit:
		return fmt.Sprintf("%s %v: exit code %d: %s", e.Tool, e.Args, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("%s %v: %s: %v", e.Tool, e.Args, e.Kind, e.err)
	}
}

func (e *CommandError) Unwrap() error { return e.err }

// Runner spawns one panel command per call and returns its stdout.
type Runner interface {
	Run(ctx context.Context, tool Tool, args ...string) ([]byte, error)
}

// ExecRunner runs panel commands as subprocesses with a per-call timeout
// and a bounded kill grace. There is no shared state between calls.
type ExecRunner struct {
	timeout   time.Duration
	killGrace time.Duration
	logger    *zap.Logger
}

func NewExecRunner(timeout, killGrace time.Duration, logger *zap.Logger) *ExecRunner {
	return &ExecRunner{
		timeout:   timeout,
		killGrace: killGrace,
		logger:    logger,
	}
}

func (r *ExecRunner) Run(ctx context.Context, tool Tool, args ...string) ([]byte, error) {
	if tool != ToolWHMAPI && tool != ToolUAPI {
		return nil, &CommandError{
			Kind: KindSpawn,
			Tool: tool,
			Args: args,
			err:  fmt.Errorf("command %q is not allow-listed", tool),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, string(tool), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// CommandContext kills on deadline; WaitDelay bounds how long Wait may
	// still block on a process that ignores the kill.
	cmd.WaitDelay = r.killGrace

	r.logger.Debug("executing panel command",
		zap.String("tool", string(tool)),
		zap.Strings("args", args),
	)

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	cmdErr := r.classify(ctx, tool, args, &stderr, err)
	r.logger.Error("panel command failed",
		zap.String("tool", string(tool)),
		zap.Strings("args", args),
		zap.String("kind", cmdErr.Kind.String()),
		zap.Error(err),
	)
	return nil, cmdErr
}

func (r *ExecRunner) classify(ctx context.Context, tool Tool, args []string, stderr *bytes.Buffer, err error) *CommandError {
	cmdErr := &CommandError{
		Tool:   tool,
		Args:   args,
		Stderr: stderr.String(),
		err:    err,
	}

	switch {
	case ctx.Err() != nil:
		// The process was killed by the context; exec reports this as a
		// signal exit, which is not the tool's fault.
		cmdErr.Kind = KindTimeout
		cmdErr.err = ctx.Err()
	case isExitError(err, cmdErr):
		cmdErr.Kind = KindNonZeroExit
	case isSpawnError(err):
		cmdErr.Kind = KindSpawn
	default:
		cmdErr.Kind = KindIO
	}
	return cmdErr
}

func isExitError(err error, cmdErr *CommandError) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
		return true
	}
	return false
}

func isSpawnError(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr)
}
