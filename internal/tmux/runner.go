package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Result holds the captured output of a completed command. Stdout has
// trailing whitespace trimmed; Stderr is returned verbatim.
type Result struct {
	Stdout string
	Stderr string
}

// CommandError is returned when a command fails to start or exits
// non-zero. It carries the captured stderr so callers can surface it.
type CommandError struct {
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return fmt.Sprintf("%v: %s", e.Err, s)
	}
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes a command line and returns its captured output.
// Implementations do not retry; retry policy belongs to the caller.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// ShellRunner executes command lines through `sh -c`.
type ShellRunner struct{}

func (ShellRunner) Run(ctx context.Context, command string) (Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimRight(stdout.String(), " \t\r\n"),
		Stderr: stderr.String(),
	}
	if err != nil {
		return res, &CommandError{Err: err, Stderr: res.Stderr}
	}
	return res, nil
}

// shellQuote single-quotes s for safe interpolation into a sh command
// line. tmux targets come straight from URL paths, so they must never
// reach the shell unquoted.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
