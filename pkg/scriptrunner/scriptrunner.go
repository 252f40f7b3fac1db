// Package scriptrunner executes a node's bound script file and reports its
// result in the shape the output monitor expects (§4.5.1).
package scriptrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Outcome mirrors the status/error taxonomy of §4.5.1: every failure mode
// maps to one of a fixed set of error-message prefixes so the output
// monitor and operators can tell caught failures apart from each other.
type Outcome struct {
	Success      bool
	ResultData   json.RawMessage
	ErrorMessage string
}

// ScriptRunner loads and invokes a script against resolved parameters.
type ScriptRunner interface {
	Run(ctx context.Context, scriptPath string, params json.RawMessage) Outcome
}

// ProcessRunner invokes scriptPath as an executable, writing params as JSON
// to its stdin and reading a JSON result from its stdout. This is the
// language-agnostic stand-in for §4.5.1's "load module(), call run(context)"
// contract: any executable that speaks the same stdin/stdout JSON protocol
// satisfies it, regardless of the language it's written in.
type ProcessRunner struct{}

// NewProcessRunner returns the default ScriptRunner.
func NewProcessRunner() *ProcessRunner { return &ProcessRunner{} }

func (p *ProcessRunner) Run(ctx context.Context, scriptPath string, params json.RawMessage) Outcome {
	if _, err := os.Stat(scriptPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Outcome{ErrorMessage: "Script file not found"}
		}
		return Outcome{ErrorMessage: fmt.Sprintf("Import error: %v", err)}
	}

	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.Stdin = bytes.NewReader(params)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Outcome{ErrorMessage: fmt.Sprintf("Value error: %s", firstLine(stderr.String(), err))}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return Outcome{ErrorMessage: "Attribute error: entrypoint not executable"}
		}
		return Outcome{ErrorMessage: fmt.Sprintf("Unexpected error: %v", err)}
	}

	var result json.RawMessage
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Outcome{ErrorMessage: fmt.Sprintf("JSON error: %v", err)}
	}
	return Outcome{Success: true, ResultData: result}
}

func firstLine(stderr string, fallback error) string {
	if stderr == "" {
		return fallback.Error()
	}
	for i, c := range stderr {
		if c == '\n' {
			return stderr[:i]
		}
	}
	return stderr
}
