// Package compiler runs the external stylesheet, script, template and
// interface-definition compilers that steps delegate to.
package compiler

import (
	"context"
	"time"
)

// Request asks a tool to compile ordered inputs into declared outputs.
type Request struct {
	Tool    string   // Short tool name used in logs and manifests
	Command []string // Executable and fixed leading arguments
	Args    []string // Per-invocation arguments
	Workdir string   // Working directory, empty for the current one
	Inputs  []string // Files read, in order
	Outputs []string // Files the tool must produce
}

// Argv returns the full command line.
func (r Request) Argv() []string {
	argv := make([]string, 0, len(r.Command)+len(r.Args))
	argv = append(argv, r.Command...)
	return append(argv, r.Args...)
}

// Result represents the outcome of a compiler invocation
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Compiler compiles one request. A non-nil error means the declared
// outputs must not be trusted.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a function to the Compiler interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Compile calls f.
func (f Func) Compile(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// RunManifest represents the audit log for one compiler invocation
type RunManifest struct {
	Timestamp    time.Time         `json:"timestamp"`
	RunID        string            `json:"run_id,omitempty"`
	Tool         string            `json:"tool"`
	Command      []string          `json:"command"`
	ExitCode     int               `json:"exit_code"`
	Duration     string            `json:"duration"`
	InputHashes  map[string]string `json:"input_hashes"`
	OutputHashes map[string]string `json:"output_hashes"`
}
