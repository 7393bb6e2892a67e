package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
)

// ProcessCompiler runs each request as a child process.
type ProcessCompiler struct {
	// ManifestDir receives one RunManifest per successful invocation.
	// Empty disables manifests.
	ManifestDir string
	RunID       string
	Logger      *log.Logger
}

// Compile runs the request's command line. A tool that exits non-zero or
// fails to produce a declared output is an error, and any outputs it did
// write are removed.
func (p *ProcessCompiler) Compile(ctx context.Context, req Request) (*Result, error) {
	argv := req.Argv()
	if len(argv) == 0 {
		return nil, errors.Newf(errors.ErrCodeCompilerFailed, "no command configured for %s", req.Tool).
			WithSuggestion("Set the command for this tool in buildplan.yaml")
	}

	logger := p.logger().WithTool(req.Tool)
	logger.Debug("running compiler", "argv", argv)

	result, err := run(ctx, req.Workdir, argv)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompilerFailed,
			fmt.Sprintf("failed to start %s", argv[0]), err)
	}

	if result.ExitCode != 0 {
		removeOutputs(req.Outputs)
		return result, errors.Newf(errors.ErrCodeCompilerFailed,
			"%s exited with code %d: %s", req.Tool, result.ExitCode, tail(result.Stderr, 20))
	}
	for _, out := range req.Outputs {
		if _, err := os.Stat(out); err != nil {
			removeOutputs(req.Outputs)
			return result, errors.Wrap(errors.ErrCodeCompilerFailed,
				fmt.Sprintf("%s did not produce %s", req.Tool, out), err)
		}
	}

	if p.ManifestDir != "" {
		manifest := CreateManifest(req, result, p.RunID)
		if err := manifest.HashFiles(req.Inputs, req.Outputs); err != nil {
			logger.WithError(err).Warn("failed to hash compiler files for manifest")
		} else if err := SaveManifest(manifest, p.ManifestDir); err != nil {
			logger.WithError(err).Warn("failed to save manifest")
		}
	}

	logger.Debug("compiler finished", "duration", result.Duration.String())
	return result, nil
}

func (p *ProcessCompiler) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.DefaultLogger()
}

func run(ctx context.Context, workdir string, argv []string) (*Result, error) {
	startTime := time.Now()

	// #nosec G204 - argv comes from the build configuration, not from inputs
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, err
		}
	}

	return &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}, nil
}

func removeOutputs(outputs []string) {
	for _, out := range outputs {
		_ = os.Remove(out)
	}
}

// tail returns at most the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
