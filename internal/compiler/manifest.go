package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/buildplan/internal/digest"
)

// CreateManifest creates a run manifest for audit purposes
func CreateManifest(req Request, result *Result, runID string) *RunManifest {
	return &RunManifest{
		Timestamp:    time.Now(),
		RunID:        runID,
		Tool:         req.Tool,
		Command:      req.Argv(),
		ExitCode:     result.ExitCode,
		Duration:     result.Duration.String(),
		InputHashes:  make(map[string]string),
		OutputHashes: make(map[string]string),
	}
}

// HashFiles records the content digest of every input and output.
func (m *RunManifest) HashFiles(inputs, outputs []string) error {
	for _, in := range inputs {
		d, err := HashFile(in)
		if err != nil {
			return err
		}
		m.InputHashes[in] = d
	}
	for _, out := range outputs {
		d, err := HashFile(out)
		if err != nil {
			return err
		}
		m.OutputHashes[out] = d
	}
	return nil
}

// SaveManifest writes a run manifest to disk
func SaveManifest(manifest *RunManifest, dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	// Several invocations can share a second, so the command digest keeps
	// file names apart.
	argvDigest := digest.SumString(fmt.Sprint(manifest.Command)).String()
	filename := fmt.Sprintf("%s_%s_%s.json",
		manifest.Timestamp.Format("20060102_150405"),
		manifest.Tool,
		argvDigest[:12])
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// LoadManifests reads every manifest saved in dir.
func LoadManifests(dir string) ([]*RunManifest, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	var out []*RunManifest
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		var m RunManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal manifest %s: %w", p, err)
		}
		out = append(out, &m)
	}
	return out, nil
}

// HashFile returns the hex content digest of a file.
func HashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return digest.Sum(content).String(), nil
}
