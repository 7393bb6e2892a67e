package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StepResult describes one evaluated step.
type StepResult struct {
	Key      PlanKey       `json:"key"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration_ns"`
	// Extra is the number of steps the step added to the plan.
	Extra int `json:"extra_steps"`
	// Recorded is false when an input could not be hashed, in which case
	// the step always executes and nothing is written to the store.
	Recorded bool `json:"recorded"`
}

// Report summarizes a run.
type Report struct {
	RunID    string        `json:"run_id,omitempty"`
	Results  []StepResult  `json:"results"`
	Duration time.Duration `json:"duration_ns"`
}

// Count returns how many steps had outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// MarshalText implements encoding.TextMarshaler.
func (k PlanKey) MarshalText() ([]byte, error) {
	return []byte(k.text), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PlanKey) UnmarshalText(text []byte) error {
	k.text = string(text)
	return nil
}

// LoadReport reads a Report from a JSON file
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	return &r, nil
}

// SaveReport writes a Report to a JSON file
func SaveReport(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	return nil
}
