package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/buildplan/internal/digest"
	"github.com/felixgeelhaar/buildplan/internal/errors"
	"github.com/felixgeelhaar/buildplan/internal/log"
)

// HashStore records the input digest of each step's last successful run.
type HashStore interface {
	Get(key string) (digest.Digest, bool)
	Set(key string, d digest.Digest)
}

// Outcome says how a step was evaluated.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
)

// Plan is the worklist of steps still to evaluate.
type Plan struct {
	logger *log.Logger
	store  HashStore

	pending []Step
	seen    map[PlanKey]struct{}
	report  Report
}

// New returns a plan holding steps.
func New(logger *log.Logger, store HashStore, steps ...Step) (*Plan, error) {
	p := &Plan{
		logger: logger,
		store:  store,
		seen:   make(map[PlanKey]struct{}),
	}
	if err := p.Add(steps...); err != nil {
		return nil, err
	}
	return p, nil
}

// Add appends steps to the worklist. Keys must be unique within a run.
func (p *Plan) Add(steps ...Step) error {
	for _, s := range steps {
		if s.Key().IsZero() {
			return errors.New(errors.ErrCodePlanInvalidStep, "step has an empty key")
		}
		if _, dup := p.seen[s.Key()]; dup {
			return errors.Newf(errors.ErrCodePlanInvalidStep, "duplicate step %s", s.Key())
		}
		p.seen[s.Key()] = struct{}{}
		p.pending = append(p.pending, s)
	}
	return nil
}

// Complete reports whether no steps remain.
func (p *Plan) Complete() bool {
	return len(p.pending) == 0
}

// Pending returns the number of steps not yet evaluated.
func (p *Plan) Pending() int {
	return len(p.pending)
}

// Report returns the outcomes recorded so far.
func (p *Plan) Report() *Report {
	return &p.report
}

// pendingWrites returns the categories written by pending steps other
// than the one at index skip.
func (p *Plan) pendingWrites(skip int) SourceSet {
	var w SourceSet
	for i, s := range p.pending {
		if i != skip {
			w = w.Union(s.Writes())
		}
	}
	return w
}

// nextReady returns the index of the first step none of whose read
// categories is still written by another pending step.
func (p *Plan) nextReady() int {
	for i, s := range p.pending {
		if !s.Reads().Intersects(p.pendingWrites(i)) {
			return i
		}
	}
	return -1
}

func (p *Plan) stalled() error {
	var b strings.Builder
	for i, s := range p.pending {
		waiting := s.Reads().Intersect(p.pendingWrites(i))
		fmt.Fprintf(&b, "\n  %s waits on %s", s.Key(), waiting)
	}
	return errors.Newf(errors.ErrCodePlanStalled,
		"%d remaining steps wait on each other:%s", len(p.pending), b.String()).
		WithSuggestion("Check that no two steps read a category the other writes")
}

// ExecuteOneStep evaluates the next ready step. It returns nil without
// doing anything when the plan is complete.
func (p *Plan) ExecuteOneStep(ctx context.Context) error {
	if p.Complete() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx := p.nextReady()
	if idx < 0 {
		return p.stalled()
	}
	step := p.pending[idx]
	p.pending = append(p.pending[:idx], p.pending[idx+1:]...)

	key := step.Key()
	logger := p.logger.WithStep(key.String())
	start := time.Now()

	inputDigest, hashErr := digestAll(step.Inputs())
	if hashErr != nil {
		logger.WithError(hashErr).Warn("inputs could not be hashed; executing without recording")
	}

	result := StepResult{Key: key, Recorded: hashErr == nil}
	stored, ok := p.store.Get(key.String())
	if hashErr == nil && ok && stored.Equal(inputDigest) {
		logger.Debug("inputs unchanged, skipping")
		result.Outcome = OutcomeSkipped
		if err := step.Skip(ctx, logger); err != nil {
			return errors.NewStepFailedError(key.String(), err)
		}
	} else {
		logger.Debug("executing")
		result.Outcome = OutcomeExecuted
		if err := step.Execute(ctx, logger); err != nil {
			return errors.NewStepFailedError(key.String(), err)
		}
	}

	extra, err := step.ExtraSteps(ctx, logger)
	if err != nil {
		return errors.NewStepFailedError(key.String(), err)
	}
	if err := p.addExtra(key, extra); err != nil {
		return err
	}

	if hashErr == nil {
		p.store.Set(key.String(), inputDigest)
	}

	result.Extra = len(extra)
	result.Duration = time.Since(start)
	p.report.Results = append(p.report.Results, result)
	logger.Debug("step done", "outcome", string(result.Outcome), "extra_steps", result.Extra)
	return nil
}

// addExtra splices steps discovered by producer into the worklist. Each
// must read only categories no pending step still writes, and must be new.
func (p *Plan) addExtra(producer PlanKey, extra []Step) error {
	if len(extra) == 0 {
		return nil
	}
	provided := AllSources().Minus(p.pendingWrites(-1))
	for _, s := range extra {
		if !s.Reads().SubsetOf(provided) {
			return errors.Newf(errors.ErrCodePlanExtraStep,
				"step %s added by %s reads %s which pending steps still write",
				s.Key(), producer, s.Reads().Minus(provided))
		}
		if _, dup := p.seen[s.Key()]; dup {
			return errors.Newf(errors.ErrCodePlanExtraStep,
				"step %s added by %s was already planned", s.Key(), producer)
		}
	}
	return p.Add(extra...)
}

// Run evaluates steps until the plan is complete or one fails.
func (p *Plan) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	defer func() { p.report.Duration += time.Since(start) }()

	for !p.Complete() {
		if err := p.ExecuteOneStep(ctx); err != nil {
			return &p.report, err
		}
	}
	return &p.report, nil
}
