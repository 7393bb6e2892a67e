package plan

import (
	"context"

	"github.com/felixgeelhaar/buildplan/internal/log"
)

// Step is a unit of planned work.
//
// Execute does the work. Skip runs instead when the recorded digest of the
// inputs is unchanged; it must still leave every output ingredient resolved
// (for example by rescanning an output directory). ExtraSteps returns steps
// that only become known after this one ran. Each returned step must read
// only categories that no pending step still writes.
type Step interface {
	Key() PlanKey
	Inputs() []Ingredient
	Reads() SourceSet
	Writes() SourceSet

	Execute(ctx context.Context, logger *log.Logger) error
	Skip(ctx context.Context, logger *log.Logger) error
	ExtraSteps(ctx context.Context, logger *log.Logger) ([]Step, error)
}

// StepInfo holds the declared identity of a step. Embed it to implement
// the descriptive half of Step.
type StepInfo struct {
	key    PlanKey
	inputs []Ingredient
	reads  SourceSet
	writes SourceSet
}

// NewStepInfo describes a step. The key is derived from prefix and the
// keys of inputs, so steps with different inputs never share a key.
func NewStepInfo(prefix string, inputs []Ingredient, reads, writes SourceSet) StepInfo {
	return StepInfo{
		key:    NewKey(prefix).AddIngredients(inputs...).Build(),
		inputs: append([]Ingredient(nil), inputs...),
		reads:  reads,
		writes: writes,
	}
}

// NewStepInfoWithKey describes a step whose key is built by the caller.
func NewStepInfoWithKey(key PlanKey, inputs []Ingredient, reads, writes SourceSet) StepInfo {
	return StepInfo{
		key:    key,
		inputs: append([]Ingredient(nil), inputs...),
		reads:  reads,
		writes: writes,
	}
}

func (s StepInfo) Key() PlanKey      { return s.key }
func (s StepInfo) Reads() SourceSet  { return s.reads }
func (s StepInfo) Writes() SourceSet { return s.writes }

// Inputs returns the ingredients in declaration order.
func (s StepInfo) Inputs() []Ingredient {
	return append([]Ingredient(nil), s.inputs...)
}

// ExtraSteps returns nothing. Steps that discover work override it.
func (s StepInfo) ExtraSteps(context.Context, *log.Logger) ([]Step, error) {
	return nil, nil
}
