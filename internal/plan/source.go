package plan

import (
	"math/bits"
	"strings"
)

// StepSource is a coarse category of artifact flowing between steps.
type StepSource uint8

// Categories. Names ending in "-generated" or "-compiled" place a category
// in AllGenerated or AllCompiled.
const (
	CSSSource StepSource = iota
	CSSGenerated
	CSSCompiled
	CSSSourceMap
	CSSRenameMap
	JavaGenerated
	JSSource
	JSGenerated
	JSCompiled
	JSSourceMap
	JSDepInfo
	JSModules
	ProtoSource
	ProtoGenerated
	ProtoDescriptorSet
	Protoc
	ProtoPackageMap
	SoySource
	SoyGenerated

	numStepSources
)

var stepSourceNames = [numStepSources]string{
	CSSSource:          "css-src",
	CSSGenerated:       "css-generated",
	CSSCompiled:        "css-compiled",
	CSSSourceMap:       "css-source-map",
	CSSRenameMap:       "css-rename-map",
	JavaGenerated:      "java-generated",
	JSSource:           "js-src",
	JSGenerated:        "js-generated",
	JSCompiled:         "js-compiled",
	JSSourceMap:        "js-source-map",
	JSDepInfo:          "js-dep-info",
	JSModules:          "js-modules",
	ProtoSource:        "proto-src",
	ProtoGenerated:     "proto-generated",
	ProtoDescriptorSet: "proto-descriptor-set",
	Protoc:             "protoc",
	ProtoPackageMap:    "proto-package-map",
	SoySource:          "soy-src",
	SoyGenerated:       "soy-generated",
}

func (s StepSource) String() string {
	if s < numStepSources {
		return stepSourceNames[s]
	}
	return "unknown"
}

// SourceSet is an immutable set of categories.
type SourceSet uint64

// SetOf returns the set holding ss.
func SetOf(ss ...StepSource) SourceSet {
	var set SourceSet
	for _, s := range ss {
		set |= 1 << s
	}
	return set
}

// Has reports whether s is a member.
func (set SourceSet) Has(s StepSource) bool { return set&(1<<s) != 0 }

// Union returns the members of either set.
func (set SourceSet) Union(other SourceSet) SourceSet { return set | other }

// Minus returns the members of set absent from other.
func (set SourceSet) Minus(other SourceSet) SourceSet { return set &^ other }

// Intersect returns the members of both sets.
func (set SourceSet) Intersect(other SourceSet) SourceSet { return set & other }

// Intersects reports whether the sets share a member.
func (set SourceSet) Intersects(other SourceSet) bool { return set&other != 0 }

// SubsetOf reports whether every member of set is in other.
func (set SourceSet) SubsetOf(other SourceSet) bool { return set&^other == 0 }

// Len returns the number of members.
func (set SourceSet) Len() int { return bits.OnesCount64(uint64(set)) }

// Members lists the members in declaration order.
func (set SourceSet) Members() []StepSource {
	var out []StepSource
	for s := StepSource(0); s < numStepSources; s++ {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func (set SourceSet) String() string {
	names := make([]string, 0, set.Len())
	for _, s := range set.Members() {
		names = append(names, s.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

var (
	allSources   SourceSet
	allGenerated SourceSet
	allCompiled  SourceSet
)

func init() {
	for s := StepSource(0); s < numStepSources; s++ {
		allSources |= SetOf(s)
		switch name := s.String(); {
		case strings.HasSuffix(name, "-generated"):
			allGenerated |= SetOf(s)
		case strings.HasSuffix(name, "-compiled"):
			allCompiled |= SetOf(s)
		}
	}
}

// AllSources returns every category.
func AllSources() SourceSet { return allSources }

// AllGenerated returns every category of generated source.
func AllGenerated() SourceSet { return allGenerated }

// AllCompiled returns every category of compiled output.
func AllCompiled() SourceSet { return allCompiled }
