// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package allocator

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/thoas/go-funk"
)

// OrderedSourceSet is an insertion-ordered set of source names, used for
// on_stage_sources and selected_sources: the receiver cares about both
// membership and the order sources were selected in.
type OrderedSourceSet struct {
	m *orderedmap.OrderedMap[string, struct{}]
}

func NewOrderedSourceSet(names ...string) OrderedSourceSet {
	s := OrderedSourceSet{m: orderedmap.NewOrderedMap[string, struct{}]()}
	for _, n := range names {
		s.m.Set(n, struct{}{})
	}
	return s
}

func (s OrderedSourceSet) Contains(name string) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m.Get(name)
	return ok
}

// Slice returns the set's members in insertion order.
func (s OrderedSourceSet) Slice() []string {
	if s.m == nil {
		return nil
	}
	out := make([]string, 0, s.m.Len())
	for el := s.m.Front(); el != nil; el = el.Next() {
		out = append(out, el.Key)
	}
	return out
}

// AllocationSettings is the per-receiver policy signaled by the receiver's
// signaling layer (referenced only by interface, spec.md §1/§3).
type AllocationSettings struct {
	OnStageSources       OrderedSourceSet
	SelectedSources      OrderedSourceSet
	DefaultConstraints   VideoConstraints
	PerSourceConstraints map[string]VideoConstraints

	// LastN bounds how many endpoints, ranked in priority order, have
	// their sources forwarded; on-stage and selected sources are exempt.
	// nil means unbounded (spec.md glossary: "LastN").
	LastN *int
}

// NewAllocationSettings builds settings whose default constraint is the
// given one and with no per-source constraints, mirroring the Java constructor's
// `new AllocationSettings(new VideoConstraints(thumbnailMaxHeightPx))`.
func NewAllocationSettings(defaultConstraints VideoConstraints) AllocationSettings {
	return AllocationSettings{
		DefaultConstraints:   defaultConstraints,
		PerSourceConstraints: map[string]VideoConstraints{},
	}
}

// selectedSourcePriority returns on-stage sources followed by explicitly
// selected sources, on-stage always first and de-duplicated, per spec.md
// §9's resolution of the ambiguity in the original's list concatenation.
func (s AllocationSettings) selectedSourcePriority() []string {
	onStage := s.OnStageSources.Slice()
	selected := s.SelectedSources.Slice()
	combined := make([]string, 0, len(onStage)+len(selected))
	combined = append(combined, onStage...)
	for _, name := range selected {
		if !funk.ContainsString(combined, name) {
			combined = append(combined, name)
		}
	}
	return funk.UniqString(combined)
}
