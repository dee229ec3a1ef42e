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

// prioritize orders sources by selection priority: every source named in
// `selected`, in the order it appears there, followed by the remaining
// sources in the order the endpoint supplier produced them (spec.md §4.1).
// The operation is pure: it does not mutate `sources`.
func prioritize(sources []MediaSource, selected []string) []MediaSource {
	byName := make(map[string]MediaSource, len(sources))
	for _, s := range sources {
		byName[s.SourceName()] = s
	}

	sorted := make([]MediaSource, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))

	for _, name := range selected {
		if s, ok := byName[name]; ok {
			if _, dup := seen[name]; !dup {
				sorted = append(sorted, s)
				seen[name] = struct{}{}
			}
		}
	}

	for _, s := range sources {
		if _, ok := seen[s.SourceName()]; !ok {
			sorted = append(sorted, s)
			seen[s.SourceName()] = struct{}{}
		}
	}

	return sorted
}

// effectiveConstraints collapses the receiver's constraints and the
// last-N/on-stage policy into a per-source cap (spec.md §4.2, C5).
//
// `sorted` must already be in priority order: rank is the index of a
// source's owning endpoint's first appearance in `sorted`, and a source
// whose rank falls outside last-N (and is not itself selected/on-stage) is
// disabled regardless of its signaled constraints.
func effectiveConstraints(sorted []MediaSource, settings AllocationSettings, onStageMaxHeightPx int) map[string]VideoConstraints {
	result := make(map[string]VideoConstraints, len(sorted))

	endpointRank := map[string]int{}
	rank := 0
	for _, s := range sorted {
		if _, ok := endpointRank[s.OwnerEndpointID()]; !ok {
			endpointRank[s.OwnerEndpointID()] = rank
			rank++
		}
	}

	onStage := settings.OnStageSources
	selected := settings.SelectedSources

	for _, s := range sorted {
		name := s.SourceName()
		isPrioritized := onStage.Contains(name) || selected.Contains(name)

		if settings.LastN != nil && !isPrioritized {
			if endpointRank[s.OwnerEndpointID()] >= *settings.LastN {
				result[name] = DisabledVideoConstraints
				continue
			}
		}

		c, ok := settings.PerSourceConstraints[name]
		if !ok {
			c = settings.DefaultConstraints
		}

		if onStage.Contains(name) && onStageMaxHeightPx > c.MaxHeight {
			c.MaxHeight = onStageMaxHeightPx
		}

		result[name] = c
	}

	return result
}

// flattenSources concatenates every endpoint's media sources, preserving
// the order the supplier returned endpoints in (spec.md §4.4 step 3).
func flattenSources(endpoints []Endpoint) []MediaSource {
	total := 0
	for _, e := range endpoints {
		total += len(e.Sources)
	}
	sources := make([]MediaSource, 0, total)
	for _, e := range endpoints {
		sources = append(sources, e.Sources...)
	}
	return sources
}

// selectedSourcePriorityList is a package-internal helper for callers (and tests) that want
// to inspect the combined on-stage+selected priority order without running
// a full allocation cycle.
func selectedSourcePriorityList(settings AllocationSettings) []string {
	return settings.selectedSourcePriority()
}
