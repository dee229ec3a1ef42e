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

import "fmt"

// SingleAllocation is the per-source result of one allocation cycle.
// TargetLayer/IdealLayer are nil when the source has no admissible layer
// at all (e.g. disabled constraints).
type SingleAllocation struct {
	EndpointID  string
	SourceName  string
	TargetLayer *Layer
	IdealLayer  *Layer
}

func (a SingleAllocation) String() string {
	return fmt.Sprintf("SingleAllocation{endpoint: %s, source: %s, target: %v, ideal: %v}",
		a.EndpointID, a.SourceName, a.TargetLayer, a.IdealLayer)
}

func (a SingleAllocation) targetIndex() int {
	if a.TargetLayer == nil {
		return MissingLayer
	}
	return a.TargetLayer.Index
}

// BandwidthAllocation is the immutable result of a single allocation
// cycle (spec.md §3, "BandwidthAllocation (output, immutable per cycle)").
type BandwidthAllocation struct {
	Allocations          []SingleAllocation
	Oversending          bool
	TargetBps            int64
	IdealBps             int64
	SuspendedSourceNames []string
}

// EmptyBandwidthAllocation is the result of a cycle with no sources.
func EmptyBandwidthAllocation() BandwidthAllocation {
	return BandwidthAllocation{}
}

// IsSameAs implements the equality spec.md §3 requires for change
// detection: two allocations are equal iff the sets of (source, target
// index) match and the oversending/suspended sets match.
func (a BandwidthAllocation) IsSameAs(b BandwidthAllocation) bool {
	if a.Oversending != b.Oversending {
		return false
	}
	if len(a.Allocations) != len(b.Allocations) {
		return false
	}

	aTargets := make(map[string]int, len(a.Allocations))
	for _, alloc := range a.Allocations {
		aTargets[alloc.SourceName] = alloc.targetIndex()
	}
	for _, alloc := range b.Allocations {
		idx, ok := aTargets[alloc.SourceName]
		if !ok || idx != alloc.targetIndex() {
			return false
		}
	}

	if len(a.SuspendedSourceNames) != len(b.SuspendedSourceNames) {
		return false
	}
	aSuspended := make(map[string]struct{}, len(a.SuspendedSourceNames))
	for _, n := range a.SuspendedSourceNames {
		aSuspended[n] = struct{}{}
	}
	for _, n := range b.SuspendedSourceNames {
		if _, ok := aSuspended[n]; !ok {
			return false
		}
	}

	return true
}

// IsForwarding reports whether any allocation for the given endpoint has a
// non-nil target layer.
func (a BandwidthAllocation) IsForwarding(endpointID string) bool {
	for _, alloc := range a.Allocations {
		if alloc.EndpointID == endpointID && alloc.TargetLayer != nil {
			return true
		}
	}
	return false
}

// DebugState is a JSON-friendly snapshot, matching the original's
// `BandwidthAllocation#getDebugState()`.
func (a BandwidthAllocation) DebugState() map[string]interface{} {
	allocs := make([]map[string]interface{}, 0, len(a.Allocations))
	for _, alloc := range a.Allocations {
		entry := map[string]interface{}{
			"endpointId": alloc.EndpointID,
			"source":     alloc.SourceName,
		}
		if alloc.TargetLayer != nil {
			entry["target"] = alloc.TargetLayer.Index
		}
		if alloc.IdealLayer != nil {
			entry["ideal"] = alloc.IdealLayer.Index
		}
		allocs = append(allocs, entry)
	}
	return map[string]interface{}{
		"allocations": allocs,
		"oversending": a.Oversending,
		"targetBps":   a.TargetBps,
		"idealBps":    a.IdealBps,
		"suspended":   a.SuspendedSourceNames,
	}
}
