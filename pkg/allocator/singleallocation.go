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

// singleSourceAllocation tracks one source's candidate layers and its
// currently chosen target layer across a single allocation cycle
// (spec.md §3 "Single-source allocation", §4.3, component C3).
type singleSourceAllocation struct {
	source      MediaSource
	endpointID  string
	constraints VideoConstraints
	onStage     bool

	// layers are the candidate layers admissible under constraints, in
	// ascending quality order.
	layers []Layer

	targetIndex int
	idealIndex  int

	preferredHeight    int
	preferredFramerate float64
}

func newSingleSourceAllocation(source MediaSource, constraints VideoConstraints, onStage bool, preferredHeight int, preferredFramerate float64) *singleSourceAllocation {
	ssa := &singleSourceAllocation{
		source:             source,
		endpointID:         source.OwnerEndpointID(),
		constraints:        constraints,
		onStage:            onStage,
		targetIndex:        MissingLayer,
		idealIndex:         MissingLayer,
		preferredHeight:    preferredHeight,
		preferredFramerate: preferredFramerate,
	}

	if !constraints.Disabled() {
		for _, l := range source.Layers() {
			if l.fitsWithin(constraints) {
				ssa.layers = append(ssa.layers, l)
			}
		}
	}

	if len(ssa.layers) > 0 {
		ssa.idealIndex = ssa.layers[len(ssa.layers)-1].Index
	}

	return ssa
}

// preferredIndex is the lowest candidate layer meeting the preferred
// quality threshold, or idealIndex if no candidate does (spec.md §4.3).
func (ssa *singleSourceAllocation) preferredIndex() int {
	for _, l := range ssa.layers {
		if l.meetsOrExceeds(ssa.preferredHeight, ssa.preferredFramerate) {
			return l.Index
		}
	}
	return ssa.idealIndex
}

func (ssa *singleSourceAllocation) layerAt(index int) (Layer, bool) {
	for _, l := range ssa.layers {
		if l.Index == index {
			return l, true
		}
	}
	return Layer{}, false
}

// nextLayer returns the lowest candidate layer strictly above targetIndex.
func (ssa *singleSourceAllocation) nextLayer() (Layer, bool) {
	for _, l := range ssa.layers {
		if l.Index > ssa.targetIndex {
			return l, true
		}
	}
	return Layer{}, false
}

// currentBitrate is the bitrate of the layer currently targeted, or 0 if
// the source is suspended. A layer's BitrateBps is the absolute cost of
// forwarding that single simulcast alternative, not an increment on top
// of lower layers, so switching targets costs the *difference* between
// the old and new layer's bitrate, not their sum.
func (ssa *singleSourceAllocation) currentBitrate() int64 {
	if l, ok := ssa.layerAt(ssa.targetIndex); ok {
		return l.BitrateBps
	}
	return 0
}

// improve attempts to raise targetIndex under budget and returns the net
// bitrate delta consumed (spec.md §4.3 "improve"). In tile view it
// advances at most one step; in stage view it keeps advancing while the
// next candidate fits and the current target has not yet reached the
// preferred layer, then takes at most one more step if it fits (so an
// on-stage source whose ideal lies more than one layer above preferred
// needs further passes of the outer fixpoint loop to reach it). If nothing is currently
// selected and even the lowest candidate does not fit, it is admitted
// anyway, letting the caller flag oversending ("minimum viable video").
func (ssa *singleSourceAllocation) improve(budget int64, stageView bool) int64 {
	if len(ssa.layers) == 0 {
		return 0
	}

	var totalDelta int64

	if ssa.targetIndex == MissingLayer {
		lowest := ssa.layers[0]
		totalDelta += lowest.BitrateBps
		budget -= lowest.BitrateBps
		ssa.targetIndex = lowest.Index

		if !stageView {
			return totalDelta
		}
	}

	if stageView {
		preferred := ssa.preferredIndex()
		for ssa.targetIndex < preferred {
			next, ok := ssa.nextLayer()
			if !ok {
				break
			}
			delta := next.BitrateBps - ssa.currentBitrate()
			if delta > budget {
				break
			}

			budget -= delta
			totalDelta += delta
			ssa.targetIndex = next.Index
		}
	}

	// One further opportunistic step: in stage view, past the preferred
	// layer just reached; in tile view, the source's sole step this call.
	// Either way it is taken only if it fits, and only once per call, so a
	// stage source with more than one layer above preferred needs
	// additional passes of the outer fixpoint loop to climb all the way to
	// ideal once budget allows it.
	if next, ok := ssa.nextLayer(); ok {
		delta := next.BitrateBps - ssa.currentBitrate()
		if delta <= budget {
			totalDelta += delta
			ssa.targetIndex = next.Index
		}
	}

	return totalDelta
}

// rlApply sets targetIndex to the predictor's hint, clamped to idealIndex,
// when that layer's bitrate fits within budget; otherwise it falls back to
// improve's semantics (spec.md §4.3 "rl_apply"). A hint <= MissingLayer
// means "keep suspended".
func (ssa *singleSourceAllocation) rlApply(hint int, budget int64, stageView bool) int64 {
	if len(ssa.layers) == 0 {
		return 0
	}

	target := hint
	if target > ssa.idealIndex {
		target = ssa.idealIndex
	}

	if target <= MissingLayer {
		return 0
	}

	layer, ok := ssa.layerAt(target)
	if !ok || layer.BitrateBps > budget {
		return ssa.improve(budget, stageView)
	}

	delta := layer.BitrateBps
	if ssa.targetIndex != MissingLayer {
		if current, ok := ssa.layerAt(ssa.targetIndex); ok {
			delta -= current.BitrateBps
		}
	}
	ssa.targetIndex = layer.Index
	return delta
}

func (ssa *singleSourceAllocation) hasReachedPreferred() bool {
	return ssa.targetIndex >= ssa.preferredIndex()
}

// isSuspended reports whether the source is sending video, is not
// constraint-disabled, yet was not given a target layer.
func (ssa *singleSourceAllocation) isSuspended() bool {
	return !ssa.constraints.Disabled() && len(ssa.source.Layers()) > 0 && ssa.targetIndex == MissingLayer
}

func (ssa *singleSourceAllocation) targetBitrate() int64 {
	if l, ok := ssa.layerAt(ssa.targetIndex); ok {
		return l.BitrateBps
	}
	return 0
}

func (ssa *singleSourceAllocation) idealBitrate() int64 {
	if l, ok := ssa.layerAt(ssa.idealIndex); ok {
		return l.BitrateBps
	}
	return 0
}

func (ssa *singleSourceAllocation) result() SingleAllocation {
	alloc := SingleAllocation{
		EndpointID: ssa.endpointID,
		SourceName: ssa.source.SourceName(),
	}
	if l, ok := ssa.layerAt(ssa.targetIndex); ok {
		layerCopy := l
		alloc.TargetLayer = &layerCopy
	}
	if l, ok := ssa.layerAt(ssa.idealIndex); ok {
		layerCopy := l
		alloc.IdealLayer = &layerCopy
	}
	return alloc
}
