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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	preferredHeight    = 360
	preferredFramerate = 30.0
)

func newTestSSA(t *testing.T, onStage bool) *singleSourceAllocation {
	t.Helper()
	source := newScenarioSource("a", "ep-a")
	return newSingleSourceAllocation(source, VideoConstraints{MaxHeight: 720, MaxFramerate: 30}, onStage, preferredHeight, preferredFramerate)
}

func TestSingleSourceAllocationConstructionFiltersLayers(t *testing.T) {
	source := newScenarioSource("a", "ep-a")
	ssa := newSingleSourceAllocation(source, VideoConstraints{MaxHeight: 360, MaxFramerate: 30}, true, preferredHeight, preferredFramerate)

	require.Len(t, ssa.layers, 2)
	assert.Equal(t, 1, ssa.idealIndex)
	assert.Equal(t, MissingLayer, ssa.targetIndex)
}

func TestSingleSourceAllocationDisabledConstraintsHaveNoLayers(t *testing.T) {
	source := newScenarioSource("a", "ep-a")
	ssa := newSingleSourceAllocation(source, DisabledVideoConstraints, false, preferredHeight, preferredFramerate)

	assert.Empty(t, ssa.layers)
	assert.Equal(t, MissingLayer, ssa.idealIndex)
	assert.Equal(t, MissingLayer, ssa.targetIndex)
	assert.Zero(t, ssa.improve(10_000_000, true))
}

// Scenario 1 (spec.md §8): single on-stage source, ample budget -> target=2.
func TestGreedyFallbackAmpleBudgetReachesIdeal(t *testing.T) {
	ssa := newTestSSA(t, true)
	oversending := greedyFallback([]*singleSourceAllocation{ssa}, 3_000_000)

	assert.False(t, oversending)
	assert.Equal(t, 2, ssa.targetIndex)
	assert.Equal(t, int64(2_000_000), ssa.targetBitrate())
}

// Scenario 2: single on-stage source, tight budget -> target=1.
func TestGreedyFallbackTightBudgetStopsAtFittingLayer(t *testing.T) {
	ssa := newTestSSA(t, true)
	oversending := greedyFallback([]*singleSourceAllocation{ssa}, 600_000)

	assert.False(t, oversending)
	assert.Equal(t, 1, ssa.targetIndex)
}

// Scenario 4: oversending floor admits the lowest candidate even though
// it does not fit.
func TestGreedyFallbackOversendingFloor(t *testing.T) {
	ssa := newTestSSA(t, true)
	oversending := greedyFallback([]*singleSourceAllocation{ssa}, 50_000)

	assert.True(t, oversending)
	assert.Equal(t, 0, ssa.targetIndex)
	assert.Equal(t, int64(150_000), ssa.targetBitrate())
}

// Scenario 5: a disabled constraint never receives a target layer,
// regardless of budget.
func TestGreedyFallbackDisabledSourceStaysSuspended(t *testing.T) {
	source := newScenarioSource("b", "ep-b")
	ssa := newSingleSourceAllocation(source, DisabledVideoConstraints, false, preferredHeight, preferredFramerate)

	oversending := greedyFallback([]*singleSourceAllocation{ssa}, 10_000_000)

	assert.False(t, oversending)
	assert.Equal(t, MissingLayer, ssa.targetIndex)
	assert.False(t, ssa.isSuspended()) // disabled, not bandwidth-starved
}

func TestRLApplyClampsHintToIdeal(t *testing.T) {
	ssa := newTestSSA(t, true)
	delta := ssa.rlApply(50, 10_000_000, true)

	assert.Equal(t, 2, ssa.targetIndex)
	assert.Equal(t, int64(2_000_000), delta)
}

func TestRLApplyFallsBackWhenHintDoesNotFit(t *testing.T) {
	ssa := newTestSSA(t, true)
	delta := ssa.rlApply(2, 600_000, true)

	// layer 2 doesn't fit in 600kbps; falls back to improve(), landing on layer 1.
	assert.Equal(t, 1, ssa.targetIndex)
	assert.Equal(t, int64(500_000), delta)
}

func TestRLApplyNegativeHintKeepsSuspended(t *testing.T) {
	ssa := newTestSSA(t, true)
	delta := ssa.rlApply(MissingLayer, 10_000_000, true)

	assert.Equal(t, MissingLayer, ssa.targetIndex)
	assert.Zero(t, delta)
}

func TestHasReachedPreferred(t *testing.T) {
	ssa := newTestSSA(t, true)
	assert.False(t, ssa.hasReachedPreferred())

	ssa.improve(3_000_000, true)
	assert.True(t, ssa.hasReachedPreferred())
}
