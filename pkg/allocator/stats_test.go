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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatsSnapshotShape(t *testing.T) {
	source := newScenarioSource("a", "ep-a")
	ssa := newSingleSourceAllocation(source, VideoConstraints{MaxHeight: 720, MaxFramerate: 30}, true, preferredHeight, preferredFramerate)
	ssa.improve(10_000_000, true)

	stats := ConnectionStats{JitterMs: 1.5, RoundTripTimeMs: 20, PacketsLost: 3, PacketsReceived: 1000}
	snapshot := buildStatsSnapshot("receiver-1", stats, 1_000_000, time.Unix(1000, 0), []*singleSourceAllocation{ssa})

	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)

	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	receiver, ok := decoded["receiver-1"]
	require.True(t, ok)

	summary, ok := receiver["Summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1_000_000), summary["Available_BW"])

	peer, ok := receiver["ep-a"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), peer["pkt_lost"])
	assert.Equal(t, float64(1.5), peer["jitter_ms"])

	layers, ok := peer["layers"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, layers, 3)
}

func TestBuildStatsSnapshotZeroNumericsNotOmitted(t *testing.T) {
	source := newScenarioSource("a", "ep-a")
	ssa := newSingleSourceAllocation(source, VideoConstraints{MaxHeight: 720, MaxFramerate: 30}, false, preferredHeight, preferredFramerate)

	snapshot := buildStatsSnapshot("receiver-1", ConnectionStats{}, 0, time.Unix(0, 0), []*singleSourceAllocation{ssa})
	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"pkt_lost":0`)
	assert.Contains(t, string(raw), `"jitter_ms":0`)
}
