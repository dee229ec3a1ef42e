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
)

func TestBandwidthAllocationIsSameAs(t *testing.T) {
	layer1 := Layer{Index: 1, BitrateBps: 500_000}

	a := BandwidthAllocation{
		Allocations: []SingleAllocation{
			{EndpointID: "ep-a", SourceName: "a", TargetLayer: &layer1},
		},
	}
	b := BandwidthAllocation{
		Allocations: []SingleAllocation{
			{EndpointID: "ep-a", SourceName: "a", TargetLayer: &layer1},
		},
	}
	assert.True(t, a.IsSameAs(b))

	c := BandwidthAllocation{
		Allocations: []SingleAllocation{
			{EndpointID: "ep-a", SourceName: "a", TargetLayer: nil},
		},
	}
	assert.False(t, a.IsSameAs(c))

	d := BandwidthAllocation{
		Allocations:          a.Allocations,
		SuspendedSourceNames: []string{"b"},
	}
	assert.False(t, a.IsSameAs(d))

	e := BandwidthAllocation{Allocations: a.Allocations, Oversending: true}
	assert.False(t, a.IsSameAs(e))
}

func TestBandwidthAllocationIsForwarding(t *testing.T) {
	layer1 := Layer{Index: 1, BitrateBps: 500_000}
	alloc := BandwidthAllocation{
		Allocations: []SingleAllocation{
			{EndpointID: "ep-a", SourceName: "a", TargetLayer: &layer1},
			{EndpointID: "ep-b", SourceName: "b", TargetLayer: nil},
		},
	}

	assert.True(t, alloc.IsForwarding("ep-a"))
	assert.False(t, alloc.IsForwarding("ep-b"))
	assert.False(t, alloc.IsForwarding("ep-c"))
}

func TestEmptyBandwidthAllocationDebugState(t *testing.T) {
	state := EmptyBandwidthAllocation().DebugState()
	assert.Equal(t, false, state["oversending"])
	assert.Empty(t, state["allocations"])
}
