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

// fakeSource is a minimal MediaSource used across the package's tests.
// scenarioLayers is the three-tier ladder spec.md §8's end-to-end
// scenarios use throughout: 180p@15=150kbps, 360p@30=500kbps,
// 720p@30=2000kbps.
type fakeSource struct {
	name   string
	owner  string
	layers []Layer
}

func (s fakeSource) SourceName() string      { return s.name }
func (s fakeSource) OwnerEndpointID() string { return s.owner }
func (s fakeSource) Layers() []Layer         { return s.layers }

func scenarioLayers() []Layer {
	return []Layer{
		{Index: 0, TemporalID: 0, SpatialID: 0, Height: 180, FrameRate: 15, BitrateBps: 150_000},
		{Index: 1, TemporalID: 0, SpatialID: 1, Height: 360, FrameRate: 30, BitrateBps: 500_000},
		{Index: 2, TemporalID: 0, SpatialID: 2, Height: 720, FrameRate: 30, BitrateBps: 2_000_000},
	}
}

func newScenarioSource(name, owner string) fakeSource {
	return fakeSource{name: name, owner: owner, layers: scenarioLayers()}
}
