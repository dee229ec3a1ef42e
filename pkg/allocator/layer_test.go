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

func TestLayerFitsWithin(t *testing.T) {
	l := Layer{Index: 1, Height: 360, FrameRate: 30, BitrateBps: 500_000}

	assert.True(t, l.fitsWithin(VideoConstraints{MaxHeight: 360, MaxFramerate: 30}))
	assert.True(t, l.fitsWithin(VideoConstraints{MaxHeight: 720, MaxFramerate: 30}))
	assert.False(t, l.fitsWithin(VideoConstraints{MaxHeight: 180, MaxFramerate: 30}))
	assert.False(t, l.fitsWithin(VideoConstraints{MaxHeight: 360, MaxFramerate: 15}))
	assert.False(t, l.fitsWithin(DisabledVideoConstraints))
}

func TestLayerMeetsOrExceeds(t *testing.T) {
	l := Layer{Index: 1, Height: 360, FrameRate: 30}

	assert.True(t, l.meetsOrExceeds(360, 30))
	assert.True(t, l.meetsOrExceeds(180, 15))
	assert.False(t, l.meetsOrExceeds(720, 30))
	assert.False(t, l.meetsOrExceeds(360, 60))
}
