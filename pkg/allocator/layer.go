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

// MissingLayer is the sentinel layer index meaning "no layer chosen", i.e.
// a source is suspended or has no candidate layers at all.
const MissingLayer = -1

// Layer describes a single forwardable simulcast/scalable layer of a
// source. Index is dense and 0-based, monotone in quality: higher index
// always means equal or better quality than a lower one within the same
// source's layer list.
type Layer struct {
	Index      int
	TemporalID int32
	SpatialID  int32
	Height     int
	FrameRate  float64

	// BitrateBps is a running estimate; it may be 0 if the sender has not
	// produced this layer recently.
	BitrateBps int64
}

func (l Layer) String() string {
	return fmt.Sprintf("Layer{idx: %d, t: %d, s: %d, height: %d, fps: %.1f, bitrate: %d}",
		l.Index, l.TemporalID, l.SpatialID, l.Height, l.FrameRate, l.BitrateBps)
}

// fitsWithin reports whether this layer satisfies the given constraints.
func (l Layer) fitsWithin(c VideoConstraints) bool {
	if c.Disabled() {
		return false
	}
	return l.Height <= c.MaxHeight && l.FrameRate <= c.MaxFramerate
}

// meetsOrExceeds reports whether this layer is at least as good as the
// preferred quality threshold (height and framerate both met).
func (l Layer) meetsOrExceeds(preferredHeight int, preferredFramerate float64) bool {
	return l.Height >= preferredHeight && l.FrameRate >= preferredFramerate
}
