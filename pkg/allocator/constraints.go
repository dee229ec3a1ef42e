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

// VideoConstraints is the receiver-signaled maximum resolution/framerate
// for a single source. A constraint with MaxHeight == 0 is disabled: it
// forbids any forwarding of that source, regardless of available
// bandwidth.
type VideoConstraints struct {
	MaxHeight    int     `json:"maxHeight"`
	MaxFramerate float64 `json:"maxFramerate"`
}

// DisabledVideoConstraints is the zero-value constraint, always disabled.
var DisabledVideoConstraints = VideoConstraints{}

func (c VideoConstraints) Disabled() bool {
	return c.MaxHeight == 0
}

func (c VideoConstraints) String() string {
	if c.Disabled() {
		return "disabled"
	}
	return fmt.Sprintf("%dp@%.0ffps", c.MaxHeight, c.MaxFramerate)
}

// PrettyPrintConstraints renders a source->constraints map deterministically
// for trace logging, mirroring the original's prettyPrint helper.
func PrettyPrintConstraints(m map[string]VideoConstraints) string {
	if len(m) == 0 {
		return "{}"
	}
	out := "{"
	first := true
	for _, name := range sortedKeys(m) {
		if !first {
			out += ", "
		}
		first = false
		out += fmt.Sprintf("%s: %s", name, m[name])
	}
	return out + "}"
}

func sortedKeys(m map[string]VideoConstraints) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort: constraint maps are small (bounded by lastN)
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
