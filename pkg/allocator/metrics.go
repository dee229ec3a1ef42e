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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ambient cycle instrumentation (spec.md §1 lists congestion control
// itself as a non-goal; counting cycles is not congestion control).
var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "allocator",
		Name:      "cycles_total",
		Help:      "Number of completed allocator update cycles.",
	})

	oversendingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "allocator",
		Name:      "oversending_total",
		Help:      "Number of cycles that ended with the oversending flag set.",
	})

	suspendedSources = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "allocator",
		Name:      "suspended_sources",
		Help:      "Number of sources suspended (target_index == -1) after the most recent cycle.",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "allocator",
		Name:      "cycle_duration_seconds",
		Help:      "Wall-clock duration of an allocator update cycle, including any predictor call.",
		Buckets:   prometheus.DefBuckets,
	})
)
