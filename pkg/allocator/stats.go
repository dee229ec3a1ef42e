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
	"strconv"
	"time"
)

// LayerStats is the wire shape of a single candidate layer in the stats
// snapshot C7 builds for the predictor (spec.md §4.5).
type LayerStats struct {
	TemporalID int32   `json:"temporal_id"`
	SpatialID  int32   `json:"spatial_id"`
	Height     int     `json:"height"`
	Framerate  float64 `json:"framerate"`
	Bitrate    int64   `json:"bitrate"`
}

func layerStatsOf(l Layer) LayerStats {
	return LayerStats{
		TemporalID: l.TemporalID,
		SpatialID:  l.SpatialID,
		Height:     l.Height,
		Framerate:  l.FrameRate,
		Bitrate:    l.BitrateBps,
	}
}

type videoConstraintsStats struct {
	MaxHeight    int     `json:"maxHeight"`
	MaxFramerate float64 `json:"maxFramerate"`
}

// AllocationStats is the "Allocations" sub-object of a peer entry: the
// chosen layer and the best layer ignoring budget.
type AllocationStats struct {
	Target *LayerStats `json:"target,omitempty"`
	Ideal  *LayerStats `json:"ideal,omitempty"`
}

// PeerStats is one peer_endpoint_id entry in the stats snapshot.
//
// Per the original's behavior (SPEC_FULL.md §5.5, not reproduced here as
// a bug): jitter/RTT/packet counters are the *receiving* endpoint's own
// transceiver stats, read once per cycle and fanned out identically into
// every peer entry — they are not per-peer measurements.
type PeerStats struct {
	JitterMs         float64               `json:"jitter_ms"`
	RoundTripTimeMs  float64               `json:"round_trip_time_ms"`
	PktLost          int64                 `json:"pkt_lost"`
	PktReceived      int64                 `json:"pkt_received"`
	VideoConstraints videoConstraintsStats `json:"video_constraints"`
	Layers           map[string]LayerStats `json:"layers"`
	Allocations      AllocationStats       `json:"Allocations"`
}

// SummaryStats is the sibling "Summary" entry alongside the per-peer
// entries in a ReceiverStats document.
type SummaryStats struct {
	AvailableBW int64 `json:"Available_BW"`
	Timestamp   int64 `json:"timestamp"`
}

// ReceiverStats is the per-receiver document: one entry per peer plus a
// "Summary" sibling, all at the same JSON nesting level (spec.md §4.5).
type ReceiverStats struct {
	Peers   map[string]PeerStats
	Summary SummaryStats
}

func (r ReceiverStats) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Peers)+1)
	for peerID, stats := range r.Peers {
		flat[peerID] = stats
	}
	flat["Summary"] = r.Summary
	return json.Marshal(flat)
}

// StatsSnapshot is the full predictor request body: keyed by the single
// receiving endpoint this allocator serves.
type StatsSnapshot struct {
	ReceiverEndpointID string
	Receiver           ReceiverStats
}

func (s StatsSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]ReceiverStats{s.ReceiverEndpointID: s.Receiver})
}

// buildStatsSnapshot assembles the C7 document from the current cycle's
// single-source allocations (spec.md §4.5). Absent or zero numerics are
// reported as 0 rather than omitted, so none of PeerStats' numeric fields
// carry `omitempty`.
func buildStatsSnapshot(receiverEndpointID string, receiverStats ConnectionStats, availableBWBps int64, now time.Time, allocations []*singleSourceAllocation) StatsSnapshot {
	peers := make(map[string]PeerStats, len(allocations))

	for _, ssa := range allocations {
		layers := make(map[string]LayerStats, len(ssa.layers))
		for _, l := range ssa.layers {
			layers[strconv.Itoa(l.Index)] = layerStatsOf(l)
		}

		var alloc AllocationStats
		if l, ok := ssa.layerAt(ssa.targetIndex); ok {
			ls := layerStatsOf(l)
			alloc.Target = &ls
		}
		if l, ok := ssa.layerAt(ssa.idealIndex); ok {
			ls := layerStatsOf(l)
			alloc.Ideal = &ls
		}

		peers[ssa.endpointID] = PeerStats{
			JitterMs:        receiverStats.JitterMs,
			RoundTripTimeMs: receiverStats.RoundTripTimeMs,
			PktLost:         receiverStats.PacketsLost,
			PktReceived:     receiverStats.PacketsReceived,
			VideoConstraints: videoConstraintsStats{
				MaxHeight:    ssa.constraints.MaxHeight,
				MaxFramerate: ssa.constraints.MaxFramerate,
			},
			Layers:      layers,
			Allocations: alloc,
		}
	}

	return StatsSnapshot{
		ReceiverEndpointID: receiverEndpointID,
		Receiver: ReceiverStats{
			Peers: peers,
			Summary: SummaryStats{
				AvailableBW: availableBWBps,
				Timestamp:   now.UnixMilli(),
			},
		},
	}
}
