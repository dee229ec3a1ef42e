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

// MediaSource is a single remote video source. It is provided by the RTP
// transceiver / layer-discovery layer, referenced here only by interface
// (spec.md §1, "Out of scope").
type MediaSource interface {
	// SourceName is an opaque identifier, globally unique within the conference.
	SourceName() string
	// OwnerEndpointID is the id of the endpoint publishing this source.
	OwnerEndpointID() string
	// Layers returns the source's candidate layers in ascending quality order.
	Layers() []Layer
}

// ConnectionStats carries the subset of transceiver/RTCP statistics the
// stats collector (C7) needs. Populated by the out-of-scope bandwidth
// estimator / transport layer.
type ConnectionStats struct {
	JitterMs        float64
	RoundTripTimeMs float64
	PacketsLost     int64
	PacketsReceived int64
}

// Endpoint is a conference participant publishing zero or more media
// sources (spec.md §6, "endpoint_supplier"). It is a plain struct; its
// sources are reached only through the MediaSource interface.
type Endpoint struct {
	ID      string
	Sources []MediaSource
	Stats   ConnectionStats
}

// EndpointSupplier returns the current list of conference endpoints. The
// order matters: the Prioritizer keeps it for every source that is not
// on-stage or selected, so callers are expected to have their own
// most-recent-speaker ordering baked into the slice.
//
// This mirrors the original's Supplier<List<T>> field and is deliberately a
// function type rather than an interface so tests and the CLI demo can
// supply a closure over an in-memory scenario without a mock type.
type EndpointSupplier func() []Endpoint

// EndpointSource is the interface form of EndpointSupplier, provided for
// callers that prefer to inject an object rather than a closure.
type EndpointSource interface {
	Endpoints() []Endpoint
}

// AsSupplier adapts an EndpointSource to an EndpointSupplier.
func AsSupplier(s EndpointSource) EndpointSupplier {
	return s.Endpoints
}
