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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SangwooRyu/jitsi-videobridge/pkg/logger"
)

func testSnapshot() StatsSnapshot {
	return buildStatsSnapshot("receiver-1", ConnectionStats{}, 1_000_000, time.Unix(0, 0), nil)
}

func TestPredictorClientUseRL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"useRL":  1,
			"ep-a":   2,
			"ep-b":   0,
		})
	}))
	defer server.Close()

	client := NewPredictorClient(PredictorConfig{Enabled: true, URL: server.URL, Timeout: time.Second, CacheSize: 8}, logger.Noop())
	targets, useRL := client.Predict(context.Background(), testSnapshot())

	require.True(t, useRL)
	assert.Equal(t, 2, targets["ep-a"])
	assert.Equal(t, 0, targets["ep-b"])
}

func TestPredictorClientUseRLZeroFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"useRL": 0})
	}))
	defer server.Close()

	client := NewPredictorClient(PredictorConfig{Enabled: true, URL: server.URL, Timeout: time.Second, CacheSize: 8}, logger.Noop())
	_, useRL := client.Predict(context.Background(), testSnapshot())

	assert.False(t, useRL)
}

func TestPredictorClientTimeoutFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"useRL": 1})
	}))
	defer server.Close()

	client := NewPredictorClient(PredictorConfig{Enabled: true, URL: server.URL, Timeout: 5 * time.Millisecond, CacheSize: 8}, logger.Noop())
	targets, useRL := client.Predict(context.Background(), testSnapshot())

	assert.False(t, useRL)
	assert.Nil(t, targets)
}

func TestPredictorClientParseFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewPredictorClient(PredictorConfig{Enabled: true, URL: server.URL, Timeout: time.Second, CacheSize: 8}, logger.Noop())
	_, useRL := client.Predict(context.Background(), testSnapshot())

	assert.False(t, useRL)
}

func TestPredictorClientDisabledNeverCallsOut(t *testing.T) {
	client := NewPredictorClient(PredictorConfig{Enabled: false}, logger.Noop())
	targets, useRL := client.Predict(context.Background(), testSnapshot())

	assert.False(t, useRL)
	assert.Nil(t, targets)
}
