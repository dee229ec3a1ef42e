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
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/fnv"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jxskiss/base62"
	"github.com/pkg/errors"

	"github.com/SangwooRyu/jitsi-videobridge/pkg/logger"
)

// RLDefaultTargetIndex is the predictor's documented fallback when a
// peer is missing from its response map (spec.md §6 "Missing peer keys
// default to the sentinel 5"). Callers must still clamp it to a given
// source's ideal_index (spec.md §9).
const RLDefaultTargetIndex = 5

// predictorResponse decodes the predictor's JSON body: a fixed `useRL`
// key sitting alongside a dynamic set of peer_endpoint_id -> int keys.
type predictorResponse struct {
	UseRL   int
	Targets map[string]int
}

func (r *predictorResponse) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Targets = make(map[string]int, len(raw))
	for key, value := range raw {
		if key == "useRL" {
			if err := json.Unmarshal(value, &r.UseRL); err != nil {
				return errors.Wrap(err, "decode useRL")
			}
			continue
		}
		var idx int
		if err := json.Unmarshal(value, &idx); err != nil {
			// A non-integer sibling key is not a protocol violation we
			// care about; skip it rather than failing the whole decode.
			continue
		}
		r.Targets[key] = idx
	}
	return nil
}

// PredictorClient is C8: an optional remote delegate for the allocation
// decision, reached over HTTP with a bounded timeout and a small LRU of
// recent responses keyed by a fingerprint of the request body, so an
// unchanged snapshot does not re-hit the network every cycle.
type PredictorClient struct {
	cfg    PredictorConfig
	http   *http.Client
	cache  *lru.Cache[string, predictorResponse]
	logger logger.Logger
}

func NewPredictorClient(cfg PredictorConfig, log logger.Logger) *PredictorClient {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	cache, _ := lru.New[string, predictorResponse](size)
	return &PredictorClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		logger: log,
	}
}

// Predict posts the stats snapshot and returns the per-peer target index
// map plus whether the predictor opted in. A false return means "fall
// back to the greedy algorithm" (spec.md §4.4 step 8) and is never an
// error the caller needs to handle specially — every failure mode in the
// §7 error table collapses to this one signal.
func (c *PredictorClient) Predict(ctx context.Context, snapshot StatsSnapshot) (map[string]int, bool) {
	if !c.cfg.Enabled || c.cfg.URL == "" {
		return nil, false
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Debugw("predictor snapshot marshal failed, falling back to greedy", "error", err)
		return nil, false
	}

	correlationID := fingerprint(body)
	if cached, ok := c.cache.Get(correlationID); ok {
		c.logger.Debugw("predictor cache hit", "correlationId", correlationID)
		return cached.Targets, cached.UseRL == 1
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		c.logger.Debugw("predictor request build failed, falling back to greedy",
			"correlationId", correlationID, "error", errors.Wrap(err, "build predictor request"))
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debugw("predictor call failed, falling back to greedy",
			"correlationId", correlationID, "error", errors.Wrap(err, "predictor POST"))
		return nil, false
	}
	defer resp.Body.Close()

	var parsed predictorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Infow("predictor response parse failed, falling back to greedy",
			"correlationId", correlationID, "error", errors.Wrap(err, "decode predictor response"))
		return nil, false
	}

	c.cache.Add(correlationID, parsed)
	return parsed.Targets, parsed.UseRL == 1
}

// fingerprint collapses a request body to a short base62 string, reused
// both as the LRU cache key and as a log correlation id.
func fingerprint(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h.Sum64())
	return base62.EncodeToString(buf)
}
