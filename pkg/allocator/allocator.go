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
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/frostbyte73/core"
	"github.com/gammazero/workerpool"
	"go.uber.org/atomic"

	"github.com/SangwooRyu/jitsi-videobridge/pkg/logger"
)

// unboundedBudget stands in for +∞ (spec.md §4.4 "Budget"): the maximum
// signed value that cannot overflow when any plausible layer bitrate is
// subtracted from it.
const unboundedBudget = int64(math.MaxInt64 / 2)

// cycleSnapshot is the immutable result of one update cycle, published
// via an atomic pointer so read-only getters never block on the cycle
// mutex (spec.md §5 "Read-only getters ... may read snapshots without
// acquiring the mutex").
type cycleSnapshot struct {
	allocation           BandwidthAllocation
	effectiveConstraints map[string]VideoConstraints
	settings             AllocationSettings
	sortedSources        []MediaSource
}

// AllocatorOptions configures a new Allocator. Endpoints and ReceiverStats
// are the external collaborators spec.md §1 calls out as "referenced only
// by interface".
type AllocatorOptions struct {
	Logger             logger.Logger
	Config             Config
	TrustBwe           func() bool
	Endpoints          EndpointSupplier
	ReceiverEndpointID string
	ReceiverStats      func() ConnectionStats
	InitialSettings    AllocationSettings
	EventHandlers      []EventHandler
}

// Allocator is C6: the per-receiver state machine, greedy allocation
// loop, and event emitter (spec.md §4.4).
type Allocator struct {
	logger logger.Logger
	config Config

	trustBwe           func() bool
	endpoints          EndpointSupplier
	receiverEndpointID string
	receiverStats      func() ConnectionStats

	predictor *PredictorClient

	expired core.Fuse

	bweBps         atomic.Int64
	lastUpdateTime atomic.Int64 // unix nanos

	pool    *workerpool.WorkerPool
	timerMu sync.Mutex
	timer   *time.Timer

	// bweNotifyMu/pendingBwe/debouncedBwe back NotifyBandwidth, the
	// coalesced ingress point for bursty bandwidth samples (mirrors the
	// teacher's dynacastmanager debounce pattern). BandwidthChanged
	// itself stays synchronous for direct callers and tests.
	bweNotifyMu  sync.Mutex
	pendingBwe   int64
	debouncedBwe func(func())

	// mu serializes every entry into update() (spec.md §5 "the sole
	// critical section"). Everything below is only touched with mu held.
	mu                   sync.Mutex
	settings             AllocationSettings
	effectiveConstraints map[string]VideoConstraints
	allocation           BandwidthAllocation

	snapshot atomic.Pointer[cycleSnapshot]

	events eventSubscribers
}

// NewAllocator constructs an allocator in the Active state and arms its
// periodic re-allocation timer.
func NewAllocator(opts AllocatorOptions) *Allocator {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	a := &Allocator{
		logger:             log,
		config:             opts.Config,
		trustBwe:           opts.TrustBwe,
		endpoints:          opts.Endpoints,
		receiverEndpointID: opts.ReceiverEndpointID,
		receiverStats:      opts.ReceiverStats,
		settings:           opts.InitialSettings,
		pool:               workerpool.New(1),
		debouncedBwe:       debounce.New(50 * time.Millisecond),
		expired:            core.NewFuse(),
	}
	a.bweBps.Store(-1)
	a.effectiveConstraints = map[string]VideoConstraints{}
	a.allocation = EmptyBandwidthAllocation()

	for _, h := range opts.EventHandlers {
		a.events.add(h)
	}

	if opts.Config.Predictor.Enabled {
		a.predictor = NewPredictorClient(opts.Config.Predictor, log)
	}

	a.scheduleNextTick(0)
	return a
}

// Subscribe registers an additional event handler. It takes the cycle
// mutex, so it must not be called from inside an event handler, which
// runs with that mutex already held.
func (a *Allocator) Subscribe(h EventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events.add(h)
}

// BandwidthChanged implements spec.md §4.4's `bandwidth_changed`: a new
// estimate only triggers a cycle if it differs enough from the stored
// one (the "Change threshold" rule), or either value is the -1 sentinel.
func (a *Allocator) BandwidthChanged(newBps int64) {
	if newBps < -1 {
		// spec.md §7: negative values other than -1 are treated as unknown.
		newBps = -1
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.expired.IsBroken() {
		return
	}

	prev := a.bweBps.Load()
	if !isSignificantChange(prev, newBps, a.config.BweChangeThresholdFraction) {
		return
	}

	a.bweBps.Store(newBps)
	a.runCycleLocked()
}

// NotifyBandwidth is the debounced ingress point for bandwidth samples
// arriving faster than the allocator needs to react to them: bursts
// landing within the debounce window collapse into a single call to the
// synchronous BandwidthChanged, which still applies the §4.4 change
// threshold on whatever value was latest when the window closed.
func (a *Allocator) NotifyBandwidth(newBps int64) {
	a.bweNotifyMu.Lock()
	a.pendingBwe = newBps
	a.bweNotifyMu.Unlock()

	a.debouncedBwe(func() {
		a.bweNotifyMu.Lock()
		bps := a.pendingBwe
		a.bweNotifyMu.Unlock()
		a.BandwidthChanged(bps)
	})
}

func isSignificantChange(prev, next int64, thresholdFraction float64) bool {
	if prev == -1 || next == -1 {
		return true
	}
	diff := next - prev
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) > float64(prev)*thresholdFraction
}

// UpdateSettings implements `update(settings)`: replaces the allocation
// settings and runs a cycle.
func (a *Allocator) UpdateSettings(settings AllocationSettings) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.expired.IsBroken() {
		return
	}
	a.settings = settings
	a.runCycleLocked()
}

// Update implements the no-argument `update()`: runs one cycle, a no-op
// if expired.
func (a *Allocator) Update() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runCycleLocked()
}

// Expire implements `expire()`: idempotent, cancels the scheduled timer.
// A racing timer tick observes expired and becomes a no-op (spec.md §5
// "Cancellation").
func (a *Allocator) Expire() {
	a.expired.Break()

	a.timerMu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timerMu.Unlock()

	a.logger.Infow("allocator expired")
}

func (a *Allocator) IsExpired() bool {
	return a.expired.IsBroken()
}

// GetAllocation is a lock-free snapshot read (spec.md §4.4 `get_allocation`).
func (a *Allocator) GetAllocation() BandwidthAllocation {
	if snap := a.snapshot.Load(); snap != nil {
		return snap.allocation
	}
	return EmptyBandwidthAllocation()
}

// IsForwarding implements `is_forwarding(endpoint_id)`.
func (a *Allocator) IsForwarding(endpointID string) bool {
	return a.GetAllocation().IsForwarding(endpointID)
}

// HasNonZeroEffectiveConstraints implements `has_non_zero_effective_constraints`.
func (a *Allocator) HasNonZeroEffectiveConstraints(sourceName string) bool {
	snap := a.snapshot.Load()
	if snap == nil {
		return false
	}
	c, ok := snap.effectiveConstraints[sourceName]
	return ok && !c.Disabled()
}

// TargetLayerBps and AllLayerBitrates reproduce the original's
// getTargetLayerBps()/getAllLayerBps() accessors (SPEC_FULL.md §5.1):
// read-only snapshot getters for an external dashboard, following the
// same one-cycle-stale contract as GetAllocation.
func (a *Allocator) TargetLayerBps(sourceName string) (int64, bool) {
	for _, sa := range a.GetAllocation().Allocations {
		if sa.SourceName == sourceName && sa.TargetLayer != nil {
			return sa.TargetLayer.BitrateBps, true
		}
	}
	return 0, false
}

func (a *Allocator) AllLayerBitrates(sourceName string) []int64 {
	snap := a.snapshot.Load()
	if snap == nil {
		return nil
	}
	for _, s := range snap.sortedSources {
		if s.SourceName() != sourceName {
			continue
		}
		layers := s.Layers()
		out := make([]int64, len(layers))
		for i, l := range layers {
			out[i] = l.BitrateBps
		}
		return out
	}
	return nil
}

// GetDebugState implements `get_debug_state()` (spec.md §6), extended
// with a "layers" key per SPEC_FULL.md §5.2 — additive, so the
// documented key set is still present unchanged.
func (a *Allocator) GetDebugState() map[string]interface{} {
	trustBwe := true
	if a.trustBwe != nil {
		trustBwe = a.trustBwe()
	}

	state := map[string]interface{}{
		"trustBwe": trustBwe,
		"bweBps":   a.bweBps.Load(),
	}

	snap := a.snapshot.Load()
	if snap == nil {
		state["allocation"] = EmptyBandwidthAllocation().DebugState()
		state["allocationSettings"] = map[string]interface{}{}
		state["effectiveConstraints"] = map[string]interface{}{}
		state["layers"] = map[string]interface{}{}
		return state
	}

	state["allocation"] = snap.allocation.DebugState()
	state["allocationSettings"] = map[string]interface{}{
		"onStageSources":  snap.settings.OnStageSources.Slice(),
		"selectedSources": snap.settings.SelectedSources.Slice(),
		"lastN":           snap.settings.LastN,
	}
	state["effectiveConstraints"] = snap.effectiveConstraints

	layers := make(map[string]interface{}, len(snap.sortedSources))
	for _, s := range snap.sortedSources {
		entries := make([]map[string]interface{}, 0, len(s.Layers()))
		for _, l := range s.Layers() {
			entries = append(entries, map[string]interface{}{
				"index":      l.Index,
				"height":     l.Height,
				"frameRate":  l.FrameRate,
				"bitrateBps": l.BitrateBps,
			})
		}
		layers[s.SourceName()] = entries
	}
	state["layers"] = layers

	return state
}

// runCycleLocked is the update cycle, spec.md §4.4 steps 1-11. Callers
// must hold a.mu.
func (a *Allocator) runCycleLocked() {
	if a.expired.IsBroken() {
		return
	}

	start := time.Now()
	a.lastUpdateTime.Store(start.UnixNano())

	sources := flattenSources(a.endpoints())
	selected := a.settings.selectedSourcePriority()
	sorted := prioritize(sources, selected)

	prevEffective := a.effectiveConstraints
	newEffective := effectiveConstraints(sorted, a.settings, a.config.OnStageMaxHeightPx)

	a.events.sourceListChanged(sorted)

	onStage := a.settings.OnStageSources
	ssas := make([]*singleSourceAllocation, 0, len(sorted))
	for _, s := range sorted {
		ssas = append(ssas, newSingleSourceAllocation(
			s, newEffective[s.SourceName()], onStage.Contains(s.SourceName()),
			a.config.OnStagePreferredHeightPx, a.config.OnStagePreferredFramerate))
	}

	budget := a.budget()
	oversending := a.runRLOrGreedy(ssas, budget, start)

	allocations := make([]SingleAllocation, 0, len(ssas))
	var suspended []string
	var targetBps, idealBps int64
	for _, ssa := range ssas {
		allocations = append(allocations, ssa.result())
		targetBps += ssa.targetBitrate()
		idealBps += ssa.idealBitrate()
		if ssa.isSuspended() {
			suspended = append(suspended, ssa.source.SourceName())
		}
	}

	if len(suspended) > 0 {
		a.logger.Infow("sources suspended for insufficient bandwidth", "sources", suspended)
	}

	newAllocation := BandwidthAllocation{
		Allocations:          allocations,
		Oversending:          oversending,
		TargetBps:            targetBps,
		IdealBps:             idealBps,
		SuspendedSourceNames: suspended,
	}

	if !newAllocation.IsSameAs(a.allocation) {
		a.events.allocationChanged(newAllocation)
	}
	if !constraintsEqual(newEffective, prevEffective) {
		a.events.effectiveVideoConstraintsChanged(prevEffective, newEffective)
	}

	a.effectiveConstraints = newEffective
	a.allocation = newAllocation

	a.snapshot.Store(&cycleSnapshot{
		allocation:           newAllocation,
		effectiveConstraints: newEffective,
		settings:             a.settings,
		sortedSources:        sorted,
	})

	cyclesTotal.Inc()
	if oversending {
		oversendingTotal.Inc()
	}
	suspendedSources.Set(float64(len(suspended)))
	cycleDuration.Observe(time.Since(start).Seconds())

	a.scheduleNextTick(time.Since(start))
}

// runRLOrGreedy is step 8 (optional RL branch with transparent fallback)
// followed, when RL was not used, by step 9 (greedy fallback). It
// returns whether the resulting allocation oversends.
func (a *Allocator) runRLOrGreedy(ssas []*singleSourceAllocation, budget int64, now time.Time) bool {
	if a.predictor != nil {
		var stats ConnectionStats
		if a.receiverStats != nil {
			stats = a.receiverStats()
		}
		snapshot := buildStatsSnapshot(a.receiverEndpointID, stats, budget, now, ssas)

		targets, useRL := a.predictor.Predict(context.Background(), snapshot)
		if useRL {
			return applyRL(ssas, budget, targets)
		}
	}
	return greedyFallback(ssas, budget)
}

// applyRL implements spec.md §4.4 step 8's "apply once through rl_apply":
// a single pass in priority order, no iteration.
func applyRL(ssas []*singleSourceAllocation, budget int64, targets map[string]int) bool {
	remaining := budget
	for i, ssa := range ssas {
		if ssa.constraints.Disabled() {
			continue
		}
		hint, ok := targets[ssa.endpointID]
		if !ok {
			hint = RLDefaultTargetIndex
		}
		remaining -= ssa.rlApply(hint, remaining, i == 0)
	}
	return remaining < 0
}

// greedyFallback implements spec.md §4.4 step 9. `remaining` is a single
// running total seeded once from budget, not reset per pass: passes
// repeat, each further decrementing the same `remaining`, until a full
// pass leaves it unchanged (fixpoint).
func greedyFallback(ssas []*singleSourceAllocation, budget int64) bool {
	remaining := budget
	for {
		before := remaining
		for i, ssa := range ssas {
			if ssa.constraints.Disabled() {
				continue
			}
			remaining -= ssa.improve(remaining, i == 0)
			if i == 0 && ssa.onStage && !ssa.hasReachedPreferred() {
				// Prevents enabling thumbnails before the on-stage
				// source has reached an acceptable quality.
				break
			}
		}
		if remaining == before {
			break
		}
	}
	return remaining < 0
}

func constraintsEqual(a, b map[string]VideoConstraints) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// budget implements spec.md §4.4's "Budget = trust_bwe() ? bwe_bps : +∞".
func (a *Allocator) budget() int64 {
	trust := true
	if a.trustBwe != nil {
		trust = a.trustBwe()
	}
	if !trust {
		return unboundedBudget
	}
	bwe := a.bweBps.Load()
	if bwe < 0 {
		return unboundedBudget
	}
	return bwe
}

// scheduleNextTick implements spec.md §5 "Periodic re-allocation":
// always re-arms a timer at max_period-elapsed+5ms, and posts the next
// update to the CPU worker pool once that period has actually elapsed.
func (a *Allocator) scheduleNextTick(elapsed time.Duration) {
	if a.expired.IsBroken() {
		return
	}

	delay := a.config.MaxTimeBetweenCalculations - elapsed + 5*time.Millisecond
	if delay <= 0 {
		delay = 5 * time.Millisecond
	}

	a.timerMu.Lock()
	a.timer = time.AfterFunc(delay, a.onTick)
	a.timerMu.Unlock()
}

func (a *Allocator) onTick() {
	if a.expired.IsBroken() {
		return
	}

	lastUpdate := time.Unix(0, a.lastUpdateTime.Load())
	elapsed := time.Since(lastUpdate)
	if elapsed <= a.config.MaxTimeBetweenCalculations {
		a.scheduleNextTick(elapsed)
		return
	}

	a.pool.Submit(func() {
		a.Update()
	})
}
