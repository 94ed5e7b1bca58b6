// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package proxy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/triplet/clock"
	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/registry"
)

// Upgrader is the one method Proxy needs from its Initializer to satisfy
// request_upgrades_to_registry(): delegate to upgrade_proxies() on the
// caller's behalf. initializer.Initializer implements this; Proxy depends
// only on the interface to avoid a proxy<->initializer import cycle.
type Upgrader interface {
	UpgradeProxies(ctx context.Context, caller fabric.Identity) error
}

// Proxy is the router + indexer of spec.md §4.2. One Proxy instance
// serves one triplet.
type Proxy struct {
	self        fabric.Identity
	controllers fabric.ControllerSet
	fab         fabric.Fabric
	reg         registry.Client
	clk         clock.Clock
	log         *zap.Logger
	auth        *AuthCache
	upgrader    Upgrader

	mu            sync.Mutex
	initialized   bool
	initializerID fabric.Identity
	registryID    fabric.Identity
	target        fabric.Identity
	db            fabric.Identity
	vault         fabric.Identity

	config          *IndexingConfig
	lastSucceeded   time.Time
	lastResult      ExecutionResult
	hasLastResult   bool
	nextSchedule    int64
	cancelIndexLoop func()
}

// New constructs a Proxy wired to its own identity, controller set, the
// fabric collaborator, the Registry client it logs calls through, a
// mockable clock, and an AuthCache deciding canister_exists(caller).
// upgrader may be nil until the owning Initializer wires itself in (see
// SetUpgrader); request_upgrades_to_registry fails cleanly until then.
func New(self fabric.Identity, controllers fabric.ControllerSet, fab fabric.Fabric, reg registry.Client, clk clock.Clock, log *zap.Logger, auth *AuthCache) *Proxy {
	return &Proxy{
		self:        self,
		controllers: controllers,
		fab:         fab,
		reg:         reg,
		clk:         clk,
		log:         log,
		auth:        auth,
	}
}

// SetUpgrader wires the Initializer collaborator request_upgrades_to_registry
// delegates to. Done as a late setter, not a New() parameter, so a Proxy
// can be constructed and used without an Initializer wired in.
func (p *Proxy) SetUpgrader(u Upgrader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.upgrader = u
}

func (p *Proxy) requireController(caller fabric.Identity) error {
	if !p.controllers.Contains(caller) {
		return &Unauthorized{Caller: caller}
	}
	return nil
}

// Init records the triplet wiring and the caller as this Proxy's
// Initializer. One-shot: a second call is rejected.
func (p *Proxy) Init(caller, registryID, target, db, vault fabric.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return &AlreadyStarted{}
	}
	p.initialized = true
	p.initializerID = caller
	p.registryID = registryID
	p.target = target
	p.db = db
	p.vault = vault
	return nil
}

// ProxyCall forwards method/content to recipient via the fabric and
// returns the callee's opaque reply. The Registry putLog append is
// fire-and-forget: a logging failure is logged and swallowed, never a
// reason to fail the forward (spec.md §4.2, §7 "best-effort" paths).
func (p *Proxy) ProxyCall(ctx context.Context, caller, recipient fabric.Identity, method string, content []byte) ([]byte, error) {
	if !p.auth.CanisterExists(ctx, caller) {
		return nil, &Unauthorized{Caller: caller}
	}

	reply, err := p.fab.Call(ctx, caller, recipient, method, content)

	at := p.clk.Now().Unix()
	go func() {
		if logErr := p.reg.PutLog(context.Background(), caller, recipient, at); logErr != nil {
			p.log.Warn("proxy: putLog failed", zap.Error(logErr),
				zap.String("caller", caller.String()), zap.String("recipient", recipient.String()))
		}
	}()

	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ListLogs is the read-through to the Registry's listLogsOf.
func (p *Proxy) ListLogs(ctx context.Context, target fabric.Identity, from, to int64) ([]registry.CallLog, error) {
	return p.reg.ListLogsOf(ctx, target, from, to)
}

// StartIndexing is StartIndexingWithIsRounded with is_rounded=true, the
// operation name spec.md lists directly.
func (p *Proxy) StartIndexing(ctx context.Context, caller fabric.Identity, interval, delay time.Duration, method string, args []byte) error {
	return p.StartIndexingWithIsRounded(ctx, caller, interval, delay, true, method, args)
}

// StartIndexingWithIsRounded arms the indexing scheduler. Callable only by
// target; refuses if indexing was already started (NextSchedule != 0).
func (p *Proxy) StartIndexingWithIsRounded(ctx context.Context, caller fabric.Identity, interval, delay time.Duration, isRounded bool, method string, args []byte) error {
	if interval < time.Second {
		return &InvalidInterval{Interval: interval}
	}

	p.mu.Lock()
	if caller != p.target {
		p.mu.Unlock()
		return &Unauthorized{Caller: caller}
	}
	if p.nextSchedule != 0 {
		p.mu.Unlock()
		return &AlreadyStarted{}
	}
	now := p.clk.Now().Unix()
	effectiveDelay := computeEffectiveDelay(now, int64(interval/time.Second), int64(delay/time.Second), isRounded)
	p.config = &IndexingConfig{Interval: interval, Delay: delay, IsRounded: isRounded, Method: method, Args: args}
	p.nextSchedule = now + effectiveDelay
	p.mu.Unlock()

	p.arm(ctx, effectiveDelay)
	return nil
}

// arm starts the indexing goroutine: after effectiveDelay seconds (or
// immediately, if effectiveDelay <= 0), run one tick, then tick every
// p.config.Interval until the returned cancel function is called.
func (p *Proxy) arm(parent context.Context, effectiveDelaySecs int64) {
	loopCtx, cancel := context.WithCancel(parent)
	p.mu.Lock()
	if p.cancelIndexLoop != nil {
		p.cancelIndexLoop()
	}
	p.cancelIndexLoop = cancel
	interval := p.config.Interval
	p.mu.Unlock()

	go func() {
		if effectiveDelaySecs > 0 {
			timer := time.NewTimer(time.Duration(effectiveDelaySecs) * time.Second)
			select {
			case <-loopCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		p.runIndexingTick(loopCtx)

		ticker := clock.NewRealTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C():
				p.runIndexingTick(loopCtx)
			}
		}
	}()
}

// runIndexingTick invokes the configured method on target. NextSchedule is
// advanced *before* the call so observers see the next grid point even if
// the call suspends (spec.md §5's "ordering guarantees").
func (p *Proxy) runIndexingTick(ctx context.Context) {
	p.mu.Lock()
	config := p.config
	p.nextSchedule = p.clk.Now().Add(config.Interval).Unix()
	target := p.target
	p.mu.Unlock()

	_, err := p.fab.Call(ctx, p.self, target, config.Method, config.Args)

	p.mu.Lock()
	if err != nil {
		p.lastResult = ExecutionResult{Success: false, Message: err.Error()}
	} else {
		p.lastResult = ExecutionResult{Success: true}
		p.lastSucceeded = p.clk.Now()
	}
	p.hasLastResult = true
	p.mu.Unlock()
}

// RestartIndexing is controller-only, and permitted only once the
// scheduler has demonstrably stalled: now > NextSchedule + 2*interval
// (spec.md's "soft-lock on stall" design note).
func (p *Proxy) RestartIndexing(ctx context.Context, caller fabric.Identity) error {
	if err := p.requireController(caller); err != nil {
		return err
	}

	p.mu.Lock()
	if p.config == nil {
		p.mu.Unlock()
		return &NotStarted{}
	}
	now := p.clk.Now().Unix()
	stallWindow := int64(p.config.Interval/time.Second) * 2
	if now <= p.nextSchedule+stallWindow {
		p.mu.Unlock()
		return &NotStalled{}
	}
	if p.cancelIndexLoop != nil {
		p.cancelIndexLoop()
		p.cancelIndexLoop = nil
	}
	interval := int64(p.config.Interval / time.Second)
	delay := int64(p.config.Delay / time.Second)
	isRounded := p.config.IsRounded
	p.mu.Unlock()

	effectiveDelay := computeEffectiveDelay(now, interval, delay, isRounded)
	p.mu.Lock()
	p.nextSchedule = now + effectiveDelay
	p.mu.Unlock()
	p.arm(ctx, effectiveDelay)
	return nil
}

// RequestUpgradesToRegistry is controller-only; it delegates to the
// Initializer's upgrade_proxies() on this Proxy's behalf.
func (p *Proxy) RequestUpgradesToRegistry(ctx context.Context, caller fabric.Identity) error {
	if err := p.requireController(caller); err != nil {
		return err
	}
	p.mu.Lock()
	u := p.upgrader
	p.mu.Unlock()
	if u == nil {
		return &NotRegistered{Target: p.self}
	}
	return u.UpgradeProxies(ctx, p.self)
}

// GetComponentInfo returns {target, vault, db}, consumed by the
// Initializer during upgrade coordination.
func (p *Proxy) GetComponentInfo() ComponentInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ComponentInfo{Target: p.target, Vault: p.vault, DB: p.db}
}

// GetIndexingConfig is the supplemented observer over the persisted
// IndexingConfig (SPEC_FULL.md supplement #5).
func (p *Proxy) GetIndexingConfig() (IndexingConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config == nil {
		return IndexingConfig{}, false
	}
	return *p.config, true
}

// GetExecutionResult is the supplemented observer over LastExecutionResult.
func (p *Proxy) GetExecutionResult() (ExecutionResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastResult, p.hasLastResult
}

// GetNextSchedule observes the persisted NextSchedule field (property
// tests P8/P9 read this directly).
func (p *Proxy) GetNextSchedule() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextSchedule
}

// GetLastSucceeded observes LastSucceeded.
func (p *Proxy) GetLastSucceeded() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSucceeded
}

// PostUpgrade re-derives and re-arms the indexing schedule from durable
// state, per spec.md's "post-upgrade, if a config with interval > 0 is
// present, call the scheduling algorithm with delay_secs = 1" rule: timer
// handles never survive an upgrade, so this is the only way indexing
// resumes after one. A zero-interval restored config means indexing was
// never started; PostUpgrade is then a no-op.
func (p *Proxy) PostUpgrade(ctx context.Context, restored IndexingConfig) {
	if restored.Interval <= 0 {
		return
	}
	now := p.clk.Now().Unix()
	effectiveDelay := computeEffectiveDelay(now, int64(restored.Interval/time.Second), 1, restored.IsRounded)

	p.mu.Lock()
	cfg := restored
	p.config = &cfg
	p.nextSchedule = now + effectiveDelay
	p.mu.Unlock()

	p.arm(ctx, effectiveDelay)
}

// Close cancels the indexing loop, if armed. Not a spec operation; it
// exists so tests and cmd/tripletd can shut a Proxy down cleanly.
func (p *Proxy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelIndexLoop != nil {
		p.cancelIndexLoop()
		p.cancelIndexLoop = nil
	}
}
