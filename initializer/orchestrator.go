// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package initializer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/triplet/clock"
	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/registry"
	"github.com/luxfi/triplet/units"
	"github.com/luxfi/triplet/vault"
)

// ProxyWiring is install-time args for Proxy code (spec.md §6: "Proxy:
// (registry, target, db, vault)"), JSON-serialized as InstallCode's
// initArgs.
type ProxyWiring struct {
	Registry fabric.Identity `json:"registry"`
	Target   fabric.Identity `json:"target"`
	DB       fabric.Identity `json:"db"`
	Vault    fabric.Identity `json:"vault"`
}

// VaultWiring is install-time args for Vault code (spec.md §6: "Vault:
// (target, deployer, initial_supply, refuel_interval, RefuelTarget[],
// (identity, u128)[])").
type VaultWiring struct {
	Target          fabric.Identity           `json:"target"`
	Deployer        fabric.Identity           `json:"deployer"`
	InitialSupply   units.Balance             `json:"initialSupply"`
	RefuelInterval  time.Duration             `json:"refuelInterval"`
	RefuelTargets   []vault.RefuelTarget      `json:"refuelTargets"`
	InitialBalances map[string]units.Balance  `json:"initialBalances"`
}

// Initializer is the triplet orchestrator and upgrade coordinator of
// spec.md §4.3.
type Initializer struct {
	self        fabric.Identity
	controllers fabric.ControllerSet
	fab         fabric.Fabric
	reg         registry.Client
	clk         clock.Clock
	log         *zap.Logger

	vaultWasm []byte
	dbWasm    []byte
	proxyWasm []byte

	mu       sync.Mutex
	triplets map[fabric.Identity]*Triplet // keyed by Indexer
	byProxy  map[fabric.Identity]fabric.Identity // proxy identity -> indexer identity

	metric       *MetricsSnapshot
	cancelMetric func()
}

// New constructs an Initializer wired to its own identity, controller
// set, the fabric collaborator, the Registry it registers triplets with,
// and the three WASM modules it installs on newly created DB/Vault/Proxy
// programs.
func New(self fabric.Identity, controllers fabric.ControllerSet, fab fabric.Fabric, reg registry.Client, clk clock.Clock, log *zap.Logger, vaultWasm, dbWasm, proxyWasm []byte) *Initializer {
	return &Initializer{
		self:        self,
		controllers: controllers,
		fab:         fab,
		reg:         reg,
		clk:         clk,
		log:         log,
		vaultWasm:   vaultWasm,
		dbWasm:      dbWasm,
		proxyWasm:   proxyWasm,
		triplets:    make(map[fabric.Identity]*Triplet),
		byProxy:     make(map[fabric.Identity]fabric.Identity),
	}
}

func (in *Initializer) requireController(caller fabric.Identity) error {
	if !in.controllers.Contains(caller) {
		return &Unauthorized{Caller: caller}
	}
	return nil
}

// Initialize provisions a new triplet for indexer: vault, then db, then
// proxy, in the strict order spec.md §4.3 mandates, wiring each
// component's install args and registering the result. On any step
// failure it aborts with *PartialOrchestration naming every identity
// successfully created so the caller can reclaim cycles from them.
func (in *Initializer) Initialize(
	ctx context.Context,
	deployer fabric.Identity,
	cyclesAccepted units.Balance,
	budget CyclesBudget,
	indexer fabric.Identity,
	subnet string,
	initialSupply units.Balance,
	refuelInterval time.Duration,
	refuelTargets []vault.RefuelTarget,
	initialBalances map[fabric.Identity]units.Balance,
) (Triplet, error) {
	required := budget.Total()
	if cyclesAccepted.Cmp(required) < 0 {
		return Triplet{}, &InsufficientCyclesAccepted{Required: required, Accepted: cyclesAccepted}
	}

	var deployed []fabric.Identity
	fail := func(err error) (Triplet, error) {
		return Triplet{}, &PartialOrchestration{Deployed: deployed, Cause: err}
	}

	// Phase 1: vault.
	vaultID, err := in.fab.CreateCanister(ctx, subnet)
	if err != nil {
		return fail(err)
	}
	deployed = append(deployed, vaultID)
	vaultControllers := fabric.ControllerSet{deployer, vaultID, in.self}
	if err := in.fab.SetControllers(ctx, vaultID, vaultControllers); err != nil {
		return fail(err)
	}
	if err := in.fab.SetControllers(ctx, indexer, vaultControllers); err != nil {
		return fail(err)
	}

	// Phase 2: db.
	dbID, err := in.fab.CreateCanister(ctx, subnet)
	if err != nil {
		return fail(err)
	}
	deployed = append(deployed, dbID)
	if err := in.fab.SetControllers(ctx, dbID, vaultControllers); err != nil {
		return fail(err)
	}
	if err := in.fab.InstallCode(ctx, dbID, in.dbWasm, nil, false); err != nil {
		return fail(err)
	}
	if _, err := in.fab.Call(ctx, in.self, dbID, "init", nil); err != nil {
		return fail(err)
	}

	// Phase 3: proxy.
	proxyID, err := in.fab.CreateCanister(ctx, subnet)
	if err != nil {
		return fail(err)
	}
	deployed = append(deployed, proxyID)
	if err := in.fab.SetControllers(ctx, proxyID, vaultControllers); err != nil {
		return fail(err)
	}
	proxyArgs, err := json.Marshal(ProxyWiring{Registry: in.registryIdentity(), Target: indexer, DB: dbID, Vault: vaultID})
	if err != nil {
		return fail(err)
	}
	if err := in.fab.InstallCode(ctx, proxyID, in.proxyWasm, proxyArgs, false); err != nil {
		return fail(err)
	}

	// Phase 4: install vault code with wiring.
	balances := make(map[string]units.Balance, len(initialBalances))
	for id, bal := range initialBalances {
		balances[id.String()] = bal
	}
	vaultArgs, err := json.Marshal(VaultWiring{
		Target:          indexer,
		Deployer:        deployer,
		InitialSupply:   initialSupply,
		RefuelInterval:  refuelInterval,
		RefuelTargets:   refuelTargets,
		InitialBalances: balances,
	})
	if err != nil {
		return fail(err)
	}
	if err := in.fab.InstallCode(ctx, vaultID, in.vaultWasm, vaultArgs, false); err != nil {
		return fail(err)
	}

	// Phase 5: register.
	if err := in.reg.RegisterCanister(ctx, indexer, vaultID); err != nil {
		return fail(err)
	}

	t := Triplet{Indexer: indexer, Vault: vaultID, DB: dbID, Proxy: proxyID, CreatedAt: in.clk.Now()}
	in.mu.Lock()
	in.triplets[indexer] = &t
	in.byProxy[proxyID] = indexer
	in.mu.Unlock()

	return t, nil
}

// registryIdentity is a placeholder until a real Registry-as-a-program
// identity is wired in; the in-memory registry.Client collaborator this
// repository exercises has no identity of its own (spec.md §1 puts the
// Registry's storage out of scope). Proxy install args still carry the
// field spec.md §6 names, populated as the nil identity, for layout
// fidelity with a deployment where the Registry is itself a fabric
// program.
func (in *Initializer) registryIdentity() fabric.Identity { return fabric.NilIdentity }

// GetTriplet is the supplemented audit read over a provisioned triplet.
func (in *Initializer) GetTriplet(indexer fabric.Identity) (Triplet, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	t, ok := in.triplets[indexer]
	if !ok {
		return Triplet{}, &NotFound{Indexer: indexer}
	}
	return *t, nil
}

// ListTriplets is the supplemented audit read over every triplet this
// Initializer has provisioned.
func (in *Initializer) ListTriplets() []Triplet {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]Triplet, 0, len(in.triplets))
	for _, t := range in.triplets {
		out = append(out, *t)
	}
	return out
}
