// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

// tripletd is a standalone demo that provisions one triplet end to end
// against the in-memory fabric and registry fakes, then drives a few
// representative operations against it.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/luxfi/triplet/clock"
	"github.com/luxfi/triplet/fabric"
	"github.com/luxfi/triplet/initializer"
	"github.com/luxfi/triplet/proxy"
	"github.com/luxfi/triplet/registry"
	"github.com/luxfi/triplet/rpcenvelope"
	"github.com/luxfi/triplet/units"
	"github.com/luxfi/triplet/vault"
)

const clientIdentifier = "tripletd"

var logger *zap.Logger

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "provision and drive a demo triplet (Vault + Proxy + DB) over an in-memory fabric",
	Version: "1.0.0",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "refuel-interval", Value: time.Minute, Usage: "Vault refuel tick interval"},
		&cli.DurationFlag{Name: "monitor-interval", Value: time.Minute, Usage: "Vault monitoring tick interval"},
	},
}

func init() {
	app.Action = runDemo
	app.Before = func(*cli.Context) error {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(cctx *cli.Context) error {
	ctx := context.Background()
	clk := clock.RealClock{}
	fab := fabric.NewMemFabric()
	reg := registry.NewMemRegistry()

	self := fabric.NewIdentity() // the Initializer's own identity
	deployer := fabric.NewIdentity()
	indexer, err := fab.CreateCanister(ctx, "")
	if err != nil {
		return fmt.Errorf("create indexer canister: %w", err)
	}
	fab.RegisterHandler(indexer, func(context.Context, fabric.Identity, string, []byte) ([]byte, error) {
		return []byte(`"indexed"`), nil
	})

	init_ := initializer.New(self, fabric.ControllerSet{self, deployer}, fab, reg, clk, logger,
		[]byte("vault-wasm"), []byte("db-wasm"), []byte("proxy-wasm"))

	budget := initializer.CyclesBudget{
		VaultInitial:   units.NewBalance(1_000_000),
		IndexerInitial: units.NewBalance(100),
		DBInitial:      units.NewBalance(100),
		ProxyInitial:   units.NewBalance(100),
	}

	triplet, err := init_.Initialize(ctx, deployer, budget.Total(), budget, indexer, "",
		units.NewBalance(500_000), cctx.Duration("refuel-interval"), nil, nil)
	if err != nil {
		return fmt.Errorf("provision triplet: %w", err)
	}
	logger.Info("provisioned triplet",
		zap.String("indexer", triplet.Indexer.String()),
		zap.String("vault", triplet.Vault.String()),
		zap.String("db", triplet.DB.String()),
		zap.String("proxy", triplet.Proxy.String()))

	// "Install" the Vault and Proxy code by binding real Go objects to the
	// identities the Initializer already created and wired.
	v := vault.New(triplet.Vault, fabric.ControllerSet{deployer, triplet.Vault, self}, fab,
		cctx.Duration("refuel-interval"), clk, logger)
	fab.RegisterHandler(triplet.Vault, v.Dispatch)

	auth, err := proxy.NewAuthCache(256, []fabric.Identity{self, deployer}, reg)
	if err != nil {
		return err
	}
	px := proxy.New(triplet.Proxy, fabric.ControllerSet{deployer, triplet.Vault, self}, fab, reg, clk, logger, auth)
	fab.RegisterHandler(triplet.Proxy, px.Dispatch)
	px.SetUpgrader(init_)
	if err := px.Init(self, fabric.NilIdentity, triplet.Indexer, triplet.DB, triplet.Vault); err != nil {
		return fmt.Errorf("proxy init: %w", err)
	}

	stopVaultLoops := v.StartLoops(ctx, cctx.Duration("monitor-interval"))
	defer stopVaultLoops()

	// Deposit cycles through the Vault, directly and then through the RPC
	// envelope routed via the Proxy, demonstrating both call paths. The
	// routed path is driven by deployer, an already-authorized caller, on
	// depositor's behalf (Supply's caller/depositor split, vault/vault.go).
	depositor := fabric.NewIdentity()
	if err := v.Supply(depositor, fabric.NilIdentity, units.NewBalance(10_000)); err != nil {
		return fmt.Errorf("supply: %w", err)
	}
	logger.Info("direct supply complete", zap.Uint64("balance", v.BalanceOf(depositor).Uint64()))

	provider := rpcenvelope.NewCallProvider(px, deployer)
	msg, err := rpcenvelope.New(vault.SupplyArgs{Depositor: depositor, AttachedCycles: units.NewBalance(5_000)}, triplet.Vault, "supply")
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	result, rpcErr := provider.Call(ctx, msg)
	if rpcErr != nil {
		return fmt.Errorf("rpc call: %w", rpcErr)
	}
	newBalance, err := rpcenvelope.Reply[units.Balance](result)
	if err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	logger.Info("routed supply complete", zap.String("balance", newBalance.String()))

	fmt.Printf("total supply: %s\n", v.TotalSupply().String())
	fmt.Printf("index: %s\n", v.IndexValue().String())
	return nil
}
