// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/luxfi/triplet/fabric"
)

func secs(n int64) time.Duration { return time.Duration(n) * time.Second }

type proxyCallArgs struct {
	Recipient fabric.Identity `json:"recipient"`
	Method    string          `json:"method"`
	Content   []byte          `json:"content"`
}

type listLogsArgs struct {
	Target fabric.Identity `json:"target"`
	From   int64           `json:"from"`
	To     int64           `json:"to"`
}

type startIndexingArgs struct {
	IntervalSecs int64  `json:"intervalSecs"`
	DelaySecs    int64  `json:"delaySecs"`
	IsRounded    bool   `json:"isRounded"`
	Method       string `json:"method"`
	Args         []byte `json:"args"`
}

// Dispatch implements fabric.CallHandler, routing opaque inter-program
// calls to Proxy's typed operations, the same wiring role vault.Dispatch
// plays for Vault.
func (p *Proxy) Dispatch(ctx context.Context, caller fabric.Identity, method string, payload []byte) ([]byte, error) {
	switch method {
	case "proxy_call":
		var args proxyCallArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return p.ProxyCall(ctx, caller, args.Recipient, args.Method, args.Content)

	case "list_logs":
		var args listLogsArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		logs, err := p.ListLogs(ctx, args.Target, args.From, args.To)
		if err != nil {
			return nil, err
		}
		return json.Marshal(logs)

	case "start_indexing":
		var args startIndexingArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		interval := secs(args.IntervalSecs)
		delay := secs(args.DelaySecs)
		return nil, p.StartIndexingWithIsRounded(ctx, caller, interval, delay, args.IsRounded, args.Method, args.Args)

	case "restart_indexing":
		return nil, p.RestartIndexing(ctx, caller)

	case "request_upgrades_to_registry":
		return nil, p.RequestUpgradesToRegistry(ctx, caller)

	case "get_component_info":
		return json.Marshal(p.GetComponentInfo())

	default:
		return nil, fmt.Errorf("proxy: unknown method %q", method)
	}
}
