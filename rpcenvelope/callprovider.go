// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

package rpcenvelope

import (
	"context"

	"github.com/luxfi/triplet/fabric"
)

// ProxyCaller is the one method CallProvider needs from a Proxy: forward
// method/content to recipient and return its opaque reply. Proxy itself
// implements this.
type ProxyCaller interface {
	ProxyCall(ctx context.Context, caller fabric.Identity, recipient fabric.Identity, method string, content []byte) ([]byte, error)
}

// CallProvider holds the caller's identity and the Proxy to route through,
// and exposes Call, the data-plane entry point every caller goes through.
type CallProvider struct {
	proxy  ProxyCaller
	caller fabric.Identity
}

// NewCallProvider returns a CallProvider that forwards through proxy on
// behalf of caller.
func NewCallProvider(proxy ProxyCaller, caller fabric.Identity) *CallProvider {
	return &CallProvider{proxy: proxy, caller: caller}
}

// Call dispatches m through the Proxy, flattening transport-level
// rejection and callee trap into a single *Error: an outer failure (the
// Proxy or fabric itself rejected the call) becomes InvalidDestination; a
// successful round trip with an opaque reply becomes a MessageResult for
// the caller to Reply[T] against.
func (p *CallProvider) Call(ctx context.Context, m *Message) (*MessageResult, *Error) {
	reply, err := p.proxy.ProxyCall(ctx, p.caller, m.Recipient, m.MethodName, m.Content)
	if err != nil {
		return nil, newError(InvalidDestination, err)
	}
	return &MessageResult{Content: reply}, nil
}
