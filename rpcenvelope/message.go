// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

// Package rpcenvelope implements spec.md §4.4: a typed request/reply
// envelope used by the data plane, and a CallProvider that routes it
// through a Proxy. The framing is JSON, not the fabric's native RPC
// encoding, deliberately: the envelope's job is to isolate cross-version
// type drift, the same reasoning the teacher repo's client package
// (plugin/evm/client) applies by speaking JSON-RPC over the fabric's
// transport rather than a binary ABI.
package rpcenvelope

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/triplet/fabric"
)

// ErrorKind enumerates the envelope's flattened error variants (spec.md
// Design Notes: "Result-oriented RPC").
type ErrorKind int

const (
	// InvalidPrincipal means recipient does not name a valid identity.
	InvalidPrincipal ErrorKind = iota
	// InvalidRequest means method or content failed to serialize.
	InvalidRequest
	// InvalidContent means the callee's reply failed to deserialize into
	// the expected type.
	InvalidContent
	// InvalidDestination means the transport rejected the call outright
	// (wraps a fabric.RejectError).
	InvalidDestination
)

// Error is the envelope's single error type: outer transport failure and
// inner callee trap are both flattened into this, distinguished only by
// Kind and the wrapped Cause.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rpcenvelope: %s", e.Cause)
	}
	return "rpcenvelope: error"
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Message is the wire envelope: content, the intended recipient, and the
// method name to invoke on it.
type Message struct {
	Content    []byte          `json:"content"`
	Recipient  fabric.Identity `json:"recipient"`
	MethodName string          `json:"methodName"`
}

// New serializes value with JSON encoding and wraps it for recipient/method.
func New(value interface{}, recipient fabric.Identity, method string) (*Message, error) {
	content, err := json.Marshal(value)
	if err != nil {
		return nil, newError(InvalidRequest, err)
	}
	return &Message{Content: content, Recipient: recipient, MethodName: method}, nil
}

// MessageResult is the callee's opaque reply bytes, not yet deserialized
// into a concrete type.
type MessageResult struct {
	Content []byte
}

// Reply deserializes the callee's returned bytes into T.
func Reply[T any](r *MessageResult) (T, error) {
	var out T
	if err := json.Unmarshal(r.Content, &out); err != nil {
		return out, newError(InvalidContent, err)
	}
	return out, nil
}
