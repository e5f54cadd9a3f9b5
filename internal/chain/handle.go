// Package chain defines the external Chain Handle contract (spec §4.1):
// an opaque, cheap-to-clone capability to query one chain, send
// messages to it, and subscribe to its event stream. This package pins
// down the interface only — concrete implementations live in
// chain/mockchain (tests) and chain/grpcchain (a thin gRPC/RPC-backed
// reference implementation); the on-chain light-client verification
// logic and message-building pipelines that would back a real
// implementation are out of scope (spec §1).
package chain

import (
	"context"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

// Msg is an opaque outbound message; its wire encoding is out of scope.
type Msg struct {
	Type string
	Data []byte
}

// ClientState is an opaque light-client state value sufficient to
// construct client updates; its structure is out of scope.
type ClientState struct {
	ClientID ibc.ClientID
	Height   ibc.Height
	Data     []byte
}

// MerkleProof is an opaque proof accompanying a provable query result.
type MerkleProof struct {
	Data []byte
}

// BatchOrError is the Go analogue of the source's Arc<Result<EventBatch>>:
// a single shared payload that is either a batch or the error a failing
// monitor reported. Consumers call UnwrapOrClone to take ownership.
type BatchOrError struct {
	Batch *ibc.EventBatch
	Err   error
}

// UnwrapOrClone returns the batch or the error it wraps. Since the
// supervisor holds exactly one subscription per chain in this spec
// (spec §4.6), this consumer always holds the sole reference, so
// "clone" degenerates to a direct return — no refcounting is needed
// (spec §9).
func (b *BatchOrError) UnwrapOrClone() (*ibc.EventBatch, error) {
	if b == nil {
		return nil, nil
	}
	return b.Batch, b.Err
}

// Subscription is a receive-only channel of event batches or monitor
// failures, as described in spec §6.
type Subscription <-chan *BatchOrError

// Handle is the capability the supervisor holds for one chain: it can
// be queried, sent messages, and subscribed to. Handles are cheap to
// clone — concrete implementations are small structs of channels and
// client handles copied by pointer or value, backed by a reference-
// counted runtime task (spec §4.1).
type Handle interface {
	ibc.SourceChain

	// Subscribe opens a new subscription to this chain's event stream.
	Subscribe(ctx context.Context) (Subscription, error)

	// SendMsgs delivers msgs to this chain, returning the events the
	// chain emitted while processing them.
	SendMsgs(ctx context.Context, msgs []Msg) ([]ibc.IbcEvent, error)

	// QueryClientState returns the latest known state of clientID.
	QueryClientState(ctx context.Context, clientID ibc.ClientID) (ClientState, error)

	// QueryProof returns a provable query result and its Merkle proof
	// at height.
	QueryProof(ctx context.Context, path string, height ibc.Height) ([]byte, MerkleProof, error)

	// Close releases any resources (connections, background tasks)
	// held by this handle.
	Close() error
}
