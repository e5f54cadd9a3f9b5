// Package mockchain provides an in-memory chain.Handle test double:
// push events onto its subscription channel, register the counterparty
// lookups the classifier needs, and record what gets sent to it.
package mockchain

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

type connLookup struct {
	client      ibc.ClientID
	counterpart ibc.ChainID
}

type channelKey struct {
	port    ibc.PortID
	channel ibc.ChannelID
}

// Handle is a programmable, in-memory chain.Handle.
type Handle struct {
	id ibc.ChainID

	mu          sync.Mutex
	sub         chan *chain.BatchOrError
	connections map[ibc.ConnectionID]connLookup
	channels    map[channelKey]ibc.ChainID
	sentMsgs    []chain.Msg
	closed      bool
}

var _ chain.Handle = (*Handle)(nil)

// New returns a Handle for id with a buffered subscription channel.
func New(id ibc.ChainID) *Handle {
	return &Handle{
		id:          id,
		sub:         make(chan *chain.BatchOrError, 64),
		connections: make(map[ibc.ConnectionID]connLookup),
		channels:    make(map[channelKey]ibc.ChainID),
	}
}

// ID implements chain.Handle.
func (h *Handle) ID() ibc.ChainID { return h.id }

// RegisterConnection teaches the handle the client and counterparty
// chain underlying connectionID, for ClientForConnection and
// CounterpartyChainIDForConnection to resolve.
func (h *Handle) RegisterConnection(connectionID ibc.ConnectionID, clientID ibc.ClientID, counterparty ibc.ChainID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[connectionID] = connLookup{client: clientID, counterpart: counterparty}
}

// RegisterChannel teaches the handle the counterparty chain underlying
// (portID, channelID), for CounterpartyChainIDForChannel to resolve.
func (h *Handle) RegisterChannel(portID ibc.PortID, channelID ibc.ChannelID, counterparty ibc.ChainID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels[channelKey{portID, channelID}] = counterparty
}

// ClientForConnection implements ibc.SourceChain.
func (h *Handle) ClientForConnection(connectionID ibc.ConnectionID) (ibc.ClientID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.connections[connectionID]
	if !ok {
		return "", errors.Errorf("mockchain %s: no client registered for connection %s", h.id, connectionID)
	}
	return c.client, nil
}

// CounterpartyChainIDForConnection implements ibc.SourceChain.
func (h *Handle) CounterpartyChainIDForConnection(connectionID ibc.ConnectionID) (ibc.ChainID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.connections[connectionID]
	if !ok {
		return "", errors.Errorf("mockchain %s: no counterparty registered for connection %s", h.id, connectionID)
	}
	return c.counterpart, nil
}

// CounterpartyChainIDForChannel implements ibc.SourceChain.
func (h *Handle) CounterpartyChainIDForChannel(portID ibc.PortID, channelID ibc.ChannelID) (ibc.ChainID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dst, ok := h.channels[channelKey{portID, channelID}]
	if !ok {
		return "", errors.Errorf("mockchain %s: no counterparty registered for channel %s/%s", h.id, portID, channelID)
	}
	return dst, nil
}

// Subscribe implements chain.Handle. The mock supports a single live
// subscriber, mirroring the one-subscription-per-chain usage in spec §4.6.
func (h *Handle) Subscribe(_ context.Context) (chain.Subscription, error) {
	return chain.Subscription(h.sub), nil
}

// PushBatch delivers batch to the current subscriber.
func (h *Handle) PushBatch(batch *ibc.EventBatch) {
	h.sub <- &chain.BatchOrError{Batch: batch}
}

// PushError delivers a monitor failure to the current subscriber.
func (h *Handle) PushError(err error) {
	h.sub <- &chain.BatchOrError{Err: err}
}

// SendMsgs implements chain.Handle, recording msgs for later inspection.
func (h *Handle) SendMsgs(_ context.Context, msgs []chain.Msg) ([]ibc.IbcEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sentMsgs = append(h.sentMsgs, msgs...)
	return nil, nil
}

// SentMsgs returns every Msg recorded via SendMsgs, in order.
func (h *Handle) SentMsgs() []chain.Msg {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]chain.Msg, len(h.sentMsgs))
	copy(out, h.sentMsgs)
	return out
}

// QueryClientState implements chain.Handle with a zero-value stub.
func (h *Handle) QueryClientState(_ context.Context, clientID ibc.ClientID) (chain.ClientState, error) {
	return chain.ClientState{ClientID: clientID}, nil
}

// QueryProof implements chain.Handle with an empty proof stub.
func (h *Handle) QueryProof(_ context.Context, _ string, _ ibc.Height) ([]byte, chain.MerkleProof, error) {
	return nil, chain.MerkleProof{}, nil
}

// Close implements chain.Handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.sub)
	return nil
}
