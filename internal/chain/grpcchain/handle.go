// Package grpcchain is a thin reference chain.Handle implementation:
// provable/light-client queries go over a gRPC connection, and events
// are produced by long-polling a JSON events endpoint on a background
// goroutine. The wire formats for both are intentionally minimal —
// constructing real client updates and decoding real IBC events is out
// of scope (spec §1); this exists to exercise the external contract
// end to end against something that looks like a real deployment.
package grpcchain

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

// Handle is a gRPC/HTTP-backed chain.Handle.
type Handle struct {
	id         ibc.ChainID
	grpcConn   *grpc.ClientConn
	eventsAddr string
	httpClient *http.Client
	log        *logrus.Entry

	mu     sync.Mutex
	subs   []chan *chain.BatchOrError
	cancel context.CancelFunc
	closed bool
}

var _ chain.Handle = (*Handle)(nil)

// Dial opens a gRPC connection to grpcAddr for queries and prepares to
// long-poll eventsAddr for events once Subscribe is called.
func Dial(id ibc.ChainID, grpcAddr, eventsAddr string, log *logrus.Entry) (*Handle, error) {
	conn, err := grpc.Dial(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "dialing chain %s at %s", id, grpcAddr)
	}
	return &Handle{
		id:         id,
		grpcConn:   conn,
		eventsAddr: eventsAddr,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.WithField("chain_id", string(id)),
	}, nil
}

// ID implements chain.Handle.
func (h *Handle) ID() ibc.ChainID { return h.id }

// Subscribe implements chain.Handle, starting a long-poll loop on the
// first call.
func (h *Handle) Subscribe(ctx context.Context) (chain.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(chan *chain.BatchOrError, 16)
	h.subs = append(h.subs, out)

	if h.cancel == nil {
		pollCtx, cancel := context.WithCancel(ctx)
		h.cancel = cancel
		go h.pollEvents(pollCtx)
	}

	return chain.Subscription(out), nil
}

func (h *Handle) pollEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := h.fetchBatch(ctx)
		h.broadcast(&chain.BatchOrError{Batch: batch, Err: err})

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (h *Handle) fetchBatch(ctx context.Context) (*ibc.EventBatch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.eventsAddr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building events poll request")
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "polling events for chain %s", h.id)
	}
	defer resp.Body.Close()

	var batch ibc.EventBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, errors.Wrapf(err, "decoding events batch for chain %s", h.id)
	}
	return &batch, nil
}

func (h *Handle) broadcast(msg *chain.BatchOrError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		select {
		case s <- msg:
		default:
			h.log.Warn("subscriber channel full, dropping event batch")
		}
	}
}

// ClientForConnection implements ibc.SourceChain. The query is not
// implemented: it always returns an error.
func (h *Handle) ClientForConnection(connectionID ibc.ConnectionID) (ibc.ClientID, error) {
	return "", errors.Errorf("grpcchain: connection->client query not wired for %s on %s (out of scope: light-client query pipeline)", connectionID, h.id)
}

// CounterpartyChainIDForConnection implements ibc.SourceChain. The query
// is not implemented: it always returns an error.
func (h *Handle) CounterpartyChainIDForConnection(connectionID ibc.ConnectionID) (ibc.ChainID, error) {
	return "", errors.Errorf("grpcchain: connection counterparty query not wired for %s on %s (out of scope: light-client query pipeline)", connectionID, h.id)
}

// CounterpartyChainIDForChannel implements ibc.SourceChain. The query is
// not implemented: it always returns an error.
func (h *Handle) CounterpartyChainIDForChannel(portID ibc.PortID, channelID ibc.ChannelID) (ibc.ChainID, error) {
	return "", errors.Errorf("grpcchain: channel counterparty query not wired for %s/%s on %s (out of scope: light-client query pipeline)", portID, channelID, h.id)
}

// SendMsgs implements chain.Handle; constructing and broadcasting the
// wire transaction is out of scope (spec §1).
func (h *Handle) SendMsgs(_ context.Context, msgs []chain.Msg) ([]ibc.IbcEvent, error) {
	return nil, errors.Errorf("grpcchain: SendMsgs not wired for %s (out of scope: message-building pipeline)", h.id)
}

// QueryClientState implements chain.Handle. The query is not
// implemented: it always returns an error.
func (h *Handle) QueryClientState(_ context.Context, clientID ibc.ClientID) (chain.ClientState, error) {
	return chain.ClientState{}, errors.Errorf("grpcchain: QueryClientState not wired for %s on %s", clientID, h.id)
}

// QueryProof implements chain.Handle. The query is not implemented: it
// always returns an error.
func (h *Handle) QueryProof(_ context.Context, path string, height ibc.Height) ([]byte, chain.MerkleProof, error) {
	return nil, chain.MerkleProof{}, errors.Errorf("grpcchain: QueryProof not wired for %s@%s on %s", path, height, h.id)
}

// Close implements chain.Handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.cancel != nil {
		h.cancel()
	}
	for _, s := range h.subs {
		close(s)
	}
	return h.grpcConn.Close()
}
