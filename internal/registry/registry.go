// Package registry is the supervisor's cache of live chain handles
// (spec §4.2): the single source of truth for which chains currently
// have a running chain runtime.
package registry

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain/grpcchain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/telemetry"
)

// ErrChainConfigNotFound is returned by GetOrSpawn/Spawn when id has no
// ChainConfig entry.
var ErrChainConfigNotFound = errors.New("chain config not found")

// ErrSpawnFailed wraps a chain runtime construction failure.
var ErrSpawnFailed = errors.New("chain runtime spawn failed")

const spawnFailureBackoff = 30 * time.Second

// SpawnFunc constructs a chain.Handle for cfg. Production code uses
// DialGRPC; tests inject a factory backed by chain/mockchain.
type SpawnFunc func(ctx context.Context, cfg config.ChainConfig) (chain.Handle, error)

// Registry is a mapping ChainId -> chain handle plus a spawn/shutdown
// lifecycle (spec §3, §4.2).
type Registry struct {
	cfg       *config.Guard
	telemetry *telemetry.Telemetry
	log       *logrus.Entry
	spawn     SpawnFunc

	mu      sync.Mutex
	handles map[ibc.ChainID]chain.Handle

	// failures backs off repeated SpawnFailed for the same chain id
	// (SPEC_FULL §5, Open Question resolution 3): a storm of events
	// referencing a chronically-unreachable chain should not retry the
	// dial on every batch.
	failures *gocache.Cache
}

// New returns an empty Registry backed by cfg for ChainConfig lookups,
// dialing new chain handles over gRPC.
func New(cfg *config.Guard, tel *telemetry.Telemetry, log *logrus.Entry) *Registry {
	return NewWithSpawnFunc(cfg, tel, log, DialGRPC)
}

// NewWithSpawnFunc is New with an injectable chain-handle factory, used
// in tests to back the registry with chain/mockchain handles.
func NewWithSpawnFunc(cfg *config.Guard, tel *telemetry.Telemetry, log *logrus.Entry, spawn SpawnFunc) *Registry {
	return &Registry{
		cfg:       cfg,
		telemetry: tel,
		log:       log.WithField("component", "registry"),
		spawn:     spawn,
		handles:   make(map[ibc.ChainID]chain.Handle),
		failures:  gocache.New(spawnFailureBackoff, spawnFailureBackoff),
	}
}

// DialGRPC is the production SpawnFunc: it dials the chain's
// configured gRPC/RPC endpoints via chain/grpcchain.
func DialGRPC(ctx context.Context, cfg config.ChainConfig) (chain.Handle, error) {
	return grpcchain.Dial(cfg.ID, cfg.GRPCAddr, cfg.RPCAddr, logrus.NewEntry(logrus.StandardLogger()))
}

// GetOrSpawn returns the cached handle for id, or spawns and caches a
// new one. Idempotent.
func (r *Registry) GetOrSpawn(ctx context.Context, id ibc.ChainID) (chain.Handle, error) {
	r.mu.Lock()
	if h, ok := r.handles[id]; ok {
		r.mu.Unlock()
		return h, nil
	}
	if _, backingOff := r.failures.Get(string(id)); backingOff {
		r.mu.Unlock()
		return nil, errors.Wrapf(ErrSpawnFailed, "chain %s: backing off after recent failure", id)
	}
	r.mu.Unlock()

	var chainConfig config.ChainConfig
	var found bool
	r.cfg.Read(func(c *config.Config) {
		chainConfig, found = c.FindChain(id)
	})
	if !found {
		return nil, errors.Wrapf(ErrChainConfigNotFound, "chain %s", id)
	}

	handle, err := r.spawn(ctx, chainConfig)
	if err != nil {
		r.failures.SetDefault(string(id), struct{}{})
		if r.telemetry != nil {
			r.telemetry.ChainSpawnFailed(id)
		}
		return nil, errors.Wrapf(ErrSpawnFailed, "chain %s: %s", id, err)
	}

	r.mu.Lock()
	r.handles[id] = handle
	r.mu.Unlock()

	r.log.WithField("chain_id", string(id)).Info("spawned chain runtime")
	return handle, nil
}

// Spawn is GetOrSpawn without returning the handle, used after a
// config Add (spec §4.2).
func (r *Registry) Spawn(ctx context.Context, id ibc.ChainID) error {
	_, err := r.GetOrSpawn(ctx, id)
	return err
}

// Shutdown removes and stops the handle for id; silent if absent.
func (r *Registry) Shutdown(id ibc.ChainID) {
	r.mu.Lock()
	h, ok := r.handles[id]
	if ok {
		delete(r.handles, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := h.Close(); err != nil {
		r.log.WithError(err).WithField("chain_id", string(id)).Warn("error closing chain handle")
	}
}

// Size returns the number of live chain handles.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Chains returns every live chain handle.
func (r *Registry) Chains() []chain.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chain.Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// ChainIDs returns every live chain id.
func (r *Registry) ChainIDs() []ibc.ChainID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ibc.ChainID, 0, len(r.handles))
	for id := range r.handles {
		out = append(out, id)
	}
	return out
}

// Contains reports whether id has a live chain handle.
func (r *Registry) Contains(id ibc.ChainID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[id]
	return ok
}
