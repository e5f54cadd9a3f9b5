package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/registry"
)

// SpawnMode distinguishes a cold-start scan from a single-chain reload
// (spec §4.5).
type SpawnMode int

const (
	SpawnModeStartup SpawnMode = iota
	SpawnModeReload
)

// SpawnContext is a short-lived borrow of {config, registry, workers,
// mode} that seeds the worker map with the workers implied by the
// current chain set (spec §4.5, §4.6 "Initial subscriptions").
type SpawnContext struct {
	Config   *config.Guard
	Registry *registry.Registry
	Workers  *Map
	Mode     SpawnMode
	Log      *logrus.Entry
}

// placeholderClientID stands in for the on-chain client enumeration
// that would normally come from a light-client query against dst
// (out of scope, spec §1): one deterministic client-relay relationship
// per ordered chain pair.
func placeholderClientID(dst ibc.ChainID) ibc.ClientID {
	return ibc.ClientID(fmt.Sprintf("07-tendermint-%s", dst))
}

// SpawnWorkers iterates every ordered pair of configured chains and
// seeds a worker for each. In SpawnModeStartup, pairs are spawned
// concurrently across a bounded errgroup (SPEC_FULL §5) since spawn
// order across distinct chain pairs is not a correctness requirement;
// SpawnModeReload (used for a single newly added chain) spawns
// sequentially.
func (sc *SpawnContext) SpawnWorkers(ctx context.Context) error {
	var ids []ibc.ChainID
	sc.Config.Read(func(c *config.Config) {
		for _, cc := range c.Chains {
			ids = append(ids, cc.ID)
		}
	})

	pairs := orderedPairs(ids)
	if sc.Mode == SpawnModeReload {
		var merr *multierror.Error
		for _, p := range pairs {
			if err := sc.spawnPair(ctx, p.src, p.dst); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		return merr.ErrorOrNil()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(1, len(ids)))

	var mu sync.Mutex
	var merr *multierror.Error
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			if err := sc.spawnPair(gctx, p.src, p.dst); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return merr.ErrorOrNil()
}

// SpawnWorkersForChain restricts SpawnWorkers to pairs involving id
// (spec §4.5 spawn_workers_for_chain), used after a config Add.
func (sc *SpawnContext) SpawnWorkersForChain(ctx context.Context, id ibc.ChainID) error {
	var ids []ibc.ChainID
	sc.Config.Read(func(c *config.Config) {
		for _, cc := range c.Chains {
			ids = append(ids, cc.ID)
		}
	})

	var merr *multierror.Error
	for _, other := range ids {
		if other == id {
			continue
		}
		if err := sc.spawnPair(ctx, id, other); err != nil {
			merr = multierror.Append(merr, err)
		}
		if err := sc.spawnPair(ctx, other, id); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// ShutdownWorkersForChain stops every worker whose source or
// destination is id (spec §4.5 shutdown_workers_for_chain).
func (sc *SpawnContext) ShutdownWorkersForChain(id ibc.ChainID) {
	sc.Workers.ShutdownForChain(id)
}

func (sc *SpawnContext) spawnPair(ctx context.Context, src, dst ibc.ChainID) error {
	srcHandle, err := sc.Registry.GetOrSpawn(ctx, src)
	if err != nil {
		return err
	}
	dstHandle, err := sc.Registry.GetOrSpawn(ctx, dst)
	if err != nil {
		return err
	}

	object := ibc.NewClientObject(ibc.ClientObject{
		DstChainID: dst,
		DstClient:  placeholderClientID(dst),
		SrcChainID: src,
	})

	var cfg config.Config
	sc.Config.Read(func(c *config.Config) { cfg = *c })
	sc.Workers.GetOrSpawn(object, srcHandle, dstHandle, &cfg)
	return nil
}

type chainPair struct{ src, dst ibc.ChainID }

func orderedPairs(ids []ibc.ChainID) []chainPair {
	var out []chainPair
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			out = append(out, chainPair{src: a, dst: b})
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
