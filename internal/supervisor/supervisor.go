// Package supervisor implements the supervisor loop (C8) and command
// channel (C7) from spec §4.6: the single cooperative state machine
// that multiplexes chain event subscriptions, worker status messages,
// and operator commands.
package supervisor

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	uberatomic "go.uber.org/atomic"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/classify"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/registry"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/telemetry"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/worker"
)

// idleSleep caps CPU use when every stream is empty (spec §4.6 step 4).
// Not a correctness boundary (spec §9) — only the fairness and ordering
// rules in §4.6/§5 are.
const idleSleep = 50 * time.Millisecond

// cmdChanCapacity bounds how many in-flight operator commands the
// supervisor will buffer.
const cmdChanCapacity = 16

// logDedupWindow is how long a deduped log key is suppressed for.
const logDedupWindow = 10 * time.Second

type subscriptionEntry struct {
	chainID ibc.ChainID
	handle  chain.Handle
	sub     chain.Subscription
}

// Supervisor is the concurrency orchestrator from spec §2: it owns the
// worker map and registry exclusively (spec §5 — "never shared") and
// drives the single-threaded loop in Run.
type Supervisor struct {
	cfg       *config.Guard
	registry  *registry.Registry
	workers   *worker.Map
	telemetry *telemetry.Telemetry
	log       *logrus.Entry
	clock     clock.Clock

	cmdCh chan SupervisorCmd
	subs  []subscriptionEntry

	// lastTick is read by the HTTP liveness check from a different
	// goroutine than the loop that writes it; an atomic avoids a mutex
	// for a single timestamp.
	lastTick *uberatomic.Time

	// logDedup suppresses repeated identical batch-processing log
	// lines within a short window, so a chronically misbehaving chain
	// cannot flood the log (SPEC_FULL §5) — purely cosmetic, never
	// changes what gets classified or dispatched.
	logDedup *ristretto.Cache

	// chainCaches memoizes each source chain's counterparty-resolution
	// calls across batches (classify.CachingSourceChain). Only ever touched from the
	// single Run goroutine, so it needs no lock.
	chainCaches map[ibc.ChainID]*classify.CachingSourceChain
}

// New constructs a Supervisor. clk is injectable so tests can drive the
// idle-sleep throttle deterministically (SPEC_FULL REDESIGN FLAGS).
func New(cfg *config.Guard, reg *registry.Registry, workers *worker.Map, tel *telemetry.Telemetry, log *logrus.Entry, clk clock.Clock) *Supervisor {
	if clk == nil {
		clk = clock.New()
	}
	dedup, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		// A degraded dedup cache only means noisier logs, never a
		// correctness change; fall back to logging everything.
		dedup = nil
	}
	return &Supervisor{
		cfg:       cfg,
		registry:  reg,
		workers:   workers,
		telemetry: tel,
		log:       log.WithField("component", "supervisor"),
		clock:     clk,
		cmdCh:       make(chan SupervisorCmd, cmdChanCapacity),
		lastTick:    uberatomic.NewTime(clk.Now()),
		logDedup:    dedup,
		chainCaches: make(map[ibc.ChainID]*classify.CachingSourceChain),
	}
}

// Commands returns the send-only command channel handle (spec §6).
func (s *Supervisor) Commands() chan<- SupervisorCmd { return s.cmdCh }

// LastTick returns the timestamp of the loop's most recently completed
// iteration, used by the introspection HTTP server's liveness check
// (SPEC_FULL §4.11).
func (s *Supervisor) LastTick() time.Time {
	return s.lastTick.Load()
}

// dedupedWarn logs msg at Warn level at most once per key within the
// dedup window, tagging fields onto the entry first.
func (s *Supervisor) dedupedWarn(key string, fields logrus.Fields, msg string) {
	if s.logDedup != nil {
		if _, seen := s.logDedup.Get(key); seen {
			return
		}
		s.logDedup.SetWithTTL(key, struct{}{}, 1, logDedupWindow)
		s.logDedup.Wait()
	}
	s.log.WithFields(fields).Warn(msg)
}

// Run drives the supervisor loop until ctx is cancelled (spec §4.6).
// It performs the initial subscription scan, then ticks: try-receive a
// batch, try-receive a worker status message, try-receive a command,
// sleep.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.initSubscriptions(ctx); err != nil && !errors.Is(err, ErrNoChainsAvailable) {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s.tick(ctx)
		s.lastTick.Store(s.clock.Now())
		s.clock.Sleep(idleSleep)
	}
}

func (s *Supervisor) tick(ctx context.Context) {
	if entry, boe, closed, ok := tryRecvMultiple(s.subs); ok {
		if closed {
			s.dropSubscription(entry.chainID)
		} else {
			s.handleBatch(ctx, entry, boe)
		}
	}

	select {
	case msg := <-s.workers.StatusChannel():
		if msg.Kind == worker.MsgKindStopped {
			s.workers.RemoveStopped(msg.Object)
		}
	default:
	}

	select {
	case cmd := <-s.cmdCh:
		effect := s.handleCmd(ctx, cmd)
		if effect == CmdEffectConfigChanged {
			if err := s.initSubscriptions(ctx); err != nil {
				if errors.Is(err, ErrNoChainsAvailable) {
					s.log.Warn("no chains available after config change, continuing with no subscriptions")
				} else {
					s.log.WithError(err).Error("failed to rebuild subscriptions after config change")
				}
			}
		}
	default:
	}
}

// initSubscriptions iterates Config's chains, spawning and subscribing
// to each (spec §4.6 "Initial subscriptions"). Chains that fail to
// spawn or subscribe are logged and skipped; if the registry ends up
// empty, ErrNoChainsAvailable is returned.
func (s *Supervisor) initSubscriptions(ctx context.Context) error {
	var ids []ibc.ChainID
	s.cfg.Read(func(c *config.Config) {
		for _, cc := range c.Chains {
			ids = append(ids, cc.ID)
		}
	})

	subs := make([]subscriptionEntry, 0, len(ids))
	for _, id := range ids {
		handle, err := s.registry.GetOrSpawn(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("chain_id", string(id)).Warn("failed to spawn chain, skipping subscription")
			continue
		}
		sub, err := handle.Subscribe(ctx)
		if err != nil {
			s.log.WithError(err).WithField("chain_id", string(id)).Warn("failed to subscribe, skipping chain")
			continue
		}
		subs = append(subs, subscriptionEntry{chainID: id, handle: handle, sub: sub})
	}
	s.subs = subs

	if s.registry.Size() == 0 {
		return ErrNoChainsAvailable
	}
	return nil
}

func (s *Supervisor) dropSubscription(chainID ibc.ChainID) {
	out := s.subs[:0]
	for _, e := range s.subs {
		if e.chainID != chainID {
			out = append(out, e)
		}
	}
	s.subs = out
	delete(s.chainCaches, chainID)
}

// cachedSourceFor returns the memoizing ibc.SourceChain wrapper for
// src, creating one on first use.
func (s *Supervisor) cachedSourceFor(src chain.Handle) ibc.SourceChain {
	if c, ok := s.chainCaches[src.ID()]; ok {
		return c
	}
	c := classify.NewCachingSourceChain(src)
	s.chainCaches[src.ID()] = c
	return c
}

func (s *Supervisor) handleBatch(ctx context.Context, entry subscriptionEntry, boe *chain.BatchOrError) {
	batch, err := boe.UnwrapOrClone()
	if err != nil {
		s.dedupedWarn("monitor-error:"+string(entry.chainID), logrus.Fields{"chain_id": string(entry.chainID), "error": err}, "monitor reported a broken event stream")
		return
	}
	if batch == nil {
		return
	}
	if err := s.processBatch(ctx, entry.handle, batch); err != nil {
		s.log.WithError(err).WithField("chain_id", string(entry.chainID)).Error("failed to process batch")
	}
}

// processBatch implements spec §4.6's process_batch.
func (s *Supervisor) processBatch(ctx context.Context, src chain.Handle, batch *ibc.EventBatch) error {
	if batch.ChainID != src.ID() {
		return errors.Wrapf(ErrChainIDMismatch, "batch chain %s, handle chain %s", batch.ChainID, src.ID())
	}

	var handshakeEnabled bool
	var cfgSnapshot config.Config
	s.cfg.Read(func(c *config.Config) {
		handshakeEnabled = c.HandshakeEnabled
		cfgSnapshot = *c
	})

	collected := classify.CollectEvents(s.cachedSourceFor(src), batch, handshakeEnabled, s.workers.Contains)

	for object, events := range collected.PerObject {
		if !classify.RelayOnObject(&cfgSnapshot, batch.ChainID, object) {
			s.log.WithField("object", object.ShortName()).Debug("object filtered out, skipping")
			continue
		}

		srcHandle, err := s.registry.GetOrSpawn(ctx, object.SrcChainID())
		if err != nil {
			return errors.Wrapf(err, "resolving source chain for object %s", object.ShortName())
		}
		dstHandle, err := s.registry.GetOrSpawn(ctx, object.DstChainID())
		if err != nil {
			return errors.Wrapf(err, "resolving destination chain for object %s", object.ShortName())
		}

		w := s.workers.GetOrSpawn(object, srcHandle, dstHandle, &cfgSnapshot)
		if err := w.Send(worker.Delivery{Height: batch.Height, ChainID: batch.ChainID, Events: events}); err != nil {
			return errors.Wrapf(err, "dispatching to worker for object %s", object.ShortName())
		}
		if s.telemetry != nil {
			s.telemetry.ObjectClassified(batch.ChainID, object.Type())
		}
	}

	// NewBlock fan-out happens after per-Object dispatch for this batch
	// (spec §5 — "so that workers see packet work before clock advances").
	if collected.NewBlock != nil {
		for _, w := range s.workers.ToNotify(batch.ChainID) {
			_ = w.Send(worker.Delivery{Height: batch.Height, ChainID: batch.ChainID, Events: []ibc.IbcEvent{*collected.NewBlock}})
		}
	}

	return nil
}
