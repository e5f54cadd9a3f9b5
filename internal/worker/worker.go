// Package worker implements the worker map (C5) and spawn context
// (C6) from spec §4.5: a long-lived task per Object that consumes
// dispatched events and relays the corresponding messages to its
// destination chain.
package worker

import (
	"context"

	leakybucket "github.com/kevinms/leakybucket-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/telemetry"
)

// inboxCapacity bounds how many undelivered Deliveries a worker will
// buffer; once the inbox is full, Send fails with an "inbox full" error.
const inboxCapacity = 32

// sendRatePerSecond and sendBurst configure the leaky-bucket limiter
// guarding each worker's inbox, generalizing the teacher's peer-request
// rateLimiter (beacon-chain/sync) from "peer requests" to "messages to
// a single worker."
const (
	sendRatePerSecond = 50
	sendBurst         = 100
)

// Worker is a long-lived task responsible for one Object: it consumes
// Deliveries from its inbox and relays the corresponding messages to
// Dst, tagged with proofs read from Src (message construction itself
// is out of scope, spec §1).
type Worker struct {
	Object ibc.Object

	src, dst chain.Handle
	inbox    chan Delivery
	statusCh chan<- Msg
	limiter  *leakybucket.LeakyBucket
	tel      *telemetry.Telemetry
	log      *logrus.Entry

	cancel context.CancelFunc
	done   chan struct{}
}

func spawnWorker(object ibc.Object, src, dst chain.Handle, statusCh chan<- Msg, tel *telemetry.Telemetry, log *logrus.Entry) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		Object:   object,
		src:      src,
		dst:      dst,
		inbox:    make(chan Delivery, inboxCapacity),
		statusCh: statusCh,
		limiter:  leakybucket.NewLeakyBucket(sendRatePerSecond, sendBurst),
		tel:      tel,
		log:      log.WithField("object", object.ShortName()),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// Send enqueues a Delivery for the worker. Returns WorkerDispatchError
// (spec §7) if the rate limiter sheds the send or the inbox is full.
func (w *Worker) Send(d Delivery) error {
	if w.limiter.Add(1) == 0 {
		return errors.Wrapf(ErrWorkerDispatch, "object %s: rate limited", w.Object.ShortName())
	}
	select {
	case w.inbox <- d:
		return nil
	default:
		return errors.Wrapf(ErrWorkerDispatch, "object %s: inbox full", w.Object.ShortName())
	}
}

// Shutdown stops the worker; it posts Stopped on its own goroutine
// before exiting (spec §4.5).
func (w *Worker) Shutdown() {
	w.cancel()
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.postStopped()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-w.inbox:
			if !ok {
				return
			}
			w.relay(ctx, d)
		}
	}
}

func (w *Worker) relay(ctx context.Context, d Delivery) {
	for _, event := range d.Events {
		if w.tel != nil {
			w.tel.EventDispatched(d.ChainID, w.Object.Type())
		}
		// Message construction against light-client state is out of
		// scope (spec §1); SendMsgs on a concrete handle performs it.
		if _, err := w.dst.SendMsgs(ctx, []chain.Msg{{Type: string(event.Kind)}}); err != nil {
			w.log.WithError(err).Warn("failed to relay event to destination chain")
		}
	}
}

func (w *Worker) postStopped() {
	select {
	case w.statusCh <- Stopped(w.Object):
	default:
		w.log.Warn("status channel full, dropping Stopped notification")
	}
}

// ErrWorkerDispatch is the WorkerDispatchError kind from spec §7.
var ErrWorkerDispatch = errors.New("worker dispatch failed")
