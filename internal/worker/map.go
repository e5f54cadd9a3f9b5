package worker

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/telemetry"
)

// statusChanCapacity bounds how many pending Stopped notifications the
// supervisor loop may lag behind. A worker does not block posting one:
// when the channel is full its Stopped notification is dropped with a
// warning, and its Object stays in the map.
const statusChanCapacity = 256

// Map is the WorkerMap from spec §3/§4.5: an indexed pool of workers
// keyed by Object, owned exclusively by the supervisor loop (spec §5 —
// "never shared").
type Map struct {
	tel *telemetry.Telemetry
	log *logrus.Entry

	mu       sync.Mutex
	workers  map[ibc.Object]*Worker
	statusCh chan Msg
}

// NewMap returns an empty worker Map.
func NewMap(tel *telemetry.Telemetry, log *logrus.Entry) *Map {
	return &Map{
		tel:      tel,
		log:      log.WithField("component", "worker_map"),
		workers:  make(map[ibc.Object]*Worker),
		statusCh: make(chan Msg, statusChanCapacity),
	}
}

// StatusChannel returns the channel every worker posts WorkerMsg::Stopped
// to (spec §6).
func (m *Map) StatusChannel() <-chan Msg { return m.statusCh }

// Contains reports whether a worker for object is registered.
func (m *Map) Contains(object ibc.Object) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workers[object]
	return ok
}

// GetOrSpawn returns the cached worker for object, or starts a new one
// equipped with src and dst handles. cfg is accepted per spec §4.5's
// signature for workers whose relay behavior is config-sensitive;
// message construction itself is out of scope (spec §1), so it is
// unused by this reference Worker implementation.
func (m *Map) GetOrSpawn(object ibc.Object, src, dst chain.Handle, _ *config.Config) *Worker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.workers[object]; ok {
		return w
	}

	w := spawnWorker(object, src, dst, m.statusCh, m.tel, m.log)
	m.workers[object] = w
	if m.tel != nil {
		m.tel.WorkerSpawned(object.Type())
	}
	return w
}

// RemoveStopped drops object from the map. Called by the supervisor
// loop upon observing WorkerMsg::Stopped(object).
func (m *Map) RemoveStopped(object ibc.Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[object]; !ok {
		return
	}
	delete(m.workers, object)
	if m.tel != nil {
		m.tel.WorkerStopped(object.Type())
	}
}

// Objects returns every live Object, order unspecified.
func (m *Map) Objects() []ibc.Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ibc.Object, 0, len(m.workers))
	for o := range m.workers {
		out = append(out, o)
	}
	return out
}

// ToNotify returns every worker whose Object's source chain is
// chainID, used to fan out NewBlock notifications (spec §3, §4.6).
func (m *Map) ToNotify(chainID ibc.ChainID) []*Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Worker
	for o, w := range m.workers {
		if o.SrcChainID() == chainID {
			out = append(out, w)
		}
	}
	return out
}

// ShutdownForChain stops every worker whose source or destination is
// chainID (spec §4.5 shutdown_workers_for_chain). It does not remove
// them from the map: each stopped worker posts Stopped on
// StatusChannel, and the entry is removed when the caller passes that
// message to RemoveStopped.
func (m *Map) ShutdownForChain(chainID ibc.ChainID) {
	m.mu.Lock()
	var toStop []*Worker
	for o, w := range m.workers {
		if o.SrcChainID() == chainID || o.DstChainID() == chainID {
			toStop = append(toStop, w)
		}
	}
	m.mu.Unlock()

	for _, w := range toStop {
		w.Shutdown()
	}
}

// ObjectsByType groups every live Object by its type, each group sorted
// by ShortName (spec §4.6 DumpState, Scenario E). The returned map has
// no iteration order; SupervisorState.OrderedWorkerTypes supplies the
// client/connection/channel/packet order.
func (m *Map) ObjectsByType() map[ibc.ObjectType][]ibc.Object {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[ibc.ObjectType][]ibc.Object)
	for o := range m.workers {
		out[o.Type()] = append(out[o.Type()], o)
	}
	for _, objs := range out {
		sort.Slice(objs, func(i, j int) bool { return objs[i].ShortName() < objs[j].ShortName() })
	}
	return out
}
