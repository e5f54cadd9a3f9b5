package worker_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain/mockchain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/registry"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/worker"
)

func mockRegistry(t *testing.T, ids ...string) (*registry.Registry, *config.Guard) {
	t.Helper()
	cfg := &config.Config{}
	for _, id := range ids {
		cfg.AddChain(config.ChainConfig{ID: ibc.ChainID(id)})
	}
	guard := config.NewGuard(cfg)
	reg := registry.NewWithSpawnFunc(guard, nil, logrus.NewEntry(logrus.New()), func(_ context.Context, cc config.ChainConfig) (chain.Handle, error) {
		return mockchain.New(cc.ID), nil
	})
	return reg, guard
}

func TestSpawnContext_StartupSpawnsAllOrderedPairs(t *testing.T) {
	reg, guard := mockRegistry(t, "A", "B")
	m := worker.NewMap(nil, logrus.NewEntry(logrus.New()))

	sc := &worker.SpawnContext{
		Config:   guard,
		Registry: reg,
		Workers:  m,
		Mode:     worker.SpawnModeStartup,
		Log:      logrus.NewEntry(logrus.New()),
	}

	err := sc.SpawnWorkers(context.Background())
	require.NoError(t, err)

	// Two chains -> two ordered pairs (A,B) and (B,A), one client
	// worker each.
	assert.Len(t, m.Objects(), 2)
	assert.Equal(t, 2, reg.Size())
}

func TestSpawnContext_ShutdownWorkersForChain(t *testing.T) {
	reg, guard := mockRegistry(t, "A", "B")
	m := worker.NewMap(nil, logrus.NewEntry(logrus.New()))

	sc := &worker.SpawnContext{
		Config:   guard,
		Registry: reg,
		Workers:  m,
		Mode:     worker.SpawnModeStartup,
		Log:      logrus.NewEntry(logrus.New()),
	}
	require.NoError(t, sc.SpawnWorkers(context.Background()))
	require.Len(t, m.Objects(), 2)

	sc.ShutdownWorkersForChain("A")

	// Stopped workers leave the map when their Stopped message is
	// handled, as the supervisor loop does on each tick.
	for drained := false; !drained; {
		select {
		case msg := <-m.StatusChannel():
			m.RemoveStopped(msg.Object)
		default:
			drained = true
		}
	}

	for _, o := range m.Objects() {
		assert.NotEqual(t, "A", string(o.SrcChainID()))
		assert.NotEqual(t, "A", string(o.DstChainID()))
	}
}
