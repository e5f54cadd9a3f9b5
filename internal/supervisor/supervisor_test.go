package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain/mockchain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/registry"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/supervisor"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/telemetry"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/worker"
)

type harness struct {
	guard    *config.Guard
	registry *registry.Registry
	workers  *worker.Map
	super    *supervisor.Supervisor
	mocks    map[ibc.ChainID]*mockchain.Handle
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	mocks := make(map[ibc.ChainID]*mockchain.Handle)
	for _, cc := range cfg.Chains {
		mocks[cc.ID] = mockchain.New(cc.ID)
	}
	guard := config.NewGuard(cfg)

	reg := registry.NewWithSpawnFunc(guard, nil, logrus.NewEntry(logrus.New()), func(_ context.Context, cc config.ChainConfig) (chain.Handle, error) {
		return mocks[cc.ID], nil
	})

	tel, err := telemetry.New()
	require.NoError(t, err)

	m := worker.NewMap(tel, logrus.NewEntry(logrus.New()))
	// A real clock is used here: these are integration-style tests
	// driving an actual background goroutine loop over wall time via
	// require.Eventually, not a single-stepped deterministic run.
	s := supervisor.New(guard, reg, m, tel, logrus.NewEntry(logrus.New()), clock.New())

	return &harness{guard: guard, registry: reg, workers: m, super: s, mocks: mocks}
}

func TestSupervisor_ScenarioA_SendPacketOnFilteredChannel(t *testing.T) {
	cfg := &config.Config{
		Filter: true,
		Chains: []config.ChainConfig{
			{ID: "A", Filters: []config.ChannelFilterEntry{{PortID: "transfer", ChannelID: "channel-0"}}},
			{ID: "B"},
		},
	}
	h := newHarness(t, cfg)
	h.mocks["A"].RegisterChannel("transfer", "channel-0", "B")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.super.Run(ctx)

	h.mocks["A"].PushBatch(&ibc.EventBatch{
		ChainID: "A",
		Height:  ibc.Height{RevisionHeight: 100},
		Events: []ibc.IbcEvent{
			{Kind: ibc.EventSendPacket, Packet: &ibc.PacketAttributes{
				Sequence: 1, SrcPort: "transfer", SrcChannel: "channel-0",
			}},
		},
	})

	require.Eventually(t, func() bool {
		return len(h.workers.Objects()) == 1
	}, time.Second, 5*time.Millisecond)

	objs := h.workers.Objects()
	require.Len(t, objs, 1)
	p, ok := objs[0].AsPacket()
	require.True(t, ok)
	assert.Equal(t, ibc.ChainID("A"), p.SrcChainID)
	assert.Equal(t, ibc.ChainID("B"), p.DstChainID)
}

func TestSupervisor_ScenarioB_SendPacketOnUnfilteredChannel(t *testing.T) {
	cfg := &config.Config{
		Filter: true,
		Chains: []config.ChainConfig{
			{ID: "A", Filters: []config.ChannelFilterEntry{{PortID: "transfer", ChannelID: "channel-1"}}},
			{ID: "B"},
		},
	}
	h := newHarness(t, cfg)
	h.mocks["A"].RegisterChannel("transfer", "channel-0", "B")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.super.Run(ctx)

	h.mocks["A"].PushBatch(&ibc.EventBatch{
		ChainID: "A",
		Height:  ibc.Height{RevisionHeight: 100},
		Events: []ibc.IbcEvent{
			{Kind: ibc.EventSendPacket, Packet: &ibc.PacketAttributes{
				Sequence: 1, SrcPort: "transfer", SrcChannel: "channel-0",
			}},
		},
	})

	// Give the loop a few ticks to (not) spawn anything.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.workers.Objects(), "filtered-out channel must not spawn a worker")
}

func TestSupervisor_ScenarioD_ChainRemoval(t *testing.T) {
	cfg := &config.Config{
		Chains: []config.ChainConfig{{ID: "A"}, {ID: "X"}},
	}
	h := newHarness(t, cfg)
	h.mocks["A"].RegisterChannel("transfer", "channel-0", "X")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.super.Run(ctx)

	h.mocks["A"].PushBatch(&ibc.EventBatch{
		ChainID: "A",
		Height:  ibc.Height{RevisionHeight: 1},
		Events: []ibc.IbcEvent{
			{Kind: ibc.EventSendPacket, Packet: &ibc.PacketAttributes{
				Sequence: 1, SrcPort: "transfer", SrcChannel: "channel-0",
			}},
		},
	})

	require.Eventually(t, func() bool { return len(h.workers.Objects()) == 1 }, time.Second, 5*time.Millisecond)

	h.super.Commands() <- supervisor.NewUpdateConfigCmd(supervisor.RemoveChain("X"))

	require.Eventually(t, func() bool {
		return len(h.workers.Objects()) == 0 && !h.registry.Contains("X")
	}, time.Second, 5*time.Millisecond)

	var stillPresent bool
	h.guard.Read(func(c *config.Config) { stillPresent = c.HasChain("X") })
	assert.False(t, stillPresent)
}

func TestSupervisor_DumpState_ScenarioE(t *testing.T) {
	cfg := &config.Config{
		Chains: []config.ChainConfig{{ID: "c"}, {ID: "a"}, {ID: "b"}},
	}
	h := newHarness(t, cfg)

	h.workers.GetOrSpawn(ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "c", DstChainID: "a", SrcPort: "transfer", SrcChannel: "channel-1"}), h.mocks["c"], h.mocks["a"], nil)
	h.workers.GetOrSpawn(ibc.NewClientObject(ibc.ClientObject{SrcChainID: "a", DstChainID: "c", DstClient: "client-1"}), h.mocks["a"], h.mocks["c"], nil)
	h.workers.GetOrSpawn(ibc.NewChannelObject(ibc.ChannelObject{SrcChainID: "b", DstChainID: "c", SrcPort: "transfer", SrcChannel: "channel-0"}), h.mocks["b"], h.mocks["c"], nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.super.Run(ctx)

	_, err := h.registry.GetOrSpawn(ctx, "c")
	require.NoError(t, err)
	_, err = h.registry.GetOrSpawn(ctx, "a")
	require.NoError(t, err)
	_, err = h.registry.GetOrSpawn(ctx, "b")
	require.NoError(t, err)

	reply := make(chan supervisor.SupervisorState, 1)
	h.super.Commands() <- supervisor.NewDumpStateCmd(reply)

	select {
	case state := <-reply:
		require.Equal(t, []ibc.ChainID{"a", "b", "c"}, state.Chains)
		require.Equal(t, []ibc.ObjectType{ibc.ObjectTypeClient, ibc.ObjectTypeChannel, ibc.ObjectTypePacket}, state.OrderedWorkerTypes())
	case <-time.After(time.Second):
		t.Fatal("expected a DumpState reply")
	}
}

// TestSupervisor_ScenarioF_NewBlockFanOutAfterPerObjectDispatch asserts
// spec §5's ordering rule: within one batch, every per-Object dispatch
// (here, the SendPacket worker's relay) is sent to its destination
// chain before the NewBlock fan-out reaches existing workers sharing
// that source chain.
func TestSupervisor_ScenarioF_NewBlockFanOutAfterPerObjectDispatch(t *testing.T) {
	cfg := &config.Config{
		Chains: []config.ChainConfig{{ID: "A"}, {ID: "B"}},
	}
	h := newHarness(t, cfg)
	h.mocks["A"].RegisterChannel("transfer", "channel-0", "B")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.super.Run(ctx)

	h.mocks["A"].PushBatch(&ibc.EventBatch{
		ChainID: "A",
		Height:  ibc.Height{RevisionHeight: 1},
		Events: []ibc.IbcEvent{
			{Kind: ibc.EventSendPacket, Packet: &ibc.PacketAttributes{
				Sequence: 1, SrcPort: "transfer", SrcChannel: "channel-0",
			}},
		},
	})

	require.Eventually(t, func() bool { return len(h.workers.Objects()) == 1 }, time.Second, 5*time.Millisecond)

	// Same batch carries both the packet event and a NewBlock for
	// the same source chain; the packet worker must see SendPacket
	// relayed to B before the NewBlock notification reaches it.
	h.mocks["A"].PushBatch(&ibc.EventBatch{
		ChainID: "A",
		Height:  ibc.Height{RevisionHeight: 2},
		Events: []ibc.IbcEvent{
			{Kind: ibc.EventSendPacket, Packet: &ibc.PacketAttributes{
				Sequence: 2, SrcPort: "transfer", SrcChannel: "channel-0",
			}},
			{Kind: ibc.EventNewBlock},
		},
	})

	// One message from the first batch, two (SendPacket, NewBlock) from
	// the second.
	require.Eventually(t, func() bool { return len(h.mocks["B"].SentMsgs()) >= 3 }, time.Second, 5*time.Millisecond)

	// The last SendPacket is the one carried by the second batch.
	msgs := h.mocks["B"].SentMsgs()
	sendPacketIdx, newBlockIdx := -1, -1
	for i, m := range msgs {
		if m.Type == string(ibc.EventSendPacket) {
			sendPacketIdx = i
		}
		if m.Type == string(ibc.EventNewBlock) {
			newBlockIdx = i
		}
	}
	require.GreaterOrEqual(t, sendPacketIdx, 0, "expected a relayed SendPacket message")
	require.GreaterOrEqual(t, newBlockIdx, 0, "expected a relayed NewBlock message")
	assert.Less(t, sendPacketIdx, newBlockIdx, "SendPacket must be relayed before NewBlock fan-out within the same batch")
}
