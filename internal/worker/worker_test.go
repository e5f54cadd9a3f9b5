package worker_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain/mockchain"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/worker"
)

func testLog() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

func TestMap_GetOrSpawnIsIdempotent(t *testing.T) {
	m := worker.NewMap(nil, testLog())
	src := mockchain.New("A")
	dst := mockchain.New("B")

	object := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-0"})

	w1 := m.GetOrSpawn(object, src, dst, nil)
	w2 := m.GetOrSpawn(object, src, dst, nil)
	assert.Same(t, w1, w2)
	assert.True(t, m.Contains(object))
	assert.Len(t, m.Objects(), 1)
}

func TestWorker_ShutdownPostsStopped(t *testing.T) {
	m := worker.NewMap(nil, testLog())
	src := mockchain.New("A")
	dst := mockchain.New("B")
	object := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-0"})

	w := m.GetOrSpawn(object, src, dst, nil)
	w.Shutdown()

	select {
	case msg := <-m.StatusChannel():
		require.Equal(t, worker.MsgKindStopped, msg.Kind)
		assert.Equal(t, object, msg.Object)
	case <-time.After(time.Second):
		t.Fatal("expected a Stopped message")
	}
}

func TestMap_ToNotify(t *testing.T) {
	m := worker.NewMap(nil, testLog())
	src := mockchain.New("A")
	dst := mockchain.New("B")

	p1 := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-0"})
	p2 := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "C", SrcPort: "transfer", SrcChannel: "channel-1"})
	other := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "Z", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-2"})

	m.GetOrSpawn(p1, src, dst, nil)
	m.GetOrSpawn(p2, src, dst, nil)
	m.GetOrSpawn(other, mockchain.New("Z"), dst, nil)

	notify := m.ToNotify("A")
	assert.Len(t, notify, 2, "ToNotify must return every worker sourced from chain A")
}

func TestMap_ObjectsByTypeGroupsPerScenarioE(t *testing.T) {
	m := worker.NewMap(nil, testLog())
	src := mockchain.New("c")
	dst := mockchain.New("a")

	packet := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "c", DstChainID: "a", SrcPort: "transfer", SrcChannel: "channel-1"})
	client := ibc.NewClientObject(ibc.ClientObject{SrcChainID: "a", DstChainID: "c", DstClient: "client-1"})
	channel := ibc.NewChannelObject(ibc.ChannelObject{SrcChainID: "b", DstChainID: "c", SrcPort: "transfer", SrcChannel: "channel-0"})

	m.GetOrSpawn(packet, src, dst, nil)
	m.GetOrSpawn(client, src, dst, nil)
	m.GetOrSpawn(channel, src, dst, nil)

	byType := m.ObjectsByType()
	require.Len(t, byType[ibc.ObjectTypeClient], 1)
	require.Len(t, byType[ibc.ObjectTypeChannel], 1)
	require.Len(t, byType[ibc.ObjectTypePacket], 1)
}
