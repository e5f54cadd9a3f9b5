package ibc_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

func TestObject_ComparableAsMapKey(t *testing.T) {
	a := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-0"})
	b := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-0"})
	c := ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-1"})

	m := map[ibc.Object]int{a: 1}
	m[b] = 2 // same key, overwrites
	assert.Len(t, m, 1)

	m[c] = 3
	assert.Len(t, m, 2)
}

func TestObject_AsVariantDiscriminatesKind(t *testing.T) {
	client := ibc.NewClientObject(ibc.ClientObject{SrcChainID: "A", DstChainID: "B", DstClient: "07-tendermint-0"})

	_, ok := client.AsPacket()
	assert.False(t, ok)
	_, ok = client.AsConnection()
	assert.False(t, ok)
	co, ok := client.AsClient()
	assert.True(t, ok)
	assert.Equal(t, ibc.ClientID("07-tendermint-0"), co.DstClient)

	assert.Equal(t, ibc.ObjectTypeClient, client.Type())
	assert.Equal(t, ibc.ChainID("A"), client.SrcChainID())
	assert.Equal(t, ibc.ChainID("B"), client.DstChainID())
}

func TestObject_ShortNameIsStableAndSortable(t *testing.T) {
	objs := []ibc.Object{
		ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "B", DstChainID: "A", SrcPort: "transfer", SrcChannel: "channel-1"}),
		ibc.NewPacketObject(ibc.PacketObject{SrcChainID: "A", DstChainID: "B", SrcPort: "transfer", SrcChannel: "channel-0"}),
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].ShortName() < objs[j].ShortName() })
	assert.Contains(t, objs[0].ShortName(), "channel-0")
	assert.Contains(t, objs[1].ShortName(), "channel-1")
}
