package ibc

import (
	"fmt"

	"github.com/pkg/errors"
)

// ObjectType is the discriminant returned by Object.Type.
type ObjectType string

const (
	ObjectTypeClient     ObjectType = "client"
	ObjectTypeConnection ObjectType = "connection"
	ObjectTypeChannel    ObjectType = "channel"
	ObjectTypePacket     ObjectType = "packet"
)

// Object is the canonical key identifying one cross-chain relationship
// a single worker is responsible for. Exactly one of the embedded
// variant fields is populated, discriminated by kind.
//
// Object is comparable (all fields are plain value types) so it can be
// used directly as a map key, matching the hashable-key requirement of
// spec §3.
type Object struct {
	kind ObjectType

	client     ClientObject
	connection ConnectionObject
	channel    ChannelObject
	packet     PacketObject
}

// ClientObject identifies client-update work: relay updates for
// DstClientID (living on DstChainID) whose header comes from SrcChainID.
type ClientObject struct {
	DstChainID ChainID
	DstClient  ClientID
	SrcChainID ChainID
}

// ConnectionObject identifies connection-handshake work.
type ConnectionObject struct {
	DstChainID   ChainID
	SrcChainID   ChainID
	SrcConnection ConnectionID
}

// ChannelObject identifies channel-handshake work.
type ChannelObject struct {
	DstChainID ChainID
	SrcChainID ChainID
	SrcChannel ChannelID
	SrcPort    PortID
}

// PacketObject identifies packet-flow (send/ack/timeout/close) work.
type PacketObject struct {
	DstChainID ChainID
	SrcChainID ChainID
	SrcChannel ChannelID
	SrcPort    PortID
}

// NewClientObject builds a Client Object.
func NewClientObject(o ClientObject) Object {
	return Object{kind: ObjectTypeClient, client: o}
}

// NewConnectionObject builds a Connection Object.
func NewConnectionObject(o ConnectionObject) Object {
	return Object{kind: ObjectTypeConnection, connection: o}
}

// NewChannelObject builds a Channel Object.
func NewChannelObject(o ChannelObject) Object {
	return Object{kind: ObjectTypeChannel, channel: o}
}

// NewPacketObject builds a Packet Object.
func NewPacketObject(o PacketObject) Object {
	return Object{kind: ObjectTypePacket, packet: o}
}

// Type returns the Object's discriminant.
func (o Object) Type() ObjectType { return o.kind }

// SrcChainID returns the source chain id of the relationship, regardless
// of variant.
func (o Object) SrcChainID() ChainID {
	switch o.kind {
	case ObjectTypeClient:
		return o.client.SrcChainID
	case ObjectTypeConnection:
		return o.connection.SrcChainID
	case ObjectTypeChannel:
		return o.channel.SrcChainID
	case ObjectTypePacket:
		return o.packet.SrcChainID
	default:
		return ""
	}
}

// DstChainID returns the destination chain id of the relationship,
// regardless of variant.
func (o Object) DstChainID() ChainID {
	switch o.kind {
	case ObjectTypeClient:
		return o.client.DstChainID
	case ObjectTypeConnection:
		return o.connection.DstChainID
	case ObjectTypeChannel:
		return o.channel.DstChainID
	case ObjectTypePacket:
		return o.packet.DstChainID
	default:
		return ""
	}
}

// AsClient returns the ClientObject payload; ok is false for other variants.
func (o Object) AsClient() (ClientObject, bool) {
	return o.client, o.kind == ObjectTypeClient
}

// AsConnection returns the ConnectionObject payload; ok is false for other variants.
func (o Object) AsConnection() (ConnectionObject, bool) {
	return o.connection, o.kind == ObjectTypeConnection
}

// AsChannel returns the ChannelObject payload; ok is false for other variants.
func (o Object) AsChannel() (ChannelObject, bool) {
	return o.channel, o.kind == ObjectTypeChannel
}

// AsPacket returns the PacketObject payload; ok is false for other variants.
func (o Object) AsPacket() (PacketObject, bool) {
	return o.packet, o.kind == ObjectTypePacket
}

// ShortName returns a stable, human-readable, sortable label used by
// DumpState and log lines.
func (o Object) ShortName() string {
	switch o.kind {
	case ObjectTypeClient:
		return fmt.Sprintf("client::%s/%s -> %s", o.client.SrcChainID, o.client.DstClient, o.client.DstChainID)
	case ObjectTypeConnection:
		return fmt.Sprintf("connection::%s/%s -> %s", o.connection.SrcChainID, o.connection.SrcConnection, o.connection.DstChainID)
	case ObjectTypeChannel:
		return fmt.Sprintf("channel::%s/%s/%s -> %s", o.channel.SrcChainID, o.channel.SrcPort, o.channel.SrcChannel, o.channel.DstChainID)
	case ObjectTypePacket:
		return fmt.Sprintf("packet::%s/%s/%s -> %s", o.packet.SrcChainID, o.packet.SrcPort, o.packet.SrcChannel, o.packet.DstChainID)
	default:
		return "object::<invalid>"
	}
}

func (o Object) String() string { return o.ShortName() }

// ErrCounterpartyNotResolved is returned by the For*/*FromChanOpenEvents
// constructors when the source chain's handle cannot resolve the
// counterparty identifiers needed to build the Object (e.g. the client
// underlying a channel). It is a ClassificationError per spec §7: the
// caller drops the single event, never the whole batch.
var ErrCounterpartyNotResolved = errors.New("could not resolve counterparty identifiers for object")
