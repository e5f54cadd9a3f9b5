package ibc

import "github.com/pkg/errors"

// SourceChain is the narrow slice of chain.Handle the classification
// constructors below need: the chain that emitted the event being
// classified, used to resolve counterparty identifiers the event's own
// attributes don't carry (spec §4.3). Any chain.Handle value satisfies
// this interface.
type SourceChain interface {
	// ID returns this chain's own id.
	ID() ChainID

	// ClientForConnection returns the client id underlying the given
	// connection, as known locally to this chain.
	ClientForConnection(connectionID ConnectionID) (ClientID, error)

	// CounterpartyChainIDForConnection returns the chain id on the
	// other end of the given local connection.
	CounterpartyChainIDForConnection(connectionID ConnectionID) (ChainID, error)

	// CounterpartyChainIDForChannel returns the chain id on the other
	// end of the given local channel.
	CounterpartyChainIDForChannel(portID PortID, channelID ChannelID) (ChainID, error)
}

// ForUpdateClient builds the Client Object a client-update event
// pertains to. The destination chain and client id come from the event
// itself; the source chain id is whichever chain emitted the update.
func ForUpdateClient(attrs UpdateClientAttributes, src SourceChain) (Object, error) {
	return NewClientObject(ClientObject{
		DstChainID: attrs.DstChainID,
		DstClient:  attrs.DstClientID,
		SrcChainID: src.ID(),
	}), nil
}

// ConnectionFromConnOpenEvents builds the Connection Object an
// OpenInit/Try/AckConnection event pertains to. The destination chain
// is the counterparty already carried on the attribute.
func ConnectionFromConnOpenEvents(attrs ConnectionAttributes, src SourceChain) (Object, error) {
	if attrs.CounterpartyChainID == "" {
		return Object{}, errors.Wrap(ErrCounterpartyNotResolved, "connection event missing counterparty chain id")
	}
	return NewConnectionObject(ConnectionObject{
		DstChainID:    attrs.CounterpartyChainID,
		SrcChainID:    src.ID(),
		SrcConnection: attrs.ConnectionID,
	}), nil
}

// ChannelFromChanOpenEvents builds the Channel Object an
// OpenInit/TryChannel (or, with handshake enabled, OpenAckChannel)
// event pertains to, consulting src to resolve the counterparty chain
// id for the channel's underlying connection.
func ChannelFromChanOpenEvents(attrs ChannelAttributes, src SourceChain) (Object, error) {
	dst, err := src.CounterpartyChainIDForConnection(attrs.ConnectionID)
	if err != nil {
		return Object{}, errors.Wrapf(ErrCounterpartyNotResolved, "channel %s/%s: %s", attrs.PortID, attrs.ChannelID, err)
	}
	return NewChannelObject(ChannelObject{
		DstChainID: dst,
		SrcChainID: src.ID(),
		SrcChannel: attrs.ChannelID,
		SrcPort:    attrs.PortID,
	}), nil
}

// ClientFromChanOpenEvents builds the Client Object underlying a
// channel, consulting src to resolve the client underlying the
// channel's connection and that client's counterparty chain.
func ClientFromChanOpenEvents(attrs ChannelAttributes, src SourceChain) (Object, error) {
	clientID, err := src.ClientForConnection(attrs.ConnectionID)
	if err != nil {
		return Object{}, errors.Wrapf(ErrCounterpartyNotResolved, "client underlying channel %s/%s: %s", attrs.PortID, attrs.ChannelID, err)
	}
	dst, err := src.CounterpartyChainIDForConnection(attrs.ConnectionID)
	if err != nil {
		return Object{}, errors.Wrapf(ErrCounterpartyNotResolved, "counterparty of channel %s/%s: %s", attrs.PortID, attrs.ChannelID, err)
	}
	return NewClientObject(ClientObject{
		DstChainID: src.ID(),
		DstClient:  clientID,
		SrcChainID: dst,
	}), nil
}

// PacketFromChanOpenEvents builds the Packet Object for the channel's
// steady-state packet-flow work, becoming relevant once the channel is
// open (or ack'd) enough to carry packets.
func PacketFromChanOpenEvents(attrs ChannelAttributes, src SourceChain) (Object, error) {
	dst, err := src.CounterpartyChainIDForConnection(attrs.ConnectionID)
	if err != nil {
		return Object{}, errors.Wrapf(ErrCounterpartyNotResolved, "packet flow for channel %s/%s: %s", attrs.PortID, attrs.ChannelID, err)
	}
	return NewPacketObject(PacketObject{
		DstChainID: dst,
		SrcChainID: src.ID(),
		SrcChannel: attrs.ChannelID,
		SrcPort:    attrs.PortID,
	}), nil
}

// ForSendPacket builds the Packet Object a SendPacket event pertains
// to. src is the chain the packet was sent from.
func ForSendPacket(attrs PacketAttributes, src SourceChain) (Object, error) {
	return forPacketFromSendingSide(attrs, src)
}

// ForTimeoutPacket builds the Packet Object a TimeoutPacket event
// pertains to. Timeouts are proven and processed on the original
// sending chain, so the mapping is identical to ForSendPacket.
func ForTimeoutPacket(attrs PacketAttributes, src SourceChain) (Object, error) {
	return forPacketFromSendingSide(attrs, src)
}

// ForCloseInitChannel builds the Packet Object a CloseInitChannel
// event pertains to. The channel closes on the emitting (sending) side,
// so src is the Object's source; the Object is the one
// PacketFromChanOpenEvents builds, with the counterparty chain resolved
// from the channel's connection.
func ForCloseInitChannel(attrs ChannelAttributes, src SourceChain) (Object, error) {
	return PacketFromChanOpenEvents(attrs, src)
}

func forPacketFromSendingSide(attrs PacketAttributes, src SourceChain) (Object, error) {
	dst, err := src.CounterpartyChainIDForChannel(attrs.SrcPort, attrs.SrcChannel)
	if err != nil {
		return Object{}, errors.Wrapf(ErrCounterpartyNotResolved, "packet on %s/%s: %s", attrs.SrcPort, attrs.SrcChannel, err)
	}
	return NewPacketObject(PacketObject{
		DstChainID: dst,
		SrcChainID: src.ID(),
		SrcChannel: attrs.SrcChannel,
		SrcPort:    attrs.SrcPort,
	}), nil
}

// ForWriteAck builds the Packet Object a WriteAcknowledgement event
// pertains to. The event is emitted by the chain that *received* the
// packet, so src/dst are swapped relative to ForSendPacket: the
// counterparty chain id is resolved from the local (destination-side)
// port/channel carried on the attribute, since the original sender's
// port/channel lives on a chain this handle cannot query.
func ForWriteAck(attrs PacketAttributes, src SourceChain) (Object, error) {
	originalSender, err := src.CounterpartyChainIDForChannel(attrs.DstPort, attrs.DstChannel)
	if err != nil {
		return Object{}, errors.Wrapf(ErrCounterpartyNotResolved, "ack for %s/%s: %s", attrs.DstPort, attrs.DstChannel, err)
	}
	return NewPacketObject(PacketObject{
		DstChainID: src.ID(),
		SrcChainID: originalSender,
		SrcChannel: attrs.SrcChannel,
		SrcPort:    attrs.SrcPort,
	}), nil
}
