package ibc

// EventKind enumerates the IbcEvent variants the classifier understands.
// Kinds outside this set are ignored by the classifier per spec §3.
type EventKind string

const (
	EventNewBlock             EventKind = "NewBlock"
	EventUpdateClient         EventKind = "UpdateClient"
	EventOpenInitConnection   EventKind = "OpenInitConnection"
	EventOpenTryConnection    EventKind = "OpenTryConnection"
	EventOpenAckConnection    EventKind = "OpenAckConnection"
	EventOpenInitChannel      EventKind = "OpenInitChannel"
	EventOpenTryChannel       EventKind = "OpenTryChannel"
	EventOpenAckChannel       EventKind = "OpenAckChannel"
	EventOpenConfirmChannel   EventKind = "OpenConfirmChannel"
	EventSendPacket           EventKind = "SendPacket"
	EventTimeoutPacket        EventKind = "TimeoutPacket"
	EventWriteAcknowledgement EventKind = "WriteAcknowledgement"
	EventCloseInitChannel     EventKind = "CloseInitChannel"
)

// IbcEvent is a single event emitted by a chain. Event kinds outside
// EventKind's enumeration are represented with an opaque Kind value and
// are ignored by the classifier (spec §4.4, "Other | Ignore").
type IbcEvent struct {
	Kind   EventKind
	Height Height

	// Exactly one of the following is populated, selected by Kind.
	UpdateClient     *UpdateClientAttributes
	Connection       *ConnectionAttributes
	Channel          *ChannelAttributes
	Packet           *PacketAttributes
}

// UpdateClientAttributes carries the fields needed to resolve the
// Client Object a client-update event pertains to.
type UpdateClientAttributes struct {
	DstClientID ClientID
	DstChainID  ChainID
}

// ConnectionAttributes carries the fields needed to resolve the
// Connection Object a connection-handshake event pertains to.
type ConnectionAttributes struct {
	ConnectionID       ConnectionID
	ClientID           ClientID
	CounterpartyChainID ChainID
}

// ChannelAttributes carries the fields needed to resolve the Channel,
// underlying-Client, and Packet Objects a channel-handshake event
// pertains to. The counterparty chain id is not carried directly —
// it is resolved from ConnectionID via SourceChain, since the channel
// handshake messages only ever name connection and channel/port ids.
type ChannelAttributes struct {
	PortID       PortID
	ChannelID    ChannelID
	ConnectionID ConnectionID
}

// PacketAttributes carries the fields needed to resolve the Packet
// Object a packet-flow event pertains to. SrcPort/SrcChannel and
// DstPort/DstChannel always name the original send direction, whether
// the event was emitted by the sending chain (SendPacket, TimeoutPacket)
// or the receiving chain (WriteAcknowledgement).
type PacketAttributes struct {
	Sequence   Sequence
	SrcPort    PortID
	SrcChannel ChannelID
	DstPort    PortID
	DstChannel ChannelID
}

// EventBatch is an atomic group of events emitted by one chain at a
// specific height. Immutable after construction; shared by reference
// among consumers (spec §3, §9).
type EventBatch struct {
	ChainID ChainID
	Height  Height
	Events  []IbcEvent
}
