// Package classify implements the event classifier (spec §4.4): a pure
// function mapping one EventBatch, plus the chain that emitted it, to a
// CollectedEvents keyed by Object.
package classify

import (
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

// CollectedEvents is the classifier's pure output: at most one NewBlock
// event, plus every other event bucketed by the Object it pertains to.
type CollectedEvents struct {
	Height    ibc.Height
	ChainID   ibc.ChainID
	NewBlock  *ibc.IbcEvent
	PerObject map[ibc.Object][]ibc.IbcEvent
}

func newCollectedEvents(batch *ibc.EventBatch) *CollectedEvents {
	return &CollectedEvents{
		Height:    batch.Height,
		ChainID:   batch.ChainID,
		PerObject: make(map[ibc.Object][]ibc.IbcEvent),
	}
}

func (c *CollectedEvents) append(object ibc.Object, event ibc.IbcEvent) {
	c.PerObject[object] = append(c.PerObject[object], event)
}

// HasWorker reports whether a worker is already registered for object.
// CollectEvents takes this as a narrow callback rather than depending on
// internal/worker directly, since UpdateClient events are retained only
// for Objects with an existing worker (spec §4.4) but the classifier
// itself must stay a pure function of its inputs.
type HasWorker func(object ibc.Object) bool

// CollectEvents walks batch in order and applies the event-kind table
// from spec §4.4. handshakeEnabled gates connection- and channel-open
// events; hasWorker gates UpdateClient retention. Classification
// failures (an Object that cannot be resolved from src) drop the single
// event; they never abort the batch.
func CollectEvents(src ibc.SourceChain, batch *ibc.EventBatch, handshakeEnabled bool, hasWorker HasWorker) *CollectedEvents {
	out := newCollectedEvents(batch)

	for _, event := range batch.Events {
		switch event.Kind {
		case ibc.EventNewBlock:
			e := event
			out.NewBlock = &e

		case ibc.EventUpdateClient:
			if event.UpdateClient == nil {
				continue
			}
			object, err := ibc.ForUpdateClient(*event.UpdateClient, src)
			if err != nil {
				continue
			}
			if hasWorker(object) {
				out.append(object, event)
			}

		case ibc.EventOpenInitConnection, ibc.EventOpenTryConnection, ibc.EventOpenAckConnection:
			if !handshakeEnabled || event.Connection == nil {
				continue
			}
			object, err := ibc.ConnectionFromConnOpenEvents(*event.Connection, src)
			if err != nil {
				continue
			}
			out.append(object, event)

		case ibc.EventOpenInitChannel, ibc.EventOpenTryChannel:
			if !handshakeEnabled || event.Channel == nil {
				continue
			}
			object, err := ibc.ChannelFromChanOpenEvents(*event.Channel, src)
			if err != nil {
				continue
			}
			out.append(object, event)

		case ibc.EventOpenAckChannel:
			if event.Channel == nil {
				continue
			}
			// Always build client and packet Objects regardless of
			// handshake_enabled — the channel is open enough to carry
			// steady-state work (spec §9 Open Question: do not gate
			// this on the flag).
			if clientObj, err := ibc.ClientFromChanOpenEvents(*event.Channel, src); err == nil {
				out.append(clientObj, event)
			}
			if packetObj, err := ibc.PacketFromChanOpenEvents(*event.Channel, src); err == nil {
				out.append(packetObj, event)
			}
			if handshakeEnabled {
				if channelObj, err := ibc.ChannelFromChanOpenEvents(*event.Channel, src); err == nil {
					out.append(channelObj, event)
				}
			}

		case ibc.EventOpenConfirmChannel:
			if event.Channel == nil {
				continue
			}
			if clientObj, err := ibc.ClientFromChanOpenEvents(*event.Channel, src); err == nil {
				out.append(clientObj, event)
			}
			if packetObj, err := ibc.PacketFromChanOpenEvents(*event.Channel, src); err == nil {
				out.append(packetObj, event)
			}

		case ibc.EventSendPacket:
			if event.Packet == nil {
				continue
			}
			if object, err := ibc.ForSendPacket(*event.Packet, src); err == nil {
				out.append(object, event)
			}

		case ibc.EventTimeoutPacket:
			if event.Packet == nil {
				continue
			}
			if object, err := ibc.ForTimeoutPacket(*event.Packet, src); err == nil {
				out.append(object, event)
			}

		case ibc.EventWriteAcknowledgement:
			if event.Packet == nil {
				continue
			}
			if object, err := ibc.ForWriteAck(*event.Packet, src); err == nil {
				out.append(object, event)
			}

		case ibc.EventCloseInitChannel:
			if event.Channel == nil {
				continue
			}
			if object, err := ibc.ForCloseInitChannel(*event.Channel, src); err == nil {
				out.append(object, event)
			}

		default:
			// Other | Ignore.
		}
	}

	return out
}
