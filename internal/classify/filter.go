package classify

import (
	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

// RelayOnChannel reports whether (portID, channelID) on chainID is
// admitted for relay (spec §4.7): true when the global filter is off,
// or when the chain's filter set contains the pair.
func RelayOnChannel(cfg *config.Config, chainID ibc.ChainID, portID ibc.PortID, channelID ibc.ChannelID) bool {
	if !cfg.Filter {
		return true
	}
	cc, ok := cfg.FindChain(chainID)
	if !ok {
		return false
	}
	return cc.AllowsChannel(portID, channelID)
}

// RelayOnObject reports whether object is admitted for relay (spec
// §4.6's process_batch step 3): client and connection Objects are
// always allowed; channel and packet Objects consult RelayOnChannel
// against the Object's source (port, channel).
func RelayOnObject(cfg *config.Config, chainID ibc.ChainID, object ibc.Object) bool {
	switch object.Type() {
	case ibc.ObjectTypeClient, ibc.ObjectTypeConnection:
		return true
	case ibc.ObjectTypeChannel:
		ch, _ := object.AsChannel()
		return RelayOnChannel(cfg, chainID, ch.SrcPort, ch.SrcChannel)
	case ibc.ObjectTypePacket:
		p, _ := object.AsPacket()
		return RelayOnChannel(cfg, chainID, p.SrcPort, p.SrcChannel)
	default:
		return false
	}
}
