package worker

import "github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"

// MsgKind discriminates WorkerMsg variants. Stopped is the only variant
// in this spec (spec §6).
type MsgKind string

const MsgKindStopped MsgKind = "stopped"

// Msg is the status channel payload a worker posts before exiting.
type Msg struct {
	Kind   MsgKind
	Object ibc.Object
}

// Stopped builds a Stopped status message for object.
func Stopped(object ibc.Object) Msg {
	return Msg{Kind: MsgKindStopped, Object: object}
}

// Delivery is one unit of work handed to a worker's inbox: the events
// a single batch produced for the worker's Object, tagged with the
// batch's originating height and chain id (spec §4.5).
type Delivery struct {
	Height  ibc.Height
	ChainID ibc.ChainID
	Events  []ibc.IbcEvent
}
