package supervisor

import (
	"sort"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

// objectTypeOrder fixes the iteration order DumpState presents worker
// groups in (spec §4.6, Scenario E).
var objectTypeOrder = []ibc.ObjectType{
	ibc.ObjectTypeClient,
	ibc.ObjectTypeConnection,
	ibc.ObjectTypeChannel,
	ibc.ObjectTypePacket,
}

// SupervisorState is the DumpState reply payload (spec §6): sorted
// chain ids, and workers grouped by Object type with each group sorted
// by ShortName.
type SupervisorState struct {
	Chains  []ibc.ChainID
	Workers map[ibc.ObjectType][]ibc.Object
}

// OrderedWorkerTypes returns the Object types present in s.Workers in
// the canonical client/connection/channel/packet order.
func (s SupervisorState) OrderedWorkerTypes() []ibc.ObjectType {
	var out []ibc.ObjectType
	for _, t := range objectTypeOrder {
		if _, ok := s.Workers[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (s *Supervisor) dumpState() SupervisorState {
	chainIDs := s.registry.ChainIDs()
	sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

	return SupervisorState{
		Chains:  chainIDs,
		Workers: s.workers.ObjectsByType(),
	}
}
