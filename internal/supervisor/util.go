package supervisor

import (
	"reflect"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/chain"
)

// tryRecvMultiple performs a single non-blocking, fair receive across
// every live subscription (spec §4.6's try_recv_multiple). Go's select
// cannot range over a dynamic slice of channels at compile time, so
// this builds the case list with reflect.Select, which also delivers
// the "fair selection among sources" the spec calls for: when multiple
// cases are ready, reflect.Select picks uniformly at random among them.
//
// ok is false if nothing was ready. When ok is true and closed is true,
// the chosen subscription's channel has been closed and should be
// dropped by the caller; boe is nil in that case.
func tryRecvMultiple(subs []subscriptionEntry) (entry subscriptionEntry, boe *chain.BatchOrError, closed bool, ok bool) {
	if len(subs) == 0 {
		return subscriptionEntry{}, nil, false, false
	}

	cases := make([]reflect.SelectCase, len(subs)+1)
	for i, s := range subs {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.sub)}
	}
	cases[len(subs)] = reflect.SelectCase{Dir: reflect.SelectDefault}

	chosen, recv, recvOK := reflect.Select(cases)
	if chosen == len(subs) {
		return subscriptionEntry{}, nil, false, false
	}

	entry = subs[chosen]
	if !recvOK {
		return entry, nil, true, true
	}

	boe, _ = recv.Interface().(*chain.BatchOrError)
	return entry, boe, false, true
}
