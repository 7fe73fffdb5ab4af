package event

import (
	"sync"

	"github.com/Raunaque97/beat-exchange/internal/domain"
)

// Order submissions are the high-frequency event; sync.Pool reuse keeps GC
// pressure off the gateway hotpath.
//
// Usage:
//
//	ev := AcquireOrderSubmitted()
//	ev.Pair = pair
//	// ... send into the sequencer inbox; release after the reply ...
//	ReleaseOrderSubmitted(ev)
var orderSubmittedPool = sync.Pool{
	New: func() interface{} {
		return &OrderSubmitted{}
	},
}

// AcquireOrderSubmitted gets an OrderSubmitted from the pool. The returned
// event has zero values and must be initialized.
func AcquireOrderSubmitted() *OrderSubmitted {
	return orderSubmittedPool.Get().(*OrderSubmitted)
}

// ReleaseOrderSubmitted returns an OrderSubmitted to the pool after resetting
// every field. The Reply channel is dropped, never closed here; the replier
// owns it.
func ReleaseOrderSubmitted(ev *OrderSubmitted) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Pair = domain.TokenPair{}
	ev.Side = domain.Buy
	ev.Order = domain.Order{}
	ev.Sender = ""
	ev.Reply = nil

	orderSubmittedPool.Put(ev)
}
