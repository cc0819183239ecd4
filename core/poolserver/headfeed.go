package poolserver

import (
	"sync"

	"github.com/aa-bundler/opcore/chain"
)

// headSubscriberBuffer is the per-subscriber channel depth; a slower
// consumer than this starts losing heads and counting lag rather than
// blocking the publisher, matching the "bounded broadcast, lossy on lag"
// contract in §4.5/§5.
const headSubscriberBuffer = 8

// HeadEvent is delivered to a NewHeads subscriber. When Lagged is nonzero,
// the subscriber missed that many heads before this one; it is expected to
// log and continue, never to treat lag as fatal.
type HeadEvent struct {
	Head   chain.NewHead
	Lagged uint64
}

// headFeed is a bounded, multi-subscriber broadcaster of new heads. It is
// the concrete implementation behind the "lossy broadcast stream" named in
// §6; event.Feed from the ecosystem's pub-sub package has no notion of
// subscriber lag, so lag counting is layered on top of a plain buffered
// channel per subscriber here instead.
type headFeed struct {
	mu          sync.Mutex
	subscribers map[*headSubscription]struct{}
}

func newHeadFeed() *headFeed {
	return &headFeed{subscribers: make(map[*headSubscription]struct{})}
}

type headSubscription struct {
	feed   *headFeed
	ch     chan HeadEvent
	lagged uint64
}

// subscribe registers a fresh subscriber and returns its event channel and
// an unsubscribe function.
func (f *headFeed) subscribe() (<-chan HeadEvent, func()) {
	sub := &headSubscription{feed: f, ch: make(chan HeadEvent, headSubscriberBuffer)}
	f.mu.Lock()
	f.subscribers[sub] = struct{}{}
	f.mu.Unlock()

	unsubscribe := func() {
		f.mu.Lock()
		delete(f.subscribers, sub)
		f.mu.Unlock()
		close(sub.ch)
	}
	return sub.ch, unsubscribe
}

// publish delivers head to every subscriber, non-blocking: a subscriber
// whose channel is full has its lag counter incremented instead, and the
// next delivery that succeeds carries the accumulated lag.
func (f *headFeed) publish(head chain.NewHead) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subscribers {
		event := HeadEvent{Head: head, Lagged: sub.lagged}
		select {
		case sub.ch <- event:
			sub.lagged = 0
		default:
			sub.lagged++
		}
	}
}

func (f *headFeed) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
