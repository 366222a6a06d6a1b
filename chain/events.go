package chain

import (
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/eth2030/ethlayer/metrics"
)

// Segment is a contiguous run of blocks with their receipts. Receipts[i]
// belongs to Blocks[i].
type Segment struct {
	Blocks   []*types.Block
	Receipts []types.Receipts
}

// Tip returns the last block of the segment, or nil when empty.
func (s *Segment) Tip() *types.Block {
	if s == nil || len(s.Blocks) == 0 {
		return nil
	}
	return s.Blocks[len(s.Blocks)-1]
}

// CanonStateNotification announces a change of the canonical chain. Old is
// nil for a plain commit; a reorg carries both the reverted and the new
// segment.
type CanonStateNotification struct {
	Old *Segment
	New *Segment
}

// IsReorg reports whether blocks were reverted.
func (n CanonStateNotification) IsReorg() bool { return n.Old != nil && len(n.Old.Blocks) > 0 }

// Committed returns the segment that became canonical.
func (n CanonStateNotification) Committed() *Segment { return n.New }

// Reverted returns the segment that left the canonical chain, if any.
func (n CanonStateNotification) Reverted() *Segment { return n.Old }

// Tip returns the new head block.
func (n CanonStateNotification) Tip() *types.Block { return n.New.Tip() }

// CanonStateSubscriptions is a source of canonical-state notifications.
// Subscribers must keep draining ch; the Err channel closes when the
// source goes away.
type CanonStateSubscriptions interface {
	SubscribeToCanonicalState(ch chan<- CanonStateNotification) event.Subscription
}

// NoopCanonStateSubscriptions has no publisher. Its subscriptions are
// already closed when returned and never deliver anything.
type NoopCanonStateSubscriptions struct{}

func (NoopCanonStateSubscriptions) SubscribeToCanonicalState(chan<- CanonStateNotification) event.Subscription {
	return event.NewSubscription(func(<-chan struct{}) error { return nil })
}

// CanonStateBroadcaster fans notifications out to every subscriber. Send
// blocks until all current subscribers have taken the value.
type CanonStateBroadcaster struct {
	feed  event.FeedOf[CanonStateNotification]
	scope event.SubscriptionScope
}

func (b *CanonStateBroadcaster) SubscribeToCanonicalState(ch chan<- CanonStateNotification) event.Subscription {
	return b.scope.Track(b.feed.Subscribe(ch))
}

// Send delivers n and returns the number of subscribers reached.
func (b *CanonStateBroadcaster) Send(n CanonStateNotification) int {
	metrics.CanonNotifications.Inc()
	return b.feed.Send(n)
}

// Count returns the number of live subscriptions.
func (b *CanonStateBroadcaster) Count() int { return b.scope.Count() }

// Close ends every subscription.
func (b *CanonStateBroadcaster) Close() { b.scope.Close() }
