package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const DefaultBufferSize = 100

// Bus fans every published payload out to all current subscriptions.
// Publish never blocks: a full subscription loses its oldest payload.
type Bus struct {
	logger *slog.Logger

	mu            sync.RWMutex
	subscriptions map[uint64]*Subscription
	nextID        uint64
	closed        bool
}

func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger:        logger.With("component", "eventbus"),
		subscriptions: make(map[uint64]*Subscription),
	}
}

// Subscription receives payloads in publication order.
type Subscription struct {
	id      uint64
	bus     *Bus
	ch      chan []byte
	dropped atomic.Uint64
	once    sync.Once
}

// C - payload stream. It is closed when the subscription or the bus is closed.
func (that *Subscription) C() <-chan []byte {
	return that.ch
}

// TakeDropped - number of payloads dropped since the previous call.
func (that *Subscription) TakeDropped() uint64 {
	return that.dropped.Swap(0)
}

// Close - stops delivery. Safe to call more than once.
func (that *Subscription) Close() {
	that.bus.unsubscribe(that)
}

func (that *Subscription) deliver(payload []byte) {
	for {
		select {
		case that.ch <- payload:
			return
		default:
		}

		select {
		case <-that.ch:
			that.dropped.Add(1)
		default:
		}
	}
}

// Subscribe - registers a subscription holding up to buffer unread payloads.
func (that *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.nextID++
	sub := &Subscription{
		id:  that.nextID,
		bus: that,
		ch:  make(chan []byte, buffer),
	}

	if that.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}

	that.subscriptions[sub.id] = sub
	that.logger.Debug("subscribed", "subscriptionID", sub.id, "subscribers", len(that.subscriptions))

	return sub
}

// Publish - hands payload to every subscription without waiting on consumers.
func (that *Bus) Publish(payload []byte) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, sub := range that.subscriptions {
		sub.deliver(payload)
	}
}

func (that *Bus) unsubscribe(sub *Subscription) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.subscriptions[sub.id]; ok {
		delete(that.subscriptions, sub.id)
		that.logger.Debug("unsubscribed", "subscriptionID", sub.id, "subscribers", len(that.subscriptions))
	}

	sub.once.Do(func() { close(sub.ch) })
}

// Len - number of live subscriptions.
func (that *Bus) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.subscriptions)
}

// Close - closes every subscription; later subscriptions start closed.
func (that *Bus) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	for id, sub := range that.subscriptions {
		sub.once.Do(func() { close(sub.ch) })
		delete(that.subscriptions, id)
	}
}
