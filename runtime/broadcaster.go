package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var _ contract.IBroadcaster = (*Broadcaster)(nil)

const defaultSendTimeout = 5 * time.Second

// Broadcaster fans persisted messages out to registered connections.
//
// Delivery is best effort: each recipient gets its own goroutine bounded by sendTimeout,
// and a recipient that fails or hangs is unregistered and closed without affecting the others.
// There are no retries and no ordering guarantees across recipients.
type Broadcaster struct {
	log         *slog.Logger
	registry    contract.IRegistry
	mode        domain.RoutingMode
	sendTimeout time.Duration
	metrics     *observability.Metrics
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, mode domain.RoutingMode,
	sendTimeout time.Duration, metrics *observability.Metrics) *Broadcaster {
	// A non-positive timeout would expire every send before it starts.
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Broadcaster{
		log:         log,
		registry:    registry,
		mode:        mode,
		sendTimeout: sendTimeout,
		metrics:     metrics,
	}
}

// Route delivers a persisted message according to the routing mode and returns
// the number of connections that accepted it.
func (b *Broadcaster) Route(ctx context.Context, msg domain.ChatMessage) int {
	evt := event.NewChatMessage(msg)
	switch b.mode {
	case domain.RoutingConversation:
		start := time.Now()
		defer b.metrics.ObserveBroadcast(string(b.mode), start)
		return b.deliver(ctx, b.registry.For(msg.SenderID, msg.ReceiverID), evt)
	default:
		return b.BroadcastAll(ctx, evt)
	}
}

// BroadcastAll delivers evt to every connection of a registry snapshot.
func (b *Broadcaster) BroadcastAll(ctx context.Context, evt event.Outbound) int {
	start := time.Now()
	defer b.metrics.ObserveBroadcast(string(domain.RoutingBroadcast), start)
	return b.deliver(ctx, b.registry.All(), evt)
}

// SendTo is a unicast; failures are logged and reported as false, never returned.
func (b *Broadcaster) SendTo(ctx context.Context, conn contract.Connection, evt event.Outbound) bool {
	ok := b.send(ctx, conn, evt) == nil
	b.metrics.Delivery(ok)
	return ok
}

func (b *Broadcaster) deliver(ctx context.Context, recipients iter.Seq2[contract.Handle, contract.Connection], evt event.Outbound) int {
	var wg sync.WaitGroup
	var delivered atomic.Int64

	for h, conn := range recipients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.send(ctx, conn, evt); err != nil {
				b.evict(h, conn)
				b.metrics.Delivery(false)
				return
			}
			b.metrics.Delivery(true)
			delivered.Add(1)
		}()
	}
	wg.Wait()
	return int(delivered.Load())
}

// send bounds a single write by sendTimeout even when the connection ignores ctx.
func (b *Broadcaster) send(ctx context.Context, conn contract.Connection, evt event.Outbound) error {
	sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- conn.Send(sendCtx, evt)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-sendCtx.Done():
		err = fmt.Errorf("%w: %v", errors.ErrTransport, sendCtx.Err())
	}
	if err != nil {
		b.metrics.Error("transport")
		b.log.Warn("Delivery failed",
			"connection_id", conn.ID(),
			"event", evt.Event,
			"error", err)
	}
	return err
}

func (b *Broadcaster) evict(h contract.Handle, conn contract.Connection) {
	if b.registry.Unregister(h) {
		b.metrics.ConnectionClosed("delivery_failure", b.registry.Len())
		b.log.Info("Connection evicted after failed delivery", "connection_id", conn.ID())
	}
	_ = conn.Close()
}
