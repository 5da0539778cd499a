package bus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsBus adapts the bus contract onto a NATS connection.
type NatsBus struct {
	nc *nats.Conn
}

// Connect dials NATS, retrying while the broker comes up.
func Connect(url string) (*nats.Conn, error) {
	var nc *nats.Conn
	var err error
	for attempt := 1; attempt <= 30; attempt++ {
		nc, err = nats.Connect(url,
			nats.Name("chat-server"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err == nil {
			log.Printf("Connected to NATS at %s", nc.ConnectedUrl())
			return nc, nil
		}
		log.Printf("Waiting for NATS (attempt %d): %v", attempt, err)
		time.Sleep(2 * time.Second)
	}
	return nil, err
}

func NewNatsBus(nc *nats.Conn) *NatsBus {
	return &NatsBus{nc: nc}
}

func (b *NatsBus) PublishChat(ctx context.Context, event, roomID string, data interface{}) error {
	payload, err := marshalChat(event, roomID, data)
	if err != nil {
		return err
	}
	return b.nc.Publish(SubjectChat, payload)
}

func (b *NatsBus) PublishUser(ctx context.Context, userID, event string, data interface{}) error {
	payload, err := marshalUser(userID, event, data)
	if err != nil {
		return err
	}
	return b.nc.Publish(SubjectUser, payload)
}

// ConsumeChat subscribes to the chat subject and dispatches events from a
// dedicated goroutine until ctx is cancelled. Events are received on a
// channel and handled one at a time, so per-publisher order is kept and a
// failing event cannot take the loop down.
func (b *NatsBus) ConsumeChat(ctx context.Context, handler ChatHandler) error {
	ch := make(chan *nats.Msg, 256)
	sub, err := b.nc.ChanSubscribe(SubjectChat, ch)
	if err != nil {
		return err
	}
	go consume(ctx, sub, ch, func(msg *nats.Msg) {
		var evt ChatEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Printf("bus: dropping malformed chat event: %v", err)
			return
		}
		if err := handler(ctx, evt); err != nil {
			log.Printf("bus: chat event %q failed: %v", evt.Event, err)
		}
	})
	return nil
}

// ConsumeUser is ConsumeChat for the user-targeted subject.
func (b *NatsBus) ConsumeUser(ctx context.Context, handler UserHandler) error {
	ch := make(chan *nats.Msg, 256)
	sub, err := b.nc.ChanSubscribe(SubjectUser, ch)
	if err != nil {
		return err
	}
	go consume(ctx, sub, ch, func(msg *nats.Msg) {
		var evt UserEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Printf("bus: dropping malformed user event: %v", err)
			return
		}
		if err := handler(ctx, evt); err != nil {
			log.Printf("bus: user event %q failed: %v", evt.Event, err)
		}
	})
	return nil
}

func consume(ctx context.Context, sub *nats.Subscription, ch chan *nats.Msg, dispatch func(*nats.Msg)) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			dispatchSafely(dispatch, msg)
		}
	}
}

// dispatchSafely keeps a panicking handler from killing the consumer.
func dispatchSafely(dispatch func(*nats.Msg), msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: recovered from handler panic: %v", r)
		}
	}()
	dispatch(msg)
}
