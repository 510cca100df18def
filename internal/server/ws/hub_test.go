package ws

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

type fakeBus struct {
	mu    sync.Mutex
	chans map[string]chan []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{chans: make(map[string]chan []byte)}
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan []byte, 16)
	f.chans[channel] = ch
	return ch, nil
}

func (f *fakeBus) send(channel string, payload []byte) {
	f.mu.Lock()
	ch := f.chans[channel]
	f.mu.Unlock()
	ch <- payload
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscribeToChannelForwardsToBroadcast(t *testing.T) {
	bus := newFakeBus()
	h := NewHub(bus, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.subscribeToChannel(ctx, domain.ChannelQuotes)

	// Subscribe registers asynchronously; wait for the bus channel.
	waitFor(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return bus.chans[domain.ChannelQuotes] != nil
	})

	bus.send(domain.ChannelQuotes, []byte(`{"type":"quote"}`))

	select {
	case msg := <-h.broadcast:
		if msg.channel != domain.ChannelQuotes {
			t.Errorf("channel = %q, want %q", msg.channel, domain.ChannelQuotes)
		}
		if string(msg.data) != `{"type":"quote"}` {
			t.Errorf("data = %s", msg.data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached the broadcast queue")
	}
}

func TestSubscribeToChannelExitsWhenBroadcastIsFull(t *testing.T) {
	// With Run stopped nothing drains broadcast; once the buffer is full a
	// forwarded message must not strand the goroutine past cancellation.
	bus := newFakeBus()
	h := NewHub(bus, testLogger())
	for i := 0; i < cap(h.broadcast); i++ {
		h.broadcast <- broadcastMsg{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.subscribeToChannel(ctx, domain.ChannelStatus)
		close(done)
	}()

	waitFor(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return bus.chans[domain.ChannelStatus] != nil
	})

	bus.send(domain.ChannelStatus, []byte(`{}`))
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribeToChannel did not return after cancel with a full broadcast queue")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never became true")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
