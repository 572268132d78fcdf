package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/schwenzfeuer/wunschkiste-sub000/pkg/protocol"
)

// fakeClient records what the room delivers to it.
type fakeClient struct {
	id      string
	roomKey string

	mu       sync.Mutex
	received [][]byte
	failSend bool
	closed   bool
}

func newFakeClient(id, roomKey string) *fakeClient {
	return &fakeClient{id: id, roomKey: roomKey}
}

func (f *fakeClient) ID() string      { return f.id }
func (f *fakeClient) RoomKey() string { return f.roomKey }

func (f *fakeClient) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("send failed")
	}
	f.received = append(f.received, data)
	return nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeClient) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.received))
	copy(out, f.received)
	return out
}

func TestRoomBroadcastDeliversExactlyOnce(t *testing.T) {
	room := newRoom("abc123")
	clients := make([]*fakeClient, 5)
	for i := range clients {
		clients[i] = newFakeClient(fmt.Sprintf("conn-%d", i), "abc123")
		room.Add(clients[i])
	}

	room.Broadcast(context.Background(), protocol.Invalidate())

	for _, c := range clients {
		msgs := c.messages()
		if len(msgs) != 1 {
			t.Fatalf("client %s received %d messages, want 1", c.id, len(msgs))
		}
		ev, err := protocol.Decode(msgs[0])
		if err != nil {
			t.Fatalf("client %s received undecodable payload: %v", c.id, err)
		}
		if ev.Type != protocol.TypeInvalidate {
			t.Errorf("client %s received %q, want invalidate", c.id, ev.Type)
		}
	}
}

func TestRoomBroadcastSkipsRemovedConnections(t *testing.T) {
	room := newRoom("abc123")
	stays := newFakeClient("stays", "abc123")
	leaves := newFakeClient("leaves", "abc123")
	room.Add(stays)
	room.Add(leaves)

	room.Remove(leaves.id)
	room.Broadcast(context.Background(), protocol.Invalidate())

	if got := len(stays.messages()); got != 1 {
		t.Errorf("remaining client received %d messages, want 1", got)
	}
	if got := len(leaves.messages()); got != 0 {
		t.Errorf("removed client received %d messages, want 0", got)
	}
}

func TestRoomSendFailureDropsOnlyThatConnection(t *testing.T) {
	room := newRoom("abc123")
	bad := newFakeClient("bad", "abc123")
	bad.failSend = true
	good := newFakeClient("good", "abc123")
	room.Add(bad)
	room.Add(good)

	room.Broadcast(context.Background(), protocol.Invalidate())

	if got := len(good.messages()); got != 1 {
		t.Errorf("healthy client received %d messages, want 1", got)
	}
	if !bad.closed {
		t.Error("failing client was not closed")
	}
	if room.Len() != 1 {
		t.Errorf("room has %d connections after failed send, want 1", room.Len())
	}

	// the dropped connection stays gone on the next fan-out
	room.Broadcast(context.Background(), protocol.Invalidate())
	if got := len(good.messages()); got != 2 {
		t.Errorf("healthy client received %d messages after second broadcast, want 2", got)
	}
}

func TestRoomRemoveIsIdempotent(t *testing.T) {
	room := newRoom("abc123")
	a := newFakeClient("a", "abc123")
	b := newFakeClient("b", "abc123")
	room.Add(a)
	room.Add(b)

	if !room.Remove(a.id) {
		t.Error("first Remove returned false, want true")
	}
	if room.Remove(a.id) {
		t.Error("second Remove returned true, want false")
	}
	if room.Len() != 1 {
		t.Errorf("room has %d connections, want 1", room.Len())
	}

	room.Broadcast(context.Background(), protocol.Invalidate())
	if got := len(b.messages()); got != 1 {
		t.Errorf("unaffected client received %d messages, want 1", got)
	}
}

func TestRoomIsolation(t *testing.T) {
	reg := NewRegistry()
	room1 := reg.Resolve("key1")
	room2 := reg.Resolve("key2")

	c1 := newFakeClient("c1", "key1")
	c2 := newFakeClient("c2", "key2")
	room1.Add(c1)
	room2.Add(c2)

	room1.Broadcast(context.Background(), protocol.Invalidate())

	if got := len(c1.messages()); got != 1 {
		t.Errorf("key1 client received %d messages, want 1", got)
	}
	if got := len(c2.messages()); got != 0 {
		t.Errorf("key2 client received %d messages, want 0", got)
	}
}

func TestRoomConcurrentBroadcastAndChurn(t *testing.T) {
	room := newRoom("busy")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		c := newFakeClient(fmt.Sprintf("conn-%d", i), "busy")
		room.Add(c)
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			room.Broadcast(context.Background(), protocol.Invalidate())
		}(c.id)
		go func(id string) {
			defer wg.Done()
			room.Remove(id)
		}(c.id)
	}
	wg.Wait()
	if room.Len() != 0 {
		t.Errorf("room has %d connections after churn, want 0", room.Len())
	}
}
