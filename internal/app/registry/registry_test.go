package registry

import (
	"sync"
	"testing"
)

func TestRegistryResolveIsDeterministic(t *testing.T) {
	reg := NewRegistry()

	// one notify call and one websocket connect, interleaved, must land on
	// the same instance
	first := reg.Resolve("abc123")
	second := reg.Resolve("abc123")
	if first != second {
		t.Error("Resolve returned different instances for the same key")
	}

	other := reg.Resolve("xyz789")
	if other == first {
		t.Error("Resolve returned the same instance for different keys")
	}
}

func TestRegistryConcurrentResolveSingleInstance(t *testing.T) {
	reg := NewRegistry()
	const goroutines = 32

	rooms := make([]interface{}, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.Resolve("contested")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if rooms[i] != rooms[0] {
			t.Fatalf("goroutine %d resolved a different room instance", i)
		}
	}
	if reg.Len() != 1 {
		t.Errorf("registry holds %d rooms, want 1", reg.Len())
	}
}

func TestRegistryPeekDoesNotCreate(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Peek("ghost"); ok {
		t.Error("Peek reported a room that was never resolved")
	}
	if reg.Len() != 0 {
		t.Errorf("Peek created a room; registry holds %d", reg.Len())
	}

	reg.Resolve("real")
	if _, ok := reg.Peek("real"); !ok {
		t.Error("Peek missed an existing room")
	}
}

func TestRegistryReleaseEvictsOnlyEmptyRooms(t *testing.T) {
	reg := NewRegistry()

	occupied := reg.Resolve("occupied")
	occupied.Add(newFakeClient("c1", "occupied"))
	reg.Resolve("idle")

	reg.Release("occupied")
	reg.Release("idle")

	if _, ok := reg.Peek("occupied"); !ok {
		t.Error("Release evicted a room with live connections")
	}
	if _, ok := reg.Peek("idle"); ok {
		t.Error("Release kept an empty room resident")
	}
}

func TestRegistryRecreatesAfterEviction(t *testing.T) {
	reg := NewRegistry()
	before := reg.Resolve("roundtrip")
	reg.Release("roundtrip")

	after := reg.Resolve("roundtrip")
	if after == before {
		t.Error("expected a fresh room instance after eviction")
	}
	if after.Key() != "roundtrip" {
		t.Errorf("recreated room key = %q, want %q", after.Key(), "roundtrip")
	}
}
