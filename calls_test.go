package mcp

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestPendingCallsResolve(t *testing.T) {
	var p pendingCalls

	ch := p.register("req-1")
	if p.pending() != 1 {
		t.Fatalf("pending() = %d, want 1", p.pending())
	}

	want := JSONRPCMessage{JSONRPC: JSONRPCVersion, ID: "req-1"}
	if !p.resolve("req-1", callOutcome{msg: want}) {
		t.Fatal("resolve() = false for registered id")
	}

	out := <-ch
	if out.err != nil {
		t.Fatalf("outcome error = %v, want nil", out.err)
	}
	if out.msg.ID != want.ID {
		t.Fatalf("outcome id = %q, want %q", out.msg.ID, want.ID)
	}
	if p.pending() != 0 {
		t.Fatalf("pending() = %d after resolve, want 0", p.pending())
	}
}

func TestPendingCallsResolveAtMostOnce(t *testing.T) {
	var p pendingCalls

	p.register("req-1")
	if !p.resolve("req-1", callOutcome{}) {
		t.Fatal("first resolve() = false, want true")
	}
	if p.resolve("req-1", callOutcome{}) {
		t.Fatal("second resolve() = true, want false")
	}
}

func TestPendingCallsResolveUnknownID(t *testing.T) {
	var p pendingCalls

	if p.resolve("never-registered", callOutcome{}) {
		t.Fatal("resolve() = true for unknown id, want false")
	}
}

func TestPendingCallsCancel(t *testing.T) {
	var p pendingCalls

	ch := p.register("req-1")
	if !p.cancel("req-1") {
		t.Fatal("cancel() = false for registered id")
	}

	out := <-ch
	if !errors.Is(out.err, ErrCancelled) {
		t.Fatalf("outcome error = %v, want ErrCancelled", out.err)
	}

	// A late response for a cancelled id finds no entry.
	if p.resolve("req-1", callOutcome{}) {
		t.Fatal("resolve() = true after cancel, want false")
	}
}

func TestPendingCallsDrainAll(t *testing.T) {
	var p pendingCalls

	chans := make([]<-chan callOutcome, 5)
	for i := range chans {
		chans[i] = p.register(fmt.Sprintf("req-%d", i))
	}

	p.drainAll(ErrConnectionLost)

	for i, ch := range chans {
		out := <-ch
		if !errors.Is(out.err, ErrConnectionLost) {
			t.Fatalf("outcome %d error = %v, want ErrConnectionLost", i, out.err)
		}
	}
	if p.pending() != 0 {
		t.Fatalf("pending() = %d after drain, want 0", p.pending())
	}
}

func TestPendingCallsConcurrentResolve(t *testing.T) {
	var p pendingCalls

	const callers = 50
	ids := make([]string, callers)
	chans := make([]<-chan callOutcome, callers)
	for i := range ids {
		ids[i] = fmt.Sprintf("req-%d", i)
		chans[i] = p.register(ids[i])
	}

	// Two goroutines race to resolve every id; exactly one must win each.
	var resolved sync.Map
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				if p.resolve(id, callOutcome{msg: JSONRPCMessage{ID: MustString(id)}}) {
					if _, loaded := resolved.LoadOrStore(id, true); loaded {
						t.Errorf("id %s resolved twice", id)
					}
				}
			}
		}()
	}
	wg.Wait()

	for i, ch := range chans {
		out := <-ch
		if string(out.msg.ID) != ids[i] {
			t.Fatalf("outcome %d id = %q, want %q", i, out.msg.ID, ids[i])
		}
		select {
		case <-ch:
			t.Fatalf("id %s delivered more than one outcome", ids[i])
		default:
		}
	}
}
