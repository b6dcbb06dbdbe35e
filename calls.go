package mcp

import "sync"

// callOutcome is the single terminal value delivered to a pending call:
// either the correlated response message or an error explaining why no
// response will ever arrive.
type callOutcome struct {
	msg JSONRPCMessage
	err error
}

// pendingCalls is the correlation table mapping outstanding request ids to
// their completion slots. Callers register before sending; the dispatch
// loop resolves when the matching response arrives. Registration and
// resolution for the same id are mutually exclusive, so an id is resolved
// at most once and duplicate or late responses are ignored.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[string]chan callOutcome
}

// register creates a completion slot for id and returns the channel the
// caller suspends on. The channel is buffered so resolution never blocks
// the dispatch loop, even if the caller already gave up.
func (p *pendingCalls) register(id string) <-chan callOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.calls == nil {
		p.calls = make(map[string]chan callOutcome)
	}
	ch := make(chan callOutcome, 1)
	p.calls[id] = ch
	return ch
}

// resolve delivers the terminal outcome for id and removes the entry. It
// reports false if id is unknown or already resolved; such responses are
// discarded, not errors.
func (p *pendingCalls) resolve(id string, out callOutcome) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.calls[id]
	if !ok {
		return false
	}
	delete(p.calls, id)
	ch <- out
	return true
}

// cancel resolves id with ErrCancelled. A response arriving for a
// cancelled id afterwards finds no entry and is silently dropped.
func (p *pendingCalls) cancel(id string) bool {
	return p.resolve(id, callOutcome{err: ErrCancelled})
}

// drainAll resolves every still-pending entry with err. Used when the
// session leaves the ready state so no caller waits forever on a dead
// connection.
func (p *pendingCalls) drainAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, ch := range p.calls {
		delete(p.calls, id)
		ch <- callOutcome{err: err}
	}
}

// pending reports the number of unresolved entries.
func (p *pendingCalls) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}
