package dashboard

import "sync"

// Ticket identifies one load of a panel. Only the newest ticket may commit.
type Ticket uint64

// State is what a panel currently shows.
type State[T any] struct {
	Value  T
	Err    error
	Loaded bool
}

// Panel holds the latest committed result of one dashboard component. A
// commit from a superseded ticket, or one arriving after Close, is dropped.
type Panel[T any] struct {
	mu     sync.Mutex
	gen    uint64
	closed bool
	state  State[T]
}

// Begin starts a new load and invalidates every earlier ticket.
func (p *Panel[T]) Begin() Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	return Ticket(p.gen)
}

// Commit stores the result of the load identified by t. It reports whether
// the result was kept.
func (p *Panel[T]) Commit(t Ticket, value T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || uint64(t) != p.gen {
		return false
	}
	p.state = State[T]{Value: value, Err: err, Loaded: true}
	return true
}

// Close tears the panel down; later commits are ignored.
func (p *Panel[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var zero State[T]
	p.state = zero
}

func (p *Panel[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Panel[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
