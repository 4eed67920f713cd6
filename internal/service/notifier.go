package service

import "sync"

// notifier runs callbacks in the order they were queued on a goroutine of
// its own. Queuing never blocks the caller.
type notifier struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.run()
	return n
}

// enqueue schedules fn. It is dropped once the notifier is closed.
func (n *notifier) enqueue(fn func()) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, fn)
	n.mu.Unlock()
	n.signal()
}

// close stops accepting callbacks. Callbacks already queued still run.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.signal()
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for range n.wake {
		for {
			n.mu.Lock()
			if len(n.pending) == 0 {
				closed := n.closed
				n.mu.Unlock()
				if closed {
					return
				}
				break
			}
			fn := n.pending[0]
			n.pending[0] = nil
			n.pending = n.pending[1:]
			n.mu.Unlock()

			fn()
		}
	}
}
