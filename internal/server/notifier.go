package server

import "sync"

// Notifier fans out reload signals to live reload clients. Each signal
// carries the output file that was rebuilt.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan string]struct{}
}

// NewNotifier creates a Notifier with no listeners.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel receiving rebuilt file names.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan string {
	ch := make(chan string, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan string) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Listeners returns the number of connected clients.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast tells every listener that file was rebuilt. A listener that has
// not consumed the previous signal is skipped; one pending reload is enough.
func (n *Notifier) Broadcast(file string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- file:
		default:
		}
	}
}
