// Package events fans out progress messages to subscribers such as the
// websocket clients of the bridge.
package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// messageBuffer is how many messages a subscriber can fall behind before
// new messages are dropped for it. A websocket write can take a while.
const messageBuffer = 100

// Events maintains a mapping of subscriber id and channels so goroutines
// can register and receive messages.
type Events struct {
	m  map[string]chan string
	mu sync.RWMutex
}

// New constructs an events value for subscribing and receiving messages.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Subscribe registers a new subscriber and returns its id with the channel
// messages are received on.
func (evt *Events) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	return id, evt.Acquire(id)
}

// Acquire takes a unique id and returns a channel that can be used to
// receive messages. Acquiring an existing id returns its channel.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.m[id]; exists {
		return ch
	}

	ch := make(chan string, messageBuffer)
	evt.m[id] = ch
	return ch
}

// Release closes and removes the channel that was provided by the call to
// Acquire or Subscribe.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Shutdown closes and removes every subscriber channel.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Subscribers returns the number of registered subscribers.
func (evt *Events) Subscribers() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send signals a message to every registered channel. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- s:
		default:
		}
	}
}

// Sendf formats the message and sends it. Its signature matches the event
// handlers of the ethereum and upkeep packages.
func (evt *Events) Sendf(format string, args ...any) {
	evt.Send(fmt.Sprintf(format, args...))
}
