// Package sse streams notebook change events to HTTP clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is one SSE frame. Events with a Notebook are only delivered to
// clients watching all notebooks or that one.
type Event struct {
	Type     string `json:"type"`
	Notebook string `json:"-"`
	Data     any    `json:"data"`
}

// Change describes a mutation inside a notebook. Subject is "note", "dir"
// or "notebook"; Kind is "created", "updated", "renamed" or "deleted".
type Change struct {
	Subject  string `json:"subject"`
	Kind     string `json:"kind"`
	Notebook string `json:"notebook"`
	Path     string `json:"path,omitempty"`
	From     string `json:"from,omitempty"`
}

// keepAliveInterval spaces comment frames that stop idle proxies from
// closing the stream.
const keepAliveInterval = 30 * time.Second

type client struct {
	ch       chan []byte
	notebook string
}

// Broker fans events out to subscribed clients.
//
// A single internal goroutine owns the client set and the per-notebook
// tree.updated throttle. Public methods talk to it through channels.
type Broker struct {
	treeMin time.Duration

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one tree.updated event per
// notebook every treeThrottle.
func NewBroker(treeThrottle time.Duration) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 2 * time.Second
	}
	b := &Broker{
		treeMin:       treeThrottle,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastTree := make(map[string]time.Time)

	broadcast := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), ev.Type, payload))
		for ch, nb := range clients {
			if nb != "" && ev.Notebook != "" && nb != ev.Notebook {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c.notebook

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			broadcast(ev)

		case c := <-b.changeCh:
			broadcast(Event{Type: c.Subject + "." + c.Kind, Notebook: c.Notebook, Data: c})
			if c.Subject == "notebook" {
				continue
			}
			now := time.Now()
			if now.Sub(lastTree[c.Notebook]) >= b.treeMin {
				lastTree[c.Notebook] = now
				broadcast(Event{
					Type:     "tree.updated",
					Notebook: c.Notebook,
					Data:     map[string]string{"notebook": c.Notebook},
				})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. An empty notebook
// subscribes to every notebook.
func (b *Broker) Subscribe(notebook string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- client{ch: ch, notebook: notebook}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishChange publishes a change event followed by a throttled
// tree.updated event for the notebook.
func (b *Broker) PublishChange(c Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler. The optional notebook query
// parameter limits the stream to one notebook.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("notebook"))
	defer b.Unsubscribe(ch)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
