// Package sse streams note views to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/starford/keepnotes/internal/dispatch"
	"github.com/starford/keepnotes/internal/theme"
)

// Event names written on the stream.
const (
	NotesChanged = "notes.changed"
	ThemeChanged = "theme.changed"
)

const (
	queueSize  = 256
	clientSize = 64
)

// Event is an arbitrary named payload for Publish.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker fans views and events out to subscribers.
//
// The subscriber set lives in a hub that only the loop goroutine touches.
// Subscribe, Unsubscribe and ClientCount ship closures to the loop; views and
// events travel on their own buffered queues.
type Broker struct {
	ops    chan func(*hub)
	views  chan dispatch.View
	events chan Event

	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

var _ dispatch.Presenter = (*Broker)(nil)

// NewBroker starts a broker. Close stops it.
func NewBroker() *Broker {
	b := &Broker{
		ops:    make(chan func(*hub)),
		views:  make(chan dispatch.View, queueSize),
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.exited)
	h := &hub{subs: make(map[chan []byte]struct{})}
	defer h.closeAll()

	for {
		select {
		case <-b.done:
			return
		case op := <-b.ops:
			op(h)
		case e := <-b.events:
			h.broadcast(frame(e.Type, e.Data))
		case v := <-b.views:
			h.present(v)
		}
	}
}

// exec runs op on the loop. It reports false once the loop has exited.
func (b *Broker) exec(op func(*hub)) bool {
	select {
	case b.ops <- op:
		return true
	case <-b.exited:
		return false
	}
}

// Close ends the loop and closes every subscriber channel.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	<-b.exited
}

// Subscribe registers a new stream. The most recent view, if any, is queued on
// it straight away. On a closed broker the channel comes back closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientSize)
	if !b.exec(func(h *hub) { h.add(ch) }) {
		close(ch)
	}
	return ch
}

// Unsubscribe drops ch and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.exec(func(h *hub) { h.remove(ch) })
}

// ClientCount reports how many streams are attached.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.exec(func(h *hub) { n <- len(h.subs) }) {
		return 0
	}
	return <-n
}

// Publish queues e for every subscriber.
func (b *Broker) Publish(e Event) {
	select {
	case b.events <- e:
	case <-b.exited:
	}
}

// Present implements dispatch.Presenter. A full queue drops v; the next view
// carries the complete state anyway.
func (b *Broker) Present(v dispatch.View) {
	select {
	case b.views <- v:
	case <-b.done:
	default:
	}
}

// ServeHTTP streams frames to one client until it disconnects or the broker
// closes (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// hub is the loop-owned subscriber state.
type hub struct {
	subs   map[chan []byte]struct{}
	replay []byte
	theme  theme.Mode
}

func (h *hub) add(ch chan []byte) {
	h.subs[ch] = struct{}{}
	if h.replay != nil {
		ch <- h.replay
	}
}

func (h *hub) remove(ch chan []byte) {
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

func (h *hub) closeAll() {
	for ch := range h.subs {
		close(ch)
	}
	clear(h.subs)
}

// broadcast never waits on a slow subscriber; a full buffer loses msg.
func (h *hub) broadcast(msg []byte) {
	if msg == nil {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// present emits theme.changed when the mode flips, then the view itself, which
// becomes the replay frame for later subscribers.
func (h *hub) present(v dispatch.View) {
	if h.theme != "" && v.Theme != h.theme {
		h.broadcast(frame(ThemeChanged, map[string]theme.Mode{"theme": v.Theme}))
	}
	h.theme = v.Theme
	if msg := frame(NotesChanged, v); msg != nil {
		h.replay = msg
		h.broadcast(msg)
	}
}

// frame encodes one SSE message, or nil when data cannot be marshalled.
func frame(name string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", name, payload)
}
