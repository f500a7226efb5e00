package webmonitor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/pkg/types"
)

// SerializedEvent holds one event pre-serialized in both wire formats.
type SerializedEvent struct {
	JSONData     []byte // JSON
	ProtobufData []byte // google.protobuf.Struct, base64 encoded for SSE
}

// EncodeEvent serializes ev once for every transport.
func EncodeEvent(ev types.Event) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("protobuf marshal: %w", err)
	}

	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// EventBroadcaster fans console events out to SSE and websocket clients.
// Each new subscriber first receives the current state.
type EventBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	closed  bool

	initial func() types.Event

	// OnPublish receives every published event, even without subscribers.
	OnPublish func(ev *SerializedEvent)
	// OnClientCount is called when the number of subscribers changes.
	OnClientCount func(n int)
}

// NewEventBroadcaster creates a broadcaster. initial supplies the event sent
// to each new subscriber and may be nil.
func NewEventBroadcaster(initial func() types.Event) *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[int]chan *SerializedEvent),
		initial: initial,
	}
}

// Subscribe adds a new client and returns a channel for receiving events.
func (b *EventBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan *SerializedEvent, 8)
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return id, ch
	}
	b.clients[id] = ch
	n := len(b.clients)
	b.mu.Unlock()

	logger.Debug("EventBroadcaster", "Client #%d subscribed (total clients: %d)", id, n)
	b.reportCount(n)

	// The snapshot is taken after registration so it is never older than
	// an event already queued for this client.
	if b.initial != nil {
		if ev, err := EncodeEvent(b.initial()); err == nil {
			b.sendTo(id, ev)
		} else {
			logger.Error("EventBroadcaster", "Initial state encode error: %v", err)
		}
	}
	return id, ch
}

// Unsubscribe removes a client.
func (b *EventBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	ch, ok := b.clients[id]
	if ok {
		close(ch)
		delete(b.clients, id)
	}
	n := len(b.clients)
	b.mu.Unlock()

	if ok {
		logger.Debug("EventBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, n)
		b.reportCount(n)
	}
}

// Publish serializes ev once and delivers it to every client without blocking.
func (b *EventBroadcaster) Publish(ev types.Event) {
	b.mu.Lock()
	idle := len(b.clients) == 0 && b.OnPublish == nil
	b.mu.Unlock()
	if idle {
		return
	}

	serialized, err := EncodeEvent(ev)
	if err != nil {
		logger.Error("EventBroadcaster", "Event encode error: %v", err)
		return
	}
	if b.OnPublish != nil {
		b.OnPublish(serialized)
	}
	b.broadcast(serialized)
}

func (b *EventBroadcaster) broadcast(ev *SerializedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			logger.Debug("EventBroadcaster", "Client #%d too slow, event skipped", id)
		}
	}
}

func (b *EventBroadcaster) sendTo(id int, ev *SerializedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ClientCount returns the number of subscribers.
func (b *EventBroadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every subscriber. Later subscriptions get a closed channel.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
	b.mu.Unlock()
	b.reportCount(0)
}

func (b *EventBroadcaster) reportCount(n int) {
	if b.OnClientCount != nil {
		b.OnClientCount(n)
	}
}

// PreviewSource yields downscaled JPEG previews of the live camera.
type PreviewSource interface {
	Preview(maxWidth, quality int) ([]byte, bool)
}

// FrameBroadcaster manages fanout of preview JPEGs to MJPEG clients.
// Frames are generated only while at least one client is subscribed.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int

	source   PreviewSource
	interval time.Duration
	width    int
	quality  int

	// OnFrame is called for each generated preview.
	OnFrame func()

	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// NewFrameBroadcaster creates a broadcaster polling source every interval.
func NewFrameBroadcaster(source PreviewSource, interval time.Duration, width, quality int) *FrameBroadcaster {
	return &FrameBroadcaster{
		clients:  make(map[int]chan []byte),
		source:   source,
		interval: interval,
		width:    width,
		quality:  quality,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
// A nil frame means no camera frame is available.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2)
	if fb.stopped {
		close(ch)
		return id, ch
	}
	fb.clients[id] = ch

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
		if len(fb.clients) == 0 {
			logger.Debug("FrameBroadcaster", "No clients remaining - preview generation paused")
		}
	}
}

// ClientCount returns the number of MJPEG clients.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Start begins the frame generation and broadcast loop.
func (fb *FrameBroadcaster) Start() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.started || fb.stopped {
		return
	}
	fb.started = true
	go fb.run()
}

// Stop halts the broadcaster and disconnects every client.
func (fb *FrameBroadcaster) Stop() {
	fb.mu.Lock()
	if fb.stopped {
		fb.mu.Unlock()
		return
	}
	fb.stopped = true
	close(fb.stop)
	started := fb.started
	for id, ch := range fb.clients {
		close(ch)
		delete(fb.clients, id)
	}
	fb.mu.Unlock()

	if started {
		<-fb.done
	}
}

func (fb *FrameBroadcaster) run() {
	defer close(fb.done)

	ticker := time.NewTicker(fb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-fb.stop:
			return
		case <-ticker.C:
		}

		if fb.ClientCount() == 0 {
			continue
		}

		var frame []byte
		if data, ok := fb.source.Preview(fb.width, fb.quality); ok {
			frame = data
			if fb.OnFrame != nil {
				fb.OnFrame()
			}
		}
		fb.broadcast(frame)
	}
}

func (fb *FrameBroadcaster) broadcast(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, ch := range fb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}
