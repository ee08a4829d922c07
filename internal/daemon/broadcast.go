package daemon

import (
	"sync"

	"go.uber.org/zap"

	"github.com/maxyzli/whisper-flow/internal/models"
	"github.com/maxyzli/whisper-flow/internal/pipeline"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// events are dropped for it.
const subscriberBuffer = 256

// Broadcaster fans events out to subscribed connections. It implements
// pipeline.Notifier and never blocks the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	logger *zap.SugaredLogger
}

type subscriber struct {
	id     string
	ch     chan Event
	filter map[string]bool
}

func (s *subscriber) wants(name string) bool {
	return len(s.filter) == 0 || s.filter[name]
}

// NewBroadcaster returns a Broadcaster with no subscribers.
func NewBroadcaster(logger *zap.SugaredLogger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Broadcaster{subs: make(map[string]*subscriber), logger: logger}
}

// Subscribe registers a subscriber. An empty filter receives every event.
func (b *Broadcaster) Subscribe(id string, events []string) <-chan Event {
	sub := &subscriber{id: id, ch: make(chan Event, subscriberBuffer)}
	if len(events) > 0 {
		sub.filter = make(map[string]bool, len(events))
		for _, e := range events {
			sub.filter[e] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[id]; ok {
		close(old.ch)
	}
	b.subs[id] = sub
	return sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers ev to every interested subscriber.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if !sub.wants(ev.Event) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debugf("subscriber %s full, dropping %s event", sub.id, ev.Event)
		}
	}
}

// Notify translates pipeline events onto the wire.
func (b *Broadcaster) Notify(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventReady:
		b.Publish(Event{Event: EvReady, SessionID: e.SessionID})
	case pipeline.EventLevel:
		level := e.Level
		b.Publish(Event{Event: EvLevel, SessionID: e.SessionID, Level: &level})
	case pipeline.EventTranscript:
		b.Publish(Event{Event: EvTranscript, SessionID: e.SessionID, Text: e.Text})
	case pipeline.EventState:
		ev := Event{
			Event:     EvStatus,
			SessionID: e.SessionID,
			State:     e.State.String(),
			Recording: BoolPtr(e.State == pipeline.StateRecording),
		}
		if e.Err != nil {
			ev.Message = e.Err.Error()
		}
		b.Publish(ev)
		if e.Err != nil {
			b.Publish(Event{Event: EvError, SessionID: e.SessionID, Message: e.Err.Error()})
		}
	}
}

// Progress publishes a model download progress event.
func (b *Broadcaster) Progress(p models.Progress) {
	pct, total := p.Percent, p.TotalBytes
	b.Publish(Event{Event: EvDownloadProgress, Model: p.Name, Percent: &pct, TotalBytes: &total})
}
