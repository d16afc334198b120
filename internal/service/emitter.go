package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Events emitted by the layout service.
const (
	EventLayoutChanged  = "layout:changed"
	EventLayoutSaved    = "layout:saved"
	EventSelection      = "layout:selection"
	EventDoubleClick    = "layout:double-click"
	EventExternalChange = "layout:external-change"
	EventSweepFinished  = "layout:sweep-finished"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from the transport
// ─────────────────────────────────────────────────────────────

// EventEmitter publishes service events to whoever renders the builder.
// Emit must not block for long: it runs on the editor's notification path.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events with the given name.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// LogEmitter writes events to a logger at debug level.
type LogEmitter struct {
	Logger *log.Logger
}

func (l LogEmitter) Emit(_ context.Context, event string, data any) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("event", "name", event, "data", data)
}

// RedisEmitter publishes events as JSON on a Redis channel so several
// builder hosts can follow the same pages.
type RedisEmitter struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
}

type redisEvent struct {
	Event string    `json:"event"`
	Data  any       `json:"data"`
	At    time.Time `json:"at"`
}

func NewRedisEmitter(client *redis.Client, channel string, logger *log.Logger) *RedisEmitter {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisEmitter{client: client, channel: channel, logger: logger}
}

func (r *RedisEmitter) Emit(ctx context.Context, event string, data any) {
	payload, err := json.Marshal(redisEvent{Event: event, Data: data, At: time.Now().UTC()})
	if err != nil {
		r.logger.Warn("encode event", "event", event, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("publish event", "event", event, "err", err)
	}
}

// Fanout sends every event to each emitter in order.
type Fanout []EventEmitter

func (f Fanout) Emit(ctx context.Context, event string, data any) {
	for _, e := range f {
		e.Emit(ctx, event, data)
	}
}
