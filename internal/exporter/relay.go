package exporter

import (
	"context"
	"sync"
	"time"

	"invoice-export-service/internal/model"

	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval keeps long-lived stream consumers alive during
// silent stretches of a transactional export.
const DefaultHeartbeatInterval = 30 * time.Second

// eventQueue is an unbounded multi-producer single-consumer queue.
// Producers never block: worker goroutines must not stall on a slow or
// absent stream consumer, and no event may be dropped.
type eventQueue struct {
	mu     sync.Mutex
	items  []model.Event
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

// push enqueues without blocking.
func (q *eventQueue) push(e model.Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop dequeues the oldest event without waiting.
func (q *eventQueue) pop() (model.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.Event{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

// Relay carries log lines and progress ticks from export workers to a
// single ordered consumer. Two logically distinct queues feed one consume
// loop; events from one producer keep that producer's order, global
// interleaving across workers is not guaranteed.
type Relay struct {
	logs      *eventQueue
	progress  *eventQueue
	heartbeat time.Duration
	poll      time.Duration
}

// NewRelay builds a relay with the given heartbeat interval (0 means
// DefaultHeartbeatInterval).
func NewRelay(heartbeat time.Duration) *Relay {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &Relay{
		logs:      newEventQueue(),
		progress:  newEventQueue(),
		heartbeat: heartbeat,
		poll:      100 * time.Millisecond,
	}
}

// Log enqueues a free-form log line. Safe from any goroutine.
func (r *Relay) Log(level, message string) {
	now := time.Now().UTC()
	r.logs.push(model.Event{
		Kind:      model.EventLog,
		Payload:   model.LogEntry{Level: level, Message: message, Timestamp: now},
		Timestamp: now,
	})
}

// Progress enqueues a structured progress tick. Safe from any goroutine.
func (r *Relay) Progress(current, total int, message string) {
	r.progress.push(model.Event{
		Kind:      model.EventProgress,
		Payload:   model.NewProgress(current, total, message),
		Timestamp: time.Now().UTC(),
	})
}

// Hook returns a zerolog hook that tees every log line written by export
// workers into the relay, so the run's own logger feeds the stream.
func (r *Relay) Hook() zerolog.Hook {
	return relayHook{relay: r}
}

type relayHook struct {
	relay *Relay
}

func (h relayHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if level == zerolog.NoLevel || message == "" {
		return
	}
	h.relay.Log(level.String(), message)
}

// Consume drains the relay into sink until done is closed and both queues
// are empty, then returns. Each pass pops both queues without blocking,
// sleeps only when both are empty (woken by either producer, bounded by
// the poll interval), and emits a heartbeat event when nothing has flowed
// for the heartbeat interval. Returns early if ctx is cancelled (stream
// abandoned); the producing run is unaffected.
//
// Every enqueued event is delivered exactly once: after done closes, a
// final non-blocking drain empties both queues before returning, so no
// event is lost to the race between "workers finished" and "queue still
// has items".
func (r *Relay) Consume(ctx context.Context, done <-chan struct{}, sink func(model.Event)) {
	lastEmit := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		finished := false
		select {
		case <-done:
			finished = true
		default:
		}

		// Non-blocking pops of both queues, logs first: an idle log
		// queue must never delay progress delivery.
		delivered := false
		if e, ok := r.logs.pop(); ok {
			sink(e)
			delivered = true
		} else if e, ok := r.progress.pop(); ok {
			sink(e)
			delivered = true
		}

		if delivered {
			lastEmit = time.Now()
			continue
		}

		if finished {
			r.drain(sink)
			return
		}

		if time.Since(lastEmit) >= r.heartbeat {
			sink(model.Event{
				Kind:      model.EventHeartbeat,
				Payload:   map[string]string{"status": "running"},
				Timestamp: time.Now().UTC(),
			})
			lastEmit = time.Now()
		}

		// Both queues empty: sleep until either produces, bounded by the
		// poll interval so done, cancellation and heartbeats stay live.
		// A consumed notify token is harmless; the next iteration pops
		// both queues unconditionally.
		timer := time.NewTimer(r.poll)
		select {
		case <-r.logs.notify:
		case <-r.progress.notify:
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}
}

// drain empties both queues without waiting, logs first to keep a
// worker's final log lines ahead of its last progress tick.
func (r *Relay) drain(sink func(model.Event)) {
	for {
		e, ok := r.logs.pop()
		if !ok {
			break
		}
		sink(e)
	}
	for {
		e, ok := r.progress.pop()
		if !ok {
			break
		}
		sink(e)
	}
}
