package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/vending-kiosk-service/internal/obs"
)

// Handler processes one scan payload to completion, including any paced
// outbound messages it triggers.
type Handler func(ctx context.Context, payload []byte)

// Listener buffers inbound scan payloads and feeds them to a single
// processor goroutine. Processing is strictly serial: the dispensing
// hardware shares one outbound channel, so a scan must finish its whole
// message sequence before the next one starts.
type Listener struct {
	mu           sync.Mutex
	backlog      [][]byte
	notify       chan struct{}
	handler      Handler
	shuttingDown atomic.Bool

	received  atomic.Uint64
	processed atomic.Uint64

	highWatermark int
}

// NewListener creates a Listener delivering payloads to handler. A positive
// highWatermark makes the processor warn when the backlog grows past it.
func NewListener(handler Handler, highWatermark int) *Listener {
	return &Listener{
		notify:        make(chan struct{}, 1),
		handler:       handler,
		highWatermark: highWatermark,
	}
}

// Start runs the serial processor loop in the background.
func (l *Listener) Start(ctx context.Context) {
	go l.process(ctx)
}

// process drains the backlog one payload at a time.
func (l *Listener) process(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		for {
			payload, ok := l.pop()
			if !ok {
				break
			}
			l.handler(ctx, payload)
			l.processed.Add(1)
		}
		if l.highWatermark > 0 {
			if sz := l.BacklogSize(); sz > l.highWatermark {
				obs.Logger.Warn("scan backlog exceeds high watermark", "backlog_size", sz, "high_watermark", l.highWatermark)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-l.notify:
		case <-ticker.C:
		}
	}
}

func (l *Listener) pop() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.backlog) == 0 {
		return nil, false
	}
	payload := l.backlog[0]
	l.backlog = l.backlog[1:]
	return payload, true
}

// Enqueue appends a payload to the backlog and notifies the processor.
// Returns false once intake has been closed.
func (l *Listener) Enqueue(payload []byte) bool {
	if l.shuttingDown.Load() {
		return false
	}
	l.received.Add(1)
	l.mu.Lock()
	l.backlog = append(l.backlog, payload)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// BacklogSize returns the number of payloads awaiting processing.
func (l *Listener) BacklogSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.backlog)
}

// Metrics returns intake counters for observability.
func (l *Listener) Metrics() (received, processed uint64, backlog int) {
	return l.received.Load(), l.processed.Load(), l.BacklogSize()
}

// CloseIntake disallows future enqueues.
func (l *Listener) CloseIntake() {
	l.shuttingDown.Store(true)
	obs.Logger.Info("scan_intake_closed")
}

// IsShuttingDown reports whether intake has been closed.
func (l *Listener) IsShuttingDown() bool { return l.shuttingDown.Load() }

// DrainUntil blocks until every accepted payload has been processed or the
// context expires. Returns true when fully drained.
func (l *Listener) DrainUntil(ctx context.Context) bool {
	for {
		received, processed, backlog := l.Metrics()
		if backlog == 0 && received == processed {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
