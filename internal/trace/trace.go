// Package trace provides the append-only NDJSON trace stream.
//
// Every step of the orchestration loop is recorded here for offline
// replay. The stream is write-only from the core's perspective: nothing
// in this process reads it back.
package trace

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one structured trace record.
type Event struct {
	TraceID string
	Kind    string
	Fields  map[string]any
}

// Sink receives trace events. The file-backed Logger is the production
// implementation; Nop is used where tracing is disabled.
type Sink interface {
	Log(ev Event)
	Close() error
}

// Config controls the trace logger.
type Config struct {
	Path      string
	QueueSize int
}

// Logger appends newline-delimited JSON records to a single
// process-wide file. Log never blocks the caller: events are queued to
// a background writer and dropped (with a counter) if the queue is full.
type Logger struct {
	file    *os.File
	queue   chan Event
	dropped atomic.Int64
	wg      sync.WaitGroup
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewLogger creates the trace logger, creating the parent directory as
// needed and appending to an existing stream.
func NewLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	l := &Logger{
		file:   file,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger,
	}

	l.wg.Add(1)
	go l.run()

	return l, nil
}

// Log enqueues an event without blocking. Events arriving after Close,
// or while the queue is full, are dropped.
func (l *Logger) Log(ev Event) {
	defer func() {
		if recover() != nil {
			// Send on closed queue: shutdown raced a late event.
			l.dropped.Add(1)
		}
	}()

	select {
	case l.queue <- ev:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("trace queue full, dropping events", "dropped_total", n)
		}
	}
}

// Dropped reports how many events were discarded.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Close drains the queue and closes the underlying file.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.queue)
		l.wg.Wait()
		l.closeErr = l.file.Close()
	})
	return l.closeErr
}

func (l *Logger) run() {
	defer l.wg.Done()

	for ev := range l.queue {
		record := make(map[string]any, len(ev.Fields)+3)
		for k, v := range ev.Fields {
			record[k] = v
		}
		record["trace_id"] = ev.TraceID
		record["event"] = ev.Kind
		record["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

		line, err := json.Marshal(record)
		if err != nil {
			l.logger.Warn("failed to marshal trace event", "event", ev.Kind, "error", err)
			continue
		}
		if _, err := l.file.Write(append(line, '\n')); err != nil {
			l.logger.Warn("failed to write trace event", "event", ev.Kind, "error", err)
		}
	}
}

// Nop is a Sink that discards everything.
type Nop struct{}

// Log implements Sink.
func (Nop) Log(Event) {}

// Close implements Sink.
func (Nop) Close() error { return nil }
