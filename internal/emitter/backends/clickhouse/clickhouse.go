// Package clickhouse batch-inserts events into a ClickHouse table.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"sitepulse/internal/emitter"
)

const (
	defaultBufferSize    = 10_000
	defaultFlushInterval = time.Second
	defaultFlushBatch    = 1000
	drainTimeout         = 2 * time.Second
	insertTimeout        = 5 * time.Second
)

// Row is one event as stored in ClickHouse.
type Row struct {
	EventID    string    `ch:"event_id"`
	EventName  string    `ch:"event_name"`
	DistinctID string    `ch:"distinct_id"`
	Timestamp  time.Time `ch:"timestamp"`
	URL        string    `ch:"url"`
	Title      string    `ch:"title"`
	Properties string    `ch:"properties"`
}

// InsertFunc writes one batch.
type InsertFunc func(ctx context.Context, rows []Row) error

// Writer buffers events and inserts them in batches from a background
// goroutine. Capture never blocks: when the buffer is full the event is
// dropped and counted.
type Writer struct {
	insert        InsertFunc
	buffer        chan Row
	done          chan struct{}
	flushed       chan struct{}
	closeOnce     sync.Once
	logger        *slog.Logger
	flushInterval time.Duration
	flushBatch    int
	dropped       atomic.Int64
}

// Option configures a Writer.
type Option func(*Writer)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

func WithFlushBatch(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.flushBatch = n
		}
	}
}

// WithBufferSize sets how many events may wait for a flush.
func WithBufferSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.buffer = make(chan Row, n)
		}
	}
}

// New starts a Writer around insert.
func New(insert InsertFunc, opts ...Option) *Writer {
	w := &Writer{
		insert:        insert,
		buffer:        make(chan Row, defaultBufferSize),
		done:          make(chan struct{}),
		flushed:       make(chan struct{}),
		logger:        slog.Default(),
		flushInterval: defaultFlushInterval,
		flushBatch:    defaultFlushBatch,
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.flushLoop()
	return w
}

// Open connects to ClickHouse, creates the table when missing and starts a Writer.
func Open(ctx context.Context, dsn, table string, opts ...Option) (*Writer, driver.Conn, error) {
	chOpts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	if err := EnsureTable(ctx, conn, table); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return New(ConnInsert(conn, table), opts...), conn, nil
}

// EnsureTable creates the events table if it does not exist.
func EnsureTable(ctx context.Context, conn driver.Conn, table string) error {
	err := conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			event_id    String,
			event_name  LowCardinality(String),
			distinct_id String,
			timestamp   DateTime64(3, 'UTC'),
			url         String,
			title       String,
			properties  String
		) ENGINE = MergeTree
		ORDER BY (event_name, timestamp)
	`, table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// ConnInsert returns an InsertFunc that appends rows to table via a prepared batch.
func ConnInsert(conn driver.Conn, table string) InsertFunc {
	query := fmt.Sprintf("INSERT INTO %s", table)
	return func(ctx context.Context, rows []Row) error {
		batch, err := conn.PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare batch: %w", err)
		}
		for i := range rows {
			if err := batch.AppendStruct(&rows[i]); err != nil {
				_ = batch.Abort()
				return fmt.Errorf("append event %s: %w", rows[i].EventID, err)
			}
		}
		return batch.Send()
	}
}

func (w *Writer) Name() string { return "clickhouse" }

func (w *Writer) Capture(_ context.Context, event emitter.Event) error {
	props, err := json.Marshal(event.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	url, _ := event.Properties["url"].(string)
	title, _ := event.Properties["title"].(string)
	row := Row{
		EventID:    event.ID,
		EventName:  event.Name,
		DistinctID: event.DistinctID,
		Timestamp:  event.Timestamp,
		URL:        url,
		Title:      title,
		Properties: string(props),
	}
	select {
	case <-w.done:
		return fmt.Errorf("clickhouse writer closed")
	default:
	}
	select {
	case w.buffer <- row:
	default:
		w.dropped.Add(1)
		w.logger.Warn("clickhouse buffer full, dropping event", "event_id", event.ID)
	}
	return nil
}

// Identify, Reset and SetUserProperties have no row representation; the
// table only stores events.
func (w *Writer) Identify(context.Context, string, emitter.Props) error { return nil }

func (w *Writer) Reset(context.Context) error { return nil }

func (w *Writer) SetUserProperties(context.Context, string, emitter.Props) error { return nil }

// Dropped reports how many events were discarded because the buffer was full.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Close drains buffered events and stops the flush loop.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.done) })
	<-w.flushed
}

func (w *Writer) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]Row, 0, w.flushBatch)
	for {
		select {
		case row := <-w.buffer:
			batch = append(batch, row)
			if len(batch) >= w.flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			deadline := time.After(drainTimeout)
		drain:
			for {
				select {
				case row := <-w.buffer:
					batch = append(batch, row)
				case <-deadline:
					break drain
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *Writer) flush(rows []Row) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	if err := w.insert(ctx, rows); err != nil {
		w.logger.Error("clickhouse batch insert failed",
			"batch_size", len(rows),
			"error", err,
		)
	}
}
