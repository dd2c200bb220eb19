package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultBatchSize is the number of events buffered before a SQLite
// flush.
const DefaultBatchSize = 256

// queueBatches is the queue capacity in batches. Events recorded while the
// queue is full are dropped and counted.
const queueBatches = 4

// SQLite stores events in the calls table of a SQLite database. Record
// only queues the event; a writer goroutine inserts full batches, one
// transaction per batch.
type SQLite struct {
	db        *sql.DB
	batchSize int

	queue   chan item
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool

	// owned by the writer goroutine
	pending []Event
	errMu   sync.Mutex
	err     error
}

// item is either an event or a flush request.
type item struct {
	ev    Event
	flush chan error
}

// OpenSQLite opens (or creates) the database at path and starts its writer.
func OpenSQLite(ctx context.Context, path string, batchSize int) (*SQLite, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS calls (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		hook_id     TEXT NOT NULL,
		target      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		args        JSON NOT NULL,
		start_ns    INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		err         TEXT
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	s := &SQLite{
		db:        db,
		batchSize: batchSize,
		queue:     make(chan item, batchSize*queueBatches),
		done:      make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Record queues ev without blocking. If the queue is full, or the sink is
// closed, the event is dropped and counted.
func (s *SQLite) Record(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- item{ev: ev}:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full queue or a closed
// sink.
func (s *SQLite) Dropped() uint64 { return s.dropped.Load() }

// Flush waits until every event queued before the call is written.
func (s *SQLite) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errors.New("trace: sqlite sink closed")
	}
	select {
	case s.queue <- item{flush: reply}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the writer goroutine. It exits when the queue is closed, after
// writing what is left.
func (s *SQLite) run() {
	defer close(s.done)
	for it := range s.queue {
		if it.flush != nil {
			it.flush <- s.write()
			continue
		}
		s.pending = append(s.pending, it.ev)
		if len(s.pending) >= s.batchSize {
			s.write()
		}
	}
	s.write()
}

// write inserts the pending batch. The first error sticks: later batches
// are discarded and every flush reports it.
func (s *SQLite) write() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err != nil {
		s.pending = s.pending[:0]
		return s.err
	}
	s.err = s.insertBatch(context.Background())
	if s.err != nil {
		s.pending = s.pending[:0]
	}
	return s.err
}

func (s *SQLite) insertBatch(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO calls
		(hook_id, target, kind, args, start_ns, duration_ns, err)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range s.pending {
		args, err := json.Marshal(ev.Args)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshaling args: %w", err)
		}
		var errText sql.NullString
		if ev.Err != "" {
			errText = sql.NullString{String: ev.Err, Valid: true}
		}
		_, err = stmt.ExecContext(ctx, ev.HookID, ev.Target, ev.Kind, string(args),
			ev.Start.UnixNano(), int64(ev.Duration), errText)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

// Query returns the most recent events, newest first. A non-positive
// limit returns all of them. Buffered events are flushed first.
func (s *SQLite) Query(ctx context.Context, limit int) ([]Event, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT hook_id, target, kind, args, start_ns, duration_ns, err
		FROM calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying calls: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev       Event
			args     string
			startNS  int64
			duration int64
			errText  sql.NullString
		)
		if err := rows.Scan(&ev.HookID, &ev.Target, &ev.Kind, &args, &startNS, &duration, &errText); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &ev.Args); err != nil {
			return nil, fmt.Errorf("unmarshaling args: %w", err)
		}
		ev.Start = time.Unix(0, startNS)
		ev.Duration = time.Duration(duration)
		ev.Err = errText.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of stored events, including buffered ones.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	if err := s.Flush(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calls`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting calls: %w", err)
	}
	return n, nil
}

// Close stops the writer after it has written every queued event, then
// closes the database. Events recorded after Close are dropped.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("trace: sqlite sink closed")
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	s.errMu.Lock()
	werr := s.err
	s.errMu.Unlock()
	return errors.Join(werr, s.db.Close())
}
