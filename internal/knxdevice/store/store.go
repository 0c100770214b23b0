// Package store persists the parts of a device's runtime state that must
// survive a restart: non-volatile memory segment contents and the device
// event log. It wraps the infrastructure database package the same way
// the bus monitor wraps it for its own upsert tables, using prepared
// statements created once at Open and reused for every call.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/basilfx/knx-devstack/internal/infrastructure/database"
	"github.com/basilfx/knx-devstack/internal/knxdevice"

	// Registers the embedded schema migrations with the database package.
	_ "github.com/basilfx/knx-devstack/migrations"
)

// Store persists memory segment snapshots and device events to SQLite.
type Store struct {
	db *database.DB

	mu                sync.Mutex
	segmentUpsertStmt *sql.Stmt
	eventInsertStmt   *sql.Stmt
}

// Config selects the SQLite file a Store opens.
type Config struct {
	Path        string
	BusyTimeout int // seconds, defaults to 5 when zero
}

const defaultBusyTimeout = 5

// Open connects to the configured SQLite database, applies any pending
// migrations, and prepares the statements Save/Append reuse for the
// lifetime of the Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     true,
		BusyTimeout: busyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	s := &Store{db: db}
	if err := s.prepare(); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, err
	}
	return s, nil
}

func (s *Store) prepare() error {
	var err error
	s.segmentUpsertStmt, err = s.db.Prepare(`
		INSERT INTO memory_segments (start_addr, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(start_addr) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("store: preparing segment upsert: %w", err)
	}

	s.eventInsertStmt, err = s.db.Prepare(`
		INSERT INTO events (ts, kind, detail) VALUES (?, ?, ?)
	`)
	if err != nil {
		s.segmentUpsertStmt.Close()
		return fmt.Errorf("store: preparing event insert: %w", err)
	}

	return nil
}

// Close releases the prepared statements and the underlying database
// connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.segmentUpsertStmt != nil {
		s.segmentUpsertStmt.Close()
	}
	if s.eventInsertStmt != nil {
		s.eventInsertStmt.Close()
	}
	return s.db.Close()
}

// SaveSegment snapshots a memory segment's current backing bytes,
// upserting by start address. Callers typically do this from a
// MemWriteEvent handler, and only for segments whose Kind is non-volatile
// (EEPROM/FLASH) — RAM segments have nothing worth surviving a restart.
func (s *Store) SaveSegment(ctx context.Context, seg *knxdevice.MemorySegment) error {
	s.mu.Lock()
	stmt := s.segmentUpsertStmt
	s.mu.Unlock()

	_, err := stmt.ExecContext(ctx, seg.StartAddr, seg.Backing, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: saving segment at %d: %w", seg.StartAddr, err)
	}
	return nil
}

// LoadSegment returns the most recently saved snapshot for the segment
// starting at addr, or knxdevice.ErrNotFound if none was ever saved.
func (s *Store) LoadSegment(ctx context.Context, startAddr uint16) ([]byte, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM memory_segments WHERE start_addr = ?", startAddr,
	).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, knxdevice.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading segment at %d: %w", startAddr, err)
	}
	return snapshot, nil
}

// RestoreSegments loads every saved snapshot into the matching segment of
// table, by start address. Segments with no saved snapshot are left at
// whatever value the caller constructed them with.
func (s *Store) RestoreSegments(ctx context.Context, table *knxdevice.MemoryTable) error {
	rows, err := s.db.QueryContext(ctx, "SELECT start_addr, snapshot FROM memory_segments")
	if err != nil {
		return fmt.Errorf("store: listing segment snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[uint16][]byte)
	for rows.Next() {
		var addr uint16
		var snapshot []byte
		if err := rows.Scan(&addr, &snapshot); err != nil {
			return fmt.Errorf("store: scanning segment snapshot: %w", err)
		}
		snapshots[addr] = snapshot
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: iterating segment snapshots: %w", err)
	}

	for _, seg := range table.Segments {
		snapshot, ok := snapshots[seg.StartAddr]
		if !ok || len(snapshot) != len(seg.Backing) {
			continue
		}
		copy(seg.Backing, snapshot)
	}
	return nil
}

// eventRecord is the JSON shape stored in the events table's detail
// column; it is intentionally loose since event kinds carry unrelated
// fields.
type eventRecord map[string]any

// AppendEvent records a device event to the event log. kind is one of
// the device event kind names (restart, authorize, com_object_read,
// com_object_write, mem_read, mem_write, prop_read, prop_write,
// set_address); detail carries whatever fields distinguish that
// occurrence.
func (s *Store) AppendEvent(ctx context.Context, kind string, detail eventRecord) error {
	var detailJSON []byte
	if len(detail) > 0 {
		var err error
		detailJSON, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("store: marshalling event detail: %w", err)
		}
	}

	s.mu.Lock()
	stmt := s.eventInsertStmt
	s.mu.Unlock()

	_, err := stmt.ExecContext(ctx, time.Now().UTC().Format(time.RFC3339), kind, string(detailJSON))
	if err != nil {
		return fmt.Errorf("store: appending event %q: %w", kind, err)
	}
	return nil
}

// EventRecord is one row read back from the event log.
type EventRecord struct {
	ID     int64
	Ts     time.Time
	Kind   string
	Detail string
}

// ListEvents returns up to limit most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, kind, detail FROM events ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: listing events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var ts string
		if err := rows.Scan(&rec.ID, &ts, &rec.Kind, &rec.Detail); err != nil {
			return nil, fmt.Errorf("store: scanning event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("store: parsing event timestamp %q: %w", ts, err)
		}
		rec.Ts = parsed
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating events: %w", err)
	}
	return out, nil
}

// EventRecorder adapts a Store to knxdevice.EventCallback, translating
// each event variant into the kind name and detail fields AppendEvent
// persists. Handler errors are delivered to onError rather than
// propagated, since Device.OnEvent itself returns nothing.
func EventRecorder(ctx context.Context, s *Store, onError func(error)) knxdevice.EventCallback {
	return func(_ *knxdevice.Device, event knxdevice.Event) {
		kind, detail := describeEvent(event)
		if err := s.AppendEvent(ctx, kind, detail); err != nil && onError != nil {
			onError(err)
		}
	}
}

func describeEvent(event knxdevice.Event) (string, eventRecord) {
	switch e := event.(type) {
	case knxdevice.RestartEvent:
		return "restart", nil
	case knxdevice.AuthorizeEvent:
		return "authorize", eventRecord{"level": e.Level}
	case knxdevice.ComObjectReadEvent:
		return "com_object_read", nil
	case knxdevice.ComObjectWriteEvent:
		return "com_object_write", nil
	case knxdevice.MemReadEvent:
		return "mem_read", eventRecord{"start_addr": e.Segment.StartAddr}
	case knxdevice.MemWriteEvent:
		return "mem_write", eventRecord{"start_addr": e.Segment.StartAddr}
	case knxdevice.PropReadEvent:
		return "prop_read", eventRecord{"object": e.Object, "count": e.Count, "start": e.Start}
	case knxdevice.PropWriteEvent:
		return "prop_write", eventRecord{"object": e.Object, "count": e.Count, "start": e.Start}
	case knxdevice.SetAddressEvent:
		return "set_address", eventRecord{"address": e.Address.FormatPhysical()}
	default:
		return "unknown", nil
	}
}
