// Package persistence writes the engine's event log to Postgres. The log is
// the source of truth for downstream consumers; the JetStream feed is a
// best-effort mirror.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventRow is one row of auction_log.events.
type EventRow struct {
	AuctionID string
	Sequence  int64
	EventType string
	Payload   []byte // JSON-encoded event payload
	EmittedAt int64  // engine timestamp, unix seconds
	Recorded  time.Time
}

// EventLogWriter batch-writes event rows using multi-row INSERT. COPY would
// be faster; multi-row INSERT keeps the writer portable across drivers.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteBatch inserts a batch of rows in one statement. Conflicting
// (auction_id, sequence) pairs are skipped, so replays are idempotent.
func (w *EventLogWriter) WriteBatch(ctx context.Context, tx *sql.Tx, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO auction_log.events
		(auction_id, sequence, event_type, payload, emitted_at, recorded_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)

	for i, r := range rows {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		recorded := r.Recorded
		if recorded.IsZero() {
			recorded = time.Now().UTC()
		}
		args = append(args,
			r.AuctionID, r.Sequence, r.EventType, r.Payload, r.EmittedAt, recorded,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (auction_id, sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarshalPayload JSON-encodes an event payload for the payload column.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
