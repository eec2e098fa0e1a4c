package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/adrpg/dbopen"
	"github.com/hazyhaar/adrpg/overlay/event"
)

// JournalSchema creates the event journal table.
const JournalSchema = `CREATE TABLE IF NOT EXISTS adrpg_events (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	page_id     TEXT NOT NULL DEFAULT '',
	page_url    TEXT NOT NULL DEFAULT '',
	element_key TEXT NOT NULL DEFAULT '',
	widget_id   TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '{}',
	ts          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS adrpg_events_type_ts ON adrpg_events(type, ts);`

// Journal appends events to an SQLite table.
type Journal struct {
	db    *sql.DB
	owned bool
}

// NewJournal uses an existing database. The schema is created if missing.
func NewJournal(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(JournalSchema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// OpenJournal opens (or creates) the database file at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(JournalSchema))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Journal{db: db, owned: true}, nil
}

func (j *Journal) Send(ctx context.Context, e event.Event) error {
	detail := []byte("{}")
	if len(e.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(e.Detail); err != nil {
			return fmt.Errorf("journal: marshal detail: %w", err)
		}
	}
	_, err := dbopen.Exec(ctx, j.db,
		`INSERT OR IGNORE INTO adrpg_events (id, type, page_id, page_url, element_key, widget_id, detail, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.PageID, e.PageURL, e.ElementKey, e.WidgetID, string(detail), e.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Counts returns the number of journaled events per type.
func (j *Journal) Counts(ctx context.Context) (map[event.Type]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM adrpg_events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("journal: counts: %w", err)
	}
	defer rows.Close()

	out := make(map[event.Type]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out[event.Type(typ)] = n
	}
	return out, rows.Err()
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]event.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, type, page_id, page_url, element_key, widget_id, detail, ts
		 FROM adrpg_events ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var (
			e      event.Event
			typ    string
			detail string
			ts     int64
		)
		if err := rows.Scan(&e.ID, &typ, &e.PageID, &e.PageURL, &e.ElementKey, &e.WidgetID, &detail, &ts); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Type = event.Type(typ)
		e.Timestamp = time.UnixMilli(ts)
		if detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
				return nil, fmt.Errorf("journal: decode detail %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database if the journal opened it.
func (j *Journal) Close() error {
	if j.owned {
		return j.db.Close()
	}
	return nil
}
