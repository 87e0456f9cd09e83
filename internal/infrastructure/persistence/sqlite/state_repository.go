package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"mailfootprint/internal/domain/email"
)

// Keys of the persisted state.
const (
	KeyGmailData  = "gmailData"
	KeyStats      = "stats"
	KeyInboxCount = "inboxCount"
	KeySentCount  = "sentCount"
	KeyTotal      = "total"
	KeyLastReset  = "lastReset"
)

// StateRepository is the durable key/value state. Every logical update is
// a single transaction.
type StateRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStateRepository(dbPath string) (*StateRepository, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	r := &StateRepository{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return r, nil
}

func (r *StateRepository) Close() error {
	return r.db.Close()
}

func (r *StateRepository) migrate() error {
	var tables int
	if err := r.db.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'"); err != nil {
		return fmt.Errorf("check schema_version: %w", err)
	}

	current := 0
	if tables > 0 {
		if err := r.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := r.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
	}
	return nil
}

func (r *StateRepository) LastReset(ctx context.Context) (string, error) {
	var lastReset string
	if err := getValue(ctx, r.db, KeyLastReset, &lastReset); err != nil {
		return "", fmt.Errorf("read %s: %w", KeyLastReset, err)
	}
	return lastReset, nil
}

// Commit replaces records and stats together. It refuses with ErrBusy when
// a reset landed after the run read expectedLastReset.
func (r *StateRepository) Commit(ctx context.Context, result email.SyncResult, expectedLastReset string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var lastReset string
		if err := getValue(ctx, tx, KeyLastReset, &lastReset); err != nil {
			return fmt.Errorf("read %s: %w", KeyLastReset, err)
		}
		if lastReset != expectedLastReset {
			return fmt.Errorf("%w: state was reset at %s during sync", email.ErrBusy, lastReset)
		}

		records := result.Records
		if records == nil {
			records = []email.MessageRecord{}
		}
		if err := r.put(ctx, tx, KeyGmailData, records); err != nil {
			return err
		}
		return r.put(ctx, tx, KeyStats, result.Stats())
	})
}

// Reset overwrites records and counters with empty values and stamps at.
func (r *StateRepository) Reset(ctx context.Context, at time.Time) error {
	stamp := email.FormatTimestamp(at)
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		values := []struct {
			key   string
			value any
		}{
			{KeyGmailData, []email.MessageRecord{}},
			{KeyStats, email.Stats{TotalEmails: 0, Timestamp: stamp}},
			{KeyInboxCount, 0},
			{KeySentCount, 0},
			{KeyTotal, 0},
			{KeyLastReset, stamp},
		}
		for _, v := range values {
			if err := r.put(ctx, tx, v.key, v.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *StateRepository) SetCounters(ctx context.Context, c email.Counters) error {
	c = email.NewCounters(c.Inbox, c.Sent)
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.put(ctx, tx, KeyInboxCount, c.Inbox); err != nil {
			return err
		}
		if err := r.put(ctx, tx, KeySentCount, c.Sent); err != nil {
			return err
		}
		return r.put(ctx, tx, KeyTotal, c.Total)
	})
}

type stateRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Snapshot reads all keys from one consistent view.
func (r *StateRepository) Snapshot(ctx context.Context) (email.State, error) {
	var rows []stateRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT key, value FROM state"); err != nil {
		return email.State{}, fmt.Errorf("query state: %w", err)
	}

	var st email.State
	for _, row := range rows {
		var err error
		switch row.Key {
		case KeyGmailData:
			st.Records, err = decodeRecords([]byte(row.Value))
		case KeyStats:
			err = json.Unmarshal([]byte(row.Value), &st.Stats)
		case KeyInboxCount:
			err = json.Unmarshal([]byte(row.Value), &st.Counters.Inbox)
		case KeySentCount:
			err = json.Unmarshal([]byte(row.Value), &st.Counters.Sent)
		case KeyTotal:
			err = json.Unmarshal([]byte(row.Value), &st.Counters.Total)
		case KeyLastReset:
			err = json.Unmarshal([]byte(row.Value), &st.LastReset)
		}
		if err != nil {
			return email.State{}, fmt.Errorf("decode %s: %w", row.Key, err)
		}
	}
	return st, nil
}

// decodeRecords also accepts the collection stored as a JSON string.
func decodeRecords(raw []byte) ([]email.MessageRecord, error) {
	var records []email.MessageRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(inner), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *StateRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", email.ErrPersistFailure, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, email.ErrBusy) {
			return err
		}
		return fmt.Errorf("%w: %w", email.ErrPersistFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", email.ErrPersistFailure, err)
	}
	return nil
}

func (r *StateRepository) put(ctx context.Context, tx *sqlx.Tx, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func getValue(ctx context.Context, q sqlx.QueryerContext, key string, dst any) error {
	var raw string
	err := sqlx.GetContext(ctx, q, &raw, "SELECT value FROM state WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dst)
}
