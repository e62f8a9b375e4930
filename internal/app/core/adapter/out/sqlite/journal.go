package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
)

// DefaultFileName path 為目錄時使用的檔名
const DefaultFileName = "ledger.db"

func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ledger_events (
			sequence       INTEGER PRIMARY KEY,
			kind           TEXT NOT NULL,
			ref_id         TEXT,
			transaction_id TEXT,
			payer          TEXT,
			points         INTEGER NOT NULL DEFAULT 0,
			timestamp      TEXT,
			amount         INTEGER NOT NULL DEFAULT 0,
			deductions     TEXT,
			recorded_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_payer ON ledger_events(payer)`,
	}
}

// Journal 把帳本事件寫入 SQLite 的 ledger_events 表
type Journal struct {
	db *sql.DB
}

// NewJournal 開啟 SQLite 檔案並建立資料表
//
// 參數:
//
//	path: 資料庫檔案，或目錄 (使用 DefaultFileName)
func NewJournal(path string) (*Journal, error) {
	const op = "sqlite.NewJournal"

	if filepath.Ext(path) == "" {
		path = filepath.Join(path, DefaultFileName)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// SQLite 同一時間只允許一個寫入者
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: migrate: %w", op, err)
		}
	}
	return &Journal{db: db}, nil
}

// Append 寫入一筆事件
func (j *Journal) Append(ctx context.Context, event *domain.Event) error {
	const op = "sqlite.Journal.Append"

	var deductions sql.NullString
	if len(event.Deductions) > 0 {
		raw, err := json.Marshal(event.Deductions)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		deductions = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO ledger_events
			(sequence, kind, ref_id, transaction_id, payer, points, timestamp, amount, deductions, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Sequence,
		string(event.Kind),
		nullUUID(event.RefID),
		nullUUID(event.TransactionID),
		nullString(event.Payer),
		event.Points,
		nullTime(event.Timestamp),
		event.Amount,
		deductions,
		event.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Events 依序號讀出所有事件
func (j *Journal) Events(ctx context.Context) ([]domain.Event, error) {
	const op = "sqlite.Journal.Events"

	rows, err := j.db.QueryContext(ctx,
		`SELECT sequence, kind, ref_id, transaction_id, payer, points, timestamp, amount, deductions, recorded_at
		FROM ledger_events ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event                                  domain.Event
			kind, recordedAt                       string
			refID, tranID, payer, ts, deductionsJS sql.NullString
		)
		if err := rows.Scan(&event.Sequence, &kind, &refID, &tranID, &payer, &event.Points, &ts, &event.Amount, &deductionsJS, &recordedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		event.Kind = domain.EventKind(kind)
		event.Payer = payer.String
		if refID.Valid {
			event.RefID, _ = uuid.Parse(refID.String)
		}
		if tranID.Valid {
			event.TransactionID, _ = uuid.Parse(tranID.String)
		}
		if ts.Valid {
			event.Timestamp, _ = time.Parse(time.RFC3339Nano, ts.String)
		}
		event.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		if deductionsJS.Valid {
			if err := json.Unmarshal([]byte(deductionsJS.String), &event.Deductions); err != nil {
				return nil, fmt.Errorf("%s: deductions: %w", op, err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// Close 關閉資料庫
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullUUID(id uuid.UUID) sql.NullString {
	if id == uuid.Nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

var _ usecase.Journal = (*Journal)(nil)
