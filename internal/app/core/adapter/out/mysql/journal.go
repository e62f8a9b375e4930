package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-points-ledger/pkg/mysql"
)

// ErrDuplicateEvent 相同序號的事件已寫入
var ErrDuplicateEvent = errors.New("mysql: duplicate ledger event")

// sqlEvent 對應資料庫的 ledger_events 表
type sqlEvent struct {
	Sequence      uint64 `gorm:"primaryKey;autoIncrement:false"`
	Kind          string `gorm:"type:varchar(16);not null"`
	RefID         []byte `gorm:"column:ref_id;type:binary(16)"`
	TransactionID []byte `gorm:"column:transaction_id;type:binary(16)"`
	Payer         string `gorm:"type:varchar(128);index"`
	Points        int64
	Timestamp     *time.Time
	Amount        int64
	Deductions    []byte `gorm:"type:json"`
	RecordedAt    time.Time
	CreatedAt     int64 `gorm:"autoCreateTime:milli"` // 自動寫入時間
}

func (*sqlEvent) TableName() string {
	return "ledger_events"
}

// Journal 把帳本事件寫入 MySQL
type Journal struct {
	client *mysql.Client
}

// NewJournal 建立 Journal，並自動建立 ledger_events 表
func NewJournal(client *mysql.Client) (*Journal, error) {
	const op = "mysql.NewJournal"

	if err := client.DB().AutoMigrate(&sqlEvent{}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Journal{client: client}, nil
}

// Append 寫入一筆事件
func (j *Journal) Append(ctx context.Context, event *domain.Event) error {
	const op = "mysql.Journal.Append"

	row, err := toSQLEvent(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := j.client.DB().WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s: %w", op, ErrDuplicateEvent)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Events 依序號讀出事件
//
// 參數:
//
//	afterSequence: 只讀出序號大於此值的事件
//	limit: 最多筆數，<= 0 不限制
func (j *Journal) Events(ctx context.Context, afterSequence uint64, limit int) ([]domain.Event, error) {
	const op = "mysql.Journal.Events"

	query := j.client.DB().WithContext(ctx).
		Where("sequence > ?", afterSequence).
		Order("sequence")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []sqlEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events := make([]domain.Event, 0, len(rows))
	for i := range rows {
		event, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func toSQLEvent(event *domain.Event) (*sqlEvent, error) {
	row := &sqlEvent{
		Sequence:   event.Sequence,
		Kind:       string(event.Kind),
		Payer:      event.Payer,
		Points:     event.Points,
		Amount:     event.Amount,
		RecordedAt: event.RecordedAt,
	}
	if event.RefID != uuid.Nil {
		row.RefID = event.RefID[:]
	}
	if event.TransactionID != uuid.Nil {
		row.TransactionID = event.TransactionID[:]
	}
	if !event.Timestamp.IsZero() {
		ts := event.Timestamp
		row.Timestamp = &ts
	}
	if len(event.Deductions) > 0 {
		raw, err := json.Marshal(event.Deductions)
		if err != nil {
			return nil, err
		}
		row.Deductions = raw
	}
	return row, nil
}

func (r *sqlEvent) toDomain() (domain.Event, error) {
	event := domain.Event{
		Sequence:   r.Sequence,
		Kind:       domain.EventKind(r.Kind),
		Payer:      r.Payer,
		Points:     r.Points,
		Amount:     r.Amount,
		RecordedAt: r.RecordedAt,
	}
	var err error
	if len(r.RefID) > 0 {
		if event.RefID, err = uuid.FromBytes(r.RefID); err != nil {
			return event, err
		}
	}
	if len(r.TransactionID) > 0 {
		if event.TransactionID, err = uuid.FromBytes(r.TransactionID); err != nil {
			return event, err
		}
	}
	if r.Timestamp != nil {
		event.Timestamp = *r.Timestamp
	}
	if len(r.Deductions) > 0 {
		if err := json.Unmarshal(r.Deductions, &event.Deductions); err != nil {
			return event, err
		}
	}
	return event, nil
}

var _ usecase.Journal = (*Journal)(nil)
