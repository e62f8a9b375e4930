package file

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-points-ledger/pkg/wal"
)

// Journal 把帳本事件逐行寫入 WAL 檔
type Journal struct {
	wal *wal.WAL
}

// NewJournal 開啟 (或建立) 事件日誌檔
//
// 參數:
//
//	path: 檔案路徑
//	syncEachWrite: 每筆事件寫入後是否 fsync
func NewJournal(path string, syncEachWrite bool) (*Journal, error) {
	const op = "file.NewJournal"

	var opts []wal.Option
	if !syncEachWrite {
		opts = append(opts, wal.WithoutSync())
	}
	w, err := wal.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Journal{wal: w}, nil
}

// Append 寫入一筆事件
func (j *Journal) Append(ctx context.Context, event *domain.Event) error {
	const op = "file.Journal.Append"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := j.wal.Write(event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Events 依寫入順序讀出所有事件
func (j *Journal) Events() ([]domain.Event, error) {
	const op = "file.Journal.Events"

	var events []domain.Event
	err := j.wal.ReadAll(func(raw json.RawMessage) error {
		var event domain.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return err
		}
		events = append(events, event)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// Close 關閉日誌檔
func (j *Journal) Close() error {
	return j.wal.Close()
}

var _ usecase.Journal = (*Journal)(nil)
