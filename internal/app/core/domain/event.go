package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind 帳本事件類型
type EventKind string

const (
	EventKindAdd   EventKind = "add"
	EventKindSpend EventKind = "spend"
)

// Event 已通過驗證、即將提交 (或已提交) 的帳本異動，寫入稽核日誌並推播給訂閱者
type Event struct {
	Sequence uint64    `json:"sequence"`
	Kind     EventKind `json:"kind"`
	RefID    uuid.UUID `json:"ref_id"`
	// add 專用
	TransactionID uuid.UUID `json:"transaction_id,omitempty"`
	Payer         string    `json:"payer,omitempty"`
	Points        int64     `json:"points,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	// spend 專用
	Amount     int64      `json:"amount,omitempty"`
	Deductions Deductions `json:"deductions,omitempty"`
	// 寫入時的 server 時間
	RecordedAt time.Time `json:"recorded_at"`
}

// NewAddEvent 由交易建立 add 事件
func NewAddEvent(tran *Transaction, now time.Time) *Event {
	return &Event{
		Sequence:      tran.Sequence,
		Kind:          EventKindAdd,
		RefID:         tran.RefID,
		TransactionID: tran.ID,
		Payer:         tran.Payer,
		Points:        tran.Points,
		Timestamp:     tran.Timestamp,
		RecordedAt:    now,
	}
}

// NewSpendEvent 由花費計畫建立 spend 事件
func NewSpendEvent(plan *SpendPlan, refID uuid.UUID, now time.Time) *Event {
	return &Event{
		Sequence:   plan.Sequence,
		Kind:       EventKindSpend,
		RefID:      refID,
		Amount:     plan.Amount,
		Deductions: plan.Deductions(),
		RecordedAt: now,
	}
}
