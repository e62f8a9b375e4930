package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction 一筆點數交易 (earn 或 payer 修正)
//
// Points 為新增時的原始點數 (可為負)，Remaining 為尚未結清的點數。
// 正向交易的 Remaining 由 Points 遞減至 0 (被花費或抵銷修正)；
// 負向修正的 Remaining 由 Points 遞增至 0 (被同 payer 的點數抵銷)。
// 歸零後紀錄仍保留在 log 中。
type Transaction struct {
	// ID: 由帳本分配
	ID uuid.UUID `json:"id"`
	// RefID: 外部冪等鍵 (可為 uuid.Nil)
	RefID uuid.UUID `json:"ref_id"`
	// Sequence: 帳本內全局遞增序號，同時作為同 timestamp 時的排序依據
	Sequence  uint64    `json:"sequence"`
	Payer     string    `json:"payer"`
	Points    int64     `json:"points"`
	Remaining int64     `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

// Exhausted 點數已用完 (或為負向修正紀錄)
func (t *Transaction) Exhausted() bool {
	return t.Remaining <= 0
}

// olderThan 以 (Timestamp, Sequence) 排序，越舊越前面
func olderThan(a, b *Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Sequence < b.Sequence
}

// SpendRequest 花費請求
type SpendRequest struct {
	RefID  uuid.UUID
	Amount int64
}

// Balances payer -> 點數
type Balances map[string]int64

// Total 加總所有 payer 點數
func (b Balances) Total() int64 {
	var total int64
	for _, points := range b {
		total += points
	}
	return total
}

// Deductions payer -> 本次扣除點數 (負數)
type Deductions map[string]int64

// Total 回傳本次扣除的總點數 (正數)
func (d Deductions) Total() int64 {
	var total int64
	for _, points := range d {
		total -= points
	}
	return total
}
