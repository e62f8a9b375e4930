package domain

import (
	"errors"

	"github.com/google/uuid"
)

// errStalePlan 計畫建立後帳本已有其他異動
var errStalePlan = errors.New("spend plan is stale")

// Book 帳本核心狀態：Transaction Log + Balance Tracker
//
// 不是 thread-safe。每一次 add / spend 的 Prepare/Plan 與 Commit 必須在
// 同一個臨界區內完成，中間不可有其他異動。
type Book struct {
	log      *TransactionLog
	balances *BalanceTracker
	// 最後一次提交的序號
	sequence uint64
}

func NewBook() *Book {
	return &Book{
		log:      NewTransactionLog(),
		balances: NewBalanceTracker(),
	}
}

// PrepareAdd 驗證交易並填入 ID、Sequence、Remaining，不改變帳本狀態
//
// 參數:
//
//	tran: 交易物件 (Payer, Points, Timestamp 由呼叫端提供)
//
// 回傳:
//
//	error: ErrZeroPoints, ErrNegativeTotalBalance, *PayerBalanceError
func (b *Book) PrepareAdd(tran *Transaction) error {
	if tran.Points == 0 {
		return ErrZeroPoints
	}
	if err := b.balances.Check(tran.Payer, tran.Points); err != nil {
		return err
	}
	if tran.ID == uuid.Nil {
		tran.ID = uuid.New()
	}
	tran.Sequence = b.sequence + 1
	tran.Remaining = tran.Points
	return nil
}

// CommitAdd 提交 PrepareAdd 過的交易
//
// log 保存的是 tran 的複本，之後的 Spend 不會改動呼叫端的 tran。
// 負數交易 (payer 修正) 以負的 Remaining 留在 log 中，
// 之後由 Spend 走訪到該 payer 最舊的交易時抵銷。
func (b *Book) CommitAdd(tran *Transaction) error {
	if tran.Sequence != b.sequence+1 {
		return errStalePlan
	}
	b.sequence = tran.Sequence
	stored := *tran
	b.log.Append(&stored)
	b.balances.Apply(tran.Payer, tran.Points)
	return nil
}

// Add PrepareAdd + CommitAdd
func (b *Book) Add(tran *Transaction) error {
	if err := b.PrepareAdd(tran); err != nil {
		return err
	}
	return b.CommitAdd(tran)
}

// SpendStep 花費計畫中的單一步驟
//
//	Take: 本次花費從 tran 扣除的點數
//	Absorb: 用來抵銷同 payer 負向修正的點數 (不計入花費)
type SpendStep struct {
	tran   *Transaction
	Take   int64
	Absorb int64
}

// Payer 此步驟扣點的 payer
func (s SpendStep) Payer() string {
	return s.tran.Payer
}

// TransactionID 此步驟扣點的交易
func (s SpendStep) TransactionID() uuid.UUID {
	return s.tran.ID
}

// SpendPlan 由 PlanSpend 產生，尚未套用至帳本
type SpendPlan struct {
	Sequence uint64
	Amount   int64
	Steps    []SpendStep
	// payer -> 本次抵銷的負向修正點數
	absorbed map[string]int64
}

// Deductions 依 payer 彙總扣點 (負數)
func (p *SpendPlan) Deductions() Deductions {
	deductions := make(Deductions)
	for _, step := range p.Steps {
		if step.Take > 0 {
			deductions[step.Payer()] -= step.Take
		}
	}
	return deductions
}

// PlanSpend 由最舊的交易開始規劃扣點，不改變帳本狀態
//
// 走訪到某 payer 的交易時，若該 payer 還有未抵銷的負向修正，
// 先用這筆交易的點數抵銷，剩下的才可以花費。
//
// 參數:
//
//	amount: 要花費的點數 (正數)
//
// 回傳:
//
//	*SpendPlan: 扣點計畫
//	error: ErrInvalidAmount, *InsufficientBalanceError
func (b *Book) PlanSpend(amount int64) (*SpendPlan, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	total := b.balances.Total()
	if amount > total {
		return nil, &InsufficientBalanceError{Requested: amount, Available: total}
	}

	plan := &SpendPlan{
		Sequence: b.sequence + 1,
		Amount:   amount,
		absorbed: make(map[string]int64),
	}
	debts := make(map[string]int64)
	remaining := amount
	b.log.OldestFirst(func(tran *Transaction) bool {
		debt, ok := debts[tran.Payer]
		if !ok {
			debt = b.log.Debt(tran.Payer)
		}
		absorb := min(debt, tran.Remaining)
		debts[tran.Payer] = debt - absorb
		take := min(tran.Remaining-absorb, remaining)
		if absorb > 0 {
			plan.absorbed[tran.Payer] += absorb
		}
		if absorb > 0 || take > 0 {
			plan.Steps = append(plan.Steps, SpendStep{tran: tran, Take: take, Absorb: absorb})
		}
		remaining -= take
		return remaining > 0
	})
	if remaining > 0 {
		return nil, &InsufficientBalanceError{Requested: amount, Available: total}
	}
	return plan, nil
}

// CommitSpend 套用 PlanSpend 產生的計畫，回傳各 payer 扣點
func (b *Book) CommitSpend(plan *SpendPlan) (Deductions, error) {
	if plan.Sequence != b.sequence+1 {
		return nil, errStalePlan
	}
	b.sequence = plan.Sequence
	for _, step := range plan.Steps {
		b.log.Reduce(step.tran, step.Take+step.Absorb)
	}
	for payer, amount := range plan.absorbed {
		b.log.Absorb(payer, amount)
	}
	deductions := plan.Deductions()
	for payer, delta := range deductions {
		b.balances.Apply(payer, delta)
	}
	return deductions, nil
}

// Spend PlanSpend + CommitSpend
func (b *Book) Spend(amount int64) (Deductions, error) {
	plan, err := b.PlanSpend(amount)
	if err != nil {
		return nil, err
	}
	return b.CommitSpend(plan)
}

// Balances 各 payer 點數快照
func (b *Book) Balances() Balances {
	return b.balances.Snapshot()
}

// Total 使用者總點數
func (b *Book) Total() int64 {
	return b.balances.Total()
}

// Transactions 依新增順序回傳所有交易 (包含已用完的紀錄)
func (b *Book) Transactions() []Transaction {
	return b.log.Entries()
}

// Sequence 最後一次提交的序號
func (b *Book) Sequence() uint64 {
	return b.sequence
}
