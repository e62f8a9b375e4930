package domain

import (
	"github.com/google/btree"
)

// btreeDegree B-Tree 分支度
const btreeDegree = 32

// TransactionLog 交易紀錄
//
// 結構:
//
//	entries: 依新增順序保存的所有交易 (包含已歸零的紀錄)
//	live: Remaining > 0 的交易，依 (Timestamp, Sequence) 排序
//	pending: 每個 payer 尚未被抵銷的負向修正 (Remaining < 0)
//	debt: 每個 payer 尚未被抵銷的負向修正點數加總 (正數)
//
// 索引隨新增與扣點增量維護，Spend 不需要每次重新排序整個 log。
type TransactionLog struct {
	entries []*Transaction
	live    *btree.BTreeG[*Transaction]
	pending map[string]*btree.BTreeG[*Transaction]
	debt    map[string]int64
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		entries: make([]*Transaction, 0),
		live:    btree.NewG[*Transaction](btreeDegree, olderThan),
		pending: make(map[string]*btree.BTreeG[*Transaction]),
		debt:    make(map[string]int64),
	}
}

// Append 新增一筆交易至 log 尾端，不做任何驗證
func (l *TransactionLog) Append(tran *Transaction) {
	l.entries = append(l.entries, tran)
	switch {
	case tran.Remaining > 0:
		l.live.ReplaceOrInsert(tran)
	case tran.Remaining < 0:
		tree, ok := l.pending[tran.Payer]
		if !ok {
			tree = btree.NewG[*Transaction](btreeDegree, olderThan)
			l.pending[tran.Payer] = tree
		}
		tree.ReplaceOrInsert(tran)
		l.debt[tran.Payer] -= tran.Remaining
	}
}

// OldestFirst 由舊到新走訪 Remaining > 0 的交易，fn 回傳 false 時停止
// 走訪期間不可呼叫 Reduce
func (l *TransactionLog) OldestFirst(fn func(tran *Transaction) bool) {
	l.live.Ascend(fn)
}

// Debt payer 尚未被抵銷的負向修正點數 (正數)
func (l *TransactionLog) Debt(payer string) int64 {
	return l.debt[payer]
}

// Reduce 將交易的 Remaining 往 0 移動 by 點，不會越過 0
// 歸零後從索引移除，但仍保留在 entries
func (l *TransactionLog) Reduce(tran *Transaction, by int64) {
	if by <= 0 || tran.Remaining == 0 {
		return
	}
	if tran.Remaining > 0 {
		by = min(by, tran.Remaining)
		tran.Remaining -= by
		if tran.Remaining == 0 {
			l.live.Delete(tran)
		}
		return
	}

	by = min(by, -tran.Remaining)
	tran.Remaining += by
	l.debt[tran.Payer] -= by
	if tran.Remaining < 0 {
		return
	}
	tree := l.pending[tran.Payer]
	tree.Delete(tran)
	if tree.Len() == 0 {
		delete(l.pending, tran.Payer)
		delete(l.debt, tran.Payer)
	}
}

// Absorb 由最舊的負向修正開始抵銷 payer 的 amount 點
func (l *TransactionLog) Absorb(payer string, amount int64) {
	tree, ok := l.pending[payer]
	if !ok {
		return
	}
	var targets []*Transaction
	left := amount
	tree.Ascend(func(tran *Transaction) bool {
		targets = append(targets, tran)
		left += tran.Remaining
		return left > 0
	})
	for _, tran := range targets {
		by := min(-tran.Remaining, amount)
		l.Reduce(tran, by)
		amount -= by
	}
}

// Entries 依新增順序回傳所有交易的複本
func (l *TransactionLog) Entries() []Transaction {
	out := make([]Transaction, 0, len(l.entries))
	for _, tran := range l.entries {
		out = append(out, *tran)
	}
	return out
}

// Len 所有交易筆數 (包含已歸零的紀錄)
func (l *TransactionLog) Len() int {
	return len(l.entries)
}

// LiveLen Remaining > 0 的交易筆數
func (l *TransactionLog) LiveLen() int {
	return l.live.Len()
}
