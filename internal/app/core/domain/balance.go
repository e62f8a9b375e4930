package domain

import "math"

// BalanceTracker 使用者總點數與各 payer 點數
// 不是 thread-safe，由 ledger 的鎖 (或單一 goroutine) 保護
type BalanceTracker struct {
	total    int64
	perPayer map[string]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		perPayer: make(map[string]int64),
	}
}

// CanApply 套用 delta 後總點數與 payer 點數都不會為負
// 從未出現過的 payer 不可收到負數 delta
func (b *BalanceTracker) CanApply(payer string, delta int64) bool {
	return b.Check(payer, delta) == nil
}

// Check 與 CanApply 相同的規則，回傳對應的錯誤
//
// 回傳:
//
//	ErrPointsOverflow: 總點數超出 int64
//	ErrNegativeTotalBalance: 總點數會變成負數
//	*PayerBalanceError: payer 點數會變成負數
func (b *BalanceTracker) Check(payer string, delta int64) error {
	// total 不為負，只有正數 delta 會溢位；payer 點數不會超過 total
	if delta > 0 && b.total > math.MaxInt64-delta {
		return ErrPointsOverflow
	}
	if b.total+delta < 0 {
		return ErrNegativeTotalBalance
	}
	if delta >= 0 {
		return nil
	}
	current, ok := b.perPayer[payer]
	if !ok || current+delta < 0 {
		return &PayerBalanceError{Payer: payer, Balance: current}
	}
	return nil
}

// Apply 套用 delta，呼叫前須先通過 Check
func (b *BalanceTracker) Apply(payer string, delta int64) {
	b.total += delta
	b.perPayer[payer] += delta
}

// Total 使用者總點數
func (b *BalanceTracker) Total() int64 {
	return b.total
}

// Payer 回傳 payer 點數，第二個回傳值區分「不存在」與「點數為 0」
func (b *BalanceTracker) Payer(payer string) (int64, bool) {
	points, ok := b.perPayer[payer]
	return points, ok
}

// Snapshot 回傳 perPayer 的複本
func (b *BalanceTracker) Snapshot() Balances {
	snapshot := make(Balances, len(b.perPayer))
	for payer, points := range b.perPayer {
		snapshot[payer] = points
	}
	return snapshot
}
