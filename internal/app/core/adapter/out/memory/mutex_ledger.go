package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	core: 帳本處理流程 (Transaction Log + Balance Tracker + 冪等 + Journal)
//	mu: 保護 core 的 RWMutex，add / spend 期間全程持有寫鎖
type MutexLedger struct {
	core *ledgerCore
	mu   sync.RWMutex
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	opts: Journal、Notifier、冪等鍵保留時間
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
func NewMutexLedger(opts Options) *MutexLedger {
	return &MutexLedger{
		core: newLedgerCore(opts),
	}
}

// AddTransaction 新增點數交易 (Level 1: Mutex Lock)
//
// 驗證、寫入 Journal、提交在同一個臨界區內完成，
// 其他 add / spend 不會在檢查與套用之間插入。
//
// 回傳:
//
//	error: ErrZeroPoints, ErrNegativeTotalBalance, *PayerBalanceError, ErrJournalWriteFailed
func (m *MutexLedger) AddTransaction(ctx context.Context, tran *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.core.addTransaction(ctx, tran)
}

// Spend 花費點數 (Level 1: Mutex Lock)
//
// 回傳:
//
//	domain.Deductions: 各 payer 扣點 (負數)
//	error: ErrInvalidAmount, *InsufficientBalanceError, ErrJournalWriteFailed
func (m *MutexLedger) Spend(ctx context.Context, req *domain.SpendRequest) (domain.Deductions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.core.spend(ctx, req)
}

// GetBalances 取得各 payer 點數快照
func (m *MutexLedger) GetBalances(ctx context.Context) (domain.Balances, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.core.balances(), nil
}

// ListTransactions 依新增順序列出所有交易
func (m *MutexLedger) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.core.transactions(), nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
