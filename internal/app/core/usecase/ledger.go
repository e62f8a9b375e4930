package usecase

import (
	"context"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
)

// Ledger 是點數帳本的介面
type Ledger interface {
	// AddTransaction 新增一筆點數交易 (正數為 earn，負數為 payer 修正)
	AddTransaction(ctx context.Context, tran *domain.Transaction) error
	// Spend 由最舊的點數開始花費，回傳各 payer 扣點
	Spend(ctx context.Context, req *domain.SpendRequest) (domain.Deductions, error)
	// GetBalances 取得各 payer 點數
	GetBalances(ctx context.Context) (domain.Balances, error)
	// ListTransactions 依新增順序列出所有交易
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
}

// Journal 稽核日誌，在異動提交前寫入；寫入失敗時異動不會發生
type Journal interface {
	Append(ctx context.Context, event *domain.Event) error
}

// Notifier 異動提交後的通知 (best effort，不可阻塞)
type Notifier interface {
	Publish(event *domain.Event)
}
