package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/lib/logger/sl"
	"github.com/JoeShih716/go-points-ledger/internal/observability"
)

// CoreUseCase 是核心業務邏輯層
// 包裝 Ledger，負責 log 與 metrics；帳務規則全部在 Ledger / domain 內
type CoreUseCase struct {
	ledger Ledger
	log    *slog.Logger
}

func NewCoreUseCase(ledger Ledger, log *slog.Logger) *CoreUseCase {
	return &CoreUseCase{
		ledger: ledger,
		log:    log,
	}
}

// AddTransaction 新增點數交易
func (c *CoreUseCase) AddTransaction(ctx context.Context, tran *domain.Transaction) error {
	const op = "usecase.AddTransaction"
	start := time.Now()

	err := c.ledger.AddTransaction(ctx, tran)
	observability.ObserveOperation(observability.OpAddTransaction, start, err)
	if err != nil {
		c.logFailure(op, err, slog.String("payer", tran.Payer), slog.Int64("points", tran.Points))
		return err
	}

	c.log.Debug("transaction added",
		sl.Op(op),
		slog.String("payer", tran.Payer),
		slog.Int64("points", tran.Points),
		slog.Uint64("sequence", tran.Sequence),
	)
	c.refreshBalances(ctx)
	return nil
}

// Spend 花費點數，回傳各 payer 扣點
func (c *CoreUseCase) Spend(ctx context.Context, req *domain.SpendRequest) (domain.Deductions, error) {
	const op = "usecase.Spend"
	start := time.Now()

	deductions, err := c.ledger.Spend(ctx, req)
	observability.ObserveOperation(observability.OpSpend, start, err)
	if err != nil {
		c.logFailure(op, err, slog.Int64("amount", req.Amount))
		return nil, err
	}

	observability.LedgerPointsSpent.Add(float64(deductions.Total()))
	c.log.Debug("points spent",
		sl.Op(op),
		slog.Int64("amount", req.Amount),
		slog.Any("deductions", deductions),
	)
	c.refreshBalances(ctx)
	return deductions, nil
}

// GetBalances 取得各 payer 點數
func (c *CoreUseCase) GetBalances(ctx context.Context) (domain.Balances, error) {
	start := time.Now()
	balances, err := c.ledger.GetBalances(ctx)
	observability.ObserveOperation(observability.OpGetBalances, start, err)
	return balances, err
}

// ListTransactions 列出所有交易
func (c *CoreUseCase) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	start := time.Now()
	trans, err := c.ledger.ListTransactions(ctx)
	observability.ObserveOperation(observability.OpListTransactions, start, err)
	return trans, err
}

// logFailure 業務錯誤記 Info，其餘記 Error
func (c *CoreUseCase) logFailure(op string, err error, attrs ...any) {
	args := append([]any{sl.Op(op), sl.Err(err)}, attrs...)
	if domain.IsBusinessError(err) {
		c.log.Info("request rejected", args...)
		return
	}
	c.log.Error("request failed", args...)
}

func (c *CoreUseCase) refreshBalances(ctx context.Context) {
	balances, err := c.ledger.GetBalances(ctx)
	if err != nil {
		return
	}
	observability.ObserveBalances(balances)
}
