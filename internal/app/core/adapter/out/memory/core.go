package memory

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-points-ledger/internal/observability"
)

// DefaultIdempotencyTTL 冪等鍵預設保留時間
const DefaultIdempotencyTTL = 10 * time.Minute

// Options 帳本共用設定
//
//	Journal: 稽核日誌 (可為 nil)
//	JournalDriver: metrics 上的 journal 名稱 (file / sqlite / mysql)
//	Notifier: 提交後通知 (可為 nil)
//	IdempotencyTTL: RefID 保留時間，<= 0 時使用 DefaultIdempotencyTTL
type Options struct {
	Journal        usecase.Journal
	JournalDriver  string
	Notifier       usecase.Notifier
	IdempotencyTTL time.Duration
}

// ledgerCore 不含同步機制的帳本處理流程
// 由 MutexLedger (Mutex) 或 LMAXLedger (單一 goroutine) 保證同一時間只有一個呼叫
type ledgerCore struct {
	book *domain.Book
	// 已處理過的請求 RefID -> 結果
	processed *cache.Cache
	journal   usecase.Journal
	driver    string
	notifier  usecase.Notifier
	now       func() time.Time
}

func newLedgerCore(opts Options) *ledgerCore {
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &ledgerCore{
		book:      domain.NewBook(),
		processed: cache.New(ttl, 2*ttl),
		journal:   opts.Journal,
		driver:    opts.JournalDriver,
		notifier:  opts.Notifier,
		now:       time.Now,
	}
}

func addKey(refID uuid.UUID) string   { return "add:" + refID.String() }
func spendKey(refID uuid.UUID) string { return "spend:" + refID.String() }

// spendResult 快取中保存的花費結果
type spendResult struct {
	amount     int64
	deductions domain.Deductions
}

// sameAdd 重送的 add 必須與第一次的內容相同
func sameAdd(prev, tran *domain.Transaction) bool {
	return prev.Payer == tran.Payer &&
		prev.Points == tran.Points &&
		prev.Timestamp.Equal(tran.Timestamp)
}

// addTransaction 處理新增交易
//
// 流程: 冪等檢查 -> 驗證 -> 寫入 Journal -> 提交 -> 通知
// Journal 寫入失敗時帳本不會有任何異動
// 同一個 RefID 帶不同內容時回傳 ErrIdempotencyKeyReused
func (c *ledgerCore) addTransaction(ctx context.Context, tran *domain.Transaction) error {
	if tran.RefID != uuid.Nil {
		if v, ok := c.processed.Get(addKey(tran.RefID)); ok {
			prev := v.(domain.Transaction)
			if !sameAdd(&prev, tran) {
				return domain.ErrIdempotencyKeyReused
			}
			tran.ID = prev.ID
			tran.Sequence = prev.Sequence
			tran.Remaining = prev.Remaining
			observability.LedgerIdempotentReplays.WithLabelValues(observability.OpAddTransaction).Inc()
			return nil
		}
	}

	if err := c.book.PrepareAdd(tran); err != nil {
		return err
	}

	event := domain.NewAddEvent(tran, c.now())
	if err := c.appendJournal(ctx, event); err != nil {
		return err
	}
	if err := c.book.CommitAdd(tran); err != nil {
		return err
	}

	if tran.RefID != uuid.Nil {
		c.processed.SetDefault(addKey(tran.RefID), *tran)
	}
	c.publish(event)
	return nil
}

// spend 處理花費
//
// 流程: 冪等檢查 -> 規劃扣點 -> 寫入 Journal -> 提交 -> 通知
func (c *ledgerCore) spend(ctx context.Context, req *domain.SpendRequest) (domain.Deductions, error) {
	if req.RefID != uuid.Nil {
		if v, ok := c.processed.Get(spendKey(req.RefID)); ok {
			prev := v.(spendResult)
			if prev.amount != req.Amount {
				return nil, domain.ErrIdempotencyKeyReused
			}
			observability.LedgerIdempotentReplays.WithLabelValues(observability.OpSpend).Inc()
			return maps.Clone(prev.deductions), nil
		}
	}

	plan, err := c.book.PlanSpend(req.Amount)
	if err != nil {
		return nil, err
	}

	event := domain.NewSpendEvent(plan, req.RefID, c.now())
	if err := c.appendJournal(ctx, event); err != nil {
		return nil, err
	}
	deductions, err := c.book.CommitSpend(plan)
	if err != nil {
		return nil, err
	}

	if req.RefID != uuid.Nil {
		c.processed.SetDefault(spendKey(req.RefID), spendResult{amount: req.Amount, deductions: maps.Clone(deductions)})
	}
	c.publish(event)
	return deductions, nil
}

func (c *ledgerCore) balances() domain.Balances {
	return c.book.Balances()
}

func (c *ledgerCore) transactions() []domain.Transaction {
	return c.book.Transactions()
}

func (c *ledgerCore) appendJournal(ctx context.Context, event *domain.Event) error {
	if c.journal == nil {
		return nil
	}
	err := c.journal.Append(ctx, event)
	observability.ObserveJournalWrite(c.driver, err)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrJournalWriteFailed, err)
	}
	return nil
}

func (c *ledgerCore) publish(event *domain.Event) {
	if c.notifier == nil {
		return
	}
	c.notifier.Publish(event)
}
