package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
)

// DefaultQueueSize 輸送帶預設容量
const DefaultQueueSize = 1000

type requestKind uint8

const (
	requestAdd requestKind = iota + 1
	requestSpend
	requestBalances
	requestTransactions
)

// ledgerRequest 請求包裝 channel，讓呼叫端可以等待結果
type ledgerRequest struct {
	kind   requestKind
	ctx    context.Context
	tran   *domain.Transaction
	spend  *domain.SpendRequest
	result chan ledgerResult
}

type ledgerResult struct {
	err          error
	deductions   domain.Deductions
	balances     domain.Balances
	transactions []domain.Transaction
}

// LMAXLedger 單一 goroutine 處理所有請求的帳本 (Level 2)
//
// AddTransaction(等待) -> Channel -> Run Loop (核心) -> Journal -> Book -> Result Channel -> AddTransaction(收到結果)
type LMAXLedger struct {
	core *ledgerCore
	// 輸送帶 負責接收請求
	requests chan *ledgerRequest
	// Pool 減少 GC 壓力
	requestPool sync.Pool
	// closed 之後不再接受請求，由 mu 保護
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，需呼叫 Start 才會開始處理
//
// 參數:
//
//	opts: Journal、Notifier、冪等鍵保留時間
//	queueSize: 輸送帶容量，<= 0 時使用 DefaultQueueSize
func NewLMAXLedger(opts Options, queueSize int) *LMAXLedger {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &LMAXLedger{
		core:     newLedgerCore(opts),
		requests: make(chan *ledgerRequest, queueSize),
		requestPool: sync.Pool{
			New: func() any {
				return &ledgerRequest{
					result: make(chan ledgerResult, 1),
				}
			},
		},
		done: make(chan struct{}),
	}
}

// Start 啟動核心引擎 (非同步)，ctx 結束後處理完剩下的請求再停止
func (l *LMAXLedger) Start(ctx context.Context) {
	go l.run(ctx)
}

// Done 引擎完全停止後關閉
func (l *LMAXLedger) Done() <-chan struct{} {
	return l.done
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case req := <-l.requests:
			l.process(req)
		}
	}
}

// shutdown 停止接收新請求，並處理完已經在輸送帶上的請求
func (l *LMAXLedger) shutdown() {
	// 取得寫鎖時，持有讀鎖的送件者可能正卡在滿的輸送帶上，所以要邊等邊處理
	locked := make(chan struct{})
	go func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(locked)
	}()
	for {
		select {
		case req := <-l.requests:
			l.process(req)
		case <-locked:
			l.drain()
			return
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case req := <-l.requests:
			l.process(req)
		default:
			return
		}
	}
}

// process 處理單筆請求並回傳結果
func (l *LMAXLedger) process(req *ledgerRequest) {
	var res ledgerResult
	switch req.kind {
	case requestAdd:
		res.err = l.core.addTransaction(req.ctx, req.tran)
	case requestSpend:
		res.deductions, res.err = l.core.spend(req.ctx, req.spend)
	case requestBalances:
		res.balances = l.core.balances()
	case requestTransactions:
		res.transactions = l.core.transactions()
	}
	req.result <- res
}

// submit 放入輸送帶並等待結果
// 請求一旦進入輸送帶就一定會被處理完，ctx 只影響排隊階段
func (l *LMAXLedger) submit(ctx context.Context, kind requestKind, tran *domain.Transaction, spend *domain.SpendRequest) ledgerResult {
	req := l.requestPool.Get().(*ledgerRequest)
	req.kind = kind
	req.ctx = ctx
	req.tran = tran
	req.spend = spend
	// 清空 Channel (理論上應該是空的)
	select {
	case <-req.result:
	default:
	}
	defer func() {
		req.ctx, req.tran, req.spend = nil, nil, nil
		l.requestPool.Put(req)
	}()

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ledgerResult{err: domain.ErrLedgerStopped}
	}
	select {
	case l.requests <- req:
		l.mu.RUnlock()
	case <-ctx.Done():
		l.mu.RUnlock()
		return ledgerResult{err: ctx.Err()}
	}
	return <-req.result
}

// AddTransaction 新增點數交易
func (l *LMAXLedger) AddTransaction(ctx context.Context, tran *domain.Transaction) error {
	return l.submit(ctx, requestAdd, tran, nil).err
}

// Spend 花費點數
func (l *LMAXLedger) Spend(ctx context.Context, req *domain.SpendRequest) (domain.Deductions, error) {
	res := l.submit(ctx, requestSpend, nil, req)
	return res.deductions, res.err
}

// GetBalances 取得各 payer 點數快照 (也經過輸送帶，避免與寫入競爭)
func (l *LMAXLedger) GetBalances(ctx context.Context) (domain.Balances, error) {
	res := l.submit(ctx, requestBalances, nil, nil)
	return res.balances, res.err
}

// ListTransactions 依新增順序列出所有交易
func (l *LMAXLedger) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	res := l.submit(ctx, requestTransactions, nil, nil)
	return res.transactions, res.err
}

var _ usecase.Ledger = (*LMAXLedger)(nil)
