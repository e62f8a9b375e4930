package memory

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
)

type recordingJournal struct {
	mu     sync.Mutex
	events []domain.Event
	fail   error
}

func (j *recordingJournal) Append(ctx context.Context, event *domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.events = append(j.events, *event)
	return nil
}

func (j *recordingJournal) Events() []domain.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.Event(nil), j.events...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Publish(event *domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, *event)
}

var baseTime = time.Date(2020, 11, 2, 14, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

// engines 兩種實作跑同一組測試
func engines(t *testing.T, opts Options) map[string]usecase.Ledger {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	lmax := NewLMAXLedger(opts, 16)
	lmax.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-lmax.Done()
	})
	return map[string]usecase.Ledger{
		"mutex": NewMutexLedger(opts),
		"lmax":  lmax,
	}
}

func add(t *testing.T, l usecase.Ledger, payer string, points int64, ts time.Time) {
	t.Helper()
	if err := l.AddTransaction(context.Background(), &domain.Transaction{Payer: payer, Points: points, Timestamp: ts}); err != nil {
		t.Fatalf("AddTransaction(%s, %d) error = %v", payer, points, err)
	}
}

func assertBalancesConsistent(t *testing.T, l usecase.Ledger) domain.Balances {
	t.Helper()
	ctx := context.Background()
	balances, err := l.GetBalances(ctx)
	if err != nil {
		t.Fatalf("GetBalances error = %v", err)
	}
	trans, err := l.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions error = %v", err)
	}
	perPayer := make(map[string]int64)
	for _, tran := range trans {
		perPayer[tran.Payer] += tran.Remaining
	}
	for payer, points := range balances {
		if points < 0 {
			t.Fatalf("balance[%s] = %d, want >= 0", payer, points)
		}
		if perPayer[payer] != points {
			t.Fatalf("sum(log[%s]) = %d, balance = %d", payer, perPayer[payer], points)
		}
	}
	if balances.Total() < 0 {
		t.Fatalf("total = %d, want >= 0", balances.Total())
	}
	return balances
}

func TestLedger_AddAndSpend(t *testing.T) {
	for name, l := range engines(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			add(t, l, "X", 10, at(1))
			add(t, l, "Y", 10, at(2))

			got, err := l.Spend(ctx, &domain.SpendRequest{Amount: 15})
			if err != nil {
				t.Fatalf("Spend(15) error = %v", err)
			}
			if got["X"] != -10 || got["Y"] != -5 {
				t.Errorf("Spend(15) = %v, want X:-10 Y:-5", got)
			}

			_, err = l.Spend(ctx, &domain.SpendRequest{Amount: 6})
			if !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Errorf("Spend(6) error = %v, want ErrInsufficientBalance", err)
			}
			balances := assertBalancesConsistent(t, l)
			if balances["X"] != 0 || balances["Y"] != 5 {
				t.Errorf("balances = %v, want X:0 Y:5", balances)
			}
		})
	}
}

func TestLedger_IdempotentRetry(t *testing.T) {
	for name, l := range engines(t, Options{IdempotencyTTL: time.Minute}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := uuid.New()

			first := &domain.Transaction{RefID: ref, Payer: "X", Points: 100, Timestamp: at(1)}
			if err := l.AddTransaction(ctx, first); err != nil {
				t.Fatalf("AddTransaction error = %v", err)
			}
			retry := &domain.Transaction{RefID: ref, Payer: "X", Points: 100, Timestamp: at(1)}
			if err := l.AddTransaction(ctx, retry); err != nil {
				t.Fatalf("retry error = %v", err)
			}
			if retry.ID != first.ID || retry.Sequence != first.Sequence {
				t.Errorf("retry = %s/%d, want %s/%d", retry.ID, retry.Sequence, first.ID, first.Sequence)
			}

			spendRef := uuid.New()
			d1, err := l.Spend(ctx, &domain.SpendRequest{RefID: spendRef, Amount: 30})
			if err != nil {
				t.Fatalf("Spend error = %v", err)
			}
			d2, err := l.Spend(ctx, &domain.SpendRequest{RefID: spendRef, Amount: 30})
			if err != nil {
				t.Fatalf("Spend retry error = %v", err)
			}
			if d1["X"] != -30 || d2["X"] != -30 {
				t.Errorf("deductions = %v / %v, want X:-30 twice", d1, d2)
			}

			balances := assertBalancesConsistent(t, l)
			if balances["X"] != 70 {
				t.Errorf("balance X = %d, want 70 (retries applied once)", balances["X"])
			}
		})
	}
}

func TestLedger_ReusedKeyWithDifferentRequest(t *testing.T) {
	for name, l := range engines(t, Options{IdempotencyTTL: time.Minute}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := uuid.New()

			if err := l.AddTransaction(ctx, &domain.Transaction{RefID: ref, Payer: "X", Points: 100, Timestamp: at(1)}); err != nil {
				t.Fatalf("AddTransaction error = %v", err)
			}
			changed := []*domain.Transaction{
				{RefID: ref, Payer: "Y", Points: 100, Timestamp: at(1)},
				{RefID: ref, Payer: "X", Points: 99, Timestamp: at(1)},
				{RefID: ref, Payer: "X", Points: 100, Timestamp: at(2)},
			}
			for _, tran := range changed {
				if err := l.AddTransaction(ctx, tran); !errors.Is(err, domain.ErrIdempotencyKeyReused) {
					t.Errorf("AddTransaction(%s, %d, %s) error = %v, want ErrIdempotencyKeyReused", tran.Payer, tran.Points, tran.Timestamp, err)
				}
			}

			spendRef := uuid.New()
			if _, err := l.Spend(ctx, &domain.SpendRequest{RefID: spendRef, Amount: 10}); err != nil {
				t.Fatalf("Spend error = %v", err)
			}
			if _, err := l.Spend(ctx, &domain.SpendRequest{RefID: spendRef, Amount: 20}); !errors.Is(err, domain.ErrIdempotencyKeyReused) {
				t.Errorf("Spend with reused key error = %v, want ErrIdempotencyKeyReused", err)
			}

			balances := assertBalancesConsistent(t, l)
			if len(balances) != 1 || balances["X"] != 90 {
				t.Errorf("balances = %v, want X:90", balances)
			}
		})
	}
}

// 呼叫端在鎖外讀取自己的 tran 時，同時進行的 Spend 不可改動它
func TestLedger_AddedTransactionIsNotSharedWithSpends(t *testing.T) {
	for name, l := range engines(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tran := &domain.Transaction{Payer: "X", Points: 100, Timestamp: at(1)}
			if err := l.AddTransaction(ctx, tran); err != nil {
				t.Fatalf("AddTransaction error = %v", err)
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if _, err := l.Spend(ctx, &domain.SpendRequest{Amount: 1}); err != nil {
						t.Errorf("Spend(1) error = %v", err)
						return
					}
				}
			}()
			for i := 0; i < 50; i++ {
				if _, err := json.Marshal(tran); err != nil {
					t.Fatalf("Marshal error = %v", err)
				}
			}
			wg.Wait()

			if tran.Remaining != 100 {
				t.Errorf("caller Remaining = %d, want 100", tran.Remaining)
			}
			trans, err := l.ListTransactions(ctx)
			if err != nil {
				t.Fatalf("ListTransactions error = %v", err)
			}
			if len(trans) != 1 || trans[0].Remaining != 50 {
				t.Errorf("stored = %+v, want Remaining 50", trans)
			}
		})
	}
}

func TestLedger_FailedRequestIsNotRemembered(t *testing.T) {
	for name, l := range engines(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := uuid.New()
			if _, err := l.Spend(ctx, &domain.SpendRequest{RefID: ref, Amount: 5}); err == nil {
				t.Fatal("Spend on empty ledger should fail")
			}
			add(t, l, "X", 5, at(1))
			got, err := l.Spend(ctx, &domain.SpendRequest{RefID: ref, Amount: 5})
			if err != nil {
				t.Fatalf("Spend retry after failure error = %v", err)
			}
			if got["X"] != -5 {
				t.Errorf("Spend = %v, want X:-5", got)
			}
		})
	}
}

func TestLedger_JournalFailureLeavesStateUntouched(t *testing.T) {
	journal := &recordingJournal{}
	for name, l := range engines(t, Options{Journal: journal}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			add(t, l, "X", 10, at(1))

			journal.mu.Lock()
			journal.fail = errors.New("disk full")
			journal.mu.Unlock()
			defer func() {
				journal.mu.Lock()
				journal.fail = nil
				journal.mu.Unlock()
			}()

			err := l.AddTransaction(ctx, &domain.Transaction{Payer: "Y", Points: 5, Timestamp: at(2)})
			if !errors.Is(err, domain.ErrJournalWriteFailed) {
				t.Errorf("AddTransaction error = %v, want ErrJournalWriteFailed", err)
			}
			_, err = l.Spend(ctx, &domain.SpendRequest{Amount: 4})
			if !errors.Is(err, domain.ErrJournalWriteFailed) {
				t.Errorf("Spend error = %v, want ErrJournalWriteFailed", err)
			}

			balances := assertBalancesConsistent(t, l)
			if len(balances) != 1 || balances["X"] != 10 {
				t.Errorf("balances = %v, want only X:10", balances)
			}
			trans, _ := l.ListTransactions(ctx)
			if len(trans) != 1 || trans[0].Remaining != 10 {
				t.Errorf("transactions = %+v, want one untouched entry", trans)
			}
		})
	}
}

func TestLedger_JournalAndNotifierReceiveEvents(t *testing.T) {
	journal := &recordingJournal{}
	notifier := &recordingNotifier{}
	l := NewMutexLedger(Options{Journal: journal, Notifier: notifier})
	ctx := context.Background()

	add(t, l, "X", 10, at(1))
	if _, err := l.Spend(ctx, &domain.SpendRequest{Amount: 4}); err != nil {
		t.Fatalf("Spend error = %v", err)
	}
	// 失敗的請求不寫 journal
	_ = l.AddTransaction(ctx, &domain.Transaction{Payer: "X", Points: 0, Timestamp: at(2)})

	events := journal.Events()
	if len(events) != 2 {
		t.Fatalf("journal events = %d, want 2", len(events))
	}
	if events[0].Kind != domain.EventKindAdd || events[0].Payer != "X" || events[0].Points != 10 {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Kind != domain.EventKindSpend || events[1].Amount != 4 || events[1].Deductions["X"] != -4 {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Errorf("sequences = %d, %d; want 1, 2", events[0].Sequence, events[1].Sequence)
	}
	if len(notifier.events) != 2 {
		t.Errorf("notified events = %d, want 2", len(notifier.events))
	}
}

func TestLedger_ConcurrentAddSpendKeepsInvariants(t *testing.T) {
	for name, l := range engines(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payers := []string{"A", "B", "C"}
			const workers = 16
			const perWorker = 200

			var wg sync.WaitGroup
			var mu sync.Mutex
			var spent int64
			var added int64
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(seed int64) {
					defer wg.Done()
					rng := rand.New(rand.NewSource(seed))
					for i := 0; i < perWorker; i++ {
						payer := payers[rng.Intn(len(payers))]
						if rng.Intn(2) == 0 {
							points := int64(rng.Intn(100) - 20)
							err := l.AddTransaction(ctx, &domain.Transaction{Payer: payer, Points: points, Timestamp: at(rng.Intn(1000))})
							if err == nil {
								mu.Lock()
								added += points
								mu.Unlock()
							} else if !domain.IsBusinessError(err) {
								t.Errorf("AddTransaction error = %v", err)
							}
							continue
						}
						amount := int64(rng.Intn(80) + 1)
						got, err := l.Spend(ctx, &domain.SpendRequest{Amount: amount})
						if err == nil {
							if got.Total() != amount {
								t.Errorf("deducted %d, want %d", got.Total(), amount)
							}
							mu.Lock()
							spent += amount
							mu.Unlock()
						} else if !errors.Is(err, domain.ErrInsufficientBalance) {
							t.Errorf("Spend error = %v", err)
						}
						if i%20 == 0 {
							balances, err := l.GetBalances(ctx)
							if err != nil {
								t.Errorf("GetBalances error = %v", err)
								continue
							}
							for payer, points := range balances {
								if points < 0 {
									t.Errorf("balance[%s] = %d", payer, points)
								}
							}
						}
					}
				}(int64(w))
			}
			wg.Wait()

			balances := assertBalancesConsistent(t, l)
			if got, want := balances.Total(), added-spent; got != want {
				t.Errorf("total = %d, want added-spent = %d", got, want)
			}
		})
	}
}

func TestLMAXLedger_StoppedRejectsRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLMAXLedger(Options{}, 4)
	l.Start(ctx)

	add(t, l, "X", 10, at(1))
	cancel()
	<-l.Done()

	err := l.AddTransaction(context.Background(), &domain.Transaction{Payer: "X", Points: 1, Timestamp: at(2)})
	if !errors.Is(err, domain.ErrLedgerStopped) {
		t.Errorf("AddTransaction after stop error = %v, want ErrLedgerStopped", err)
	}
	if _, err := l.GetBalances(context.Background()); !errors.Is(err, domain.ErrLedgerStopped) {
		t.Errorf("GetBalances after stop error = %v, want ErrLedgerStopped", err)
	}
}

func TestLMAXLedger_ContextCancelledWhileQueued(t *testing.T) {
	// 未 Start 的引擎不會消化輸送帶
	l := NewLMAXLedger(Options{}, 1)
	l.requests <- &ledgerRequest{result: make(chan ledgerResult, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Spend(ctx, &domain.SpendRequest{Amount: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Spend error = %v, want context.DeadlineExceeded", err)
	}
}
