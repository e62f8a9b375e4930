package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	grpcpool "github.com/JoeShih716/go-points-ledger/pkg/grpc"
	"github.com/JoeShih716/go-points-ledger/pkg/ledgerrpc"
)

var rootCmd = &cobra.Command{
	Use:          "test_rpc_client",
	Short:        "Load generator for the points ledger gRPC service",
	SilenceUsage: true,
	RunE:         runLoad,
}

func init() {
	f := rootCmd.Flags()
	f.String("target", "localhost:50051", "gRPC server address")
	f.Int("total", 100000, "Total number of requests")
	f.Int("concurrency", 200, "Number of in-flight requests")
	f.Int("conns", 4, "gRPC connections in the pool")
	f.Float64("spend-ratio", 0.3, "Fraction of requests that are spends")
	f.StringSlice("payers", []string{"DANNON", "UNILEVER", "MILLER COORS"}, "Payers used for adds")
	f.Duration("timeout", 120*time.Second, "Overall timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type stats struct {
	adds, spends, rejected, failed atomic.Int64
}

func runLoad(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	target, _ := f.GetString("target")
	total, _ := f.GetInt("total")
	concurrency, _ := f.GetInt("concurrency")
	conns, _ := f.GetInt("conns")
	spendRatio, _ := f.GetFloat64("spend-ratio")
	payers, _ := f.GetStringSlice("payers")
	timeout, _ := f.GetDuration("timeout")

	if len(payers) == 0 {
		return fmt.Errorf("at least one payer is required")
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	pool := grpcpool.NewPool(grpcpool.WithSize(conns))
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var st stats
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	start := time.Now()

	for i := 0; i < total; i++ {
		sem <- struct{}{}
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			conn, err := pool.GetConnection(target)
			if err != nil {
				st.failed.Add(1)
				return
			}
			client := ledgerrpc.NewLedgerServiceClient(conn)
			rng := rand.New(rand.NewSource(int64(idx)))

			if rng.Float64() < spendRatio {
				resp, err := client.Spend(ctx, &ledgerrpc.SpendRequest{
					RefId:  uuid.NewString(),
					Points: int64(rng.Intn(50) + 1),
				})
				record(&st, &st.spends, resp != nil && resp.Success, err)
				if err != nil && idx%10000 == 0 {
					log.Warn("spend failed", slog.Int("idx", idx), slog.String("error", err.Error()))
				}
				return
			}

			resp, err := client.AddTransaction(ctx, &ledgerrpc.AddTransactionRequest{
				RefId:     uuid.NewString(),
				Payer:     payers[rng.Intn(len(payers))],
				Points:    int64(rng.Intn(100) + 1),
				Timestamp: time.Now().Add(-time.Duration(rng.Intn(3600)) * time.Second).Format(time.RFC3339Nano),
			})
			record(&st, &st.adds, resp != nil && resp.Success, err)
			if err != nil && idx%10000 == 0 {
				log.Warn("add failed", slog.Int("idx", idx), slog.String("error", err.Error()))
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	conn, err := pool.GetConnection(target)
	if err == nil {
		if balances, err := ledgerrpc.NewLedgerServiceClient(conn).GetBalances(ctx, &ledgerrpc.GetBalancesRequest{}); err == nil {
			log.Info("final balances", slog.Any("balances", balances.Balances))
		}
	}

	log.Info("load finished",
		slog.Int("requests", total),
		slog.Int64("adds", st.adds.Load()),
		slog.Int64("spends", st.spends.Load()),
		slog.Int64("rejected", st.rejected.Load()),
		slog.Int64("failed", st.failed.Load()),
		slog.Duration("elapsed", elapsed),
		slog.String("tps", fmt.Sprintf("%.2f", float64(total)/elapsed.Seconds())),
	)
	return nil
}

func record(st *stats, ok *atomic.Int64, success bool, err error) {
	switch {
	case err != nil:
		st.failed.Add(1)
	case success:
		ok.Add(1)
	default:
		st.rejected.Add(1)
	}
}
