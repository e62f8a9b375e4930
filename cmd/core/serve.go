package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpc_adapter "github.com/JoeShih716/go-points-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/adapter/in/rest"
	file_adapter "github.com/JoeShih716/go-points-ledger/internal/app/core/adapter/out/file"
	memory_adapter "github.com/JoeShih716/go-points-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-points-ledger/internal/app/core/adapter/out/mysql"
	sqlite_adapter "github.com/JoeShih716/go-points-ledger/internal/app/core/adapter/out/sqlite"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-points-ledger/internal/config"
	"github.com/JoeShih716/go-points-ledger/internal/lib/logger/sl"
	"github.com/JoeShih716/go-points-ledger/pkg/ledgerrpc"
	"github.com/JoeShih716/go-points-ledger/pkg/mysql"
)

// run 組裝並啟動服務，收到 SIGINT / SIGTERM 後依序關閉
func run(parent context.Context, cfg *config.Config, log *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 稽核日誌
	journal, closeJournal, err := openJournal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeJournal()

	// 2. 帳本引擎
	hub := rest.NewHub(log.With(slog.String("component", "hub")))
	defer hub.Close()

	opts := memory_adapter.Options{
		Notifier:       hub,
		IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
	}
	if journal != nil {
		opts.Journal = journal
		opts.JournalDriver = cfg.Journal.Driver
	}

	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	var ledger usecase.Ledger
	var engineDone <-chan struct{}
	switch cfg.Ledger.Engine {
	case config.EngineLMAX:
		lmax := memory_adapter.NewLMAXLedger(opts, cfg.Ledger.QueueSize)
		lmax.Start(engineCtx)
		ledger = lmax
		engineDone = lmax.Done()
	default:
		ledger = memory_adapter.NewMutexLedger(opts)
	}

	// 3. UseCase
	core := usecase.NewCoreUseCase(ledger, log)

	// 4. 先取得 gRPC listener，失敗時還沒有任何 server 在跑
	var grpcLis net.Listener
	if cfg.GRPC.Enabled {
		grpcLis, err = net.Listen("tcp", cfg.GRPC.Address)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	// 5. HTTP
	router := rest.NewRouter(rest.NewHandler(core, log), hub, log, rest.RouterOptions{Metrics: cfg.Metrics.Enabled})
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting http server", slog.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 6. gRPC
	var stopGRPC func()
	if grpcLis != nil {
		grpcServer, healthServer := grpc_adapter.NewServer(grpc_adapter.NewGrpcServer(core, log), log)
		go func() {
			log.Info("starting grpc server", slog.String("address", cfg.GRPC.Address))
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		stopGRPC = func() {
			healthServer.SetServingStatus(ledgerrpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
			healthServer.Shutdown()
			grpcServer.GracefulStop()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("server failed", sl.Err(runErr))
	}

	// 先停止接收請求，再停帳本
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", sl.Err(err))
	}
	if stopGRPC != nil {
		stopGRPC()
	}
	stopEngine()
	if engineDone != nil {
		<-engineDone
	}

	log.Info("server exited")
	return runErr
}

// openJournal 依 driver 開啟稽核日誌，回傳的 close 一定可以呼叫
func openJournal(ctx context.Context, cfg *config.Config, log *slog.Logger) (usecase.Journal, func(), error) {
	noop := func() {}

	switch cfg.Journal.Driver {
	case config.JournalFile:
		j, err := file_adapter.NewJournal(cfg.Journal.Path, cfg.Journal.SyncEachWrite())
		if err != nil {
			return nil, noop, err
		}
		log.Info("journal opened", slog.String("driver", "file"), slog.String("path", cfg.Journal.Path))
		return j, func() { closeWithLog(log, "file journal", j.Close) }, nil

	case config.JournalSQLite:
		j, err := sqlite_adapter.NewJournal(cfg.Journal.Path)
		if err != nil {
			return nil, noop, err
		}
		log.Info("journal opened", slog.String("driver", "sqlite"), slog.String("path", cfg.Journal.Path))
		return j, func() { closeWithLog(log, "sqlite journal", j.Close) }, nil

	case config.JournalMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, log)
		if err != nil {
			return nil, noop, err
		}
		j, err := mysql_adapter.NewJournal(client)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		log.Info("journal opened", slog.String("driver", "mysql"), slog.String("db", cfg.MySQL.DBName))
		return j, func() { closeWithLog(log, "mysql client", client.Close) }, nil
	}
	return nil, noop, nil
}

func closeWithLog(log *slog.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		log.Error("failed to close "+name, sl.Err(err))
	}
}
