package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/JoeShih716/go-points-ledger/internal/config"
	"github.com/JoeShih716/go-points-ledger/internal/lib/logger/sl"
)

// freeAddr 取得一個目前沒有被佔用的本機位址
func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()
	return addr
}

func TestRun_GRPCListenFailureStartsNothing(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer occupied.Close()

	cfg := config.Default()
	cfg.Ledger.Engine = config.EngineLMAX
	cfg.HTTP.Address = freeAddr(t)
	cfg.GRPC.Enabled = true
	cfg.GRPC.Address = occupied.Addr().String()

	err = run(context.Background(), cfg, sl.Discard())
	if err == nil || !strings.Contains(err.Error(), "grpc listen") {
		t.Fatalf("run error = %v, want grpc listen failure", err)
	}

	// HTTP 位址沒有被綁定
	lis, err := net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		t.Fatalf("http address still in use after run returned: %v", err)
	}
	lis.Close()
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Address = freeAddr(t)
	cfg.GRPC.Enabled = true
	cfg.GRPC.Address = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, sl.Discard())
	}()

	url := "http://" + cfg.HTTP.Address + "/health"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("GET /health never succeeded: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run error = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
