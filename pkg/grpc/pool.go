package grpc

import (
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Pool 每個 target 維護固定數量的 ClientConn，呼叫時輪流使用
// 壓測時單一 HTTP/2 連線的 stream 上限會成為瓶頸，所以允許多條連線
type Pool struct {
	mu          sync.Mutex
	conns       map[string][]*grpc.ClientConn
	next        map[string]int
	size        int
	interceptor grpc.UnaryClientInterceptor
	dialOpts    []grpc.DialOption
}

// PoolOption Pool 設定
type PoolOption func(*Pool)

// WithInterceptor 所有連線共用的 UnaryClientInterceptor (Logging, Metrics)
func WithInterceptor(interceptor grpc.UnaryClientInterceptor) PoolOption {
	return func(p *Pool) {
		p.interceptor = interceptor
	}
}

// WithSize 每個 target 的連線數，<= 0 時為 1
func WithSize(size int) PoolOption {
	return func(p *Pool) {
		p.size = size
	}
}

// WithDialOptions 額外的 DialOption，例如測試用的 bufconn dialer
func WithDialOptions(opts ...grpc.DialOption) PoolOption {
	return func(p *Pool) {
		p.dialOpts = append(p.dialOpts, opts...)
	}
}

func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		conns: make(map[string][]*grpc.ClientConn),
		next:  make(map[string]int),
		size:  1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.size <= 0 {
		p.size = 1
	}
	return p
}

// GetConnection 輪流回傳 target 的其中一條連線，已 Shutdown 的連線會重建
//
// 參數:
//
//	target: 目標地址 (e.g., "localhost:50051")
//
// 回傳值:
//
//	*grpc.ClientConn: 連線 (lazy，第一次呼叫才真正連線)
//	error: 建立連線失敗
func (p *Pool) GetConnection(target string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns := p.conns[target]
	if len(conns) < p.size {
		conn, err := p.dial(target)
		if err != nil {
			return nil, err
		}
		p.conns[target] = append(conns, conn)
		return conn, nil
	}

	i := p.next[target] % len(conns)
	p.next[target] = i + 1
	if conns[i].GetState() == connectivity.Shutdown {
		conn, err := p.dial(target)
		if err != nil {
			return nil, err
		}
		conns[i] = conn
	}
	return conns[i], nil
}

func (p *Pool) dial(target string) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		// 內部服務預設不加密
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
	}
	if p.interceptor != nil {
		opts = append(opts, grpc.WithUnaryInterceptor(p.interceptor))
	}
	opts = append(opts, p.dialOpts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for target %s: %w", target, err)
	}
	return conn, nil
}

// Size 目前 target 已建立的連線數
func (p *Pool) Size(target string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns[target])
}

// Close 關閉所有連線，回傳第一個錯誤
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for target, conns := range p.conns {
		for _, conn := range conns {
			if err := conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(p.conns, target)
		delete(p.next, target)
	}
	return firstErr
}
