package grpc

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-points-ledger/internal/lib/logger/sl"
	"github.com/JoeShih716/go-points-ledger/pkg/ledgerrpc"
)

type GrpcServer struct {
	ledgerrpc.UnimplementedLedgerServiceServer
	core *usecase.CoreUseCase
	log  *slog.Logger
}

func NewGrpcServer(core *usecase.CoreUseCase, log *slog.Logger) *GrpcServer {
	return &GrpcServer{
		core: core,
		log:  log,
	}
}

// AddTransaction 新增點數交易
// 參數錯誤與業務錯誤回傳 Success=false (Soft Failure)，系統錯誤回傳 gRPC status
func (s *GrpcServer) AddTransaction(ctx context.Context, req *ledgerrpc.AddTransactionRequest) (*ledgerrpc.AddTransactionResponse, error) {
	// 1. 參數解析
	refID, err := parseRefID(req.RefId)
	if err != nil {
		return &ledgerrpc.AddTransactionResponse{Code: "INVALID_REQUEST", Message: "invalid ref_id: " + err.Error()}, nil
	}
	payer := strings.ToUpper(strings.TrimSpace(req.Payer))
	if payer == "" {
		return &ledgerrpc.AddTransactionResponse{Code: "INVALID_REQUEST", Message: "payer is required"}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, req.Timestamp)
	if err != nil {
		return &ledgerrpc.AddTransactionResponse{Code: "INVALID_REQUEST", Message: "invalid timestamp: " + err.Error()}, nil
	}

	// 2. 組裝 Domain Transaction
	tran := &domain.Transaction{
		RefID:     refID,
		Payer:     payer,
		Points:    req.Points,
		Timestamp: ts,
	}

	// 3. 執行交易
	if err := s.core.AddTransaction(ctx, tran); err != nil {
		if domain.IsBusinessError(err) {
			return &ledgerrpc.AddTransactionResponse{Code: domain.ErrorCode(err), Message: err.Error()}, nil
		}
		return nil, s.statusError("grpc.AddTransaction", err)
	}
	return &ledgerrpc.AddTransactionResponse{
		Success:     true,
		Transaction: toRPCTransaction(tran),
	}, nil
}

// Spend 花費點數
func (s *GrpcServer) Spend(ctx context.Context, req *ledgerrpc.SpendRequest) (*ledgerrpc.SpendResponse, error) {
	refID, err := parseRefID(req.RefId)
	if err != nil {
		return &ledgerrpc.SpendResponse{Code: "INVALID_REQUEST", Message: "invalid ref_id: " + err.Error()}, nil
	}

	deductions, err := s.core.Spend(ctx, &domain.SpendRequest{RefID: refID, Amount: req.Points})
	if err != nil {
		if domain.IsBusinessError(err) {
			return &ledgerrpc.SpendResponse{Code: domain.ErrorCode(err), Message: err.Error()}, nil
		}
		return nil, s.statusError("grpc.Spend", err)
	}

	out := make([]ledgerrpc.PayerPoints, 0, len(deductions))
	for payer, points := range deductions {
		out = append(out, ledgerrpc.PayerPoints{Payer: payer, Points: points})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Payer < out[j].Payer })
	return &ledgerrpc.SpendResponse{Success: true, Deductions: out}, nil
}

func (s *GrpcServer) GetBalances(ctx context.Context, _ *ledgerrpc.GetBalancesRequest) (*ledgerrpc.GetBalancesResponse, error) {
	balances, err := s.core.GetBalances(ctx)
	if err != nil {
		return nil, s.statusError("grpc.GetBalances", err)
	}
	return &ledgerrpc.GetBalancesResponse{Balances: balances}, nil
}

func (s *GrpcServer) ListTransactions(ctx context.Context, _ *ledgerrpc.ListTransactionsRequest) (*ledgerrpc.ListTransactionsResponse, error) {
	trans, err := s.core.ListTransactions(ctx)
	if err != nil {
		return nil, s.statusError("grpc.ListTransactions", err)
	}
	out := make([]*ledgerrpc.Transaction, 0, len(trans))
	for i := range trans {
		out = append(out, toRPCTransaction(&trans[i]))
	}
	return &ledgerrpc.ListTransactionsResponse{Transactions: out}, nil
}

func (s *GrpcServer) statusError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrLedgerStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.log.Error("request failed", sl.Op(op), sl.Err(err))
	return status.Error(codes.Internal, err.Error())
}

func parseRefID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

func toRPCTransaction(tran *domain.Transaction) *ledgerrpc.Transaction {
	out := &ledgerrpc.Transaction{
		Id:        tran.ID.String(),
		Sequence:  tran.Sequence,
		Payer:     tran.Payer,
		Points:    tran.Points,
		Remaining: tran.Remaining,
		Timestamp: tran.Timestamp.Format(time.RFC3339Nano),
	}
	if tran.RefID != uuid.Nil {
		out.RefId = tran.RefID.String()
	}
	return out
}

var _ ledgerrpc.LedgerServiceServer = (*GrpcServer)(nil)
