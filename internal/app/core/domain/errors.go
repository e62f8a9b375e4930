package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrZeroPoints 交易點數不可為 0
	ErrZeroPoints = errors.New("points must be a positive or negative integer")

	// ErrNegativeTotalBalance 使用者總點數不可為負
	ErrNegativeTotalBalance = errors.New("user balance can't go negative")

	// ErrNegativePayerBalance payer 點數不可為負
	ErrNegativePayerBalance = errors.New("payer balance can't go negative")

	// ErrInsufficientBalance 點數不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount 花費點數必須為正數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrPointsOverflow 總點數超出 int64 範圍
	ErrPointsOverflow = errors.New("points overflow")

	// ErrIdempotencyKeyReused 同一個 RefID 帶了不同的請求內容
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request")

	// ErrJournalWriteFailed 寫入稽核日誌失敗
	ErrJournalWriteFailed = errors.New("journal write failed")

	// ErrLedgerStopped 帳本已停止接收請求
	ErrLedgerStopped = errors.New("ledger stopped")
)

// PayerBalanceError 帶有 payer 目前點數的錯誤，Unwrap 為 ErrNegativePayerBalance
type PayerBalanceError struct {
	Payer   string
	Balance int64
}

func (e *PayerBalanceError) Error() string {
	return fmt.Sprintf("%s. %s has %d points in account", ErrNegativePayerBalance, e.Payer, e.Balance)
}

func (e *PayerBalanceError) Unwrap() error {
	return ErrNegativePayerBalance
}

// InsufficientBalanceError 帶有目前總點數的錯誤，Unwrap 為 ErrInsufficientBalance
type InsufficientBalanceError struct {
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: unable to spend %d points, user only has %d left", ErrInsufficientBalance, e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ErrorCode 回傳錯誤對外的固定代碼，供 HTTP / gRPC adapter 共用
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrZeroPoints):
		return "ZERO_POINTS"
	case errors.Is(err, ErrNegativeTotalBalance):
		return "NEGATIVE_TOTAL_BALANCE"
	case errors.Is(err, ErrNegativePayerBalance):
		return "NEGATIVE_PAYER_BALANCE"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrPointsOverflow):
		return "POINTS_OVERFLOW"
	case errors.Is(err, ErrIdempotencyKeyReused):
		return "IDEMPOTENCY_KEY_REUSED"
	case errors.Is(err, ErrJournalWriteFailed):
		return "JOURNAL_WRITE_FAILED"
	case errors.Is(err, ErrLedgerStopped):
		return "LEDGER_STOPPED"
	default:
		return "INTERNAL"
	}
}

// IsBusinessError 是否為呼叫端可處理的業務錯誤 (非系統錯誤)
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrZeroPoints) ||
		errors.Is(err, ErrNegativeTotalBalance) ||
		errors.Is(err, ErrNegativePayerBalance) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrPointsOverflow) ||
		errors.Is(err, ErrIdempotencyKeyReused)
}
