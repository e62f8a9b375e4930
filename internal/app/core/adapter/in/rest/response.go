package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
)

// ErrorResponse 錯誤回應
//
//	Error: 哪個操作失敗
//	Reason: 失敗原因
//	Code: 固定錯誤代碼 (domain.ErrorCode 或 INVALID_REQUEST)
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

const codeInvalidRequest = "INVALID_REQUEST"

func renderError(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// renderInvalid 請求格式錯誤，一律 422
func renderInvalid(w http.ResponseWriter, r *http.Request, reason string) {
	renderError(w, r, http.StatusUnprocessableEntity, ErrorResponse{
		Error:  "Invalid request",
		Reason: reason,
		Code:   codeInvalidRequest,
	})
}

// renderLedgerError 依錯誤類型決定 HTTP status
func renderLedgerError(w http.ResponseWriter, r *http.Request, title string, err error) {
	renderError(w, r, statusFor(err), ErrorResponse{
		Error:  title,
		Reason: reasonFor(err),
		Code:   domain.ErrorCode(err),
	})
}

func statusFor(err error) int {
	switch {
	case domain.IsBusinessError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLedgerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func reasonFor(err error) string {
	var insufficient *domain.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return fmt.Sprintf("User only has %d left", insufficient.Available)
	}
	var payerErr *domain.PayerBalanceError
	if errors.As(err, &payerErr) {
		return fmt.Sprintf("Payer balance can't go negative. %s has %d points in account", payerErr.Payer, payerErr.Balance)
	}
	switch {
	case errors.Is(err, domain.ErrZeroPoints):
		return "Points must be a positive or negative integer"
	case errors.Is(err, domain.ErrNegativeTotalBalance):
		return "User balance can't go negative."
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Points must be a positive integer"
	case errors.Is(err, domain.ErrPointsOverflow):
		return "User balance would exceed the maximum number of points"
	case errors.Is(err, domain.ErrIdempotencyKeyReused):
		return "Idempotency-Key was already used for a different request"
	case errors.Is(err, domain.ErrLedgerStopped):
		return "Ledger is shutting down"
	default:
		return "Internal error"
	}
}

func validationReason(errs validator.ValidationErrors) string {
	var msgs []string
	for _, err := range errs {
		field := strings.ToLower(err.Field())
		if err.ActualTag() == "required" {
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("field %s is invalid", field))
	}
	return strings.Join(msgs, ", ")
}
