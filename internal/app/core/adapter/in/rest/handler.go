package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-points-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-points-ledger/internal/lib/logger/sl"
)

// IdempotencyHeader 帶 UUID 時，重送的請求只會套用一次
const IdempotencyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 20

type AddRequest struct {
	Payer     string `json:"payer" validate:"required"`
	Points    *int64 `json:"points" validate:"required"`
	Timestamp string `json:"timestamp" validate:"required"`
}

type SpendRequest struct {
	Points *int64 `json:"points" validate:"required"`
}

// timestampLayouts 依序嘗試的 ISO 8601 格式，未帶時區視為 UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

type Handler struct {
	core      *usecase.CoreUseCase
	log       *slog.Logger
	validator *validator.Validate
}

func NewHandler(core *usecase.CoreUseCase, log *slog.Logger) *Handler {
	return &Handler{
		core:      core,
		log:       log,
		validator: validator.New(),
	}
}

// Add POST /add
func (h *Handler) Add() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ledger.Add"
		log := h.requestLog(r, op)

		var req AddRequest
		if reason, ok := h.decode(w, r, &req); !ok {
			log.Info("invalid request", slog.String("reason", reason))
			renderInvalid(w, r, reason)
			return
		}
		refID, err := refIDFromHeader(r)
		if err != nil {
			renderInvalid(w, r, err.Error())
			return
		}
		ts, err := parseTimestamp(req.Timestamp)
		if err != nil {
			renderInvalid(w, r, err.Error())
			return
		}
		payer := strings.ToUpper(strings.TrimSpace(req.Payer))
		if payer == "" {
			renderInvalid(w, r, "field payer is required")
			return
		}

		tran := &domain.Transaction{
			RefID:     refID,
			Payer:     payer,
			Points:    *req.Points,
			Timestamp: ts,
		}
		if err := h.core.AddTransaction(r.Context(), tran); err != nil {
			renderLedgerError(w, r, "Unable to add transaction", err)
			return
		}

		log.Debug("transaction added", slog.String("id", tran.ID.String()))
		render.JSON(w, r, tran)
	}
}

// Spend POST /spend
func (h *Handler) Spend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ledger.Spend"
		log := h.requestLog(r, op)

		var req SpendRequest
		if reason, ok := h.decode(w, r, &req); !ok {
			log.Info("invalid request", slog.String("reason", reason))
			renderInvalid(w, r, reason)
			return
		}
		refID, err := refIDFromHeader(r)
		if err != nil {
			renderInvalid(w, r, err.Error())
			return
		}

		amount := *req.Points
		deductions, err := h.core.Spend(r.Context(), &domain.SpendRequest{RefID: refID, Amount: amount})
		if err != nil {
			renderLedgerError(w, r, fmt.Sprintf("Unable to spend %d points", amount), err)
			return
		}
		render.JSON(w, r, deductions)
	}
}

// Balance GET /balance
func (h *Handler) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balances, err := h.core.GetBalances(r.Context())
		if err != nil {
			h.requestLog(r, "handlers.ledger.Balance").Error("failed to get balances", sl.Err(err))
			renderLedgerError(w, r, "Unable to get balance", err)
			return
		}
		render.JSON(w, r, balances)
	}
}

// Transactions GET /transactions
func (h *Handler) Transactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trans, err := h.core.ListTransactions(r.Context())
		if err != nil {
			h.requestLog(r, "handlers.ledger.Transactions").Error("failed to list transactions", sl.Err(err))
			renderLedgerError(w, r, "Unable to list transactions", err)
			return
		}
		if trans == nil {
			trans = []domain.Transaction{}
		}
		render.JSON(w, r, trans)
	}
}

// Welcome GET /
func (h *Handler) Welcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "Welcome")
	}
}

// Health GET /health，帳本停止後回 503
func (h *Handler) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.core.GetBalances(r.Context()); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "unavailable"})
			return
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

func (h *Handler) requestLog(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// decode 解析 JSON 並驗證欄位，不允許多餘欄位
//
// 回傳:
//
//	string: 失敗原因
//	bool: 是否成功
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) (string, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeReason(err), false
	}
	if dec.More() {
		return "request body must contain a single JSON object", false
	}
	if err := h.validator.Struct(v); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			return validationReason(validateErrs), false
		}
		return err.Error(), false
	}
	return "", true
}

func decodeReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %s must be %s", typeErr.Field, typeName(typeErr.Type.Kind().String()))
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return "Extra parameters were sent: " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	default:
		return "malformed JSON body"
	}
}

func typeName(kind string) string {
	switch kind {
	case "int64", "ptr":
		return "an integer"
	case "string":
		return "a string"
	default:
		return kind
	}
}

func refIDFromHeader(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("header %s must be a UUID", IdempotencyHeader)
	}
	return id, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("field timestamp must be ISO 8601, got %q", s)
}
