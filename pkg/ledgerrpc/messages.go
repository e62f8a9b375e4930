package ledgerrpc

// AddTransactionRequest 新增交易
//
//	RefId: 冪等鍵 (UUID，可空)
//	Timestamp: RFC 3339
type AddTransactionRequest struct {
	RefId     string `json:"ref_id,omitempty"`
	Payer     string `json:"payer"`
	Points    int64  `json:"points"`
	Timestamp string `json:"timestamp"`
}

// AddTransactionResponse 業務錯誤以 Success=false 回傳 (Soft Failure)
type AddTransactionResponse struct {
	Success     bool         `json:"success"`
	Code        string       `json:"code,omitempty"`
	Message     string       `json:"message,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

type SpendRequest struct {
	RefId  string `json:"ref_id,omitempty"`
	Points int64  `json:"points"`
}

type SpendResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	// 依 payer 名稱排序，Points 為負數
	Deductions []PayerPoints `json:"deductions,omitempty"`
}

type GetBalancesRequest struct{}

type GetBalancesResponse struct {
	Balances map[string]int64 `json:"balances"`
}

type ListTransactionsRequest struct{}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type PayerPoints struct {
	Payer  string `json:"payer"`
	Points int64  `json:"points"`
}

// Transaction 交易紀錄，Timestamp 為 RFC 3339
type Transaction struct {
	Id        string `json:"id"`
	RefId     string `json:"ref_id,omitempty"`
	Sequence  uint64 `json:"sequence"`
	Payer     string `json:"payer"`
	Points    int64  `json:"points"`
	Remaining int64  `json:"remaining"`
	Timestamp string `json:"timestamp"`
}
