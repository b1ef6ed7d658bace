package paygate

import "fmt"

// CreateOrderRequest registers a payable order. Amount is in paise.
type CreateOrderRequest struct {
	OrderID      string `json:"order_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// CreateOrderResponse is the gateway's order handle.
type CreateOrderResponse struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

// RefundRequest refunds part of a captured payment. RefundID is the caller's
// idempotency key.
type RefundRequest struct {
	RefundID string `json:"refund_id"`
	Amount   int64  `json:"amount"`
	Note     string `json:"note,omitempty"`
}

// RefundResponse echoes the accepted refund.
type RefundResponse struct {
	RefundID     string `json:"refund_id"`
	RefundAmount int64  `json:"refund_amount"`
	Status       string `json:"status"`
}

// BankDetails is a transfer destination.
type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
}

// BeneficiaryRequest registers a payee under a caller-chosen id.
type BeneficiaryRequest struct {
	BeneID string      `json:"bene_id"`
	Name   string      `json:"name"`
	Bank   BankDetails `json:"bank"`
}

type beneficiaryResponse struct {
	BeneID string `json:"bene_id"`
	Status string `json:"status"`
}

// TransferRequest asks for a fund transfer to a registered beneficiary.
type TransferRequest struct {
	TransferID string `json:"transfer_id"`
	BeneID     string `json:"bene_id"`
	Amount     int64  `json:"amount"`
	Remarks    string `json:"remarks,omitempty"`
}

// TransferResponse is the gateway's view of a transfer. Status is one of
// PENDING, SUCCESS, FAILED, REVERSED.
type TransferResponse struct {
	TransferID  string `json:"transfer_id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d: %s %s", e.StatusCode, e.Code, e.Message)
}
