package service

import (
	"context"

	"github.com/gigstage/settlement_api/pkg/paygate"
)

// PaymentGateway is the slice of the gateway client the settlement services
// use. *paygate.Client satisfies it; tests substitute a fake.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req *paygate.CreateOrderRequest) (*paygate.CreateOrderResponse, error)
	Refund(ctx context.Context, gatewayPaymentID string, req *paygate.RefundRequest) (*paygate.RefundResponse, error)
	AddBeneficiary(ctx context.Context, req *paygate.BeneficiaryRequest) error
	RequestTransfer(ctx context.Context, req *paygate.TransferRequest) (*paygate.TransferResponse, error)
	GetTransferStatus(ctx context.Context, transferID string) (*paygate.TransferResponse, error)
}
