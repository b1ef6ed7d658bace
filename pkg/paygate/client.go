package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Client is a minimal HTTP client for the payment gateway's order, refund
// and payout APIs. Requests authenticate with basic key/secret credentials
// the way the gateway's server-to-server API expects.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	debug      bool
}

// NewClient constructs a gateway client with sane defaults.
func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		debug:      os.Getenv("ENV") == "development",
	}
}

// CreateOrder registers a payment order and returns the order id plus the
// hosted payment URL for the customer.
func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	var resp CreateOrderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refund refunds (part of) a captured payment. refundID is the caller's
// idempotency key for the refund.
func (c *Client) Refund(ctx context.Context, gatewayPaymentID string, req *RefundRequest) (*RefundResponse, error) {
	var resp RefundResponse
	path := fmt.Sprintf("/payments/%s/refund", gatewayPaymentID)
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddBeneficiary registers or updates a payee. The gateway treats beneId as
// an upsert key, so re-registration on job redelivery is harmless.
func (c *Client) AddBeneficiary(ctx context.Context, req *BeneficiaryRequest) error {
	var resp beneficiaryResponse
	if err := c.doRequest(ctx, http.MethodPost, "/beneficiaries", req, &resp); err != nil {
		return err
	}
	return nil
}

// RequestTransfer asks the gateway to move funds to a beneficiary.
// transferID is the caller-generated idempotency key; resubmitting the same
// id returns the original transfer rather than moving funds twice.
func (c *Client) RequestTransfer(ctx context.Context, req *TransferRequest) (*TransferResponse, error) {
	var resp TransferResponse
	if err := c.doRequest(ctx, http.MethodPost, "/transfers", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransferStatus fetches the current status of a transfer by its id.
func (c *Client) GetTransferStatus(ctx context.Context, transferID string) (*TransferResponse, error) {
	var resp TransferResponse
	path := fmt.Sprintf("/transfers/%s", transferID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doRequest performs the HTTP call with JSON payloads and decodes the JSON
// response into result. Non-2xx responses are returned as *APIError.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", c.baseURL+endpoint).
			RawJSON("request", payload).
			Msg("[PAYGATE] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			RawJSON("response", respBody).
			Msg("[PAYGATE] Incoming response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
