/**
 * @description
 * This package provides a client for the custody chain gateway, the HTTP
 * service that signs and submits token transfers from the operator account.
 * It encapsulates the logic for making authenticated requests, constructing
 * request bodies, and parsing responses into typed errors.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Gateway error codes. The gateway reports failures with a machine-readable
// code; callers classify on these instead of matching message text.
const (
	CodeInsufficientBalance = "insufficient_balance"
	CodeInvalidRecipient    = "invalid_recipient"
	CodeRPCUnavailable      = "rpc_unavailable"
)

// Receipt statuses reported by the gateway once a transfer is mined.
const (
	ReceiptStatusConfirmed = "confirmed"
	ReceiptStatusFailed    = "failed"
)

// Client is a client for the custody chain gateway API.
type Client struct {
	BaseURL     string
	OperatorKey string
	HTTPClient  *http.Client
}

// NewClient creates a new chain gateway client. The timeout bounds every
// outbound call so a stalled RPC backend cannot hang a webhook request.
func NewClient(baseURL, operatorKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:     baseURL,
		OperatorKey: operatorKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TokenTransferRequest is the payload for submitting a signed token transfer.
// Amount is in the token's smallest integer unit (micro-USDC).
type TokenTransferRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			TokenAddress string `json:"tokenAddress"`
			Recipient    string `json:"recipient"`
			Amount       int64  `json:"amount"`
		} `json:"attributes"`
	} `json:"data"`
}

// TransferResponse is the expected response from the gateway's transfer endpoint.
type TransferResponse struct {
	Data struct {
		Hash       string `json:"hash"`
		Type       string `json:"type"`
		Attributes struct {
			Status string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

// ReceiptResponse is the gateway's view of a mined transaction.
type ReceiptResponse struct {
	Data struct {
		Hash        string `json:"hash"`
		Status      string `json:"status"`
		BlockNumber uint64 `json:"blockNumber"`
	} `json:"data"`
}

// APIError represents a structured error from the gateway API.
type APIError struct {
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("chain gateway error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown chain gateway error"
}

// Code returns the machine-readable code of the first reported error.
func (e *APIError) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code
}

// SubmitTokenTransfer asks the gateway to sign and broadcast a token transfer
// from the operator account. It returns as soon as the transaction has been
// accepted into the mempool; it does not wait for confirmation.
func (c *Client) SubmitTokenTransfer(ctx context.Context, tokenAddress, recipient string, amount int64) (*TransferResponse, error) {
	reqPayload := TokenTransferRequest{}
	reqPayload.Data.Type = "TokenTransfer"
	reqPayload.Data.Attributes.TokenAddress = tokenAddress
	reqPayload.Data.Attributes.Recipient = recipient
	reqPayload.Data.Attributes.Amount = amount

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/token-transfers", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-operator-key", c.OperatorKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute transfer request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr, decodeErr := decodeAPIError(bodyBytes, resp.StatusCode)
		if decodeErr != nil {
			log.Printf("level=warn component=chain_client op=transfer status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, decodeErr
		}
		log.Printf("level=warn component=chain_client op=transfer status=%d code=%q detail=%q", resp.StatusCode, apiErr.Code(), firstErrorDetail(apiErr))
		return nil, apiErr
	}

	var successResp TransferResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode success response: %w", err)
	}

	return &successResp, nil
}

// GetTransactionReceipt fetches the receipt for a submitted transfer. A nil
// receipt with a nil error means the transaction has not been mined yet.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash string) (*ReceiptResponse, error) {
	url := c.BaseURL + "/v1/transactions/" + hash + "/receipt"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-operator-key", c.OperatorKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute receipt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Not yet mined.
		return nil, nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr, decodeErr := decodeAPIError(bodyBytes, resp.StatusCode)
		if decodeErr != nil {
			log.Printf("level=warn component=chain_client op=get_receipt hash=%s status=%d msg=\"non-2xx response (unparsable error body)\"", hash, resp.StatusCode)
			return nil, decodeErr
		}
		log.Printf("level=warn component=chain_client op=get_receipt hash=%s status=%d code=%q", hash, resp.StatusCode, apiErr.Code())
		return nil, apiErr
	}

	var receipt ReceiptResponse
	if err := json.Unmarshal(bodyBytes, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt response: %w", err)
	}

	return &receipt, nil
}

func decodeAPIError(body []byte, statusCode int) (*APIError, error) {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || len(apiErr.Errors) == 0 {
		return nil, fmt.Errorf("failed to decode error response (status %d)", statusCode)
	}
	apiErr.StatusCode = statusCode
	return &apiErr, nil
}

func firstErrorDetail(e *APIError) string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Detail
}
