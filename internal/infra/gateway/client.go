package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ゲートウェイ上のトランザクションステータス
const (
	TxnStatusReady     = "ready"
	TxnStatusPaid      = "paid"
	TxnStatusCancelled = "cancelled"
	TxnStatusFailed    = "failed"
)

// ゲートウェイが返すトランザクションの正式な記録
type Transaction struct {
	ExternalTxnID string          `json:"txn_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	CardName      string          `json:"card_name"`
	BankName      string          `json:"bank_name"`
	ApprovalCode  string          `json:"approval_code"`
}

type CancelResult struct {
	ExternalCancelID string `json:"cancel_id"`
}

// 外部決済ゲートウェイ。信用しない（遅い・落ちる・矛盾する前提）
type PaymentGateway interface {
	Prepare(ctx context.Context, paymentUID string, amount int64) error
	GetTransaction(ctx context.Context, externalTxnID string) (Transaction, error)
	Cancel(ctx context.Context, externalTxnID string, amount int64, reason string) (CancelResult, error)
}

// ゲートウェイのHTTPエラー（4xxは再試行しない）
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// 再試行してよいエラーか（ネットワーク障害と5xxだけ）
func IsTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return err != nil
}

type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

func NewClient(baseURL string, apiKey string, apiSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type prepareRequest struct {
	PaymentUID string `json:"payment_uid"`
	Amount     int64  `json:"amount"`
}

func (c *Client) Prepare(ctx context.Context, paymentUID string, amount int64) error {
	body := prepareRequest{PaymentUID: paymentUID, Amount: amount}
	return c.post(ctx, "/payments/prepare", body, nil)
}

func (c *Client) GetTransaction(ctx context.Context, externalTxnID string) (Transaction, error) {
	var txn Transaction

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/payments/%s", c.baseURL, url.PathEscape(externalTxnID)), nil)
	if err != nil {
		return Transaction{}, err
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transaction{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Transaction{}, &APIError{StatusCode: resp.StatusCode, Message: "get transaction failed"}
	}
	if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

type cancelRequest struct {
	ExternalTxnID string `json:"txn_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

func (c *Client) Cancel(ctx context.Context, externalTxnID string, amount int64, reason string) (CancelResult, error) {
	body := cancelRequest{ExternalTxnID: externalTxnID, Amount: amount, Reason: reason}

	var out CancelResult
	if err := c.post(ctx, "/payments/cancel", body, &out); err != nil {
		return CancelResult{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: path + " failed"}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Api-Secret", c.apiSecret)
}
