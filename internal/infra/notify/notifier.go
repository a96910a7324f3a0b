package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/gommon/log"
)

// 通知カテゴリ
const (
	CategoryAmountMismatch      = "AMOUNT_MISMATCH"
	CategoryManualReview        = "MANUAL_REVIEW"
	CategoryHighValueWithdrawal = "HIGH_VALUE_WITHDRAWAL"
	CategoryWebhookFailed       = "WEBHOOK_FAILED"
	CategoryCheckoutFallback    = "CHECKOUT_FALLBACK"
)

// 監査/通知シンク。fire-and-forgetで、戻り値のerrorは無視してよい
type Notifier interface {
	Notify(ctx context.Context, category string, message string) error
}

type HTTPNotifier struct {
	url        string
	httpClient *http.Client
}

func NewHTTPNotifier(url string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type notifyRequest struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (n *HTTPNotifier) Notify(ctx context.Context, category string, message string) error {
	body, err := json.Marshal(notifyRequest{Category: category, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		//通知の失敗は本処理を止めない
		log.Errorf("notify %s failed: %v", category, err)
		return err
	}
	defer resp.Body.Close()

	return nil
}

// NopNotifierは通知先が無い構成用
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, category string, message string) error {
	log.Infof("notify (nop) %s: %s", category, message)
	return nil
}
