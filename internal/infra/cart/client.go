package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// カートサービス。購入済み商品の削除だけ使う（ベストエフォート）
type Client interface {
	RemovePurchasedItems(ctx context.Context, userID int64, productIDs []int64) (int, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NopClientはカートサービスが無い構成用
type NopClient struct{}

func (NopClient) RemovePurchasedItems(ctx context.Context, userID int64, productIDs []int64) (int, error) {
	return 0, nil
}

type removeRequest struct {
	UserID     int64   `json:"user_id"`
	ProductIDs []int64 `json:"product_ids"`
}

type removeResponse struct {
	RemovedCount int `json:"removed_count"`
}

func (c *HTTPClient) RemovePurchasedItems(ctx context.Context, userID int64, productIDs []int64) (int, error) {
	body, err := json.Marshal(removeRequest{UserID: userID, ProductIDs: productIDs})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cart/items/remove", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cart service returned status %d", resp.StatusCode)
	}

	var out removeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.RemovedCount, nil
}
