package usecase

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 重複Webhook/重複キャンセル。Webhook再配送を冪等にするため、
// 検知した側は成功として扱う
var ErrAlreadyProcessed = errors.New("already processed")

// ゲートウェイ申告額と注文金額の不一致。リトライしても直らないので
// 補償キャンセルを発行したうえでハードエラーにする
type AmountMismatchError struct {
	MerchantUID string
	OrderTotal  int64
	PaidAmount  decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch on %s: order total %d, paid %s",
		e.MerchantUID, e.OrderTotal, e.PaidAmount.String())
}
