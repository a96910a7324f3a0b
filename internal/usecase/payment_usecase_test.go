package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"orderpay/internal/domain/model"
	"orderpay/internal/infra/gateway"
	repo "orderpay/internal/repository"
	"orderpay/internal/resilience"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPrepare_KeepsPaymentWhenGatewayFails(t *testing.T) {
	orders := new(OrderRepositoryMock)
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)

	orders.On("FindByID", mock.Anything, int64(7)).
		Return(model.Order{ID: 7, PayMethodName: "card"}, nil)
	payments.On("Create", mock.Anything, mock.AnythingOfType("model.Payment")).
		Return(int64(11), nil)
	gw.On("Prepare", mock.Anything, mock.Anything, int64(42000)).
		Return(errors.New("gateway down"))

	u := NewPaymentUsecase(&TxManagerStub{}, orders, payments, gw, &NotifierSpy{})

	out, err := u.Prepare(context.Background(), 7, 42000)

	//意図登録の失敗はPrepareを落とさない
	assert.NoError(t, err)
	assert.Equal(t, int64(7), out.OrderID)
	assert.Equal(t, string(model.PaymentStatusPending), out.Status)
	assert.NotEmpty(t, out.PaymentUID)
	payments.AssertExpectations(t)
}

func TestVerify_Success(t *testing.T) {
	orders := new(OrderRepositoryMock)
	items := new(OrderItemRepositoryMock)
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)
	tx := &TxManagerStub{Repos: TxReposStub{
		OrdersRepo:     orders,
		OrderItemsRepo: items,
		PaymentsRepo:   payments,
	}}

	payments.On("FindByExternalTxnID", mock.Anything, "txn-1").
		Return(model.Payment{}, false, nil)
	gw.On("GetTransaction", mock.Anything, "txn-1").
		Return(gateway.Transaction{
			ExternalTxnID: "txn-1",
			Status:        gateway.TxnStatusPaid,
			Amount:        decimal.NewFromInt(42000),
			Method:        "card",
			CardName:      "테스트카드",
			ApprovalCode:  "A-100",
		}, nil)

	order := model.Order{ID: 7, MerchantUID: "m-1", UserID: 1, FinalTotal: 42000, Status: model.OrderStatusPending}
	orders.On("FindByMerchantUID", mock.Anything, "m-1").Return(order, nil)

	payments.On("FindPendingByOrderID", mock.Anything, int64(7)).
		Return(model.Payment{ID: 3, OrderID: 7, Status: model.PaymentStatusPending}, true, nil)

	var updated model.Payment
	payments.On("Update", mock.Anything, mock.AnythingOfType("model.Payment")).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(model.Payment)
		}).
		Return(nil)

	orders.On("FindByID", mock.Anything, int64(7)).Return(order, nil)
	orders.On("UpdateStatus", mock.Anything, int64(7), model.OrderStatusPaymentCompleted).Return(nil)
	items.On("UpdateStatusByOrderID", mock.Anything, int64(7), model.OrderStatusPaymentCompleted).Return(nil)

	u := NewPaymentUsecase(tx, orders, payments, gw, &NotifierSpy{})

	out, err := u.Verify(context.Background(), "txn-1", "m-1")

	assert.NoError(t, err)
	assert.False(t, out.AlreadyProcessed)
	assert.Equal(t, int64(7), out.OrderID)
	assert.Equal(t, int64(42000), out.Amount)
	assert.Equal(t, string(model.OrderStatusPaymentCompleted), out.OrderStatus)

	assert.Equal(t, model.PaymentStatusCompleted, updated.Status)
	assert.NotNil(t, updated.ExternalTxnID)
	assert.Equal(t, "txn-1", *updated.ExternalTxnID)
	assert.Equal(t, int64(42000), updated.Amount)
	assert.Equal(t, "A-100", updated.ApprovalCode)
	orders.AssertExpectations(t)
	items.AssertExpectations(t)
}

func TestVerify_IdempotentResend(t *testing.T) {
	orders := new(OrderRepositoryMock)
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)

	payments.On("FindByExternalTxnID", mock.Anything, "txn-1").
		Return(model.Payment{ID: 3, OrderID: 7, Amount: 42000, Status: model.PaymentStatusCompleted}, true, nil)

	u := NewPaymentUsecase(&TxManagerStub{}, orders, payments, gw, &NotifierSpy{})

	out, err := u.Verify(context.Background(), "txn-1", "m-1")

	//再送は成功として返し、何も変更しない
	assert.NoError(t, err)
	assert.True(t, out.AlreadyProcessed)
	assert.Equal(t, int64(7), out.OrderID)
	gw.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)
	payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestVerify_ConcurrentDuplicateTreatedAsSuccess(t *testing.T) {
	orders := new(OrderRepositoryMock)
	items := new(OrderItemRepositoryMock)
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)
	tx := &TxManagerStub{Repos: TxReposStub{
		OrdersRepo:     orders,
		OrderItemsRepo: items,
		PaymentsRepo:   payments,
	}}

	payments.On("FindByExternalTxnID", mock.Anything, "txn-1").
		Return(model.Payment{}, false, nil)
	gw.On("GetTransaction", mock.Anything, "txn-1").
		Return(gateway.Transaction{Status: gateway.TxnStatusPaid, Amount: decimal.NewFromInt(42000)}, nil)

	order := model.Order{ID: 7, MerchantUID: "m-1", FinalTotal: 42000, Status: model.OrderStatusPending}
	orders.On("FindByMerchantUID", mock.Anything, "m-1").Return(order, nil)

	payments.On("FindPendingByOrderID", mock.Anything, int64(7)).
		Return(model.Payment{ID: 3, OrderID: 7}, true, nil)

	//並行したWebhookが先に同じexternal_txn_idで確定した
	payments.On("Update", mock.Anything, mock.Anything).Return(repo.ErrDuplicateKey)

	u := NewPaymentUsecase(tx, orders, payments, gw, &NotifierSpy{})

	out, err := u.Verify(context.Background(), "txn-1", "m-1")

	assert.NoError(t, err)
	assert.True(t, out.AlreadyProcessed)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_AmountMismatchIssuesCompensatingCancel(t *testing.T) {
	orders := new(OrderRepositoryMock)
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)
	tx := &TxManagerStub{}
	notifier := &NotifierSpy{}

	payments.On("FindByExternalTxnID", mock.Anything, "txn-1").
		Return(model.Payment{}, false, nil)
	//ゲートウェイは39,000しか受けていない
	gw.On("GetTransaction", mock.Anything, "txn-1").
		Return(gateway.Transaction{Status: gateway.TxnStatusPaid, Amount: decimal.NewFromInt(39000)}, nil)
	orders.On("FindByMerchantUID", mock.Anything, "m-1").
		Return(model.Order{ID: 7, MerchantUID: "m-1", FinalTotal: 42000, Status: model.OrderStatusPending}, nil)
	gw.On("Cancel", mock.Anything, "txn-1", int64(0), "amount mismatch").
		Return(gateway.CancelResult{}, nil)

	u := NewPaymentUsecase(tx, orders, payments, gw, notifier)

	_, err := u.Verify(context.Background(), "txn-1", "m-1")

	var mismatch *AmountMismatchError
	assert.True(t, errors.As(err, &mismatch))
	assert.Equal(t, int64(42000), mismatch.OrderTotal)
	assert.Equal(t, "39000", mismatch.PaidAmount.String())

	gw.AssertCalled(t, "Cancel", mock.Anything, "txn-1", int64(0), "amount mismatch")
	assert.True(t, notifier.Has("AMOUNT_MISMATCH"))

	//決済確定も注文遷移も走らない
	assert.Equal(t, 0, tx.Calls)
	payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestVerify_RejectsUnpaidTransaction(t *testing.T) {
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)

	payments.On("FindByExternalTxnID", mock.Anything, "txn-1").
		Return(model.Payment{}, false, nil)
	gw.On("GetTransaction", mock.Anything, "txn-1").
		Return(gateway.Transaction{Status: gateway.TxnStatusReady, Amount: decimal.NewFromInt(42000)}, nil)

	u := NewPaymentUsecase(&TxManagerStub{}, new(OrderRepositoryMock), payments, gw, &NotifierSpy{})

	_, err := u.Verify(context.Background(), "txn-1", "m-1")

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}

func TestVerify_GatewayUnavailable(t *testing.T) {
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)

	payments.On("FindByExternalTxnID", mock.Anything, "txn-1").
		Return(model.Payment{}, false, nil)
	gw.On("GetTransaction", mock.Anything, "txn-1").
		Return(gateway.Transaction{}, fmt.Errorf("get_txn: %w", resilience.ErrUnavailable))

	u := NewPaymentUsecase(&TxManagerStub{}, new(OrderRepositoryMock), payments, gw, &NotifierSpy{})

	_, err := u.Verify(context.Background(), "txn-1", "m-1")

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, he.Status)
}

func TestHandleWebhook_SwallowsFailure(t *testing.T) {
	payments := new(PaymentRepositoryMock)
	gw := new(GatewayMock)
	notifier := &NotifierSpy{}

	payments.On("FindByExternalTxnID", mock.Anything, "txn-1").
		Return(model.Payment{}, false, nil)
	gw.On("GetTransaction", mock.Anything, "txn-1").
		Return(gateway.Transaction{}, errors.New("boom"))

	u := NewPaymentUsecase(&TxManagerStub{}, new(OrderRepositoryMock), payments, gw, notifier)

	//panicもerrorも返さない
	u.HandleWebhook(context.Background(), "txn-1", "m-1")

	assert.True(t, notifier.Has("WEBHOOK_FAILED"))
}
