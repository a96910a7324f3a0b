package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"orderpay/internal/domain/model"
	"orderpay/internal/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:   1,
		RetryInterval: time.Millisecond,
		Timeout:       time.Second,
		FailureRatio:  1.0,
		MinRequests:   100,
		OpenTimeout:   time.Minute,
	}
}

func TestPlaceOrder_ComputesTotals(t *testing.T) {
	orders := new(OrderRepositoryMock)
	items := new(OrderItemRepositoryMock)
	tx := &TxManagerStub{Repos: TxReposStub{OrdersRepo: orders, OrderItemsRepo: items}}
	cartStub := NewCartStub()
	notifier := &NotifierSpy{}

	var created model.Order
	orders.On("Create", mock.Anything, mock.AnythingOfType("model.Order")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(model.Order)
		}).
		Return(int64(42), nil)
	items.On("CreateBulk", mock.Anything, int64(42), mock.Anything).Return(nil)

	u := NewCheckoutUsecase(tx, cartStub, notifier, testPolicy(), 40000, 3000)

	out, err := u.PlaceOrder(context.Background(), 1, CheckoutInput{
		Items: []CheckoutItemInput{
			{ProductID: 10, ProductName: "チェア", UnitPrice: 15000, Quantity: 2},
			{ProductID: 11, ProductName: "デスク", UnitPrice: 12000, Quantity: 1},
		},
		RecipientName: "山田太郎",
		Address1:      "서울시 강남구",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(42), out.OrderID)
	assert.Equal(t, int64(42000), out.ItemTotal)
	assert.Equal(t, int64(0), out.DeliveryFee) //40,000以上は送料無料
	assert.Equal(t, int64(42000), out.FinalTotal)
	assert.Equal(t, int64(420), out.SavedPoints) //1%
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.NotEmpty(t, out.MerchantUID)
	assert.False(t, out.Degraded)

	assert.Equal(t, model.OrderStatusPending, created.Status)
	assert.Equal(t, int64(1), created.UserID)

	//カート掃除は非同期で呼ばれる
	select {
	case ids := <-cartStub.Calls:
		assert.ElementsMatch(t, []int64{10, 11}, ids)
	case <-time.After(time.Second):
		t.Fatal("cart cleanup was not called")
	}
}

func TestPlaceOrder_ChargesDeliveryFeeBelowThreshold(t *testing.T) {
	orders := new(OrderRepositoryMock)
	items := new(OrderItemRepositoryMock)
	tx := &TxManagerStub{Repos: TxReposStub{OrdersRepo: orders, OrderItemsRepo: items}}

	orders.On("Create", mock.Anything, mock.Anything).Return(int64(7), nil)
	items.On("CreateBulk", mock.Anything, int64(7), mock.Anything).Return(nil)

	u := NewCheckoutUsecase(tx, NewCartStub(), &NotifierSpy{}, testPolicy(), 40000, 3000)

	out, err := u.PlaceOrder(context.Background(), 1, CheckoutInput{
		Items: []CheckoutItemInput{{ProductID: 10, UnitPrice: 39999, Quantity: 1}},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(3000), out.DeliveryFee)
	assert.Equal(t, int64(42999), out.FinalTotal)
	assert.Equal(t, int64(399), out.SavedPoints)
}

func TestPlaceOrder_FillsPlaceholders(t *testing.T) {
	orders := new(OrderRepositoryMock)
	items := new(OrderItemRepositoryMock)
	tx := &TxManagerStub{Repos: TxReposStub{OrdersRepo: orders, OrderItemsRepo: items}}

	var created model.Order
	orders.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(model.Order)
		}).
		Return(int64(7), nil)
	items.On("CreateBulk", mock.Anything, int64(7), mock.Anything).Return(nil)

	u := NewCheckoutUsecase(tx, NewCartStub(), &NotifierSpy{}, testPolicy(), 40000, 3000)

	_, err := u.PlaceOrder(context.Background(), 1, CheckoutInput{
		Items: []CheckoutItemInput{{ProductID: 10, UnitPrice: 1000, Quantity: 1}},
	})

	assert.NoError(t, err)
	assert.Equal(t, DefaultPhone, created.RecipientPhone)
	assert.Equal(t, DefaultAddress, created.Address1)
	assert.Equal(t, DefaultPayMethodName, created.PayMethodName)
}

func TestPlaceOrder_ValidatesInput(t *testing.T) {
	u := NewCheckoutUsecase(&TxManagerStub{}, NewCartStub(), &NotifierSpy{}, testPolicy(), 40000, 3000)

	tests := []struct {
		name   string
		userID int64
		in     CheckoutInput
		status int
	}{
		{
			name:   "no items",
			userID: 1,
			in:     CheckoutInput{},
			status: http.StatusBadRequest,
		},
		{
			name:   "zero quantity",
			userID: 1,
			in:     CheckoutInput{Items: []CheckoutItemInput{{ProductID: 1, UnitPrice: 100, Quantity: 0}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "negative unit price",
			userID: 1,
			in:     CheckoutInput{Items: []CheckoutItemInput{{ProductID: 1, UnitPrice: -1, Quantity: 1}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "used points exceed total",
			userID: 1,
			in: CheckoutInput{
				Items:      []CheckoutItemInput{{ProductID: 1, UnitPrice: 1000, Quantity: 1}},
				UsedPoints: 100000,
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "no user",
			userID: 0,
			in:     CheckoutInput{Items: []CheckoutItemInput{{ProductID: 1, UnitPrice: 100, Quantity: 1}}},
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.PlaceOrder(context.Background(), tt.userID, tt.in)
			he, ok := AsHTTPError(err)
			assert.True(t, ok)
			assert.Equal(t, tt.status, he.Status)
		})
	}
}

func TestPlaceOrder_DegradesWhenPersistFails(t *testing.T) {
	tx := &TxManagerStub{Err: errors.New("db down")}
	notifier := &NotifierSpy{}

	policy := testPolicy()
	policy.MaxAttempts = 2

	u := NewCheckoutUsecase(tx, NewCartStub(), notifier, policy, 40000, 3000)

	out, err := u.PlaceOrder(context.Background(), 1, CheckoutInput{
		Items: []CheckoutItemInput{{ProductID: 10, UnitPrice: 50000, Quantity: 1}},
	})

	//ハードエラーにはしない。一時受付で返す
	assert.NoError(t, err)
	assert.True(t, out.Degraded)
	assert.Equal(t, int64(0), out.OrderID)
	assert.True(t, strings.HasPrefix(out.MerchantUID, "tmp-"))
	assert.Equal(t, int64(50000), out.FinalTotal)

	assert.Equal(t, 2, tx.Calls) //リトライしてから諦める
	assert.True(t, notifier.Has("CHECKOUT_FALLBACK"))
}
