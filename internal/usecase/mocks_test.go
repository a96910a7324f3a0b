package usecase

import (
	"context"
	"time"

	"orderpay/internal/domain/model"
	"orderpay/internal/infra/gateway"
	repo "orderpay/internal/repository"

	"github.com/stretchr/testify/mock"
)

//fnを固定のリポジトリに対してそのまま実行する。Errが入っていれば常に失敗
type TxManagerStub struct {
	Repos repo.TxRepos
	Err   error
	Calls int

	//各トランザクションのfnが返したエラー（rollback相当の検証用）
	FnErrs []error
}

func (m *TxManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	err := fn(m.Repos)
	m.FnErrs = append(m.FnErrs, err)
	return err
}

type TxReposStub struct {
	OrdersRepo       repo.OrderRepository
	OrderItemsRepo   repo.OrderItemRepository
	PaymentsRepo     repo.PaymentRepository
	OrderCancelsRepo repo.OrderCancelRepository
}

func (s TxReposStub) Orders() repo.OrderRepository             { return s.OrdersRepo }
func (s TxReposStub) OrderItems() repo.OrderItemRepository     { return s.OrderItemsRepo }
func (s TxReposStub) Payments() repo.PaymentRepository         { return s.PaymentsRepo }
func (s TxReposStub) OrderCancels() repo.OrderCancelRepository { return s.OrderCancelsRepo }

type OrderRepositoryMock struct {
	mock.Mock
}

func (m *OrderRepositoryMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *OrderRepositoryMock) FindByMerchantUID(ctx context.Context, merchantUID string) (model.Order, error) {
	args := m.Called(ctx, merchantUID)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *OrderRepositoryMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	return args.Get(0).([]model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepositoryMock) ListOpenByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *OrderRepositoryMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepositoryMock) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *OrderRepositoryMock) UpdateShippedAt(ctx context.Context, orderID int64, shippedAt time.Time) error {
	args := m.Called(ctx, orderID, shippedAt)
	return args.Error(0)
}

func (m *OrderRepositoryMock) MaskRecipient(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type OrderItemRepositoryMock struct {
	mock.Mock
}

func (m *OrderItemRepositoryMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepositoryMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]model.OrderItem), args.Error(1)
}

func (m *OrderItemRepositoryMock) UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

type PaymentRepositoryMock struct {
	mock.Mock
}

func (m *PaymentRepositoryMock) Create(ctx context.Context, p model.Payment) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PaymentRepositoryMock) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(model.Payment), args.Error(1)
}

func (m *PaymentRepositoryMock) FindByExternalTxnID(ctx context.Context, externalTxnID string) (model.Payment, bool, error) {
	args := m.Called(ctx, externalTxnID)
	return args.Get(0).(model.Payment), args.Bool(1), args.Error(2)
}

func (m *PaymentRepositoryMock) FindPendingByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(model.Payment), args.Bool(1), args.Error(2)
}

func (m *PaymentRepositoryMock) FindCompletedByOrderID(ctx context.Context, orderID int64) (model.Payment, bool, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(model.Payment), args.Bool(1), args.Error(2)
}

func (m *PaymentRepositoryMock) Update(ctx context.Context, p model.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PaymentRepositoryMock) UpdateStatus(ctx context.Context, paymentID int64, status model.PaymentStatus) error {
	args := m.Called(ctx, paymentID, status)
	return args.Error(0)
}

type OrderCancelRepositoryMock struct {
	mock.Mock
}

func (m *OrderCancelRepositoryMock) Create(ctx context.Context, c model.OrderCancel) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderCancelRepositoryMock) FindByOrderID(ctx context.Context, orderID int64) (model.OrderCancel, bool, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(model.OrderCancel), args.Bool(1), args.Error(2)
}

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) Prepare(ctx context.Context, paymentUID string, amount int64) error {
	args := m.Called(ctx, paymentUID, amount)
	return args.Error(0)
}

func (m *GatewayMock) GetTransaction(ctx context.Context, externalTxnID string) (gateway.Transaction, error) {
	args := m.Called(ctx, externalTxnID)
	return args.Get(0).(gateway.Transaction), args.Error(1)
}

func (m *GatewayMock) Cancel(ctx context.Context, externalTxnID string, amount int64, reason string) (gateway.CancelResult, error) {
	args := m.Called(ctx, externalTxnID, amount, reason)
	return args.Get(0).(gateway.CancelResult), args.Error(1)
}

//通知のカテゴリだけ記録する
type NotifierSpy struct {
	Categories []string
	Messages   []string
}

func (n *NotifierSpy) Notify(ctx context.Context, category string, message string) error {
	n.Categories = append(n.Categories, category)
	n.Messages = append(n.Messages, message)
	return nil
}

func (n *NotifierSpy) Has(category string) bool {
	for _, c := range n.Categories {
		if c == category {
			return true
		}
	}
	return false
}

//カート掃除呼び出しを受けたらチャネルに流す（goroutine越しの検証用）
type CartStub struct {
	Calls chan []int64
}

func NewCartStub() *CartStub {
	return &CartStub{Calls: make(chan []int64, 1)}
}

func (c *CartStub) RemovePurchasedItems(ctx context.Context, userID int64, productIDs []int64) (int, error) {
	c.Calls <- productIDs
	return len(productIDs), nil
}
