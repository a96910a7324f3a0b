package gateway

import (
	"context"

	"orderpay/internal/resilience"
)

// ResilientGatewayはPaymentGatewayの各呼び出しを
// breaker+retry+timeoutで包むデコレーター。
// 業務ロジックはこの向こう側に裸のゲートウェイがあることを知らない
type ResilientGateway struct {
	inner   PaymentGateway
	prepare *resilience.Wrapper[struct{}]
	getTxn  *resilience.Wrapper[Transaction]
	cancel  *resilience.Wrapper[CancelResult]
}

func NewResilientGateway(inner PaymentGateway, p resilience.Policy) *ResilientGateway {
	if p.Retryable == nil {
		p.Retryable = IsTemporary
	}
	return &ResilientGateway{
		inner:   inner,
		prepare: resilience.New[struct{}]("gateway.prepare", p),
		getTxn:  resilience.New[Transaction]("gateway.get_transaction", p),
		cancel:  resilience.New[CancelResult]("gateway.cancel", p),
	}
}

func (g *ResilientGateway) Prepare(ctx context.Context, paymentUID string, amount int64) error {
	_, err := g.prepare.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.Prepare(ctx, paymentUID, amount)
	})
	return err
}

func (g *ResilientGateway) GetTransaction(ctx context.Context, externalTxnID string) (Transaction, error) {
	return g.getTxn.Execute(ctx, func(ctx context.Context) (Transaction, error) {
		return g.inner.GetTransaction(ctx, externalTxnID)
	})
}

func (g *ResilientGateway) Cancel(ctx context.Context, externalTxnID string, amount int64, reason string) (CancelResult, error) {
	return g.cancel.Execute(ctx, func(ctx context.Context) (CancelResult, error) {
		return g.inner.Cancel(ctx, externalTxnID, amount, reason)
	})
}
