package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
	"github.com/sony/gobreaker/v2"
)

// 呼び出し先が落ちている/遮断中/時間切れ。
// 呼び出し側はこのエラーを見て操作ごとのフォールバックに切り替える
var ErrUnavailable = errors.New("dependency unavailable")

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Policyはリトライ・breaker・タイムアウトの設定。
// テストから差し替えられるように全部注入式にする
type Policy struct {
	MaxAttempts   uint64        // リトライ込みの総試行回数
	RetryInterval time.Duration // 試行間隔（固定）
	Timeout       time.Duration // 呼び出し全体の上限

	FailureRatio float64       // この失敗率でbreakerが開く
	MinRequests  uint32        // 失敗率を判定する最小リクエスト数
	OpenTimeout  time.Duration // open→half-openまでの時間

	//リトライしてよいエラーか。nilなら全部リトライ
	Retryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		RetryInterval: 200 * time.Millisecond,
		Timeout:       3 * time.Second,
		FailureRatio:  0.5,
		MinRequests:   5,
		OpenTimeout:   30 * time.Second,
	}
}

// Wrapperは外部呼び出しをbreaker+retry+timeoutで包むデコレーター
type Wrapper[T any] struct {
	name   string
	policy Policy
	cb     *gobreaker.CircuitBreaker[T]
}

func New[T any](name string, p Policy) *Wrapper[T] {
	//0は1回試行として扱う（MaxAttempts-1がリトライ回数になる）
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:    name,
		Timeout: p.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < p.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= p.FailureRatio
		},
		//リトライ不能なエラー（4xx相当）は呼び出し先の障害ではないので
		//breakerの失敗率に数えない
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return p.Retryable != nil && !p.Retryable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Wrapper[T]{name: name, policy: p, cb: cb}
}

// Executeはfnをリトライ付きで実行する。
// breakerが開いている/リトライを使い切った/タイムアウトした場合は ErrUnavailable を返す
func (w *Wrapper[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, w.policy.Timeout)
	defer cancel()

	v, err := w.cb.Execute(func() (T, error) {
		op := func() (T, error) {
			v, err := fn(ctx)
			if err != nil && w.policy.Retryable != nil && !w.policy.Retryable(err) {
				//リトライしても変わらないエラーは即終了
				return v, backoff.Permanent(err)
			}
			return v, err
		}

		b := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(w.policy.RetryInterval), w.policy.MaxAttempts-1),
			ctx,
		)
		return backoff.RetryWithData(op, b)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return v, fmt.Errorf("%s: circuit open: %w", w.name, ErrUnavailable)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return v, fmt.Errorf("%s: timeout: %w", w.name, ErrUnavailable)
		}
		if w.policy.Retryable == nil || w.policy.Retryable(err) {
			//リトライ可能なエラーのまま尽きた＝呼び出し先が落ちている
			return v, fmt.Errorf("%s: retries exhausted: %w (%v)", w.name, ErrUnavailable, err)
		}
		return v, err
	}
	return v, nil
}
