package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderpay/internal/config"
	"orderpay/internal/domain/model"
	"orderpay/internal/handler"
	"orderpay/internal/infra/cart"
	"orderpay/internal/infra/db"
	"orderpay/internal/infra/event"
	"orderpay/internal/infra/gateway"
	"orderpay/internal/infra/notify"
	infraRepo "orderpay/internal/infra/repository"
	"orderpay/internal/resilience"
	"orderpay/internal/server"
	"orderpay/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.OrderCancel{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	//Repository（GORM実装）生成
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	cancelRepo := infraRepo.NewOrderCancelGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//レジリエンスポリシー（ゲートウェイ共通）
	policy := resilience.DefaultPolicy()
	policy.MaxAttempts = cfg.GatewayMaxAttempts
	policy.Timeout = cfg.GatewayTimeout
	policy.FailureRatio = cfg.GatewayFailureRate
	policy.OpenTimeout = cfg.BreakerOpenTimeout

	//決済ゲートウェイ（breaker+retry+timeoutで包む）
	gwClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayAPISecret, cfg.GatewayTimeout)
	gw := gateway.NewResilientGateway(gwClient, policy)

	//外部コラボレーター
	var cartClient cart.Client = cart.NopClient{}
	if cfg.CartBaseURL != "" {
		cartClient = cart.NewHTTPClient(cfg.CartBaseURL, 3*time.Second)
	}
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.NotifyURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifyURL, 3*time.Second)
	}

	//Usecase生成
	checkoutUC := usecase.NewCheckoutUsecase(txManager, cartClient, notifier, policy, cfg.FreeShippingThreshold, cfg.DeliveryFee)
	orderUC := usecase.NewOrderUsecase(txManager)
	statusUC := usecase.NewOrderStatusUsecase(txManager)
	paymentUC := usecase.NewPaymentUsecase(txManager, orderRepo, paymentRepo, gw, notifier)
	cancelUC := usecase.NewCancelUsecase(txManager, orderRepo, paymentRepo, cancelRepo, gw, notifier)
	withdrawalUC := usecase.NewWithdrawalUsecase(txManager, orderRepo, paymentRepo, gw, notifier, cfg.HighValueThreshold)

	//Handler生成
	orderH := handler.NewOrderHandler(checkoutUC, orderUC, cancelUC, statusUC)
	paymentH := handler.NewPaymentHandler(paymentUC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//退会イベント消費（AMQPの設定が無ければ起動しない）
	if cfg.AmqpURL != "" {
		consumer, err := event.NewWithdrawalConsumer(cfg.AmqpURL, cfg.WithdrawQueue, withdrawalUC)
		if err != nil {
			log.Fatalf("withdrawal consumer: %v", err)
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Errorf("withdrawal consumer stopped: %v", err)
			}
		}()
	}

	//Server起動
	e := server.New(cfg, orderH, paymentH)

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	go func() {
		if err := server.Start(e, addr); err != nil {
			log.Infof("server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx, e); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
