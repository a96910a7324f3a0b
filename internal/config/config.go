package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば個別のPOSTGRES_*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string // disableなど

	JWTSecret string // JWT署名シークレット

	//外部決済ゲートウェイ
	GatewayBaseURL   string
	GatewayAPIKey    string
	GatewayAPISecret string

	//外部コラボレーター
	CartBaseURL string // カートサービス（購入済み商品の削除）
	NotifyURL   string // 通知/監査シンク

	//退会イベント
	AmqpURL       string
	WithdrawQueue string

	//金額まわりの閾値
	FreeShippingThreshold int64 // これ以上で送料無料
	DeliveryFee           int64 // 送料（無料ライン未満）
	HighValueThreshold    int64 // 退会時の高額アラート閾値

	//レジリエンス（ゲートウェイ呼び出し共通）
	GatewayTimeout     time.Duration
	GatewayMaxAttempts uint64
	GatewayFailureRate float64
	BreakerOpenTimeout time.Duration
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: os.Getenv("PORT"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GatewayBaseURL:   os.Getenv("PG_BASE_URL"),
		GatewayAPIKey:    os.Getenv("PG_API_KEY"),
		GatewayAPISecret: os.Getenv("PG_API_SECRET"),

		CartBaseURL: os.Getenv("CART_BASE_URL"),
		NotifyURL:   os.Getenv("NOTIFY_URL"),

		AmqpURL:       os.Getenv("AMQP_URL"),
		WithdrawQueue: getenv("WITHDRAW_QUEUE", "user.withdrawn"),
	}

	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cfg.PostgresPort = pgPort

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GatewayBaseURL == "" {
		return Config{}, fmt.Errorf("PG_BASE_URL is required")
	}
	if cfg.GatewayAPIKey == "" {
		return Config{}, fmt.Errorf("PG_API_KEY is required")
	}
	if cfg.GatewayAPISecret == "" {
		return Config{}, fmt.Errorf("PG_API_SECRET is required")
	}

	//閾値はデフォルトあり
	cfg.FreeShippingThreshold, err = int64Default("FREE_SHIPPING_THRESHOLD", 40000)
	if err != nil {
		return Config{}, err
	}
	cfg.DeliveryFee, err = int64Default("DELIVERY_FEE", 3000)
	if err != nil {
		return Config{}, err
	}
	cfg.HighValueThreshold, err = int64Default("HIGH_VALUE_THRESHOLD", 1000000)
	if err != nil {
		return Config{}, err
	}

	timeoutMs, err := int64Default("PG_TIMEOUT_MS", 3000)
	if err != nil {
		return Config{}, err
	}
	cfg.GatewayTimeout = time.Duration(timeoutMs) * time.Millisecond

	attempts, err := int64Default("PG_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	cfg.GatewayMaxAttempts = uint64(attempts)

	cfg.GatewayFailureRate = 0.5
	if v := os.Getenv("PG_FAILURE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PG_FAILURE_RATE must be number: %w", err)
		}
		cfg.GatewayFailureRate = f
	}

	openMs, err := int64Default("BREAKER_OPEN_MS", 30000)
	if err != nil {
		return Config{}, err
	}
	cfg.BreakerOpenTimeout = time.Duration(openMs) * time.Millisecond

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func int64Default(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
