package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderpay/internal/domain/model"
	"orderpay/internal/infra/cart"
	"orderpay/internal/infra/notify"
	repo "orderpay/internal/repository"
	"orderpay/internal/resilience"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// 任意項目が空のときに入れるプレースホルダ。
// 後段の整形処理がnullで落ちないようにする
const (
	DefaultPhone         = "000-0000-0000"
	DefaultAddress       = "住所未入力"
	DefaultPayMethodName = "未指定"
)

// ポイント還元率（1%）
const pointRate = 100

type CheckoutUsecase struct {
	tx       repo.TransactionManager
	cart     cart.Client
	notifier notify.Notifier
	persist  *resilience.Wrapper[CheckoutOutput]

	freeShippingThreshold int64
	deliveryFee           int64
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	cartClient cart.Client,
	notifier notify.Notifier,
	policy resilience.Policy,
	freeShippingThreshold int64,
	deliveryFee int64,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:                    tx,
		cart:                  cartClient,
		notifier:              notifier,
		persist:               resilience.New[CheckoutOutput]("checkout.persist", policy),
		freeShippingThreshold: freeShippingThreshold,
		deliveryFee:           deliveryFee,
	}
}

type CheckoutItemInput struct {
	ProductID   int64
	ProductName string
	UnitPrice   int64
	Quantity    int64
}

type CheckoutInput struct {
	Items      []CheckoutItemInput
	Discount   int64
	UsedPoints int64

	RecipientName   string
	RecipientPhone  string
	ZipCode         string
	Address1        string
	Address2        string
	DeliveryMessage string
	PayMethodName   string
}

type CheckoutOutput struct {
	OrderID     int64  `json:"order_id"`
	MerchantUID string `json:"merchant_uid"`
	Status      string `json:"status"`

	ItemTotal   int64 `json:"item_total"`
	DeliveryFee int64 `json:"delivery_fee"`
	Discount    int64 `json:"discount"`
	UsedPoints  int64 `json:"used_points"`
	FinalTotal  int64 `json:"final_total"`
	SavedPoints int64 `json:"saved_points"`

	//trueなら「一時受付」。注文IDは仮で、後でバッチ照合する
	Degraded bool `json:"degraded"`
}

func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "items required")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if it.Quantity <= 0 {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be > 0")
		}
		if it.UnitPrice < 0 {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "unit_price must be >= 0")
		}
	}
	if in.Discount < 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "discount must be >= 0")
	}
	if in.UsedPoints < 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "used_points must be >= 0")
	}

	//金額計算
	var itemTotal int64 = 0
	for _, it := range in.Items {
		itemTotal += it.UnitPrice * it.Quantity
	}

	deliveryFee := u.deliveryFee
	if itemTotal >= u.freeShippingThreshold {
		deliveryFee = 0
	}

	finalTotal := itemTotal + deliveryFee - in.Discount - in.UsedPoints
	if finalTotal < 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "final total must be >= 0")
	}

	savedPoints := itemTotal / pointRate

	//空の任意項目はプレースホルダで埋める
	recipientPhone := defaultIfEmpty(in.RecipientPhone, DefaultPhone)
	address1 := defaultIfEmpty(in.Address1, DefaultAddress)
	payMethodName := defaultIfEmpty(in.PayMethodName, DefaultPayMethodName)

	merchantUID := uuid.NewString()
	now := time.Now()

	order := model.Order{
		MerchantUID: merchantUID,
		UserID:      userID,
		Status:      model.OrderStatusPending,

		ItemTotal:   itemTotal,
		DeliveryFee: deliveryFee,
		Discount:    in.Discount,
		UsedPoints:  in.UsedPoints,
		FinalTotal:  finalTotal,
		SavedPoints: savedPoints,

		RecipientName:   strings.TrimSpace(in.RecipientName),
		RecipientPhone:  recipientPhone,
		ZipCode:         strings.TrimSpace(in.ZipCode),
		Address1:        address1,
		Address2:        strings.TrimSpace(in.Address2),
		DeliveryMessage: strings.TrimSpace(in.DeliveryMessage),
		PayMethodName:   payMethodName,

		OrderedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	orderItems := make([]model.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		orderItems = append(orderItems, model.OrderItem{
			ProductID:           it.ProductID,
			ProductNameSnapshot: it.ProductName,
			UnitPriceSnapshot:   it.UnitPrice,
			Quantity:            it.Quantity,
			LineTotal:           it.UnitPrice * it.Quantity,
			Status:              model.OrderStatusPending,
			CreatedAt:           now,
		})
	}

	//永続化はretry+breakerの中で回す
	out, err := u.persist.Execute(ctx, func(ctx context.Context) (CheckoutOutput, error) {
		var created CheckoutOutput
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			orderID, err := r.Orders().Create(ctx, order)
			if err != nil {
				return err
			}
			if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
				return err
			}
			created = toCheckoutOutput(orderID, order)
			return nil
		})
		return created, err
	})
	if err != nil {
		if resilience.IsUnavailable(err) {
			//ハードに失敗させず「一時受付」を返して後で照合する
			log.Errorf("checkout persist failed, returning degraded response: %v", err)

			syntheticUID := "tmp-" + uuid.NewString()
			if nerr := u.notifier.Notify(context.Background(), notify.CategoryCheckoutFallback,
				fmt.Sprintf("checkout degraded: user=%d synthetic_uid=%s total=%d", userID, syntheticUID, finalTotal)); nerr != nil {
				log.Errorf("notify checkout fallback failed: %v", nerr)
			}

			degraded := toCheckoutOutput(0, order)
			degraded.MerchantUID = syntheticUID
			degraded.Degraded = true
			return degraded, nil
		}
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//カート掃除はベストエフォート（失敗しても注文は成立）
	productIDs := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		productIDs = append(productIDs, it.ProductID)
	}
	go func() {
		removed, err := u.cart.RemovePurchasedItems(context.Background(), userID, productIDs)
		if err != nil {
			log.Warnf("cart cleanup failed for user %d: %v", userID, err)
			return
		}
		log.Infof("cart cleanup removed %d items for user %d", removed, userID)
	}()

	return out, nil
}

func toCheckoutOutput(orderID int64, o model.Order) CheckoutOutput {
	return CheckoutOutput{
		OrderID:     orderID,
		MerchantUID: o.MerchantUID,
		Status:      string(o.Status),
		ItemTotal:   o.ItemTotal,
		DeliveryFee: o.DeliveryFee,
		Discount:    o.Discount,
		UsedPoints:  o.UsedPoints,
		FinalTotal:  o.FinalTotal,
		SavedPoints: o.SavedPoints,
	}
}

func defaultIfEmpty(s string, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
