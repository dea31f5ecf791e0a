package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupOrderServiceTest(t *testing.T) (*OrderService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:order_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderLog{},
		&models.BalanceAccount{},
		&models.BalanceTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	balanceSvc := NewBalanceService(repository.NewBalanceRepository(db))
	svc := NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
		repository.NewCouponRepository(db),
		balanceSvc,
	)
	return svc, db
}

func seedPendingOrder(t *testing.T, db *gorm.DB, userID uint, status string) *models.Order {
	t.Helper()
	now := time.Now()
	order := &models.Order{
		OrderNo:     fmt.Sprintf("OTEST%d", now.UnixNano()),
		UserID:      userID,
		FlowType:    constants.OrderFlowTypeRetail,
		Status:      status,
		PayStatus:   constants.OrderPayStatusUnpaid,
		Currency:    "CNY",
		TotalAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		PayAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		AddressID:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(constants.OrderStatusPendingPayment, constants.OrderStatusCanceledUser) {
		t.Fatalf("pending_payment -> canceled_user should be allowed")
	}
	if !CanTransition(constants.OrderStatusPendingDelivery, constants.OrderStatusPendingReceipt) {
		t.Fatalf("pending_delivery -> pending_receipt should be allowed")
	}
	if CanTransition(constants.OrderStatusCompleted, constants.OrderStatusPendingPayment) {
		t.Fatalf("completed -> pending_payment should be rejected")
	}
	if CanTransition(constants.OrderStatusCanceledUser, constants.OrderStatusPendingDelivery) {
		t.Fatalf("canceled_user -> pending_delivery should be rejected")
	}
}

func TestCancelByUserRestoresStockAndBalance(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	now := time.Now()

	product := &models.Product{
		Name:        "测试商品",
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Stock:       5,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingPayment)
	item := &models.OrderItem{
		OrderID:     order.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.PriceAmount,
		Quantity:    2,
		TotalPrice:  models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		CreatedAt:   now,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create order item failed: %v", err)
	}
	// 模拟下单时的余额抵扣：30 抵扣在途
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"balance_paid_amount": models.NewMoneyFromDecimal(decimal.NewFromInt(30)),
		"pay_amount":          models.NewMoneyFromDecimal(decimal.NewFromInt(70)),
	}).Error; err != nil {
		t.Fatalf("seed balance paid failed: %v", err)
	}
	seedBalanceAccount(t, db, 1, 0)

	canceled, err := svc.CancelByUser(order.ID, 1, "不想要了")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if canceled.Status != constants.OrderStatusCanceledUser {
		t.Fatalf("status = %s, want canceled_user", canceled.Status)
	}

	var fresh models.Product
	if err := db.First(&fresh, product.ID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	if fresh.Stock != 7 {
		t.Fatalf("stock = %d, want 7", fresh.Stock)
	}

	var account models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("account balance = %s, want 30", account.Balance)
	}

	// 重复取消拿到状态错误
	if _, err := svc.CancelByUser(order.ID, 1, ""); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("second cancel err = %v, want ErrOrderStatusInvalid", err)
	}
}

func TestCancelByUserOtherUsersOrder(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingPayment)
	if _, err := svc.CancelByUser(order.ID, 2, ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestCancelBySystemSkipsNonPending(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingDelivery)

	got, err := svc.CancelBySystem(order.ID)
	if err != nil {
		t.Fatalf("cancel by system failed: %v", err)
	}
	if got.Status != constants.OrderStatusPendingDelivery {
		t.Fatalf("status = %s, want pending_delivery untouched", got.Status)
	}
}

func TestCancelBySystemCancelsPending(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingPayment)

	got, err := svc.CancelBySystem(order.ID)
	if err != nil {
		t.Fatalf("cancel by system failed: %v", err)
	}
	if got.Status != constants.OrderStatusCanceledSystem {
		t.Fatalf("status = %s, want canceled_system", got.Status)
	}
	var logCount int64
	if err := db.Model(&models.OrderLog{}).
		Where("order_id = ? AND actor = ?", order.ID, constants.OrderActorSystem).
		Count(&logCount).Error; err != nil {
		t.Fatalf("count logs failed: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("system log count = %d, want 1", logCount)
	}
}

func TestShipThenConfirmReceipt(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingDelivery)

	shipped, err := svc.Ship(order.ID, "顺丰 SF123456")
	if err != nil {
		t.Fatalf("ship failed: %v", err)
	}
	if shipped.Status != constants.OrderStatusPendingReceipt {
		t.Fatalf("status = %s, want pending_receipt", shipped.Status)
	}
	if shipped.ShippedAt == nil {
		t.Fatalf("shipped_at not set")
	}

	confirmed, err := svc.ConfirmReceipt(order.ID, 1)
	if err != nil {
		t.Fatalf("confirm receipt failed: %v", err)
	}
	if confirmed.Status != constants.OrderStatusCompleted {
		t.Fatalf("status = %s, want completed", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil {
		t.Fatalf("confirmed_at not set")
	}

	// 完成后不能再次确认
	if _, err := svc.ConfirmReceipt(order.ID, 1); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("second confirm err = %v, want ErrOrderStatusInvalid", err)
	}
}

func TestShipRejectsUnpaidOrder(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingPayment)
	if _, err := svc.Ship(order.ID, ""); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("err = %v, want ErrOrderStatusInvalid", err)
	}
}

func TestRejectedTransitionAppendsAuditLog(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingDelivery)

	// 已进入待发货的订单不能再被用户取消，拒绝本身要留痕
	if _, err := svc.CancelByUser(order.ID, 1, "反悔"); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("cancel err = %v, want ErrOrderStatusInvalid", err)
	}
	var rejected models.OrderLog
	if err := db.Where("order_id = ? AND action = ?", order.ID, "order_transition_rejected").
		First(&rejected).Error; err != nil {
		t.Fatalf("load rejection log failed: %v", err)
	}
	if rejected.Actor != constants.OrderActorUser {
		t.Fatalf("actor = %s, want user", rejected.Actor)
	}
	if rejected.Remark != "pending_delivery -> canceled_user" {
		t.Fatalf("remark = %q, want pending_delivery -> canceled_user", rejected.Remark)
	}

	// 管理员对未支付订单发货同样被拒并留痕
	unpaid := seedPendingOrder(t, db, 1, constants.OrderStatusPendingPayment)
	if _, err := svc.Ship(unpaid.ID, ""); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("ship err = %v, want ErrOrderStatusInvalid", err)
	}
	var logCount int64
	if err := db.Model(&models.OrderLog{}).
		Where("order_id = ? AND action = ? AND actor = ?", unpaid.ID, "order_transition_rejected", constants.OrderActorAdmin).
		Count(&logCount).Error; err != nil {
		t.Fatalf("count rejection logs failed: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("rejection log count = %d, want 1", logCount)
	}
}

func TestMarkPaidInTxGuardsStatus(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingPayment)
	paidAt := time.Now()

	if err := models.DB.Transaction(func(tx *gorm.DB) error {
		return svc.MarkPaidInTx(tx, order, paidAt)
	}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	fresh, err := svc.GetByID(order.ID)
	if err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if fresh.Status != constants.OrderStatusPendingDelivery {
		t.Fatalf("status = %s, want pending_delivery", fresh.Status)
	}
	if fresh.PayStatus != constants.OrderPayStatusPaid {
		t.Fatalf("pay status = %s, want paid", fresh.PayStatus)
	}

	// 已支付的订单再次推进拿到冲突
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		return svc.MarkPaidInTx(tx, order, paidAt)
	})
	if !errors.Is(err, ErrOrderStatusConflict) {
		t.Fatalf("second mark err = %v, want ErrOrderStatusConflict", err)
	}
}

func TestCloseByAdminReleasesCouponQuota(t *testing.T) {
	svc, db := setupOrderServiceTest(t)
	now := time.Now()

	coupon := &models.Coupon{
		Code:       "CLOSE10",
		Type:       "fixed",
		Value:      models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		UsageLimit: 1,
		UsedCount:  1,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}

	order := seedPendingOrder(t, db, 1, constants.OrderStatusPendingPayment)
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("coupon_id", coupon.ID).Error; err != nil {
		t.Fatalf("attach coupon failed: %v", err)
	}
	usage := &models.CouponUsage{
		CouponID:       coupon.ID,
		UserID:         1,
		OrderID:        order.ID,
		DiscountAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		CreatedAt:      now,
	}
	if err := db.Create(usage).Error; err != nil {
		t.Fatalf("create usage failed: %v", err)
	}

	closed, err := svc.CloseByAdmin(order.ID, "长期未支付")
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Status != constants.OrderStatusClosed {
		t.Fatalf("status = %s, want closed", closed.Status)
	}

	var fresh models.Coupon
	if err := db.First(&fresh, coupon.ID).Error; err != nil {
		t.Fatalf("load coupon failed: %v", err)
	}
	if fresh.UsedCount != 0 {
		t.Fatalf("used count = %d, want 0", fresh.UsedCount)
	}
	var usageCount int64
	if err := db.Model(&models.CouponUsage{}).Where("order_id = ?", order.ID).Count(&usageCount).Error; err != nil {
		t.Fatalf("count usages failed: %v", err)
	}
	if usageCount != 0 {
		t.Fatalf("usage count = %d, want 0", usageCount)
	}
}
