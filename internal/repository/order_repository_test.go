package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupOrderRepositoryTest(t *testing.T) (*GormOrderRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:order_repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.OrderLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewOrderRepository(db), db
}

func seedRepositoryOrder(t *testing.T, db *gorm.DB, payAmount int64) *models.Order {
	t.Helper()
	now := time.Now()
	order := &models.Order{
		OrderNo:         fmt.Sprintf("O%d", now.UnixNano()),
		UserID:          1,
		FlowType:        constants.OrderFlowTypeRetail,
		Status:          constants.OrderStatusPendingDelivery,
		PayStatus:       constants.OrderPayStatusPaid,
		Currency:        constants.DefaultCurrency,
		TotalAmount:     models.NewMoneyFromDecimal(decimal.NewFromInt(payAmount)),
		PayAmount:       models.NewMoneyFromDecimal(decimal.NewFromInt(payAmount)),
		AddressID:       1,
		ReceiverName:    "张三",
		ReceiverPhone:   "13800138000",
		ReceiverAddress: "广东省深圳市南山区科技园1号",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestIncrementRefundedAmountCapsAtPayAmount(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	order := seedRepositoryOrder(t, db, 100)

	rows, err := repo.IncrementRefundedAmount(order.ID, decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}

	// 60 + 50 超过应付金额，一行都不能改
	rows, err = repo.IncrementRefundedAmount(order.ID, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("rows = %d, want 0 when over cap", rows)
	}

	rows, err = repo.IncrementRefundedAmount(order.ID, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1 for exact remainder", rows)
	}

	fresh, err := repo.GetByID(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if !fresh.RefundedAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("refunded_amount = %s, want 100", fresh.RefundedAmount)
	}
}

func TestIncrementRefundedAmountRejectsBadParams(t *testing.T) {
	repo, _ := setupOrderRepositoryTest(t)
	if _, err := repo.IncrementRefundedAmount(0, decimal.NewFromInt(1)); err == nil {
		t.Fatalf("zero id accepted")
	}
	if _, err := repo.IncrementRefundedAmount(1, decimal.Zero); err == nil {
		t.Fatalf("zero amount accepted")
	}
}

func TestUpdateStatusGuardedConcurrentLoser(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	order := seedRepositoryOrder(t, db, 50)

	rows, err := repo.UpdateStatusGuarded(order.ID, []string{constants.OrderStatusPendingDelivery}, constants.OrderStatusPendingReceipt, nil)
	if err != nil {
		t.Fatalf("guarded update failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}

	// 同一前置状态的第二次转换必须落空
	rows, err = repo.UpdateStatusGuarded(order.ID, []string{constants.OrderStatusPendingDelivery}, constants.OrderStatusPendingReceipt, nil)
	if err != nil {
		t.Fatalf("guarded update failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("rows = %d, want 0 for stale transition", rows)
	}

	if _, err := repo.UpdateStatusGuarded(order.ID, nil, constants.OrderStatusCompleted, nil); err == nil {
		t.Fatalf("empty fromStatus accepted")
	}
}
