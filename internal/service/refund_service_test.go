package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/payment"
	"github.com/qingmall/internal/payment/balance"
	"github.com/qingmall/internal/payment/cash"
	"github.com/qingmall/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupRefundServiceTest(t *testing.T) (*RefundService, *payment.Registry, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:refund_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderLog{},
		&models.Payment{},
		&models.Refund{},
		&models.BalanceAccount{},
		&models.BalanceTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	registry := payment.NewRegistry()
	registry.Register(balance.New())
	registry.Register(cash.New())

	balanceSvc := NewBalanceService(repository.NewBalanceRepository(db))
	svc := NewRefundService(
		repository.NewRefundRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewOrderRepository(db),
		balanceSvc,
		registry,
	)
	return svc, registry, db
}

func seedPaidOrderWithPayment(t *testing.T, db *gorm.DB, userID uint, amount int64, method string) (*models.Order, *models.Payment) {
	t.Helper()
	now := time.Now()
	paidAt := now.Add(-time.Hour)
	order := &models.Order{
		OrderNo:     fmt.Sprintf("OTESTRF%d", now.UnixNano()),
		UserID:      userID,
		FlowType:    constants.OrderFlowTypeRetail,
		Status:      constants.OrderStatusPendingDelivery,
		PayStatus:   constants.OrderPayStatusPaid,
		Currency:    "CNY",
		TotalAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		PayAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		PaidAt:      &paidAt,
		AddressID:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	pay := &models.Payment{
		PaymentNo: fmt.Sprintf("PTESTRF%d", now.UnixNano()),
		OrderID:   order.ID,
		Method:    method,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		Currency:  "CNY",
		Status:    constants.PaymentStatusSuccess,
		PaidAt:    &paidAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(pay).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return order, pay
}

func TestCreateRefundBalancePartial(t *testing.T) {
	svc, _, db := setupRefundServiceTest(t)
	order, pay := seedPaidOrderWithPayment(t, db, 1, 100, constants.PaymentMethodBalance)
	seedBalanceAccount(t, db, 1, 0)

	refund, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(40),
		Reason:    "部分退款",
	})
	if err != nil {
		t.Fatalf("create refund failed: %v", err)
	}
	if refund.Status != constants.RefundStatusCompleted {
		t.Fatalf("refund status = %s, want completed", refund.Status)
	}

	var fresh models.Order
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if !fresh.RefundedAmount.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("refunded amount = %s, want 40", fresh.RefundedAmount)
	}
	// 部分退款不改变订单状态
	if fresh.Status != constants.OrderStatusPendingDelivery {
		t.Fatalf("order status = %s, want pending_delivery", fresh.Status)
	}

	// 余额渠道原路回账
	var account models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("balance = %s, want 40", account.Balance)
	}
	reference := fmt.Sprintf("refund:%s", refund.RefundNo)
	var txnCount int64
	if err := db.Model(&models.BalanceTransaction{}).Where("reference = ?", reference).Count(&txnCount).Error; err != nil {
		t.Fatalf("count transactions failed: %v", err)
	}
	if txnCount != 1 {
		t.Fatalf("refund txn count = %d, want 1", txnCount)
	}
}

func TestCreateRefundFullMovesOrderToRefunded(t *testing.T) {
	svc, _, db := setupRefundServiceTest(t)
	order, pay := seedPaidOrderWithPayment(t, db, 1, 100, constants.PaymentMethodBalance)
	seedBalanceAccount(t, db, 1, 0)

	refund, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(100),
		Reason:    "整单退款",
	})
	if err != nil {
		t.Fatalf("create refund failed: %v", err)
	}
	if refund.Status != constants.RefundStatusCompleted {
		t.Fatalf("refund status = %s, want completed", refund.Status)
	}

	var fresh models.Order
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if fresh.Status != constants.OrderStatusRefunded {
		t.Fatalf("order status = %s, want refunded", fresh.Status)
	}
	if !fresh.RefundedAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("refunded amount = %s, want 100", fresh.RefundedAmount)
	}
}

func TestCreateRefundExceedsRemaining(t *testing.T) {
	svc, _, db := setupRefundServiceTest(t)
	_, pay := seedPaidOrderWithPayment(t, db, 1, 100, constants.PaymentMethodBalance)
	seedBalanceAccount(t, db, 1, 0)

	if _, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(80),
	}); err != nil {
		t.Fatalf("first refund failed: %v", err)
	}

	// 累计 80+30 超过支付金额 100
	_, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(30),
	})
	if !errors.Is(err, ErrRefundExceeded) {
		t.Fatalf("err = %v, want ErrRefundExceeded", err)
	}
}

func TestCreateRefundRejectsNonSuccessPayment(t *testing.T) {
	svc, _, db := setupRefundServiceTest(t)
	_, pay := seedPaidOrderWithPayment(t, db, 1, 100, constants.PaymentMethodBalance)
	if err := db.Model(&models.Payment{}).Where("id = ?", pay.ID).Update("status", constants.PaymentStatusPending).Error; err != nil {
		t.Fatalf("downgrade payment failed: %v", err)
	}

	_, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrRefundNotAllowed) {
		t.Fatalf("err = %v, want ErrRefundNotAllowed", err)
	}
}

func TestCreateRefundInvalidAmount(t *testing.T) {
	svc, _, _ := setupRefundServiceTest(t)
	_, err := svc.Create(CreateRefundInput{
		PaymentID: 1,
		Amount:    decimal.Zero,
	})
	if !errors.Is(err, ErrRefundInvalidAmount) {
		t.Fatalf("err = %v, want ErrRefundInvalidAmount", err)
	}
}

func TestCompleteRefundFromProcessing(t *testing.T) {
	svc, registry, db := setupRefundServiceTest(t)
	order, pay := seedPaidOrderWithPayment(t, db, 1, 100, constants.PaymentMethodEpay)
	// 易支付渠道异步退款：下发处理中，后续人工确认到账
	registry.Register(&stubGateway{
		method:       constants.PaymentMethodEpay,
		refundResult: &payment.RefundResult{Status: constants.RefundStatusProcessing},
	})

	refund, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(60),
		Reason:    "质量问题",
	})
	if err != nil {
		t.Fatalf("create refund failed: %v", err)
	}
	if refund.Status != constants.RefundStatusProcessing {
		t.Fatalf("refund status = %s, want processing", refund.Status)
	}

	var fresh models.Order
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if !fresh.RefundedAmount.Decimal.IsZero() {
		t.Fatalf("refunded amount = %s, want 0 while processing", fresh.RefundedAmount)
	}

	completed, err := svc.Complete(refund.ID, "EPREFUND1")
	if err != nil {
		t.Fatalf("complete refund failed: %v", err)
	}
	if completed.Status != constants.RefundStatusCompleted {
		t.Fatalf("refund status = %s, want completed", completed.Status)
	}
	if completed.ProviderRef != "EPREFUND1" {
		t.Fatalf("provider ref = %s, want EPREFUND1", completed.ProviderRef)
	}

	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if !fresh.RefundedAmount.Decimal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("refunded amount = %s, want 60", fresh.RefundedAmount)
	}

	// 已完成的退款重复确认幂等返回
	again, err := svc.Complete(refund.ID, "")
	if err != nil {
		t.Fatalf("repeat complete failed: %v", err)
	}
	if again.Status != constants.RefundStatusCompleted {
		t.Fatalf("repeat status = %s, want completed", again.Status)
	}
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if !fresh.RefundedAmount.Decimal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("refunded amount after repeat = %s, want 60", fresh.RefundedAmount)
	}
}

func TestRejectRefund(t *testing.T) {
	svc, registry, db := setupRefundServiceTest(t)
	_, pay := seedPaidOrderWithPayment(t, db, 1, 100, constants.PaymentMethodEpay)
	registry.Register(&stubGateway{
		method:       constants.PaymentMethodEpay,
		refundResult: &payment.RefundResult{Status: constants.RefundStatusProcessing},
	})

	refund, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("create refund failed: %v", err)
	}

	rejected, err := svc.Reject(refund.ID, "核实不符合退款条件")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != constants.RefundStatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}

	if _, err := svc.Reject(refund.ID, ""); !errors.Is(err, ErrRefundStatusInvalid) {
		t.Fatalf("second reject err = %v, want ErrRefundStatusInvalid", err)
	}
	if _, err := svc.Complete(refund.ID, ""); !errors.Is(err, ErrRefundStatusInvalid) {
		t.Fatalf("complete rejected err = %v, want ErrRefundStatusInvalid", err)
	}

	// 驳回后的额度释放，可重新发起
	if _, err := svc.Create(CreateRefundInput{
		PaymentID: pay.ID,
		Amount:    decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("refund after reject failed: %v", err)
	}
}
