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

func setupBalanceServiceTest(t *testing.T) (*BalanceService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:balance_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.OrderItem{},
		&models.BalanceAccount{},
		&models.BalanceTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	svc := NewBalanceService(repository.NewBalanceRepository(db))
	return svc, db
}

func seedBalanceAccount(t *testing.T, db *gorm.DB, userID uint, balance int64) *models.BalanceAccount {
	t.Helper()
	now := time.Now()
	account := &models.BalanceAccount{
		UserID:    userID,
		Balance:   models.NewMoneyFromDecimal(decimal.NewFromInt(balance)),
		Currency:  "CNY",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create balance account failed: %v", err)
	}
	return account
}

func TestCreditInTxIdempotentByReference(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 0)

	input := BalanceCreditInput{
		UserID:    1,
		Amount:    decimal.NewFromInt(100),
		Currency:  "CNY",
		TxnType:   constants.BalanceTxnTypeRecharge,
		Reference: "recharge:test:1",
	}
	account, txn, err := svc.CreditInTx(db, input)
	if err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s, want 100", account.Balance)
	}
	firstTxnID := txn.ID

	// 同参考号重复入账：返回既有流水，余额不再变动
	account, txn, err = svc.CreditInTx(db, input)
	if err != nil {
		t.Fatalf("second credit failed: %v", err)
	}
	if txn.ID != firstTxnID {
		t.Fatalf("duplicate credit created new transaction %d, want %d", txn.ID, firstTxnID)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance after duplicate credit = %s, want 100", account.Balance)
	}

	var count int64
	if err := db.Model(&models.BalanceTransaction{}).Where("reference = ?", input.Reference).Count(&count).Error; err != nil {
		t.Fatalf("count transactions failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("transaction count = %d, want 1", count)
	}
}

func TestDebitInTxInsufficientBalance(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 30)

	_, _, err := svc.DebitInTx(db, BalanceCreditInput{
		UserID:    1,
		Amount:    decimal.NewFromInt(50),
		TxnType:   constants.BalanceTxnTypeOrderPay,
		Reference: "debit:test:1",
	})
	if !errors.Is(err, ErrBalanceInsufficient) {
		t.Fatalf("err = %v, want ErrBalanceInsufficient", err)
	}

	var count int64
	if err := db.Model(&models.BalanceTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count transactions failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("transaction count = %d, want 0", count)
	}
}

func TestDebitInTxIdempotentByReference(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 100)

	input := BalanceCreditInput{
		UserID:    1,
		Amount:    decimal.NewFromInt(40),
		TxnType:   constants.BalanceTxnTypeOrderPay,
		Reference: "debit:test:2",
	}
	if _, _, err := svc.DebitInTx(db, input); err != nil {
		t.Fatalf("first debit failed: %v", err)
	}
	account, txn, err := svc.DebitInTx(db, input)
	if err != nil {
		t.Fatalf("second debit failed: %v", err)
	}
	if !txn.Amount.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("txn amount = %s, want 40", txn.Amount)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("balance after duplicate debit = %s, want 60", account.Balance)
	}
}

func TestCreditInTxRejectsEmptyReference(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	_, _, err := svc.CreditInTx(db, BalanceCreditInput{
		UserID: 1,
		Amount: decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrBalanceTransactionCreateFailed) {
		t.Fatalf("err = %v, want ErrBalanceTransactionCreateFailed", err)
	}
}

func TestAdminAdjustNegativeDelta(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 100)

	account, txn, err := svc.AdminAdjust(BalanceAdjustInput{
		UserID: 1,
		Delta:  models.NewMoneyFromDecimal(decimal.NewFromInt(-30)),
		Remark: "扣减测试",
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("balance = %s, want 70", account.Balance)
	}
	if txn.Direction != constants.BalanceTxnDirectionOut {
		t.Fatalf("direction = %s, want out", txn.Direction)
	}
	if !txn.Amount.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("txn amount = %s, want 30", txn.Amount)
	}

	if _, _, err := svc.AdminAdjust(BalanceAdjustInput{
		UserID: 1,
		Delta:  models.NewMoneyFromDecimal(decimal.NewFromInt(-200)),
	}); !errors.Is(err, ErrBalanceInsufficient) {
		t.Fatalf("err = %v, want ErrBalanceInsufficient", err)
	}

	if _, _, err := svc.AdminAdjust(BalanceAdjustInput{
		UserID: 1,
		Delta:  models.NewMoneyFromDecimal(decimal.Zero),
	}); !errors.Is(err, ErrBalanceInvalidAmount) {
		t.Fatalf("err = %v, want ErrBalanceInvalidAmount", err)
	}
}

func TestGetAccountAutoCreates(t *testing.T) {
	svc, _ := setupBalanceServiceTest(t)
	account, err := svc.GetAccount(7)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if account.UserID != 7 {
		t.Fatalf("user id = %d, want 7", account.UserID)
	}
	if !account.Balance.Decimal.IsZero() {
		t.Fatalf("new account balance = %s, want 0", account.Balance)
	}
	if account.Currency != "CNY" {
		t.Fatalf("currency = %s, want CNY", account.Currency)
	}
}

func TestApplyOrderBalancePartialDeduction(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 50)
	now := time.Now()

	order := &models.Order{
		OrderNo:     "OTESTBAL001",
		UserID:      1,
		FlowType:    constants.OrderFlowTypeRetail,
		Status:      constants.OrderStatusPendingPayment,
		PayStatus:   constants.OrderPayStatusUnpaid,
		Currency:    "CNY",
		TotalAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(140)),
		ShippingFee: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		PayAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(150)),
		AddressID:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	deducted, err := svc.ApplyOrderBalance(db, order, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("apply order balance failed: %v", err)
	}
	if !deducted.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("deducted = %s, want 50", deducted)
	}
	if !order.PayAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pay amount = %s, want 100", order.PayAmount)
	}
	if !order.BalancePaidAmount.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance paid = %s, want 50", order.BalancePaidAmount)
	}

	var account models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.IsZero() {
		t.Fatalf("account balance = %s, want 0", account.Balance)
	}

	// 重复调用按参考号幂等，不再扣账
	deducted, err = svc.ApplyOrderBalance(db, order, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if !deducted.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("second deducted = %s, want 50", deducted)
	}
	var count int64
	reference := fmt.Sprintf("order:%d:%s", order.ID, constants.BalanceTxnTypeOrderPay)
	if err := db.Model(&models.BalanceTransaction{}).Where("reference = ?", reference).Count(&count).Error; err != nil {
		t.Fatalf("count transactions failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("order_pay transaction count = %d, want 1", count)
	}
}

func TestApplyOrderBalanceUsesRequestedPortion(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 100)
	now := time.Now()

	order := &models.Order{
		OrderNo:     "OTESTBAL003",
		UserID:      1,
		FlowType:    constants.OrderFlowTypeRetail,
		Status:      constants.OrderStatusPendingPayment,
		PayStatus:   constants.OrderPayStatusUnpaid,
		Currency:    "CNY",
		TotalAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(150)),
		PayAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(150)),
		AddressID:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// 余额 100 只用 50，剩余 100 走支付渠道
	deducted, err := svc.ApplyOrderBalance(db, order, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("apply order balance failed: %v", err)
	}
	if !deducted.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("deducted = %s, want 50", deducted)
	}
	if !order.BalancePaidAmount.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance paid = %s, want 50", order.BalancePaidAmount)
	}
	if !order.PayAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("pay amount = %s, want 100", order.PayAmount)
	}

	var account models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("account balance = %s, want 50", account.Balance)
	}
}

func TestApplyOrderBalanceRequestExceedsBalance(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 40)
	now := time.Now()

	order := &models.Order{
		OrderNo:     "OTESTBAL004",
		UserID:      1,
		FlowType:    constants.OrderFlowTypeRetail,
		Status:      constants.OrderStatusPendingPayment,
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

	if _, err := svc.ApplyOrderBalance(db, order, decimal.NewFromInt(60)); !errors.Is(err, ErrBalanceInsufficient) {
		t.Fatalf("err = %v, want ErrBalanceInsufficient", err)
	}
	if !order.BalancePaidAmount.Decimal.IsZero() {
		t.Fatalf("balance paid = %s, want 0", order.BalancePaidAmount)
	}

	// 请求不超过余额则正常抵扣
	deducted, err := svc.ApplyOrderBalance(db, order, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !deducted.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("deducted = %s, want 40", deducted)
	}
}

func TestReleaseOrderBalanceRestoresAccount(t *testing.T) {
	svc, db := setupBalanceServiceTest(t)
	seedBalanceAccount(t, db, 1, 80)
	now := time.Now()

	order := &models.Order{
		OrderNo:     "OTESTBAL002",
		UserID:      1,
		FlowType:    constants.OrderFlowTypeRetail,
		Status:      constants.OrderStatusPendingPayment,
		PayStatus:   constants.OrderPayStatusUnpaid,
		Currency:    "CNY",
		TotalAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(120)),
		PayAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(120)),
		AddressID:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := svc.ApplyOrderBalance(db, order, decimal.NewFromInt(80)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	released, err := svc.ReleaseOrderBalance(db, order, constants.BalanceTxnTypeOrderRelease, "订单取消余额退回")
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !released.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("released = %s, want 80", released)
	}
	if !order.BalancePaidAmount.Decimal.IsZero() {
		t.Fatalf("balance paid after release = %s, want 0", order.BalancePaidAmount)
	}
	if !order.PayAmount.Decimal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("pay amount after release = %s, want 120", order.PayAmount)
	}

	var account models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if !account.Balance.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("account balance = %s, want 80", account.Balance)
	}

	txn, err := repository.NewBalanceRepository(db).GetTransactionByReference(
		fmt.Sprintf("order:%d:%s", order.ID, constants.BalanceTxnTypeOrderRelease))
	if err != nil || txn == nil {
		t.Fatalf("release transaction missing: %v", err)
	}
	if txn.Direction != constants.BalanceTxnDirectionIn {
		t.Fatalf("release direction = %s, want in", txn.Direction)
	}
}

func TestRechargeRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := setupBalanceServiceTest(t)
	if _, _, err := svc.Recharge(BalanceRechargeInput{
		UserID: 1,
		Amount: models.NewMoneyFromDecimal(decimal.Zero),
	}); !errors.Is(err, ErrBalanceInvalidAmount) {
		t.Fatalf("err = %v, want ErrBalanceInvalidAmount", err)
	}
	if _, _, err := svc.Recharge(BalanceRechargeInput{
		UserID: 1,
		Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(-5)),
	}); !errors.Is(err, ErrBalanceInvalidAmount) {
		t.Fatalf("err = %v, want ErrBalanceInvalidAmount", err)
	}
}
