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

func setupWithdrawServiceTest(t *testing.T) (*WithdrawService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:withdraw_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.BalanceAccount{},
		&models.BalanceTransaction{},
		&models.WithdrawAccount{},
		&models.WithdrawApply{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	svc := NewWithdrawService(
		repository.NewWithdrawRepository(db),
		repository.NewBalanceRepository(db),
	)
	return svc, db
}

func seedWithdrawAccount(t *testing.T, db *gorm.DB, userID uint) *models.WithdrawAccount {
	t.Helper()
	now := time.Now()
	account := &models.WithdrawAccount{
		UserID:      userID,
		AccountType: "bank",
		AccountNo:   "6222021234567890",
		HolderName:  "张三",
		BankName:    "工商银行",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create withdraw account failed: %v", err)
	}
	return account
}

func TestWithdrawApplyFreezesBalance(t *testing.T) {
	svc, db := setupWithdrawServiceTest(t)
	seedBalanceAccount(t, db, 1, 200)
	account := seedWithdrawAccount(t, db, 1)

	apply, err := svc.Apply(WithdrawApplyInput{
		UserID:    1,
		AccountID: account.ID,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
		Remark:    "提现到工行卡",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if apply.Status != constants.WithdrawStatusPendingReview {
		t.Fatalf("status = %s, want pending_review", apply.Status)
	}

	var balanceAccount models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&balanceAccount).Error; err != nil {
		t.Fatalf("load balance account failed: %v", err)
	}
	if !balanceAccount.Balance.Decimal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("balance = %s, want 120", balanceAccount.Balance)
	}
	if !balanceAccount.FrozenBalance.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("frozen = %s, want 80", balanceAccount.FrozenBalance)
	}

	var txn models.BalanceTransaction
	reference := fmt.Sprintf("withdraw:%s:freeze", apply.WithdrawNo)
	if err := db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		t.Fatalf("freeze transaction missing: %v", err)
	}
	if txn.Direction != constants.BalanceTxnDirectionOut {
		t.Fatalf("freeze direction = %s, want out", txn.Direction)
	}
	if txn.Type != constants.BalanceTxnTypeWithdrawFreeze {
		t.Fatalf("freeze type = %s, want withdraw_freeze", txn.Type)
	}
}

func TestWithdrawApplyInsufficientBalance(t *testing.T) {
	svc, db := setupWithdrawServiceTest(t)
	seedBalanceAccount(t, db, 1, 50)
	account := seedWithdrawAccount(t, db, 1)

	_, err := svc.Apply(WithdrawApplyInput{
		UserID:    1,
		AccountID: account.ID,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
	})
	if !errors.Is(err, ErrBalanceInsufficient) {
		t.Fatalf("err = %v, want ErrBalanceInsufficient", err)
	}

	var applyCount int64
	if err := db.Model(&models.WithdrawApply{}).Count(&applyCount).Error; err != nil {
		t.Fatalf("count applies failed: %v", err)
	}
	if applyCount != 0 {
		t.Fatalf("apply count = %d, want 0", applyCount)
	}
}

func TestWithdrawApplyUnknownAccount(t *testing.T) {
	svc, db := setupWithdrawServiceTest(t)
	seedBalanceAccount(t, db, 1, 100)
	if _, err := svc.Apply(WithdrawApplyInput{
		UserID:    1,
		AccountID: 99,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
	}); !errors.Is(err, ErrWithdrawAccountNotFound) {
		t.Fatalf("err = %v, want ErrWithdrawAccountNotFound", err)
	}
}

func TestWithdrawReviewPayConsumesFrozen(t *testing.T) {
	svc, db := setupWithdrawServiceTest(t)
	seedBalanceAccount(t, db, 1, 200)
	account := seedWithdrawAccount(t, db, 1)

	apply, err := svc.Apply(WithdrawApplyInput{
		UserID:    1,
		AccountID: account.ID,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	reviewed, err := svc.Review(WithdrawReviewInput{
		ApplyID:    apply.ID,
		Action:     constants.WithdrawActionPay,
		ReviewNote: "已打款",
	})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != constants.WithdrawStatusPaid {
		t.Fatalf("status = %s, want paid", reviewed.Status)
	}
	if reviewed.ReviewedAt == nil {
		t.Fatalf("reviewed_at not set")
	}

	var balanceAccount models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&balanceAccount).Error; err != nil {
		t.Fatalf("load balance account failed: %v", err)
	}
	if !balanceAccount.Balance.Decimal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("balance = %s, want 120", balanceAccount.Balance)
	}
	if !balanceAccount.FrozenBalance.Decimal.IsZero() {
		t.Fatalf("frozen = %s, want 0", balanceAccount.FrozenBalance)
	}

	var txn models.BalanceTransaction
	reference := fmt.Sprintf("withdraw:%s:paid", apply.WithdrawNo)
	if err := db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		t.Fatalf("paid transaction missing: %v", err)
	}
	if txn.Type != constants.BalanceTxnTypeWithdrawPaid {
		t.Fatalf("txn type = %s, want withdraw_paid", txn.Type)
	}

	// 重复审核拿到状态错误
	if _, err := svc.Review(WithdrawReviewInput{
		ApplyID: apply.ID,
		Action:  constants.WithdrawActionPay,
	}); !errors.Is(err, ErrWithdrawStatusInvalid) {
		t.Fatalf("second review err = %v, want ErrWithdrawStatusInvalid", err)
	}
}

func TestWithdrawReviewRejectRestoresBalance(t *testing.T) {
	svc, db := setupWithdrawServiceTest(t)
	seedBalanceAccount(t, db, 1, 200)
	account := seedWithdrawAccount(t, db, 1)

	apply, err := svc.Apply(WithdrawApplyInput{
		UserID:    1,
		AccountID: account.ID,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	reviewed, err := svc.Review(WithdrawReviewInput{
		ApplyID:    apply.ID,
		Action:     constants.WithdrawActionReject,
		ReviewNote: "收款信息有误",
	})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != constants.WithdrawStatusRejected {
		t.Fatalf("status = %s, want rejected", reviewed.Status)
	}

	var balanceAccount models.BalanceAccount
	if err := db.Where("user_id = ?", 1).First(&balanceAccount).Error; err != nil {
		t.Fatalf("load balance account failed: %v", err)
	}
	if !balanceAccount.Balance.Decimal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("balance = %s, want 200", balanceAccount.Balance)
	}
	if !balanceAccount.FrozenBalance.Decimal.IsZero() {
		t.Fatalf("frozen = %s, want 0", balanceAccount.FrozenBalance)
	}

	var txn models.BalanceTransaction
	reference := fmt.Sprintf("withdraw:%s:reject", apply.WithdrawNo)
	if err := db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		t.Fatalf("reject transaction missing: %v", err)
	}
	if txn.Direction != constants.BalanceTxnDirectionIn {
		t.Fatalf("reject direction = %s, want in", txn.Direction)
	}
}

func TestWithdrawReviewUnknownAction(t *testing.T) {
	svc, db := setupWithdrawServiceTest(t)
	seedBalanceAccount(t, db, 1, 100)
	account := seedWithdrawAccount(t, db, 1)
	apply, err := svc.Apply(WithdrawApplyInput{
		UserID:    1,
		AccountID: account.ID,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if _, err := svc.Review(WithdrawReviewInput{
		ApplyID: apply.ID,
		Action:  "approve",
	}); !errors.Is(err, ErrWithdrawActionInvalid) {
		t.Fatalf("err = %v, want ErrWithdrawActionInvalid", err)
	}
}

func TestWithdrawAccountLifecycle(t *testing.T) {
	svc, db := setupWithdrawServiceTest(t)
	if err := svc.CreateAccount(&models.WithdrawAccount{
		UserID:      1,
		AccountType: "Alipay",
		AccountNo:   "alice@example.com",
		HolderName:  "Alice",
	}); err != nil {
		t.Fatalf("create account failed: %v", err)
	}

	accounts, err := svc.ListAccounts(1)
	if err != nil {
		t.Fatalf("list accounts failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("account count = %d, want 1", len(accounts))
	}
	if accounts[0].AccountType != "alipay" {
		t.Fatalf("account type = %s, want normalized alipay", accounts[0].AccountType)
	}

	// 只能删除自己的账户
	if err := svc.DeleteAccount(2, accounts[0].ID); !errors.Is(err, ErrWithdrawAccountNotFound) {
		t.Fatalf("cross-user delete err = %v, want ErrWithdrawAccountNotFound", err)
	}
	if err := svc.DeleteAccount(1, accounts[0].ID); err != nil {
		t.Fatalf("delete account failed: %v", err)
	}
	var count int64
	if err := db.Model(&models.WithdrawAccount{}).Where("user_id = ?", 1).Count(&count).Error; err != nil {
		t.Fatalf("count accounts failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("account count = %d, want 0", count)
	}
}
