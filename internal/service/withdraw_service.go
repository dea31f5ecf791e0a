package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawService 提现服务。申请时可用余额转入冻结，
// 审核通过冻结出账、驳回冻结回退，全程留流水。
type WithdrawService struct {
	withdrawRepo repository.WithdrawRepository
	balanceRepo  repository.BalanceRepository
	now          func() time.Time
}

// WithdrawApplyInput 提现申请输入
type WithdrawApplyInput struct {
	UserID    uint
	AccountID uint
	Amount    models.Money
	Remark    string
}

// WithdrawReviewInput 提现审核输入
type WithdrawReviewInput struct {
	ApplyID    uint
	Action     string // constants.WithdrawActionPay / WithdrawActionReject
	ReviewNote string
}

// NewWithdrawService 创建提现服务
func NewWithdrawService(withdrawRepo repository.WithdrawRepository, balanceRepo repository.BalanceRepository) *WithdrawService {
	return &WithdrawService{
		withdrawRepo: withdrawRepo,
		balanceRepo:  balanceRepo,
		now:          time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *WithdrawService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount 创建收款账户
func (s *WithdrawService) CreateAccount(account *models.WithdrawAccount) error {
	if account == nil || account.UserID == 0 {
		return ErrWithdrawAccountNotFound
	}
	account.AccountType = strings.ToLower(strings.TrimSpace(account.AccountType))
	return s.withdrawRepo.CreateAccount(account)
}

// ListAccounts 查询用户收款账户
func (s *WithdrawService) ListAccounts(userID uint) ([]models.WithdrawAccount, error) {
	return s.withdrawRepo.ListAccountsByUser(userID)
}

// DeleteAccount 删除用户收款账户
func (s *WithdrawService) DeleteAccount(userID, accountID uint) error {
	account, err := s.withdrawRepo.GetAccountByIDAndUser(accountID, userID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrWithdrawAccountNotFound
	}
	return s.withdrawRepo.DeleteAccount(accountID)
}

// Apply 发起提现申请。可用余额转入冻结并写出账流水。
func (s *WithdrawService) Apply(input WithdrawApplyInput) (*models.WithdrawApply, error) {
	if input.UserID == 0 {
		return nil, ErrBalanceAccountNotFound
	}
	amount := input.Amount.Decimal.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrBalanceInvalidAmount
	}
	account, err := s.withdrawRepo.GetAccountByIDAndUser(input.AccountID, input.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrWithdrawAccountNotFound
	}

	now := s.now()
	apply := &models.WithdrawApply{
		WithdrawNo: buildWithdrawNo(now),
		UserID:     input.UserID,
		AccountID:  input.AccountID,
		Amount:     models.NewMoneyFromDecimal(amount),
		Currency:   balanceDefaultCurrency,
		Status:     constants.WithdrawStatusPendingReview,
		Remark:     strings.TrimSpace(input.Remark),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.balanceRepo.Transaction(func(tx *gorm.DB) error {
		balanceRepo := s.balanceRepo.WithTx(tx)
		balanceAccount, err := balanceRepo.GetAccountByUserIDForUpdate(input.UserID)
		if err != nil {
			return err
		}
		if balanceAccount == nil {
			return ErrBalanceAccountNotFound
		}
		before := balanceAccount.Balance.Decimal.Round(2)
		after := before.Sub(amount).Round(2)
		if after.LessThan(decimal.Zero) {
			return ErrBalanceInsufficient
		}
		balanceAccount.Balance = models.NewMoneyFromDecimal(after)
		balanceAccount.FrozenBalance = models.NewMoneyFromDecimal(
			balanceAccount.FrozenBalance.Decimal.Add(amount).Round(2))
		balanceAccount.UpdatedAt = now
		if err := balanceRepo.UpdateAccount(balanceAccount); err != nil {
			return ErrBalanceAccountUpdateFailed
		}

		if err := s.withdrawRepo.WithTx(tx).CreateApply(apply); err != nil {
			return err
		}

		txn := &models.BalanceTransaction{
			UserID:        input.UserID,
			Type:          constants.BalanceTxnTypeWithdrawFreeze,
			Direction:     constants.BalanceTxnDirectionOut,
			Amount:        models.NewMoneyFromDecimal(amount),
			BalanceBefore: models.NewMoneyFromDecimal(before),
			BalanceAfter:  models.NewMoneyFromDecimal(after),
			Currency:      balanceDefaultCurrency,
			Reference:     fmt.Sprintf("withdraw:%s:freeze", apply.WithdrawNo),
			Remark:        "提现申请冻结",
			CreatedAt:     now,
		}
		if err := balanceRepo.CreateTransaction(txn); err != nil {
			return ErrBalanceTransactionCreateFailed
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return apply, nil
}

// Review 审核提现申请。支付动作冻结出账，驳回动作冻结回退可用余额。
// 状态以守卫式条件更新推进，并发重复审核只有一个生效。
func (s *WithdrawService) Review(input WithdrawReviewInput) (*models.WithdrawApply, error) {
	apply, err := s.withdrawRepo.GetApplyByID(input.ApplyID)
	if err != nil {
		return nil, err
	}
	if apply == nil {
		return nil, ErrWithdrawNotFound
	}
	if apply.Status != constants.WithdrawStatusPendingReview {
		return nil, ErrWithdrawStatusInvalid
	}

	var toStatus string
	switch input.Action {
	case constants.WithdrawActionPay:
		toStatus = constants.WithdrawStatusPaid
	case constants.WithdrawActionReject:
		toStatus = constants.WithdrawStatusRejected
	default:
		return nil, ErrWithdrawActionInvalid
	}

	now := s.now()
	amount := apply.Amount.Decimal.Round(2)
	if err := s.balanceRepo.Transaction(func(tx *gorm.DB) error {
		rows, err := s.withdrawRepo.WithTx(tx).UpdateApplyStatusGuarded(
			apply.ID,
			[]string{constants.WithdrawStatusPendingReview},
			toStatus,
			map[string]interface{}{
				"review_note": strings.TrimSpace(input.ReviewNote),
				"reviewed_at": now,
				"updated_at":  now,
			},
		)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrWithdrawStatusInvalid
		}

		balanceRepo := s.balanceRepo.WithTx(tx)
		account, err := balanceRepo.GetAccountByUserIDForUpdate(apply.UserID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrBalanceAccountNotFound
		}
		frozen := account.FrozenBalance.Decimal.Round(2)
		if frozen.LessThan(amount) {
			return ErrBalanceAccountUpdateFailed
		}
		account.FrozenBalance = models.NewMoneyFromDecimal(frozen.Sub(amount).Round(2))

		available := account.Balance.Decimal.Round(2)
		txn := &models.BalanceTransaction{
			UserID:        apply.UserID,
			Amount:        models.NewMoneyFromDecimal(amount),
			BalanceBefore: models.NewMoneyFromDecimal(available),
			Currency:      apply.Currency,
			CreatedAt:     now,
		}
		switch toStatus {
		case constants.WithdrawStatusPaid:
			txn.Type = constants.BalanceTxnTypeWithdrawPaid
			txn.Direction = constants.BalanceTxnDirectionOut
			txn.BalanceAfter = models.NewMoneyFromDecimal(available)
			txn.Reference = fmt.Sprintf("withdraw:%s:paid", apply.WithdrawNo)
			txn.Remark = "提现打款完成"
		case constants.WithdrawStatusRejected:
			after := available.Add(amount).Round(2)
			account.Balance = models.NewMoneyFromDecimal(after)
			txn.Type = constants.BalanceTxnTypeWithdrawReject
			txn.Direction = constants.BalanceTxnDirectionIn
			txn.BalanceAfter = models.NewMoneyFromDecimal(after)
			txn.Reference = fmt.Sprintf("withdraw:%s:reject", apply.WithdrawNo)
			txn.Remark = "提现驳回退回余额"
		}

		account.UpdatedAt = now
		if err := balanceRepo.UpdateAccount(account); err != nil {
			return ErrBalanceAccountUpdateFailed
		}
		if err := balanceRepo.CreateTransaction(txn); err != nil {
			return ErrBalanceTransactionCreateFailed
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.withdrawRepo.GetApplyByID(apply.ID)
}

// GetApplyByUser 按用户查询提现申请
func (s *WithdrawService) GetApplyByUser(userID, applyID uint) (*models.WithdrawApply, error) {
	apply, err := s.withdrawRepo.GetApplyByID(applyID)
	if err != nil {
		return nil, err
	}
	if apply == nil || apply.UserID != userID {
		return nil, ErrWithdrawNotFound
	}
	return apply, nil
}

// ListApplies 分页查询提现申请
func (s *WithdrawService) ListApplies(filter repository.WithdrawListFilter) ([]models.WithdrawApply, int64, error) {
	return s.withdrawRepo.ListApplies(filter)
}

func buildWithdrawNo(now time.Time) string {
	return fmt.Sprintf("W%s%06d", now.Format("20060102150405"), now.UnixNano()%1000000)
}
