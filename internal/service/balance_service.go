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

const balanceDefaultCurrency = "CNY"

// BalanceService 余额账本服务。余额缓存值与流水写入永远处于同一事务，
// 流水参考号唯一索引保证重复入账只生效一次。
type BalanceService struct {
	balanceRepo repository.BalanceRepository
	now         func() time.Time
}

// BalanceRechargeInput 用户充值输入
type BalanceRechargeInput struct {
	UserID   uint
	Amount   models.Money
	Currency string
	Remark   string
}

// BalanceAdjustInput 管理员余额调整输入
type BalanceAdjustInput struct {
	UserID   uint
	Delta    models.Money
	Currency string
	Remark   string
}

// BalanceCreditInput 事务内入账输入
type BalanceCreditInput struct {
	UserID    uint
	Amount    decimal.Decimal
	Currency  string
	TxnType   string
	Reference string
	Remark    string
	OrderID   *uint
	PaymentID *uint
}

// NewBalanceService 创建余额服务
func NewBalanceService(balanceRepo repository.BalanceRepository) *BalanceService {
	return &BalanceService{
		balanceRepo: balanceRepo,
		now:         time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *BalanceService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetAccount 获取余额账户（不存在时自动创建）
func (s *BalanceService) GetAccount(userID uint) (*models.BalanceAccount, error) {
	if userID == 0 {
		return nil, ErrBalanceAccountNotFound
	}
	return s.getOrCreateAccount(userID)
}

// ListTransactions 查询余额流水
func (s *BalanceService) ListTransactions(filter repository.BalanceTxnListFilter) ([]models.BalanceTransaction, int64, error) {
	return s.balanceRepo.ListTransactions(filter)
}

// Recharge 用户充值余额
func (s *BalanceService) Recharge(input BalanceRechargeInput) (*models.BalanceAccount, *models.BalanceTransaction, error) {
	if input.UserID == 0 {
		return nil, nil, ErrBalanceAccountNotFound
	}
	amount := input.Amount.Decimal.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrBalanceInvalidAmount
	}
	reference := s.buildReference("recharge", input.UserID)
	remark := cleanBalanceRemark(input.Remark, "用户充值")
	return s.changeBalance(input.UserID, amount, constants.BalanceTxnTypeRecharge, nil, nil, reference, remark, input.Currency)
}

// AdminAdjust 管理员增减用户余额
func (s *BalanceService) AdminAdjust(input BalanceAdjustInput) (*models.BalanceAccount, *models.BalanceTransaction, error) {
	if input.UserID == 0 {
		return nil, nil, ErrBalanceAccountNotFound
	}
	delta := input.Delta.Decimal.Round(2)
	if delta.IsZero() {
		return nil, nil, ErrBalanceInvalidAmount
	}
	reference := s.buildReference("admin_adjust", input.UserID)
	remark := cleanBalanceRemark(input.Remark, "管理员调整余额")
	return s.changeBalance(input.UserID, delta, constants.BalanceTxnTypeAdminAdjust, nil, nil, reference, remark, input.Currency)
}

// ApplyOrderBalance 在事务内按请求金额扣减余额并记录流水，返回实际抵扣金额。
// 请求金额超过账户余额直接拒绝，超过应付部分截断到应付；
// 同一订单重复调用依靠参考号幂等，只扣一次。
func (s *BalanceService) ApplyOrderBalance(tx *gorm.DB, order *models.Order, requested decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, ErrOrderUpdateFailed
	}
	if order == nil || order.ID == 0 {
		return decimal.Zero, ErrOrderNotFound
	}
	requested = requested.Round(2)
	if requested.LessThanOrEqual(decimal.Zero) {
		return order.BalancePaidAmount.Decimal.Round(2), nil
	}
	existing := order.BalancePaidAmount.Decimal.Round(2)
	if existing.GreaterThan(decimal.Zero) {
		return existing, nil
	}
	payable := orderPayableAmount(order)
	if payable.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}

	now := s.now()
	repo := s.balanceRepo.WithTx(tx)
	reference := buildOrderBalanceReference(order.ID, constants.BalanceTxnTypeOrderPay)
	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return decimal.Zero, err
	}
	if exists != nil {
		return exists.Amount.Decimal.Round(2), nil
	}

	account, err := s.ensureAccountForUpdate(repo, order.UserID, now)
	if err != nil {
		return decimal.Zero, err
	}
	available := account.Balance.Decimal.Round(2)
	if requested.GreaterThan(available) {
		return decimal.Zero, ErrBalanceInsufficient
	}
	deduct := requested
	if deduct.GreaterThan(payable) {
		deduct = payable
	}

	before := available
	after := before.Sub(deduct).Round(2)
	if after.LessThan(decimal.Zero) {
		return decimal.Zero, ErrBalanceInsufficient
	}
	account.Balance = models.NewMoneyFromDecimal(after)
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return decimal.Zero, ErrBalanceAccountUpdateFailed
	}

	txn := &models.BalanceTransaction{
		UserID:        order.UserID,
		OrderID:       &order.ID,
		Type:          constants.BalanceTxnTypeOrderPay,
		Direction:     constants.BalanceTxnDirectionOut,
		Amount:        models.NewMoneyFromDecimal(deduct),
		BalanceBefore: models.NewMoneyFromDecimal(before),
		BalanceAfter:  models.NewMoneyFromDecimal(after),
		Currency:      normalizeBalanceCurrency(order.Currency),
		Reference:     reference,
		Remark:        "订单余额抵扣",
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return decimal.Zero, ErrBalanceTransactionCreateFailed
	}

	payAmount := payable.Sub(deduct).Round(2)
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"balance_paid_amount": models.NewMoneyFromDecimal(deduct),
		"pay_amount":          models.NewMoneyFromDecimal(payAmount),
		"updated_at":          now,
	}).Error; err != nil {
		return decimal.Zero, ErrOrderUpdateFailed
	}
	order.BalancePaidAmount = models.NewMoneyFromDecimal(deduct)
	order.PayAmount = models.NewMoneyFromDecimal(payAmount)
	order.UpdatedAt = now
	return deduct, nil
}

// ReleaseOrderBalance 在事务内把订单已抵扣余额退回账户，返回退回金额。
// 订单取消与整单关闭走这里，txnType 区分入账类型。
func (s *BalanceService) ReleaseOrderBalance(tx *gorm.DB, order *models.Order, txnType string, remark string) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, ErrOrderUpdateFailed
	}
	if order == nil || order.UserID == 0 {
		return decimal.Zero, nil
	}
	amount := order.BalancePaidAmount.Decimal.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}
	now := s.now()
	repo := s.balanceRepo.WithTx(tx)
	reference := buildOrderBalanceReference(order.ID, txnType)

	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return decimal.Zero, err
	}
	if exists != nil {
		return exists.Amount.Decimal.Round(2), nil
	}

	payable := orderPayableAmount(order)
	result := tx.Model(&models.Order{}).Where("id = ? AND balance_paid_amount > 0", order.ID).Updates(map[string]interface{}{
		"balance_paid_amount": models.NewMoneyFromDecimal(decimal.Zero),
		"pay_amount":          models.NewMoneyFromDecimal(payable),
		"updated_at":          now,
	})
	if result.Error != nil {
		return decimal.Zero, ErrOrderUpdateFailed
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, nil
	}

	account, err := s.ensureAccountForUpdate(repo, order.UserID, now)
	if err != nil {
		return decimal.Zero, err
	}
	before := account.Balance.Decimal.Round(2)
	after := before.Add(amount).Round(2)
	account.Balance = models.NewMoneyFromDecimal(after)
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return decimal.Zero, ErrBalanceAccountUpdateFailed
	}

	txn := &models.BalanceTransaction{
		UserID:        order.UserID,
		OrderID:       &order.ID,
		Type:          txnType,
		Direction:     constants.BalanceTxnDirectionIn,
		Amount:        models.NewMoneyFromDecimal(amount),
		BalanceBefore: models.NewMoneyFromDecimal(before),
		BalanceAfter:  models.NewMoneyFromDecimal(after),
		Currency:      normalizeBalanceCurrency(order.Currency),
		Reference:     reference,
		Remark:        cleanBalanceRemark(remark, "订单余额退回"),
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return decimal.Zero, ErrBalanceTransactionCreateFailed
	}

	order.BalancePaidAmount = models.NewMoneyFromDecimal(decimal.Zero)
	order.PayAmount = models.NewMoneyFromDecimal(payable)
	order.UpdatedAt = now
	return amount, nil
}

// CreditInTx 在事务内执行余额入账并写入唯一参考号流水。
// 参考号已存在时返回既有流水，不重复入账。
func (s *BalanceService) CreditInTx(tx *gorm.DB, input BalanceCreditInput) (*models.BalanceAccount, *models.BalanceTransaction, error) {
	if tx == nil {
		return nil, nil, ErrOrderUpdateFailed
	}
	if input.UserID == 0 {
		return nil, nil, ErrBalanceAccountNotFound
	}
	amount := input.Amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrBalanceInvalidAmount
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, nil, ErrBalanceTransactionCreateFailed
	}
	txnType := strings.TrimSpace(input.TxnType)
	if txnType == "" {
		txnType = constants.BalanceTxnTypeRecharge
	}
	now := s.now()
	repo := s.balanceRepo.WithTx(tx)

	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return nil, nil, err
	}
	if exists != nil {
		account, accountErr := repo.GetAccountByUserID(input.UserID)
		if accountErr != nil {
			return nil, nil, accountErr
		}
		return account, exists, nil
	}

	account, err := s.ensureAccountForUpdate(repo, input.UserID, now)
	if err != nil {
		return nil, nil, err
	}
	before := account.Balance.Decimal.Round(2)
	after := before.Add(amount).Round(2)
	account.Balance = models.NewMoneyFromDecimal(after)
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return nil, nil, ErrBalanceAccountUpdateFailed
	}

	txn := &models.BalanceTransaction{
		UserID:        input.UserID,
		OrderID:       input.OrderID,
		PaymentID:     input.PaymentID,
		Type:          txnType,
		Direction:     constants.BalanceTxnDirectionIn,
		Amount:        models.NewMoneyFromDecimal(amount),
		BalanceBefore: models.NewMoneyFromDecimal(before),
		BalanceAfter:  models.NewMoneyFromDecimal(after),
		Currency:      normalizeBalanceCurrency(input.Currency),
		Reference:     reference,
		Remark:        cleanBalanceRemark(input.Remark, "余额入账"),
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return nil, nil, ErrBalanceTransactionCreateFailed
	}
	return account, txn, nil
}

// DebitInTx 在事务内执行余额出账并写入唯一参考号流水。余额不足返回错误。
func (s *BalanceService) DebitInTx(tx *gorm.DB, input BalanceCreditInput) (*models.BalanceAccount, *models.BalanceTransaction, error) {
	if tx == nil {
		return nil, nil, ErrOrderUpdateFailed
	}
	if input.UserID == 0 {
		return nil, nil, ErrBalanceAccountNotFound
	}
	amount := input.Amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrBalanceInvalidAmount
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, nil, ErrBalanceTransactionCreateFailed
	}
	now := s.now()
	repo := s.balanceRepo.WithTx(tx)

	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return nil, nil, err
	}
	if exists != nil {
		account, accountErr := repo.GetAccountByUserID(input.UserID)
		if accountErr != nil {
			return nil, nil, accountErr
		}
		return account, exists, nil
	}

	account, err := s.ensureAccountForUpdate(repo, input.UserID, now)
	if err != nil {
		return nil, nil, err
	}
	before := account.Balance.Decimal.Round(2)
	after := before.Sub(amount).Round(2)
	if after.LessThan(decimal.Zero) {
		return nil, nil, ErrBalanceInsufficient
	}
	account.Balance = models.NewMoneyFromDecimal(after)
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return nil, nil, ErrBalanceAccountUpdateFailed
	}

	txn := &models.BalanceTransaction{
		UserID:        input.UserID,
		OrderID:       input.OrderID,
		PaymentID:     input.PaymentID,
		Type:          input.TxnType,
		Direction:     constants.BalanceTxnDirectionOut,
		Amount:        models.NewMoneyFromDecimal(amount),
		BalanceBefore: models.NewMoneyFromDecimal(before),
		BalanceAfter:  models.NewMoneyFromDecimal(after),
		Currency:      normalizeBalanceCurrency(input.Currency),
		Reference:     reference,
		Remark:        cleanBalanceRemark(input.Remark, "余额出账"),
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return nil, nil, ErrBalanceTransactionCreateFailed
	}
	return account, txn, nil
}

func (s *BalanceService) changeBalance(userID uint, delta decimal.Decimal, txnType string, orderID, paymentID *uint, reference, remark, currency string) (*models.BalanceAccount, *models.BalanceTransaction, error) {
	var accountResult *models.BalanceAccount
	var txnResult *models.BalanceTransaction
	if err := s.balanceRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.balanceRepo.WithTx(tx)
		now := s.now()
		account, err := s.ensureAccountForUpdate(repo, userID, now)
		if err != nil {
			return err
		}

		before := account.Balance.Decimal.Round(2)
		after := before.Add(delta).Round(2)
		if after.LessThan(decimal.Zero) {
			return ErrBalanceInsufficient
		}
		direction := constants.BalanceTxnDirectionIn
		amount := delta.Round(2)
		if delta.LessThan(decimal.Zero) {
			direction = constants.BalanceTxnDirectionOut
			amount = delta.Abs().Round(2)
		}

		account.Balance = models.NewMoneyFromDecimal(after)
		account.UpdatedAt = now
		if err := repo.UpdateAccount(account); err != nil {
			return ErrBalanceAccountUpdateFailed
		}

		txn := &models.BalanceTransaction{
			UserID:        userID,
			OrderID:       orderID,
			PaymentID:     paymentID,
			Type:          txnType,
			Direction:     direction,
			Amount:        models.NewMoneyFromDecimal(amount),
			BalanceBefore: models.NewMoneyFromDecimal(before),
			BalanceAfter:  models.NewMoneyFromDecimal(after),
			Currency:      normalizeBalanceCurrency(currency),
			Reference:     strings.TrimSpace(reference),
			Remark:        remark,
			CreatedAt:     now,
		}
		if err := repo.CreateTransaction(txn); err != nil {
			return ErrBalanceTransactionCreateFailed
		}

		accountResult = account
		txnResult = txn
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return accountResult, txnResult, nil
}

func (s *BalanceService) getOrCreateAccount(userID uint) (*models.BalanceAccount, error) {
	account, err := s.balanceRepo.GetAccountByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	now := s.now()
	account = &models.BalanceAccount{
		UserID:    userID,
		Balance:   models.NewMoneyFromDecimal(decimal.Zero),
		Currency:  balanceDefaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.balanceRepo.CreateAccount(account); err != nil {
		created, queryErr := s.balanceRepo.GetAccountByUserID(userID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, ErrBalanceAccountCreateFailed
	}
	return account, nil
}

func (s *BalanceService) ensureAccountForUpdate(repo repository.BalanceRepository, userID uint, now time.Time) (*models.BalanceAccount, error) {
	account, err := repo.GetAccountByUserIDForUpdate(userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &models.BalanceAccount{
		UserID:    userID,
		Balance:   models.NewMoneyFromDecimal(decimal.Zero),
		Currency:  balanceDefaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateAccount(account); err != nil {
		created, queryErr := repo.GetAccountByUserIDForUpdate(userID)
		if queryErr == nil && created != nil {
			return created, nil
		}
		return nil, ErrBalanceAccountCreateFailed
	}
	return account, nil
}

func (s *BalanceService) buildReference(prefix string, id uint) string {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "balance"
	}
	return fmt.Sprintf("%s:%d:%d", normalized, id, s.now().UnixNano())
}

func orderPayableAmount(order *models.Order) decimal.Decimal {
	return order.TotalAmount.Decimal.
		Add(order.ShippingFee.Decimal).
		Sub(order.DiscountAmount.Decimal).
		Round(2)
}

func normalizeBalanceCurrency(currency string) string {
	normalized := strings.ToUpper(strings.TrimSpace(currency))
	if normalized == "" {
		return balanceDefaultCurrency
	}
	return normalized
}

func cleanBalanceRemark(raw string, fallback string) string {
	remark := strings.TrimSpace(raw)
	if remark == "" {
		return fallback
	}
	return remark
}

func buildOrderBalanceReference(orderID uint, action string) string {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "balance"
	}
	return fmt.Sprintf("order:%d:%s", orderID, action)
}
