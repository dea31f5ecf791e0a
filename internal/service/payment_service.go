package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/logger"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/payment"
	"github.com/qingmall/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const providerCallTimeout = 15 * time.Second

// PaymentService 支付服务。支付单创建、渠道分发与回调对账。
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	balanceSvc  *BalanceService
	orderSvc    *OrderService
	registry    *payment.Registry
	queueClient PaymentTaskEnqueuer
	now         func() time.Time
}

// PaymentTaskEnqueuer 支付后异步任务投递接口
type PaymentTaskEnqueuer interface {
	EnqueueOrderPaidNotify(orderID uint) error
	EnqueuePaymentStatusSync(paymentID uint, delay time.Duration) error
}

// statusSyncDelay 在途支付单首次主动对账的延迟
const statusSyncDelay = 2 * time.Minute

// NewPaymentService 创建支付服务
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	balanceSvc *BalanceService,
	orderSvc *OrderService,
	registry *payment.Registry,
	queueClient PaymentTaskEnqueuer,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		balanceSvc:  balanceSvc,
		orderSvc:    orderSvc,
		registry:    registry,
		queueClient: queueClient,
		now:         time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *PaymentService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePaymentInput 创建支付单输入
type CreatePaymentInput struct {
	OrderID  uint
	UserID   uint
	Method   string
	Channel  string // 渠道子类型（易支付 type）
	ClientIP string
	Context  context.Context
}

// CreatePaymentResult 创建支付单结果
type CreatePaymentResult struct {
	Payment   *models.Payment `json:"payment"`
	OrderPaid bool            `json:"order_paid"`
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// CreatePayment 为待支付订单创建支付单并分发到渠道
func (s *PaymentService) CreatePayment(input CreatePaymentInput) (*CreatePaymentResult, error) {
	if input.OrderID == 0 {
		return nil, ErrPaymentNotFound
	}
	method := strings.ToLower(strings.TrimSpace(input.Method))
	gateway, err := s.registry.Get(method)
	if err != nil {
		return nil, ErrPaymentMethodInvalid
	}

	log := paymentLogger(
		"order_id", input.OrderID,
		"user_id", input.UserID,
		"method", method,
	)

	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if input.UserID != 0 && order.UserID != input.UserID {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPendingPayment {
		return nil, ErrOrderNotPayable
	}
	now := s.now()
	if order.ExpiresAt != nil && now.After(*order.ExpiresAt) {
		return nil, ErrOrderExpired
	}

	// 已有未完结的在途支付单直接复用，避免重复下单
	if existing, err := s.paymentRepo.GetLatestPendingByOrder(order.ID, now); err == nil && existing != nil && existing.Method == method && hasProviderResult(existing) {
		log.Infow("payment_reuse_pending", "payment_id", existing.ID)
		return &CreatePaymentResult{Payment: existing}, nil
	}

	payAmount := order.PayAmount.Decimal.Round(2)

	// 余额已全额覆盖：免渠道直接结清
	if payAmount.LessThanOrEqual(decimal.Zero) {
		return s.settleZeroAmount(order, method, now, log)
	}

	pay := &models.Payment{
		PaymentNo: buildPaymentNo(now),
		OrderID:   order.ID,
		Method:    method,
		Amount:    models.NewMoneyFromDecimal(payAmount),
		Currency:  order.Currency,
		Status:    constants.PaymentStatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if order.ExpiresAt != nil {
		pay.ExpiredAt = order.ExpiresAt
	}
	if err := s.paymentRepo.Create(pay); err != nil {
		return nil, ErrPaymentCreateFailed
	}

	if method == constants.PaymentMethodBalance {
		return s.settleWithBalance(order, pay, payAmount, now, log)
	}

	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	result, err := gateway.Create(ctx, payment.CreateInput{
		OrderNo:   order.OrderNo,
		PaymentNo: pay.PaymentNo,
		PaymentID: pay.ID,
		Amount:    payAmount.StringFixed(2),
		Currency:  order.Currency,
		Subject:   buildPaymentSubject(order),
		ClientIP:  strings.TrimSpace(input.ClientIP),
		Channel:   strings.ToLower(strings.TrimSpace(input.Channel)),
	})
	if err != nil {
		log.Warnw("payment_provider_create_failed", "payment_id", pay.ID, "error", err)
		// 渠道侧结果未知，支付单保留在初始态等待对账
		return nil, ErrPaymentCreateFailed
	}

	syncSuccess := result.Status == constants.PaymentStatusSuccess
	pay.Status = result.Status
	if pay.Status == "" || syncSuccess {
		// 成功态只经守卫式转换写入，这里先落 pending 与渠道结果
		pay.Status = constants.PaymentStatusPending
	}
	pay.PayURL = result.PayURL
	pay.QRCode = result.QRCode
	pay.ProviderRef = result.ProviderRef
	if result.Raw != nil {
		pay.ProviderPayload = models.JSON(result.Raw)
	}
	pay.UpdatedAt = s.now()
	if err := s.paymentRepo.Update(pay); err != nil {
		return nil, ErrPaymentUpdateFailed
	}

	orderPaid := false
	if syncSuccess {
		// 同步即成渠道（cash 走这里，balance 已在上面分流）
		if err := s.finishSuccessfulPayment(pay, order, nil, s.now()); err != nil {
			return nil, err
		}
		orderPaid = true
	}
	if !orderPaid {
		// 回调丢失时由延迟任务主动查询渠道补账
		s.enqueueStatusSyncAsync(pay.ID, log)
	}

	log.Infow("payment_created",
		"payment_id", pay.ID,
		"payment_no", pay.PaymentNo,
		"status", pay.Status,
	)
	return &CreatePaymentResult{Payment: pay, OrderPaid: orderPaid}, nil
}

// settleWithBalance 余额渠道：账本出账与订单推进在同一事务
func (s *PaymentService) settleWithBalance(order *models.Order, pay *models.Payment, amount decimal.Decimal, now time.Time, log *zap.SugaredLogger) (*CreatePaymentResult, error) {
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		reference := fmt.Sprintf("payment:%d:balance", pay.ID)
		if _, _, err := s.balanceSvc.DebitInTx(tx, BalanceCreditInput{
			UserID:    order.UserID,
			Amount:    amount,
			Currency:  order.Currency,
			TxnType:   constants.BalanceTxnTypeOrderPay,
			Reference: reference,
			Remark:    "订单余额支付",
			OrderID:   &order.ID,
			PaymentID: &pay.ID,
		}); err != nil {
			return err
		}

		paymentRepo := s.paymentRepo.WithTx(tx)
		rows, err := paymentRepo.UpdateStatusGuarded(
			pay.ID,
			[]string{constants.PaymentStatusInitiated, constants.PaymentStatusPending},
			constants.PaymentStatusSuccess,
			map[string]interface{}{
				"paid_at":    now,
				"updated_at": now,
			},
		)
		if err != nil {
			return ErrPaymentUpdateFailed
		}
		if rows == 0 {
			return ErrPaymentAlreadyFinished
		}
		return s.orderSvc.MarkPaidInTx(tx, order, now)
	})
	if err != nil {
		return nil, err
	}
	pay.Status = constants.PaymentStatusSuccess
	pay.PaidAt = &now
	s.enqueueOrderPaidAsync(order.ID, log)
	log.Infow("payment_balance_settled", "payment_id", pay.ID, "payment_no", pay.PaymentNo)
	return &CreatePaymentResult{Payment: pay, OrderPaid: true}, nil
}

// settleZeroAmount 应付为零的订单免渠道结清
func (s *PaymentService) settleZeroAmount(order *models.Order, method string, now time.Time, log *zap.SugaredLogger) (*CreatePaymentResult, error) {
	pay := &models.Payment{
		PaymentNo: buildPaymentNo(now),
		OrderID:   order.ID,
		Method:    method,
		Amount:    models.NewMoneyFromDecimal(decimal.Zero),
		Currency:  order.Currency,
		Status:    constants.PaymentStatusSuccess,
		PaidAt:    &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.WithTx(tx).Create(pay); err != nil {
			return ErrPaymentCreateFailed
		}
		return s.orderSvc.MarkPaidInTx(tx, order, now)
	})
	if err != nil {
		return nil, err
	}
	s.enqueueOrderPaidAsync(order.ID, log)
	log.Infow("payment_zero_amount_settled", "payment_id", pay.ID, "order_id", order.ID)
	return &CreatePaymentResult{Payment: pay, OrderPaid: true}, nil
}

// finishSuccessfulPayment 渠道同步返回已支付时直接结清。
// paidAt 为空时按当前时间记账。
func (s *PaymentService) finishSuccessfulPayment(pay *models.Payment, order *models.Order, paidAt *time.Time, now time.Time) error {
	settledAt := now
	if paidAt != nil {
		settledAt = *paidAt
	}
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		rows, err := s.paymentRepo.WithTx(tx).UpdateStatusGuarded(
			pay.ID,
			[]string{constants.PaymentStatusInitiated, constants.PaymentStatusPending},
			constants.PaymentStatusSuccess,
			map[string]interface{}{
				"paid_at":    settledAt,
				"updated_at": now,
			},
		)
		if err != nil {
			return ErrPaymentUpdateFailed
		}
		if rows == 0 {
			// 回调先到一步，订单已由回调路径推进
			return nil
		}
		return s.orderSvc.MarkPaidInTx(tx, order, settledAt)
	})
	if err != nil {
		return err
	}
	pay.Status = constants.PaymentStatusSuccess
	pay.PaidAt = &settledAt
	s.enqueueOrderPaidAsync(order.ID, paymentLogger("payment_id", pay.ID))
	return nil
}

// GetByIDAndUser 查询用户支付单
func (s *PaymentService) GetByIDAndUser(id, userID uint) (*models.Payment, error) {
	pay, err := s.paymentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, ErrPaymentNotFound
	}
	order, err := s.orderRepo.GetByID(pay.OrderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil || order.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return pay, nil
}

// GetByID 按ID查询支付单
func (s *PaymentService) GetByID(id uint) (*models.Payment, error) {
	pay, err := s.paymentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, ErrPaymentNotFound
	}
	return pay, nil
}

// GetByPaymentNo 按支付单号查询
func (s *PaymentService) GetByPaymentNo(paymentNo string) (*models.Payment, error) {
	pay, err := s.paymentRepo.GetByPaymentNo(paymentNo)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, ErrPaymentNotFound
	}
	return pay, nil
}

// ListByOrder 查询订单的支付单列表
func (s *PaymentService) ListByOrder(orderID uint) ([]models.Payment, error) {
	return s.paymentRepo.ListByOrderID(orderID)
}

// ListAdmin 管理端查询支付单列表
func (s *PaymentService) ListAdmin(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	return s.paymentRepo.ListAdmin(filter)
}

// SyncPaymentStatus 主动向渠道查询在途支付单状态并对账。
// 回调丢失时由定时任务兜底调用。
func (s *PaymentService) SyncPaymentStatus(ctx context.Context, paymentID uint) error {
	pay, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return err
	}
	if pay == nil {
		return ErrPaymentNotFound
	}
	if isTerminalPaymentStatus(pay.Status) {
		return nil
	}
	gateway, err := s.registry.Get(pay.Method)
	if err != nil {
		return ErrPaymentMethodInvalid
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	result, err := gateway.QueryStatus(ctx, pay.PaymentNo)
	if err != nil {
		if err == payment.ErrQueryNotSupported {
			return nil
		}
		return err
	}
	event := &payment.CallbackEvent{
		PaymentNo:   pay.PaymentNo,
		ProviderRef: result.ProviderRef,
		Status:      result.Status,
		Amount:      result.Amount,
		Currency:    result.Currency,
		PaidAt:      result.PaidAt,
		Raw:         result.Raw,
	}
	_, err = s.applyCallbackEvent(pay, event)
	return err
}

func (s *PaymentService) enqueueOrderPaidAsync(orderID uint, log *zap.SugaredLogger) {
	if s.queueClient == nil {
		return
	}
	if err := s.queueClient.EnqueueOrderPaidNotify(orderID); err != nil {
		log.Warnw("order_paid_notify_enqueue_failed", "order_id", orderID, "error", err)
	}
}

func (s *PaymentService) enqueueStatusSyncAsync(paymentID uint, log *zap.SugaredLogger) {
	if s.queueClient == nil {
		return
	}
	if err := s.queueClient.EnqueuePaymentStatusSync(paymentID, statusSyncDelay); err != nil {
		log.Warnw("payment_status_sync_enqueue_failed", "payment_id", paymentID, "error", err)
	}
}

func hasProviderResult(pay *models.Payment) bool {
	if pay == nil {
		return false
	}
	return strings.TrimSpace(pay.PayURL) != "" || strings.TrimSpace(pay.QRCode) != ""
}

func isTerminalPaymentStatus(status string) bool {
	switch status {
	case constants.PaymentStatusSuccess, constants.PaymentStatusFailed, constants.PaymentStatusExpired:
		return true
	default:
		return false
	}
}

func buildPaymentNo(now time.Time) string {
	return fmt.Sprintf("P%s%06d", now.Format("20060102150405"), now.UnixNano()%1000000)
}

func buildPaymentSubject(order *models.Order) string {
	if len(order.Items) > 0 {
		name := strings.TrimSpace(order.Items[0].ProductName)
		if name != "" {
			if len(order.Items) > 1 {
				return fmt.Sprintf("%s 等%d件", name, len(order.Items))
			}
			return name
		}
	}
	return "订单 " + order.OrderNo
}
