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

// RefundService 退款服务。退款额度校验、渠道分发与退款落账。
type RefundService struct {
	refundRepo  repository.RefundRepository
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	balanceSvc  *BalanceService
	registry    *payment.Registry
	now         func() time.Time
}

// NewRefundService 创建退款服务
func NewRefundService(
	refundRepo repository.RefundRepository,
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	balanceSvc *BalanceService,
	registry *payment.Registry,
) *RefundService {
	return &RefundService{
		refundRepo:  refundRepo,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		balanceSvc:  balanceSvc,
		registry:    registry,
		now:         time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *RefundService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateRefundInput 创建退款输入
type CreateRefundInput struct {
	PaymentID uint
	Amount    decimal.Decimal
	Reason    string
	Context   context.Context
}

func refundLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// Create 发起退款。额度校验与退款单创建在行锁事务内完成，
// 渠道调用在事务外，避免外部请求拖住数据库锁。
func (s *RefundService) Create(input CreateRefundInput) (*models.Refund, error) {
	amount := input.Amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrRefundInvalidAmount
	}

	now := s.now()
	refund := &models.Refund{
		RefundNo:  buildRefundNo(now),
		PaymentID: input.PaymentID,
		Amount:    models.NewMoneyFromDecimal(amount),
		Reason:    strings.TrimSpace(input.Reason),
		Status:    constants.RefundStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var pay *models.Payment
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		refundRepo := s.refundRepo.WithTx(tx)

		locked, err := paymentRepo.GetByIDForUpdate(input.PaymentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		if locked.Status != constants.PaymentStatusSuccess {
			return ErrRefundNotAllowed
		}

		refunded, err := refundRepo.SumActiveByPaymentID(locked.ID)
		if err != nil {
			return err
		}
		if refunded.Add(amount).GreaterThan(locked.Amount.Decimal) {
			return ErrRefundExceeded
		}

		pay = locked
		refund.OrderID = locked.OrderID
		refund.Currency = locked.Currency
		if err := refundRepo.Create(refund); err != nil {
			return ErrRefundCreateFailed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := refundLogger(
		"refund_id", refund.ID,
		"refund_no", refund.RefundNo,
		"payment_id", pay.ID,
		"order_id", pay.OrderID,
		"amount", amount.StringFixed(2),
	)

	gateway, err := s.registry.Get(pay.Method)
	if err != nil {
		s.markRejected(refund, log)
		return nil, ErrPaymentMethodInvalid
	}

	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	result, err := gateway.Refund(ctx, payment.RefundInput{
		PaymentNo:   pay.PaymentNo,
		RefundNo:    refund.RefundNo,
		ProviderRef: pay.ProviderRef,
		Amount:      amount.StringFixed(2),
		Total:       pay.Amount.Decimal.StringFixed(2),
		Currency:    pay.Currency,
		Reason:      refund.Reason,
	})
	if err != nil {
		if err == payment.ErrRefundNotSupported {
			s.markRejected(refund, log)
			return nil, ErrRefundNotAllowed
		}
		// 渠道侧结果未知，退款单保留处理中等待人工核对
		log.Warnw("refund_provider_failed", "error", err)
		return refund, nil
	}

	if result != nil {
		refund.ProviderRef = result.ProviderRef
	}
	if result != nil && result.Status == constants.RefundStatusCompleted {
		if err := s.complete(refund, pay, log); err != nil {
			return nil, err
		}
	} else {
		// 渠道异步退款，完结由 Complete 确认
		refund.UpdatedAt = s.now()
		if err := s.refundRepo.Update(refund); err != nil {
			return nil, ErrRefundCreateFailed
		}
		log.Infow("refund_processing", "provider_ref", refund.ProviderRef)
	}
	return refund, nil
}

// Complete 确认渠道退款到账，处理中的退款置完成并落账
func (s *RefundService) Complete(refundID uint, providerRef string) (*models.Refund, error) {
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	if refund.Status == constants.RefundStatusCompleted {
		return refund, nil
	}
	if refund.Status != constants.RefundStatusProcessing {
		return nil, ErrRefundStatusInvalid
	}
	pay, err := s.paymentRepo.GetByID(refund.PaymentID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, ErrPaymentNotFound
	}
	if ref := strings.TrimSpace(providerRef); ref != "" {
		refund.ProviderRef = ref
	}
	log := refundLogger(
		"refund_id", refund.ID,
		"refund_no", refund.RefundNo,
		"payment_id", pay.ID,
		"order_id", pay.OrderID,
	)
	if err := s.complete(refund, pay, log); err != nil {
		return nil, err
	}
	return refund, nil
}

// Reject 驳回处理中的退款
func (s *RefundService) Reject(refundID uint, reason string) (*models.Refund, error) {
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	if refund.Status != constants.RefundStatusProcessing {
		return nil, ErrRefundStatusInvalid
	}
	now := s.now()
	refund.Status = constants.RefundStatusRejected
	if reason = strings.TrimSpace(reason); reason != "" {
		refund.Reason = reason
	}
	refund.UpdatedAt = now
	if err := s.refundRepo.Update(refund); err != nil {
		return nil, err
	}
	refundLogger("refund_id", refund.ID, "refund_no", refund.RefundNo).Infow("refund_rejected")
	return refund, nil
}

// GetByID 查询退款单
func (s *RefundService) GetByID(id uint) (*models.Refund, error) {
	refund, err := s.refundRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

// List 管理端退款列表
func (s *RefundService) List(filter repository.RefundListFilter) ([]models.Refund, int64, error) {
	return s.refundRepo.List(filter)
}

// complete 退款完结落账：退款单置完成、订单累计退款额推进、
// 余额渠道原路回账，累计退满后订单转已退款并释放余额抵扣。
func (s *RefundService) complete(refund *models.Refund, pay *models.Payment, log *zap.SugaredLogger) error {
	now := s.now()
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		refund.Status = constants.RefundStatusCompleted
		refund.CompletedAt = &now
		refund.UpdatedAt = now
		if err := s.refundRepo.WithTx(tx).Update(refund); err != nil {
			return err
		}

		rows, err := orderRepo.IncrementRefundedAmount(pay.OrderID, refund.Amount.Decimal)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrRefundExceeded
		}

		// 余额渠道的退款原路回到余额账户
		if pay.Method == constants.PaymentMethodBalance {
			order, err := orderRepo.GetByID(pay.OrderID)
			if err != nil || order == nil {
				return ErrOrderFetchFailed
			}
			reference := fmt.Sprintf("refund:%s", refund.RefundNo)
			if _, _, err := s.balanceSvc.CreditInTx(tx, BalanceCreditInput{
				UserID:    order.UserID,
				Amount:    refund.Amount.Decimal,
				Currency:  refund.Currency,
				TxnType:   constants.BalanceTxnTypeOrderRefund,
				Reference: reference,
				Remark:    "退款入账",
				OrderID:   &order.ID,
				PaymentID: &pay.ID,
			}); err != nil {
				return err
			}
		}

		order, err := orderRepo.GetByID(pay.OrderID)
		if err != nil {
			return ErrOrderFetchFailed
		}
		if order == nil {
			return ErrOrderNotFound
		}

		// 累计退满应付金额后订单转已退款
		if order.RefundedAmount.Decimal.GreaterThanOrEqual(order.PayAmount.Decimal) {
			rows, err := orderRepo.UpdateStatusGuarded(
				order.ID,
				[]string{
					constants.OrderStatusPendingDelivery,
					constants.OrderStatusPendingReceipt,
					constants.OrderStatusCompleted,
				},
				constants.OrderStatusRefunded,
				map[string]interface{}{"updated_at": now},
			)
			if err != nil {
				return err
			}
			if rows > 0 {
				if _, err := s.balanceSvc.ReleaseOrderBalance(tx, order, constants.BalanceTxnTypeOrderRefund, "退款释放余额抵扣"); err != nil {
					return err
				}
			}
		}

		return orderRepo.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			Actor:     constants.OrderActorAdmin,
			Action:    "refund_completed",
			Remark:    refund.RefundNo,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	log.Infow("refund_completed", "provider_ref", refund.ProviderRef)
	return nil
}

// markRejected 分发前置失败，退款单直接驳回
func (s *RefundService) markRejected(refund *models.Refund, log *zap.SugaredLogger) {
	refund.Status = constants.RefundStatusRejected
	refund.UpdatedAt = s.now()
	if err := s.refundRepo.Update(refund); err != nil {
		log.Warnw("refund_reject_update_failed", "error", err)
	}
}

func buildRefundNo(now time.Time) string {
	return fmt.Sprintf("R%s%06d", now.Format("20060102150405"), now.UnixNano()%1000000)
}
