package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CallbackOutcome 回调处理结果
type CallbackOutcome struct {
	Payment   *models.Payment
	Duplicate bool // 重复回调（终态命中，幂等放行）
}

// HandleCallback 处理渠道异步回调。
// 流程：验签解析 -> 定位支付单 -> 金额币种核对 -> 终态幂等 -> 事务内落账。
// 验签失败与金额不符返回错误，由 handler 回 fail 促使渠道重发并留痕。
func (s *PaymentService) HandleCallback(ctx context.Context, method string, req payment.CallbackRequest) (*CallbackOutcome, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	gateway, err := s.registry.Get(method)
	if err != nil {
		return nil, ErrPaymentMethodInvalid
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	event, err := gateway.ParseCallback(ctx, req)
	if err != nil {
		paymentLogger("method", method).Warnw("payment_callback_verify_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCallbackInvalid, err)
	}
	if event == nil {
		return nil, ErrCallbackInvalid
	}

	pay, err := s.locateCallbackPayment(event)
	if err != nil {
		return nil, err
	}
	if pay.Method != method {
		paymentLogger(
			"payment_id", pay.ID,
			"expect_method", pay.Method,
			"callback_method", method,
		).Warnw("payment_callback_method_mismatch")
		return nil, ErrCallbackInvalid
	}

	return s.applyCallbackEvent(pay, event)
}

// locateCallbackPayment 按支付单号定位支付单，单号缺失时回退到渠道透传的支付 ID
func (s *PaymentService) locateCallbackPayment(event *payment.CallbackEvent) (*models.Payment, error) {
	if no := strings.TrimSpace(event.PaymentNo); no != "" {
		pay, err := s.paymentRepo.GetByPaymentNo(no)
		if err != nil {
			return nil, err
		}
		if pay != nil {
			return pay, nil
		}
	}
	if event.PaymentID != 0 {
		pay, err := s.paymentRepo.GetByID(event.PaymentID)
		if err != nil {
			return nil, err
		}
		if pay != nil {
			return pay, nil
		}
	}
	paymentLogger(
		"payment_no", event.PaymentNo,
		"payment_id", event.PaymentID,
	).Warnw("payment_callback_payment_missing")
	return nil, ErrPaymentNotFound
}

// applyCallbackEvent 将渠道事件落到支付单与订单上。回调与主动查询共用。
func (s *PaymentService) applyCallbackEvent(pay *models.Payment, event *payment.CallbackEvent) (*CallbackOutcome, error) {
	log := paymentLogger(
		"payment_id", pay.ID,
		"payment_no", pay.PaymentNo,
		"order_id", pay.OrderID,
		"callback_status", event.Status,
	)

	// 金额币种先于幂等核对：渠道报文被篡改时即使重复回调也要拒绝
	if err := s.verifyCallbackAmount(pay, event, log); err != nil {
		return nil, err
	}

	// 终态幂等：已完结的支付单只补记回调元数据，按成功放行
	if isTerminalPaymentStatus(pay.Status) {
		if pay.Status == constants.PaymentStatusSuccess && event.Status != constants.PaymentStatusSuccess && event.Status != "" {
			log.Warnw("payment_callback_after_success_ignored")
		}
		s.updateCallbackMeta(pay, event)
		log.Infow("payment_callback_duplicate")
		return &CallbackOutcome{Payment: pay, Duplicate: true}, nil
	}

	switch event.Status {
	case constants.PaymentStatusSuccess:
		return s.applyCallbackSuccess(pay, event, log)
	case constants.PaymentStatusFailed, constants.PaymentStatusExpired:
		return s.applyCallbackFailure(pay, event, log)
	case constants.PaymentStatusPending, constants.PaymentStatusInitiated, "":
		// 在途状态只补元数据，等待后续回调或查询
		s.updateCallbackMeta(pay, event)
		log.Infow("payment_callback_pending")
		return &CallbackOutcome{Payment: pay}, nil
	default:
		log.Warnw("payment_callback_status_unknown")
		return nil, ErrCallbackInvalid
	}
}

// verifyCallbackAmount 核对渠道回报的金额与币种
func (s *PaymentService) verifyCallbackAmount(pay *models.Payment, event *payment.CallbackEvent, log *zap.SugaredLogger) error {
	if cur := strings.ToUpper(strings.TrimSpace(event.Currency)); cur != "" && cur != strings.ToUpper(pay.Currency) {
		log.Warnw("payment_callback_currency_mismatch",
			"expect_currency", pay.Currency,
			"callback_currency", event.Currency,
		)
		return ErrPaymentAmountMismatch
	}
	if raw := strings.TrimSpace(event.Amount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%w: bad amount %q", ErrCallbackInvalid, raw)
		}
		if !amount.Round(2).Equal(pay.Amount.Decimal.Round(2)) {
			log.Warnw("payment_callback_amount_mismatch",
				"expect_amount", pay.Amount.String(),
				"callback_amount", raw,
			)
			return ErrPaymentAmountMismatch
		}
	}
	return nil
}

// applyCallbackSuccess 成功回调：支付单置成功并推进订单，同一事务内完成
func (s *PaymentService) applyCallbackSuccess(pay *models.Payment, event *payment.CallbackEvent, log *zap.SugaredLogger) (*CallbackOutcome, error) {
	now := s.now()
	paidAt := now
	if event.PaidAt != nil && !event.PaidAt.IsZero() {
		paidAt = *event.PaidAt
	}

	var duplicate bool
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)

		// 行锁下复查，并发回调只放行一个
		locked, err := paymentRepo.GetByIDForUpdate(pay.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		if isTerminalPaymentStatus(locked.Status) {
			duplicate = true
			return nil
		}

		updates := map[string]interface{}{
			"paid_at":     paidAt,
			"callback_at": now,
			"updated_at":  now,
		}
		if ref := strings.TrimSpace(event.ProviderRef); ref != "" {
			updates["provider_ref"] = ref
		}
		if event.Raw != nil {
			updates["provider_payload"] = models.JSON(event.Raw)
		}
		rows, err := paymentRepo.UpdateStatusGuarded(
			pay.ID,
			[]string{constants.PaymentStatusInitiated, constants.PaymentStatusPending},
			constants.PaymentStatusSuccess,
			updates,
		)
		if err != nil {
			return ErrPaymentUpdateFailed
		}
		if rows == 0 {
			duplicate = true
			return nil
		}

		order, err := s.orderRepo.WithTx(tx).GetByID(pay.OrderID)
		if err != nil {
			return ErrOrderFetchFailed
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if err := s.orderSvc.MarkPaidInTx(tx, order, paidAt); err != nil {
			if err == ErrOrderStatusConflict {
				// 订单已被取消但钱到账了：入账到余额等待人工处理
				return s.creditLateSuccess(tx, order, pay, now)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pay.Status = constants.PaymentStatusSuccess
	pay.PaidAt = &paidAt
	pay.CallbackAt = &now
	if ref := strings.TrimSpace(event.ProviderRef); ref != "" {
		pay.ProviderRef = ref
	}

	if duplicate {
		log.Infow("payment_callback_duplicate")
		return &CallbackOutcome{Payment: pay, Duplicate: true}, nil
	}

	s.enqueueOrderPaidAsync(pay.OrderID, paymentLogger("payment_id", pay.ID))
	log.Infow("payment_callback_success", "provider_ref", pay.ProviderRef)
	return &CallbackOutcome{Payment: pay}, nil
}

// creditLateSuccess 订单已关闭后到账的款项，原额入账到用户余额
func (s *PaymentService) creditLateSuccess(tx *gorm.DB, order *models.Order, pay *models.Payment, now time.Time) error {
	reference := fmt.Sprintf("payment:%d:late_success", pay.ID)
	_, _, err := s.balanceSvc.CreditInTx(tx, BalanceCreditInput{
		UserID:    order.UserID,
		Amount:    pay.Amount.Decimal,
		Currency:  pay.Currency,
		TxnType:   constants.BalanceTxnTypeOrderRefund,
		Reference: reference,
		Remark:    "订单已关闭，支付款项转入余额",
		OrderID:   &order.ID,
		PaymentID: &pay.ID,
	})
	if err != nil {
		return err
	}
	paymentLogger(
		"payment_id", pay.ID,
		"order_id", order.ID,
		"order_status", order.Status,
	).Warnw("payment_late_success_credited")
	return nil
}

// applyCallbackFailure 失败/过期回调：支付单置终态，订单保持待支付可换渠道重试
func (s *PaymentService) applyCallbackFailure(pay *models.Payment, event *payment.CallbackEvent, log *zap.SugaredLogger) (*CallbackOutcome, error) {
	now := s.now()
	updates := map[string]interface{}{
		"callback_at": now,
		"updated_at":  now,
	}
	if ref := strings.TrimSpace(event.ProviderRef); ref != "" {
		updates["provider_ref"] = ref
	}
	if event.Raw != nil {
		updates["provider_payload"] = models.JSON(event.Raw)
	}
	rows, err := s.paymentRepo.UpdateStatusGuarded(
		pay.ID,
		[]string{constants.PaymentStatusInitiated, constants.PaymentStatusPending},
		event.Status,
		updates,
	)
	if err != nil {
		return nil, ErrPaymentUpdateFailed
	}
	if rows == 0 {
		return &CallbackOutcome{Payment: pay, Duplicate: true}, nil
	}
	pay.Status = event.Status
	pay.CallbackAt = &now
	log.Infow("payment_callback_" + event.Status)
	return &CallbackOutcome{Payment: pay}, nil
}

// updateCallbackMeta 终态或在途重复回调只补记元数据，失败不阻断放行
func (s *PaymentService) updateCallbackMeta(pay *models.Payment, event *payment.CallbackEvent) {
	now := s.now()
	updates := map[string]interface{}{
		"callback_at": now,
	}
	if strings.TrimSpace(pay.ProviderRef) == "" {
		if ref := strings.TrimSpace(event.ProviderRef); ref != "" {
			updates["provider_ref"] = ref
			pay.ProviderRef = ref
		}
	}
	if err := models.DB.Model(&models.Payment{}).
		Where("id = ?", pay.ID).
		Updates(updates).Error; err != nil {
		paymentLogger("payment_id", pay.ID).Warnw("payment_callback_meta_update_failed", "error", err)
	}
	pay.CallbackAt = &now
}
