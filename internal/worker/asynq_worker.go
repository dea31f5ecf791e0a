package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/qingmall/internal/logger"
	"github.com/qingmall/internal/provider"
	"github.com/qingmall/internal/queue"
	"github.com/qingmall/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderCreatedNotify, c.handleOrderCreatedNotify)
	mux.HandleFunc(queue.TaskOrderPaidNotify, c.handleOrderPaidNotify)
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel)
	mux.HandleFunc(queue.TaskPaymentStatusSync, c.handlePaymentStatusSync)
}

func (c *Consumer) handleOrderCreatedNotify(_ context.Context, task *asynq.Task) error {
	return c.handleOrderNotify(task, "worker_order_created_notify")
}

func (c *Consumer) handleOrderPaidNotify(_ context.Context, task *asynq.Task) error {
	return c.handleOrderNotify(task, "worker_order_paid_notify")
}

// handleOrderNotify 订单通知。当前以结构化日志落地，
// 后续通知渠道（邮件/webhook）接入时在此分发。
func (c *Consumer) handleOrderNotify(task *asynq.Task, event string) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.OrderNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw(event+"_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw(event+"_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw(event+"_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw(event+"_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}
	logger.Infow(event,
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"status", order.Status,
		"pay_amount", order.PayAmount.String(),
	)
	return nil
}

func (c *Consumer) handleOrderTimeoutCancel(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_timeout_cancel_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	_, err := c.OrderService.CancelBySystem(payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_order_timeout_cancel_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderFetchFailed):
			logger.Warnw("worker_order_timeout_cancel_fetch_failed", "order_id", payload.OrderID, "error", err)
			return nil
		case errors.Is(err, service.ErrOrderUpdateFailed):
			logger.Warnw("worker_order_timeout_cancel_update_failed", "order_id", payload.OrderID, "error", err)
			return err
		default:
			logger.Warnw("worker_order_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handlePaymentStatusSync(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.PaymentStatusSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_status_sync_unmarshal_failed", "error", err)
		return err
	}
	if payload.PaymentID == 0 {
		logger.Debugw("worker_payment_status_sync_skip_invalid_payload", "payment_id", payload.PaymentID)
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_payment_status_sync_skip_payment_service_nil", "payment_id", payload.PaymentID)
		return nil
	}
	if err := c.PaymentService.SyncPaymentStatus(ctx, payload.PaymentID); err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			logger.Debugw("worker_payment_status_sync_skip_payment_not_found", "payment_id", payload.PaymentID)
			return nil
		case errors.Is(err, service.ErrPaymentMethodInvalid):
			logger.Debugw("worker_payment_status_sync_skip_method_invalid", "payment_id", payload.PaymentID)
			return nil
		default:
			logger.Warnw("worker_payment_status_sync_failed", "payment_id", payload.PaymentID, "error", err)
			return err
		}
	}
	return nil
}
