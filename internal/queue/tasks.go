package queue

import (
	"encoding/json"

	"github.com/qingmall/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderCreatedNotify 下单通知任务
	TaskOrderCreatedNotify = constants.TaskOrderCreatedNotify
	// TaskOrderPaidNotify 支付成功通知任务
	TaskOrderPaidNotify = constants.TaskOrderPaidNotify
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
	// TaskPaymentStatusSync 在途支付状态查询任务
	TaskPaymentStatusSync = constants.TaskPaymentStatusSync
)

// OrderNotifyPayload 订单通知任务载荷
type OrderNotifyPayload struct {
	OrderID uint `json:"order_id"`
}

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
}

// PaymentStatusSyncPayload 支付状态查询任务载荷
type PaymentStatusSyncPayload struct {
	PaymentID uint `json:"payment_id"`
}

// NewOrderCreatedNotifyTask 创建下单通知任务
func NewOrderCreatedNotifyTask(payload OrderNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderCreatedNotify, body), nil
}

// NewOrderPaidNotifyTask 创建支付成功通知任务
func NewOrderPaidNotifyTask(payload OrderNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPaidNotify, body), nil
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderTimeoutCancel, body), nil
}

// NewPaymentStatusSyncTask 创建支付状态查询任务
func NewPaymentStatusSyncTask(payload PaymentStatusSyncPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentStatusSync, body), nil
}
