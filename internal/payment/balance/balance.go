// Package balance 余额渠道。扣款在本地账本内同步完成，
// 渠道适配器只声明即时结果，实际出入账由支付服务在事务内执行。
package balance

import (
	"context"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/payment"
)

// Gateway 余额渠道适配器
type Gateway struct{}

// New 创建余额渠道
func New() *Gateway {
	return &Gateway{}
}

// Method 渠道标识
func (g *Gateway) Method() string {
	return constants.PaymentMethodBalance
}

// Create 发起支付。余额扣款同步完成，即时返回成功。
func (g *Gateway) Create(ctx context.Context, input payment.CreateInput) (*payment.CreateResult, error) {
	return &payment.CreateResult{
		Status: constants.PaymentStatusSuccess,
	}, nil
}

// QueryStatus 本地结算无渠道侧状态
func (g *Gateway) QueryStatus(ctx context.Context, paymentNo string) (*payment.StatusResult, error) {
	return nil, payment.ErrQueryNotSupported
}

// ParseCallback 无异步回调
func (g *Gateway) ParseCallback(ctx context.Context, req payment.CallbackRequest) (*payment.CallbackEvent, error) {
	return nil, payment.ErrCallbackNotSupported
}

// Refund 余额退款由账本入账完成，渠道侧直接视为成功
func (g *Gateway) Refund(ctx context.Context, input payment.RefundInput) (*payment.RefundResult, error) {
	return &payment.RefundResult{
		Status: constants.RefundStatusCompleted,
	}, nil
}
