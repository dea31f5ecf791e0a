// Package cash 线下现金/对公转账渠道。不涉及外部支付方，
// 发起即视为到账、同步落定成功，不存在异步回调。
package cash

import (
	"context"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/payment"
)

// Gateway 现金渠道适配器
type Gateway struct{}

// New 创建现金渠道
func New() *Gateway {
	return &Gateway{}
}

// Method 渠道标识
func (g *Gateway) Method() string {
	return constants.PaymentMethodCash
}

// Create 发起支付。无外部参与方，同步即成。
func (g *Gateway) Create(ctx context.Context, input payment.CreateInput) (*payment.CreateResult, error) {
	return &payment.CreateResult{
		Status: constants.PaymentStatusSuccess,
	}, nil
}

// QueryStatus 渠道侧无状态可查
func (g *Gateway) QueryStatus(ctx context.Context, paymentNo string) (*payment.StatusResult, error) {
	return nil, payment.ErrQueryNotSupported
}

// ParseCallback 无异步回调
func (g *Gateway) ParseCallback(ctx context.Context, req payment.CallbackRequest) (*payment.CallbackEvent, error) {
	return nil, payment.ErrCallbackNotSupported
}

// Refund 线下退款由人工完成，渠道侧直接视为成功
func (g *Gateway) Refund(ctx context.Context, input payment.RefundInput) (*payment.RefundResult, error) {
	return &payment.RefundResult{
		Status: constants.RefundStatusCompleted,
	}, nil
}
