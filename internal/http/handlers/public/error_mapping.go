package public

import (
	"errors"

	"github.com/qingmall/internal/http/response"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrUserNotFound, code: response.CodeNotFound, msg: "用户不存在"},
	{target: service.ErrUserDisabled, code: response.CodeForbidden, msg: "账号已被禁用"},
	{target: service.ErrUserNotCertified, code: response.CodeForbidden, msg: "企业采购需先完成企业认证"},
	{target: service.ErrOrderFlowForbidden, code: response.CodeBadRequest, msg: "下单流程类型不支持"},
	{target: service.ErrCartEmpty, code: response.CodeBadRequest, msg: "购物车为空"},
	{target: service.ErrCartItemNotFound, code: response.CodeBadRequest, msg: "购物车项不存在"},
	{target: service.ErrCartInvalidQuantity, code: response.CodeBadRequest, msg: "商品数量无效"},
	{target: service.ErrProductNotFound, code: response.CodeBadRequest, msg: "商品不存在"},
	{target: service.ErrProductInactive, code: response.CodeBadRequest, msg: "商品已下架"},
	{target: service.ErrProductOutOfStock, code: response.CodeConflict, msg: "商品库存不足"},
	{target: service.ErrAddressNotFound, code: response.CodeBadRequest, msg: "收货地址不存在"},
	{target: service.ErrShippingMethodNotFound, code: response.CodeBadRequest, msg: "配送方式不存在"},
	{target: service.ErrShippingMethodInactive, code: response.CodeBadRequest, msg: "配送方式已停用"},
	{target: service.ErrCouponNotFound, code: response.CodeBadRequest, msg: "优惠券不存在"},
	{target: service.ErrCouponInactive, code: response.CodeBadRequest, msg: "优惠券不可用"},
	{target: service.ErrCouponExpired, code: response.CodeBadRequest, msg: "优惠券不在有效期"},
	{target: service.ErrCouponMinNotReached, code: response.CodeBadRequest, msg: "未达到优惠券使用门槛"},
	{target: service.ErrCouponExhausted, code: response.CodeConflict, msg: "优惠券已被领完"},
	{target: service.ErrCouponUserLimit, code: response.CodeBadRequest, msg: "已达优惠券使用次数上限"},
	{target: service.ErrBalanceInsufficient, code: response.CodeBadRequest, msg: "余额不足"},
}

var paymentCreateErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "订单不存在"},
	{target: service.ErrOrderNotPayable, code: response.CodeBadRequest, msg: "订单当前不可支付"},
	{target: service.ErrOrderExpired, code: response.CodeBadRequest, msg: "订单已超时关闭"},
	{target: service.ErrOrderStatusConflict, code: response.CodeConflict, msg: "订单状态已变化，请刷新后重试"},
	{target: service.ErrPaymentMethodInvalid, code: response.CodeBadRequest, msg: "支付方式不支持"},
	{target: service.ErrBalanceInsufficient, code: response.CodeBadRequest, msg: "余额不足"},
	{target: service.ErrPaymentAlreadyFinished, code: response.CodeConflict, msg: "支付单已完结"},
	{target: service.ErrPaymentCreateFailed, code: response.CodeInternal, msg: "支付单创建失败"},
}

var orderActionErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "订单不存在"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, msg: "订单状态不允许该操作"},
	{target: service.ErrOrderStatusConflict, code: response.CodeConflict, msg: "订单状态已变化，请刷新后重试"},
}

var withdrawErrorRules = []mappedHandlerError{
	{target: service.ErrWithdrawAccountNotFound, code: response.CodeBadRequest, msg: "收款账户不存在"},
	{target: service.ErrBalanceInsufficient, code: response.CodeBadRequest, msg: "余额不足"},
	{target: service.ErrBalanceInvalidAmount, code: response.CodeBadRequest, msg: "提现金额无效"},
	{target: service.ErrWithdrawNotFound, code: response.CodeNotFound, msg: "提现申请不存在"},
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "下单失败")
}

func respondPaymentCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentCreateErrorRules, response.CodeInternal, "支付发起失败")
}

func respondOrderActionError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderActionErrorRules, response.CodeInternal, "订单操作失败")
}

func respondWithdrawError(c *gin.Context, err error) {
	respondWithMappedError(c, err, withdrawErrorRules, response.CodeInternal, "提现操作失败")
}
