package service

import "errors"

// 商品与购物车
var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductInactive      = errors.New("product inactive")
	ErrProductOutOfStock    = errors.New("product out of stock")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrCartEmpty            = errors.New("cart is empty")
	ErrCartInvalidQuantity  = errors.New("cart quantity invalid")
)

// 地址与配送
var (
	ErrAddressNotFound        = errors.New("address not found")
	ErrAddressInvalid         = errors.New("address fields invalid")
	ErrShippingMethodNotFound = errors.New("shipping method not found")
	ErrShippingMethodInactive = errors.New("shipping method inactive")
)

// 优惠券
var (
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCouponInactive      = errors.New("coupon inactive")
	ErrCouponExpired       = errors.New("coupon expired")
	ErrCouponMinNotReached = errors.New("coupon min amount not reached")
	ErrCouponExhausted     = errors.New("coupon usage exhausted")
	ErrCouponUserLimit     = errors.New("coupon per-user limit reached")
)

// 订单
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusInvalid  = errors.New("order status invalid")
	ErrOrderStatusConflict = errors.New("order status conflict")
	ErrOrderCreateFailed   = errors.New("order create failed")
	ErrOrderUpdateFailed   = errors.New("order update failed")
	ErrOrderFetchFailed    = errors.New("order fetch failed")
	ErrOrderNotPayable     = errors.New("order not payable")
	ErrOrderExpired        = errors.New("order expired")
	ErrOrderFlowForbidden  = errors.New("order flow forbidden")
)

// 支付
var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentStatusInvalid   = errors.New("payment status invalid")
	ErrPaymentCreateFailed    = errors.New("payment create failed")
	ErrPaymentUpdateFailed    = errors.New("payment update failed")
	ErrPaymentMethodInvalid   = errors.New("payment method invalid")
	ErrPaymentAmountMismatch  = errors.New("payment amount mismatch")
	ErrPaymentAlreadyFinished = errors.New("payment already finished")
	ErrCallbackInvalid        = errors.New("payment callback invalid")
)

// 退款
var (
	ErrRefundNotFound      = errors.New("refund not found")
	ErrRefundInvalidAmount = errors.New("refund amount invalid")
	ErrRefundExceeded      = errors.New("refund amount exceeds refundable")
	ErrRefundStatusInvalid = errors.New("refund status invalid")
	ErrRefundCreateFailed  = errors.New("refund create failed")
	ErrRefundNotAllowed    = errors.New("refund not allowed")
)

// 余额
var (
	ErrBalanceAccountNotFound       = errors.New("balance account not found")
	ErrBalanceAccountCreateFailed   = errors.New("balance account create failed")
	ErrBalanceAccountUpdateFailed   = errors.New("balance account update failed")
	ErrBalanceInvalidAmount         = errors.New("balance amount invalid")
	ErrBalanceInsufficient          = errors.New("balance insufficient")
	ErrBalanceTransactionCreateFailed = errors.New("balance transaction create failed")
)

// 提现
var (
	ErrWithdrawAccountNotFound = errors.New("withdraw account not found")
	ErrWithdrawNotFound        = errors.New("withdraw apply not found")
	ErrWithdrawStatusInvalid   = errors.New("withdraw status invalid")
	ErrWithdrawActionInvalid   = errors.New("withdraw action invalid")
)

// 用户
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserDisabled      = errors.New("user disabled")
	ErrUserNotCertified  = errors.New("user not certified")
	ErrUserEmailTaken        = errors.New("email already taken")
	ErrUserPasswordIncorrect = errors.New("password incorrect")
	ErrUserTokenInvalid      = errors.New("token invalid")
)
