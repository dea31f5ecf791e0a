package constants

// DefaultCurrency 默认结算币种
const DefaultCurrency = "CNY"

// 订单状态常量
const (
	OrderStatusPendingPayment  = "pending_payment"
	OrderStatusPendingDelivery = "pending_delivery"
	OrderStatusPendingReceipt  = "pending_receipt"
	OrderStatusCompleted       = "completed"
	OrderStatusCanceledUser    = "canceled_user"
	OrderStatusCanceledSystem  = "canceled_system"
	OrderStatusClosed          = "closed"
	OrderStatusRefunded        = "refunded"
)

// 订单支付状态常量
const (
	OrderPayStatusUnpaid   = "unpaid"
	OrderPayStatusPaid     = "paid"
	OrderPayStatusRefunded = "refunded"
)

// 订单日志操作方常量
const (
	OrderActorUser     = "user"
	OrderActorAdmin    = "admin"
	OrderActorSystem   = "system"
	OrderActorProvider = "provider"
)

// 订单流程类型常量
const (
	OrderFlowTypeRetail = "retail"
	OrderFlowTypeB2B    = "b2b"
)

// 支付状态常量
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusPending   = "pending"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusExpired   = "expired"
)

// 支付方式常量
const (
	PaymentMethodCash    = "cash"
	PaymentMethodBalance = "balance"
	PaymentMethodEpay    = "epay"
	PaymentMethodWechat  = "wechat"
)

// 易支付通道类型常量
const (
	PaymentChannelAlipay = "alipay"
	PaymentChannelWechat = "wechat"
	PaymentChannelWxpay  = "wxpay"
	PaymentChannelQqpay  = "qqpay"
)

// 支付交互模式常量
const (
	PaymentInteractionQR       = "qrcode"
	PaymentInteractionRedirect = "redirect"
)

// 易支付 v2 返回的 pay_type 常量
const EpayPayTypeQRCode = "qrcode"

// 退款状态常量
const (
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusRejected   = "rejected"
)

// 余额流水类型常量
const (
	BalanceTxnTypeOrderPay       = "order_pay"
	BalanceTxnTypeOrderRelease   = "order_release"
	BalanceTxnTypeOrderRefund    = "order_refund"
	BalanceTxnTypeRecharge       = "recharge"
	BalanceTxnTypeWithdrawFreeze = "withdraw_freeze"
	BalanceTxnTypeWithdrawPaid   = "withdraw_paid"
	BalanceTxnTypeWithdrawReject = "withdraw_reject"
	BalanceTxnTypeAdminAdjust    = "admin_adjust"
)

// 余额流水方向常量
const (
	BalanceTxnDirectionIn  = "in"
	BalanceTxnDirectionOut = "out"
)

// 提现申请状态常量
const (
	WithdrawStatusPendingReview = "pending_review"
	WithdrawStatusPaid          = "paid"
	WithdrawStatusRejected      = "rejected"
)

// 提现审核动作常量
const (
	WithdrawActionPay    = "pay"
	WithdrawActionReject = "reject"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 异步任务类型常量
const (
	TaskOrderCreatedNotify = "order:created_notify"
	TaskOrderPaidNotify    = "order:paid_notify"
	TaskOrderTimeoutCancel = "order:timeout_cancel"
	TaskPaymentStatusSync  = "payment:status_sync"
	QueueDefault           = "default"
	QueueCritical          = "critical"
)

// 回调应答常量
const (
	CallbackAckSuccess = "success"
	CallbackAckFail    = "fail"
)
