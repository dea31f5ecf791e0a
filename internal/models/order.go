package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表。金额在下单时服务端定价后固化，
// 状态只经由守卫式条件更新前进；活跃状态下不允许软删除。
type Order struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                              // 主键
	OrderNo           string         `gorm:"uniqueIndex;not null" json:"order_no"`                              // 订单编号
	UserID            uint           `gorm:"index;not null" json:"user_id"`                                     // 用户ID
	FlowType          string         `gorm:"not null;default:'retail'" json:"flow_type"`                        // 流程类型（retail/b2b）
	Status            string         `gorm:"index;not null" json:"status"`                                      // 订单状态
	PayStatus         string         `gorm:"index;not null;default:'unpaid'" json:"pay_status"`                 // 支付状态
	Currency          string         `gorm:"not null" json:"currency"`                                          // 币种
	TotalAmount       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`         // 商品金额（折扣前）
	ShippingFee       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_fee"`         // 运费
	DiscountAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`      // 优惠金额（券）
	BalancePaidAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"balance_paid_amount"`  // 余额抵扣金额
	PayAmount         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"pay_amount"`           // 应付金额
	RefundedAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"`      // 已退款金额
	CouponID          *uint          `gorm:"index" json:"coupon_id,omitempty"`                                  // 优惠券ID
	ShippingMethodID  uint           `gorm:"index" json:"shipping_method_id"`                                   // 配送方式ID
	AddressID         uint           `gorm:"index;not null" json:"address_id"`                                  // 收货地址ID
	ReceiverName      string         `gorm:"not null" json:"receiver_name"`                                     // 收件人快照
	ReceiverPhone     string         `gorm:"not null" json:"receiver_phone"`                                    // 联系电话快照
	ReceiverAddress   string         `gorm:"type:varchar(300);not null" json:"receiver_address"`                // 地址快照
	ClientIP          string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`                       // 下单客户端IP
	ExpiresAt         *time.Time     `gorm:"index" json:"expires_at"`                                           // 支付截止时间
	PaidAt            *time.Time     `gorm:"index" json:"paid_at"`                                              // 支付时间
	ShippedAt         *time.Time     `gorm:"index" json:"shipped_at"`                                           // 发货时间
	ConfirmedAt       *time.Time     `gorm:"index" json:"confirmed_at"`                                         // 确认收货时间
	CanceledAt        *time.Time     `gorm:"index" json:"canceled_at"`                                          // 取消时间
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                           // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                    // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
	Logs  []OrderLog  `gorm:"foreignKey:OrderID" json:"logs,omitempty"`  // 订单日志
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
