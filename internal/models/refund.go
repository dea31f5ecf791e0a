package models

import (
	"time"

	"gorm.io/gorm"
)

// Refund 退款记录。单笔支付可多次部分退款，累计不超过支付金额。
type Refund struct {
	ID          uint           `gorm:"primarykey" json:"id"`                      // 主键
	RefundNo    string         `gorm:"uniqueIndex;not null" json:"refund_no"`     // 退款单号
	PaymentID   uint           `gorm:"index;not null" json:"payment_id"`          // 支付ID
	OrderID     uint           `gorm:"index;not null" json:"order_id"`            // 订单ID
	Amount      Money          `gorm:"type:decimal(20,2);not null" json:"amount"` // 退款金额
	Currency    string         `gorm:"not null" json:"currency"`                  // 币种
	Reason      string         `gorm:"type:varchar(300)" json:"reason"`           // 退款原因
	Status      string         `gorm:"index;not null" json:"status"`              // 退款状态
	ProviderRef string         `gorm:"index" json:"provider_ref"`                 // 第三方退款流水号
	CompletedAt *time.Time     `gorm:"index" json:"completed_at"`                 // 完成时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                   // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                            // 软删除时间
}

// TableName 指定表名
func (Refund) TableName() string {
	return "refunds"
}
