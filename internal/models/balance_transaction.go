package models

import (
	"time"
)

// BalanceTransaction 余额流水表。只追加，不更新、不删除；
// Reference 唯一索引承担重复入账的幂等拦截。
type BalanceTransaction struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                          // 主键
	UserID        uint      `gorm:"index;not null" json:"user_id"`                                 // 用户ID
	OrderID       *uint     `gorm:"index" json:"order_id,omitempty"`                               // 关联订单ID
	PaymentID     *uint     `gorm:"index" json:"payment_id,omitempty"`                             // 关联支付ID
	Type          string    `gorm:"index;not null" json:"type"`                                    // 流水类型
	Direction     string    `gorm:"not null" json:"direction"`                                     // 方向（in/out）
	Amount        Money     `gorm:"type:decimal(20,2);not null" json:"amount"`                     // 变动金额（正数）
	BalanceBefore Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_before"`   // 变动前余额快照
	BalanceAfter  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"`    // 变动后余额快照
	Currency      string    `gorm:"not null;default:'CNY'" json:"currency"`                        // 币种
	Reference     string    `gorm:"uniqueIndex;not null" json:"reference"`                         // 幂等参考号
	Remark        string    `gorm:"type:varchar(200)" json:"remark"`                               // 备注
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                       // 创建时间
}

// TableName 指定表名
func (BalanceTransaction) TableName() string {
	return "balance_transactions"
}
