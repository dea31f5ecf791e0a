package models

import (
	"time"

	"gorm.io/gorm"
)

// BalanceAccount 余额账户表。Balance 是流水折算后的缓存值，
// 任何变更必须与流水写入处于同一事务。
type BalanceAccount struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                        // 主键
	UserID        uint           `gorm:"uniqueIndex;not null" json:"user_id"`                         // 用户ID
	Balance       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`        // 可用余额
	FrozenBalance Money          `gorm:"type:decimal(20,2);not null;default:0" json:"frozen_balance"` // 冻结余额（提现在途）
	Currency      string         `gorm:"not null;default:'CNY'" json:"currency"`                      // 币种
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                     // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间
}

// TableName 指定表名
func (BalanceAccount) TableName() string {
	return "balance_accounts"
}
