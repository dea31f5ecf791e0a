package models

import (
	"time"

	"gorm.io/gorm"
)

// WithdrawAccount 提现收款账户表
type WithdrawAccount struct {
	ID          uint           `gorm:"primarykey" json:"id"`                   // 主键
	UserID      uint           `gorm:"index;not null" json:"user_id"`          // 用户ID
	AccountType string         `gorm:"not null" json:"account_type"`           // 账户类型（bank/alipay/wechat）
	AccountNo   string         `gorm:"not null" json:"account_no"`             // 账号
	HolderName  string         `gorm:"not null" json:"holder_name"`            // 开户人
	BankName    string         `gorm:"default:''" json:"bank_name,omitempty"`  // 开户行
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                         // 软删除时间
}

// TableName 指定表名
func (WithdrawAccount) TableName() string {
	return "withdraw_accounts"
}

// WithdrawApply 提现申请表。申请时余额转入冻结，审核后冻结出账或回退。
type WithdrawApply struct {
	ID         uint           `gorm:"primarykey" json:"id"`                      // 主键
	WithdrawNo string         `gorm:"uniqueIndex;not null" json:"withdraw_no"`   // 提现单号
	UserID     uint           `gorm:"index;not null" json:"user_id"`             // 用户ID
	AccountID  uint           `gorm:"index;not null" json:"account_id"`          // 收款账户ID
	Amount     Money          `gorm:"type:decimal(20,2);not null" json:"amount"` // 提现金额
	Currency   string         `gorm:"not null;default:'CNY'" json:"currency"`    // 币种
	Status     string         `gorm:"index;not null" json:"status"`              // 状态
	Remark     string         `gorm:"type:varchar(300)" json:"remark"`           // 申请备注
	ReviewNote string         `gorm:"type:varchar(300)" json:"review_note"`      // 审核备注
	ReviewedAt *time.Time     `gorm:"index" json:"reviewed_at"`                  // 审核时间
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                   // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                            // 软删除时间
}

// TableName 指定表名
func (WithdrawApply) TableName() string {
	return "withdraw_applies"
}
