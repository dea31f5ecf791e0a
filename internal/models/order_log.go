package models

import (
	"time"
)

// OrderLog 订单日志表。与余额流水同样的审计纪律：只追加。
type OrderLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`          // 主键
	OrderID   uint      `gorm:"index;not null" json:"order_id"`// 订单ID
	Actor     string    `gorm:"not null" json:"actor"`         // 操作方（user/admin/system/provider）
	Action    string    `gorm:"not null" json:"action"`        // 动作
	Remark    string    `gorm:"type:varchar(300)" json:"remark"` // 备注
	CreatedAt time.Time `gorm:"index" json:"created_at"`       // 创建时间
}

// TableName 指定表名
func (OrderLog) TableName() string {
	return "order_logs"
}
