package models

import (
	"time"

	"gorm.io/gorm"
)

// Address 收货地址表
type Address struct {
	ID            uint           `gorm:"primarykey" json:"id"`                    // 主键
	UserID        uint           `gorm:"index;not null" json:"user_id"`           // 用户ID
	ReceiverName  string         `gorm:"not null" json:"receiver_name"`           // 收件人
	ReceiverPhone string         `gorm:"not null" json:"receiver_phone"`          // 联系电话
	Province      string         `gorm:"not null" json:"province"`                // 省
	City          string         `gorm:"not null" json:"city"`                    // 市
	District      string         `gorm:"not null" json:"district"`                // 区
	Detail        string         `gorm:"type:varchar(200);not null" json:"detail"`// 详细地址
	IsDefault     bool           `gorm:"default:false" json:"is_default"`         // 默认地址标记
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                 // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                          // 软删除时间
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}
