package models

import (
	"time"

	"gorm.io/gorm"
)

// ShippingMethod 配送方式表
type ShippingMethod struct {
	ID        uint           `gorm:"primarykey" json:"id"`                             // 主键
	Name      string         `gorm:"not null" json:"name"`                             // 名称
	Fee       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"fee"` // 运费
	IsActive  bool           `gorm:"index" json:"is_active"`                           // 是否启用（写入方显式赋值）
	SortOrder int            `gorm:"default:0" json:"sort_order"`                      // 排序权重
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                          // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                          // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间
}

// TableName 指定表名
func (ShippingMethod) TableName() string {
	return "shipping_methods"
}
