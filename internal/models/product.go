package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表
type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                      // 主键
	Name        string         `gorm:"not null" json:"name"`                                      // 商品名称
	ImageURL    string         `gorm:"type:text" json:"image_url"`                                // 主图地址
	PriceAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price_amount"` // 售价
	Stock       int            `gorm:"not null;default:0" json:"stock"`                           // 库存（仅经条件更新变动）
	IsActive    bool           `gorm:"index" json:"is_active"`                                    // 是否上架（写入方显式赋值）
	SortOrder   int            `gorm:"default:0;index" json:"sort_order"`                         // 排序权重
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
