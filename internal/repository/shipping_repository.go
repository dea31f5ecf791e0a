package repository

import (
	"errors"

	"github.com/qingmall/internal/models"

	"gorm.io/gorm"
)

// ShippingRepository 配送方式数据访问接口
type ShippingRepository interface {
	Create(method *models.ShippingMethod) error
	Update(method *models.ShippingMethod) error
	Delete(id uint) error
	GetByID(id uint) (*models.ShippingMethod, error)
	ListActive() ([]models.ShippingMethod, error)
	ListAll() ([]models.ShippingMethod, error)
	WithTx(tx *gorm.DB) ShippingRepository
}

// GormShippingRepository GORM 配送方式仓储实现
type GormShippingRepository struct {
	db *gorm.DB
}

// NewShippingRepository 创建配送方式仓储
func NewShippingRepository(db *gorm.DB) *GormShippingRepository {
	return &GormShippingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShippingRepository) WithTx(tx *gorm.DB) ShippingRepository {
	if tx == nil {
		return r
	}
	return &GormShippingRepository{db: tx}
}

// Create 创建配送方式
func (r *GormShippingRepository) Create(method *models.ShippingMethod) error {
	return r.db.Create(method).Error
}

// Update 更新配送方式
func (r *GormShippingRepository) Update(method *models.ShippingMethod) error {
	return r.db.Save(method).Error
}

// Delete 删除配送方式
func (r *GormShippingRepository) Delete(id uint) error {
	return r.db.Delete(&models.ShippingMethod{}, id).Error
}

// GetByID 按ID获取配送方式
func (r *GormShippingRepository) GetByID(id uint) (*models.ShippingMethod, error) {
	if id == 0 {
		return nil, nil
	}
	var method models.ShippingMethod
	if err := r.db.First(&method, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &method, nil
}

// ListActive 查询启用的配送方式
func (r *GormShippingRepository) ListActive() ([]models.ShippingMethod, error) {
	var methods []models.ShippingMethod
	if err := r.db.Where("is_active = ?", true).
		Order("sort_order asc, id asc").
		Find(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}

// ListAll 查询全部配送方式
func (r *GormShippingRepository) ListAll() ([]models.ShippingMethod, error) {
	var methods []models.ShippingMethod
	if err := r.db.Order("sort_order asc, id asc").Find(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}
