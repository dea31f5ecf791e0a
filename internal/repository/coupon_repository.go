package repository

import (
	"errors"
	"strings"

	"github.com/qingmall/internal/models"

	"gorm.io/gorm"
)

// CouponRepository 优惠券数据访问接口
type CouponRepository interface {
	Create(coupon *models.Coupon) error
	Update(coupon *models.Coupon) error
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	// IncrementUsedCount 条件自增使用次数，受总量上限保护，返回受影响行数
	IncrementUsedCount(id uint, usageLimit int) (int64, error)
	DecrementUsedCount(id uint) error
	CreateUsage(usage *models.CouponUsage) error
	DeleteUsageByOrder(orderID uint) error
	CountUsageByUser(couponID, userID uint) (int64, error)
	List(page, pageSize int) ([]models.Coupon, int64, error)
	WithTx(tx *gorm.DB) CouponRepository
}

// GormCouponRepository GORM 优惠券仓储实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓储
func NewCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponRepository) WithTx(tx *gorm.DB) CouponRepository {
	if tx == nil {
		return r
	}
	return &GormCouponRepository{db: tx}
}

// Create 创建优惠券
func (r *GormCouponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

// Update 更新优惠券
func (r *GormCouponRepository) Update(coupon *models.Coupon) error {
	return r.db.Save(coupon).Error
}

// GetByID 按ID获取优惠券
func (r *GormCouponRepository) GetByID(id uint) (*models.Coupon, error) {
	if id == 0 {
		return nil, nil
	}
	var coupon models.Coupon
	if err := r.db.First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// GetByCode 按优惠码获取优惠券
func (r *GormCouponRepository) GetByCode(code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var coupon models.Coupon
	if err := r.db.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsedCount 条件自增使用次数。usageLimit 为 0 时不限量。
func (r *GormCouponRepository) IncrementUsedCount(id uint, usageLimit int) (int64, error) {
	query := r.db.Model(&models.Coupon{}).Where("id = ?", id)
	if usageLimit > 0 {
		query = query.Where("used_count < ?", usageLimit)
	}
	result := query.Update("used_count", gorm.Expr("used_count + ?", 1))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DecrementUsedCount 回退使用次数（订单取消时）
func (r *GormCouponRepository) DecrementUsedCount(id uint) error {
	return r.db.Model(&models.Coupon{}).
		Where("id = ? AND used_count > 0", id).
		Update("used_count", gorm.Expr("used_count - ?", 1)).Error
}

// CreateUsage 创建使用记录
func (r *GormCouponRepository) CreateUsage(usage *models.CouponUsage) error {
	return r.db.Create(usage).Error
}

// DeleteUsageByOrder 删除订单对应的使用记录
func (r *GormCouponRepository) DeleteUsageByOrder(orderID uint) error {
	if orderID == 0 {
		return nil
	}
	return r.db.Where("order_id = ?", orderID).Delete(&models.CouponUsage{}).Error
}

// CountUsageByUser 统计用户对某优惠券的使用次数
func (r *GormCouponRepository) CountUsageByUser(couponID, userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// List 分页查询优惠券
func (r *GormCouponRepository) List(page, pageSize int) ([]models.Coupon, int64, error) {
	query := r.db.Model(&models.Coupon{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	var coupons []models.Coupon
	if err := query.Order("id desc").Find(&coupons).Error; err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}
