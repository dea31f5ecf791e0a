package repository

import (
	"errors"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundRepository 退款数据访问接口
type RefundRepository interface {
	Create(refund *models.Refund) error
	Update(refund *models.Refund) error
	GetByID(id uint) (*models.Refund, error)
	GetByRefundNo(refundNo string) (*models.Refund, error)
	ListByPaymentID(paymentID uint) ([]models.Refund, error)
	SumActiveByPaymentID(paymentID uint) (decimal.Decimal, error)
	List(filter RefundListFilter) ([]models.Refund, int64, error)
	WithTx(tx *gorm.DB) RefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) RefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款记录
func (r *GormRefundRepository) Create(refund *models.Refund) error {
	return r.db.Create(refund).Error
}

// Update 更新退款记录
func (r *GormRefundRepository) Update(refund *models.Refund) error {
	return r.db.Save(refund).Error
}

// GetByID 根据 ID 获取退款记录
func (r *GormRefundRepository) GetByID(id uint) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.First(&refund, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetByRefundNo 根据退款单号获取退款记录
func (r *GormRefundRepository) GetByRefundNo(refundNo string) (*models.Refund, error) {
	if refundNo == "" {
		return nil, nil
	}
	var refund models.Refund
	if err := r.db.Where("refund_no = ?", refundNo).First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// ListByPaymentID 获取支付的退款记录
func (r *GormRefundRepository) ListByPaymentID(paymentID uint) ([]models.Refund, error) {
	var refunds []models.Refund
	if err := r.db.Where("payment_id = ?", paymentID).Order("id desc").Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// SumActiveByPaymentID 统计支付上处理中与已完成退款的累计金额。
// 进行中的退款也计入，防止并发申请击穿退款上限。
func (r *GormRefundRepository) SumActiveByPaymentID(paymentID uint) (decimal.Decimal, error) {
	if paymentID == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.NullDecimal
	}
	if err := r.db.Model(&models.Refund{}).
		Select("SUM(amount) AS total").
		Where("payment_id = ? AND status IN ?", paymentID,
			[]string{constants.RefundStatusProcessing, constants.RefundStatusCompleted}).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal.Round(2), nil
}

// List 分页查询退款记录
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.Refund, int64, error) {
	query := r.db.Model(&models.Refund{})
	if filter.PaymentID != 0 {
		query = query.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var refunds []models.Refund
	if err := query.Order("id desc").Find(&refunds).Error; err != nil {
		return nil, 0, err
	}
	return refunds, total, nil
}
