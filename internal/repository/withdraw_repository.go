package repository

import (
	"errors"

	"github.com/qingmall/internal/models"

	"gorm.io/gorm"
)

// WithdrawRepository 提现数据访问接口
type WithdrawRepository interface {
	CreateAccount(account *models.WithdrawAccount) error
	GetAccountByID(id uint) (*models.WithdrawAccount, error)
	GetAccountByIDAndUser(id, userID uint) (*models.WithdrawAccount, error)
	ListAccountsByUser(userID uint) ([]models.WithdrawAccount, error)
	DeleteAccount(id uint) error
	CreateApply(apply *models.WithdrawApply) error
	UpdateApply(apply *models.WithdrawApply) error
	GetApplyByID(id uint) (*models.WithdrawApply, error)
	GetApplyByNo(withdrawNo string) (*models.WithdrawApply, error)
	// UpdateApplyStatusGuarded 条件更新申请状态，返回受影响行数
	UpdateApplyStatusGuarded(id uint, fromStatus []string, toStatus string, updates map[string]interface{}) (int64, error)
	ListApplies(filter WithdrawListFilter) ([]models.WithdrawApply, int64, error)
	WithTx(tx *gorm.DB) WithdrawRepository
}

// GormWithdrawRepository GORM 提现仓储实现
type GormWithdrawRepository struct {
	db *gorm.DB
}

// NewWithdrawRepository 创建提现仓储
func NewWithdrawRepository(db *gorm.DB) *GormWithdrawRepository {
	return &GormWithdrawRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWithdrawRepository) WithTx(tx *gorm.DB) WithdrawRepository {
	if tx == nil {
		return r
	}
	return &GormWithdrawRepository{db: tx}
}

// CreateAccount 创建收款账户
func (r *GormWithdrawRepository) CreateAccount(account *models.WithdrawAccount) error {
	return r.db.Create(account).Error
}

// GetAccountByID 按ID获取收款账户
func (r *GormWithdrawRepository) GetAccountByID(id uint) (*models.WithdrawAccount, error) {
	if id == 0 {
		return nil, nil
	}
	var account models.WithdrawAccount
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByIDAndUser 按ID与用户获取收款账户
func (r *GormWithdrawRepository) GetAccountByIDAndUser(id, userID uint) (*models.WithdrawAccount, error) {
	if id == 0 || userID == 0 {
		return nil, nil
	}
	var account models.WithdrawAccount
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// ListAccountsByUser 查询用户收款账户
func (r *GormWithdrawRepository) ListAccountsByUser(userID uint) ([]models.WithdrawAccount, error) {
	var accounts []models.WithdrawAccount
	if err := r.db.Where("user_id = ?", userID).
		Order("id desc").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// DeleteAccount 删除收款账户
func (r *GormWithdrawRepository) DeleteAccount(id uint) error {
	return r.db.Delete(&models.WithdrawAccount{}, id).Error
}

// CreateApply 创建提现申请
func (r *GormWithdrawRepository) CreateApply(apply *models.WithdrawApply) error {
	return r.db.Create(apply).Error
}

// UpdateApply 更新提现申请
func (r *GormWithdrawRepository) UpdateApply(apply *models.WithdrawApply) error {
	return r.db.Save(apply).Error
}

// GetApplyByID 按ID获取提现申请
func (r *GormWithdrawRepository) GetApplyByID(id uint) (*models.WithdrawApply, error) {
	if id == 0 {
		return nil, nil
	}
	var apply models.WithdrawApply
	if err := r.db.First(&apply, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apply, nil
}

// GetApplyByNo 按提现单号获取申请
func (r *GormWithdrawRepository) GetApplyByNo(withdrawNo string) (*models.WithdrawApply, error) {
	if withdrawNo == "" {
		return nil, nil
	}
	var apply models.WithdrawApply
	if err := r.db.Where("withdraw_no = ?", withdrawNo).First(&apply).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apply, nil
}

// UpdateApplyStatusGuarded 条件更新申请状态。并发竞争失败返回 0 行。
func (r *GormWithdrawRepository) UpdateApplyStatusGuarded(id uint, fromStatus []string, toStatus string, updates map[string]interface{}) (int64, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	result := r.db.Model(&models.WithdrawApply{}).
		Where("id = ? AND status IN ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListApplies 分页查询提现申请
func (r *GormWithdrawRepository) ListApplies(filter WithdrawListFilter) ([]models.WithdrawApply, int64, error) {
	query := r.db.Model(&models.WithdrawApply{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var applies []models.WithdrawApply
	if err := query.Order("id desc").Find(&applies).Error; err != nil {
		return nil, 0, err
	}
	return applies, total, nil
}
