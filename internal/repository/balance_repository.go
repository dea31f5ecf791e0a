package repository

import (
	"errors"
	"strings"

	"github.com/qingmall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRepository 余额账户与流水数据访问接口
type BalanceRepository interface {
	GetAccountByUserID(userID uint) (*models.BalanceAccount, error)
	GetAccountByUserIDForUpdate(userID uint) (*models.BalanceAccount, error)
	CreateAccount(account *models.BalanceAccount) error
	UpdateAccount(account *models.BalanceAccount) error
	CreateTransaction(txn *models.BalanceTransaction) error
	GetTransactionByReference(reference string) (*models.BalanceTransaction, error)
	ListTransactions(filter BalanceTxnListFilter) ([]models.BalanceTransaction, int64, error)
	CountTransactionsByReferencePrefix(prefix string) (int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) BalanceRepository
}

// GormBalanceRepository GORM 余额仓储实现
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository 创建余额仓储
func NewBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBalanceRepository) WithTx(tx *gorm.DB) BalanceRepository {
	if tx == nil {
		return r
	}
	return &GormBalanceRepository{db: tx}
}

// Transaction 在仓储数据库上开启事务
func (r *GormBalanceRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetAccountByUserID 按用户ID获取余额账户
func (r *GormBalanceRepository) GetAccountByUserID(userID uint) (*models.BalanceAccount, error) {
	if userID == 0 {
		return nil, nil
	}
	var account models.BalanceAccount
	if err := r.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByUserIDForUpdate 按用户ID加锁获取余额账户
func (r *GormBalanceRepository) GetAccountByUserIDForUpdate(userID uint) (*models.BalanceAccount, error) {
	if userID == 0 {
		return nil, nil
	}
	var account models.BalanceAccount
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount 创建余额账户
func (r *GormBalanceRepository) CreateAccount(account *models.BalanceAccount) error {
	return r.db.Create(account).Error
}

// UpdateAccount 更新余额账户
func (r *GormBalanceRepository) UpdateAccount(account *models.BalanceAccount) error {
	return r.db.Save(account).Error
}

// CreateTransaction 创建余额流水
func (r *GormBalanceRepository) CreateTransaction(txn *models.BalanceTransaction) error {
	return r.db.Create(txn).Error
}

// GetTransactionByReference 按幂等参考号获取流水
func (r *GormBalanceRepository) GetTransactionByReference(reference string) (*models.BalanceTransaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var txn models.BalanceTransaction
	if err := r.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactions 分页查询余额流水
func (r *GormBalanceRepository) ListTransactions(filter BalanceTxnListFilter) ([]models.BalanceTransaction, int64, error) {
	query := r.db.Model(&models.BalanceTransaction{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var txns []models.BalanceTransaction
	if err := query.Order("id desc").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// CountTransactionsByReferencePrefix 按参考号前缀统计流水条数（测试与对账用）
func (r *GormBalanceRepository) CountTransactionsByReferencePrefix(prefix string) (int64, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.BalanceTransaction{}).
		Where("reference LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
