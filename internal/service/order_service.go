package service

import (
	"strings"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/logger"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"gorm.io/gorm"
)

// allowedTransitions 订单状态机。不在表内的迁移一律拒绝。
var allowedTransitions = map[string][]string{
	constants.OrderStatusPendingPayment: {
		constants.OrderStatusPendingDelivery,
		constants.OrderStatusCanceledUser,
		constants.OrderStatusCanceledSystem,
		constants.OrderStatusClosed,
	},
	constants.OrderStatusPendingDelivery: {
		constants.OrderStatusPendingReceipt,
		constants.OrderStatusRefunded,
	},
	constants.OrderStatusPendingReceipt: {
		constants.OrderStatusCompleted,
		constants.OrderStatusRefunded,
	},
	constants.OrderStatusCompleted: {
		constants.OrderStatusRefunded,
	},
}

// OrderService 订单服务。状态迁移全部走守卫式条件更新，
// 并发竞争的败者收到冲突错误而不是覆盖写。
type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	balanceSvc  *BalanceService
	now         func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	balanceSvc *BalanceService,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		balanceSvc:  balanceSvc,
		now:         time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *OrderService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// GetByIDAndUser 查询用户订单详情
func (s *OrderService) GetByIDAndUser(id, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(id, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetByID 查询订单详情（管理端）
func (s *OrderService) GetByID(id uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListByUser 查询用户订单列表
func (s *OrderService) ListByUser(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListByUser(filter)
}

// ListAdmin 管理端查询订单列表
func (s *OrderService) ListAdmin(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// ListLogs 查询订单日志
func (s *OrderService) ListLogs(orderID uint) ([]models.OrderLog, error) {
	return s.orderRepo.ListLogs(orderID)
}

// CancelByUser 用户取消待支付订单
func (s *OrderService) CancelByUser(orderID, userID uint, remark string) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.cancel(order, constants.OrderStatusCanceledUser, constants.OrderActorUser, remark)
}

// CancelBySystem 系统超时取消待支付订单。订单已离开待支付时安静跳过。
func (s *OrderService) CancelBySystem(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPendingPayment {
		return order, nil
	}
	canceled, err := s.cancel(order, constants.OrderStatusCanceledSystem, constants.OrderActorSystem, "支付超时自动取消")
	if err == ErrOrderStatusConflict {
		// 支付回调抢先成功，放行
		return s.GetByID(orderID)
	}
	return canceled, err
}

// CloseByAdmin 管理员关闭待支付订单
func (s *OrderService) CloseByAdmin(orderID uint, remark string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.cancel(order, constants.OrderStatusClosed, constants.OrderActorAdmin, remark)
}

// logTransitionRejected 被拒绝的状态迁移同样落审计日志。
// 写入失败只告警，不吞掉调用方的原始错误。
func (s *OrderService) logTransitionRejected(orderID uint, actor, from, to string) {
	if err := s.orderRepo.AppendLog(&models.OrderLog{
		OrderID:   orderID,
		Actor:     actor,
		Action:    "order_transition_rejected",
		Remark:    from + " -> " + to,
		CreatedAt: s.now(),
	}); err != nil {
		logger.Warnw("order_transition_rejected_log_failed",
			"order_id", orderID,
			"error", err,
		)
	}
}

// cancel 取消/关闭待支付订单：守卫式改状态、回补库存、
// 退回余额抵扣、回退优惠券名额，同一事务内完成。
func (s *OrderService) cancel(order *models.Order, toStatus, actor, remark string) (*models.Order, error) {
	if order.Status != constants.OrderStatusPendingPayment || !CanTransition(order.Status, toStatus) {
		s.logTransitionRejected(order.ID, actor, order.Status, toStatus)
		return nil, ErrOrderStatusInvalid
	}

	now := s.now()
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		rows, err := orderRepo.UpdateStatusGuarded(
			order.ID,
			[]string{constants.OrderStatusPendingPayment},
			toStatus,
			map[string]interface{}{
				"canceled_at": now,
				"updated_at":  now,
			},
		)
		if err != nil {
			return ErrOrderUpdateFailed
		}
		if rows == 0 {
			return ErrOrderStatusConflict
		}

		productRepo := s.productRepo.WithTx(tx)
		for _, item := range order.Items {
			if _, err := productRepo.IncrementStock(item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if _, err := s.balanceSvc.ReleaseOrderBalance(tx, order, constants.BalanceTxnTypeOrderRelease, "订单取消余额退回"); err != nil {
			return err
		}

		if order.CouponID != nil {
			couponRepo := s.couponRepo.WithTx(tx)
			if err := couponRepo.DecrementUsedCount(*order.CouponID); err != nil {
				return err
			}
			if err := couponRepo.DeleteUsageByOrder(order.ID); err != nil {
				return err
			}
		}

		return orderRepo.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			Actor:     actor,
			Action:    "order_" + toStatus,
			Remark:    strings.TrimSpace(remark),
			CreatedAt: now,
		})
	})
	if err != nil {
		if err == ErrOrderStatusConflict {
			// 事务已回滚，拒绝记录单独落库
			s.logTransitionRejected(order.ID, actor, order.Status, toStatus)
		}
		return nil, err
	}

	logger.Infow("order_canceled",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"to_status", toStatus,
		"actor", actor,
	)
	return s.GetByID(order.ID)
}

// Ship 管理员发货：待发货 → 待收货
func (s *OrderService) Ship(orderID uint, remark string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPendingDelivery {
		s.logTransitionRejected(order.ID, constants.OrderActorAdmin, order.Status, constants.OrderStatusPendingReceipt)
		return nil, ErrOrderStatusInvalid
	}

	now := s.now()
	rows, err := s.orderRepo.UpdateStatusGuarded(
		order.ID,
		[]string{constants.OrderStatusPendingDelivery},
		constants.OrderStatusPendingReceipt,
		map[string]interface{}{
			"shipped_at": now,
			"updated_at": now,
		},
	)
	if err != nil {
		return nil, ErrOrderUpdateFailed
	}
	if rows == 0 {
		s.logTransitionRejected(order.ID, constants.OrderActorAdmin, order.Status, constants.OrderStatusPendingReceipt)
		return nil, ErrOrderStatusConflict
	}
	if err := s.orderRepo.AppendLog(&models.OrderLog{
		OrderID:   order.ID,
		Actor:     constants.OrderActorAdmin,
		Action:    "order_shipped",
		Remark:    strings.TrimSpace(remark),
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	return s.GetByID(order.ID)
}

// ConfirmReceipt 用户确认收货：待收货 → 已完成
func (s *OrderService) ConfirmReceipt(orderID, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPendingReceipt {
		s.logTransitionRejected(order.ID, constants.OrderActorUser, order.Status, constants.OrderStatusCompleted)
		return nil, ErrOrderStatusInvalid
	}

	now := s.now()
	rows, err := s.orderRepo.UpdateStatusGuarded(
		order.ID,
		[]string{constants.OrderStatusPendingReceipt},
		constants.OrderStatusCompleted,
		map[string]interface{}{
			"confirmed_at": now,
			"updated_at":   now,
		},
	)
	if err != nil {
		return nil, ErrOrderUpdateFailed
	}
	if rows == 0 {
		s.logTransitionRejected(order.ID, constants.OrderActorUser, order.Status, constants.OrderStatusCompleted)
		return nil, ErrOrderStatusConflict
	}
	if err := s.orderRepo.AppendLog(&models.OrderLog{
		OrderID:   order.ID,
		Actor:     constants.OrderActorUser,
		Action:    "order_completed",
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	return s.GetByID(order.ID)
}

// MarkPaidInTx 在事务内把订单推进到已支付/待发货。
// 调用方负责事务与支付单状态，守卫失败返回冲突。
func (s *OrderService) MarkPaidInTx(tx *gorm.DB, order *models.Order, paidAt time.Time) error {
	if tx == nil || order == nil {
		return ErrOrderUpdateFailed
	}
	orderRepo := s.orderRepo.WithTx(tx)
	rows, err := orderRepo.UpdateStatusGuarded(
		order.ID,
		[]string{constants.OrderStatusPendingPayment},
		constants.OrderStatusPendingDelivery,
		map[string]interface{}{
			"pay_status": constants.OrderPayStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		},
	)
	if err != nil {
		return ErrOrderUpdateFailed
	}
	if rows == 0 {
		return ErrOrderStatusConflict
	}
	return orderRepo.AppendLog(&models.OrderLog{
		OrderID:   order.ID,
		Actor:     constants.OrderActorProvider,
		Action:    "order_paid",
		CreatedAt: paidAt,
	})
}
