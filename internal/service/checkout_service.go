package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/logger"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// 未支付订单的默认关单窗口
	defaultPaymentWindow = 30 * time.Minute
)

// CheckoutService 下单服务。定价、锁库存、核销券、抵扣余额、落订单
// 在一个数据库事务内完成，任何一步失败整体回滚。
type CheckoutService struct {
	orderRepo     repository.OrderRepository
	productRepo   repository.ProductRepository
	cartRepo      repository.CartRepository
	addressRepo   repository.AddressRepository
	shippingRepo  repository.ShippingRepository
	couponRepo    repository.CouponRepository
	userRepo      repository.UserRepository
	balanceSvc    *BalanceService
	queueClient   OrderTaskEnqueuer
	paymentWindow time.Duration
	now           func() time.Time
}

// OrderTaskEnqueuer 下单后异步任务投递接口
type OrderTaskEnqueuer interface {
	EnqueueOrderCreatedNotify(orderID uint) error
	EnqueueOrderTimeoutCancel(orderID uint, delay time.Duration) error
}

// CheckoutInput 下单输入
type CheckoutInput struct {
	UserID           uint
	FlowType         string // retail/b2b，空值按 retail
	CartItemIDs      []uint // 结算的购物车项
	AddressID        uint
	ShippingMethodID uint
	CouponCode       string
	BalanceAmount    models.Money // 请求使用的余额金额，零值不抵扣
	ClientIP         string
	Remark           string
}

// CheckoutResult 下单结果
type CheckoutResult struct {
	Order        *models.Order `json:"order"`
	BalancePaid  models.Money  `json:"balance_paid"`
	PayAmount    models.Money  `json:"pay_amount"`
	NeedsPayment bool          `json:"needs_payment"`
}

// NewCheckoutService 创建下单服务
func NewCheckoutService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	cartRepo repository.CartRepository,
	addressRepo repository.AddressRepository,
	shippingRepo repository.ShippingRepository,
	couponRepo repository.CouponRepository,
	userRepo repository.UserRepository,
	balanceSvc *BalanceService,
	queueClient OrderTaskEnqueuer,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		cartRepo:      cartRepo,
		addressRepo:   addressRepo,
		shippingRepo:  shippingRepo,
		couponRepo:    couponRepo,
		userRepo:      userRepo,
		balanceSvc:    balanceSvc,
		queueClient:   queueClient,
		paymentWindow: defaultPaymentWindow,
		now:           time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *CheckoutService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetPaymentWindow 设置关单窗口
func (s *CheckoutService) SetPaymentWindow(window time.Duration) {
	if window > 0 {
		s.paymentWindow = window
	}
}

// Submit 提交订单
func (s *CheckoutService) Submit(input CheckoutInput) (*CheckoutResult, error) {
	if input.UserID == 0 {
		return nil, ErrUserNotFound
	}
	flowType := strings.ToLower(strings.TrimSpace(input.FlowType))
	if flowType == "" {
		flowType = constants.OrderFlowTypeRetail
	}
	if flowType != constants.OrderFlowTypeRetail && flowType != constants.OrderFlowTypeB2B {
		return nil, ErrOrderFlowForbidden
	}
	if len(input.CartItemIDs) == 0 {
		return nil, ErrCartEmpty
	}

	var order *models.Order
	var balancePaid decimal.Decimal
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		now := s.now()
		userRepo := s.userRepo.WithTx(tx)
		user, err := userRepo.GetByID(input.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.Status != constants.UserStatusActive {
			return ErrUserDisabled
		}
		if flowType == constants.OrderFlowTypeB2B && !user.IsCertified {
			return ErrUserNotCertified
		}

		addressRepo := s.addressRepo.WithTx(tx)
		address, err := addressRepo.GetByIDAndUser(input.AddressID, input.UserID)
		if err != nil {
			return err
		}
		if address == nil {
			return ErrAddressNotFound
		}

		shippingRepo := s.shippingRepo.WithTx(tx)
		shipping, err := shippingRepo.GetByID(input.ShippingMethodID)
		if err != nil {
			return err
		}
		if shipping == nil {
			return ErrShippingMethodNotFound
		}
		if !shipping.IsActive {
			return ErrShippingMethodInactive
		}

		// 购物车项按ID集合重新读取，价格取服务端当前售价
		cartRepo := s.cartRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		lines, productIDs, err := s.loadCheckoutLines(cartRepo, input.UserID, input.CartItemIDs)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			rows, err := productRepo.DecrementStock(line.product.ID, line.quantity)
			if err != nil {
				return err
			}
			if rows == 0 {
				return fmt.Errorf("%w: %s", ErrProductOutOfStock, line.product.Name)
			}
			unit := line.product.PriceAmount.Decimal.Round(2)
			lineTotal := unit.Mul(decimal.NewFromInt(int64(line.quantity))).Round(2)
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderItem{
				ProductID:    line.product.ID,
				ProductName:  line.product.Name,
				ProductImage: line.product.ImageURL,
				UnitPrice:    models.NewMoneyFromDecimal(unit),
				Quantity:     line.quantity,
				TotalPrice:   models.NewMoneyFromDecimal(lineTotal),
				CreatedAt:    now,
			})
		}
		subtotal = subtotal.Round(2)

		shippingFee := shipping.Fee.Decimal.Round(2)
		discount := decimal.Zero
		var couponID *uint
		if code := strings.TrimSpace(input.CouponCode); code != "" {
			couponRepo := s.couponRepo.WithTx(tx)
			coupon, amount, err := s.applyCoupon(couponRepo, code, input.UserID, subtotal, now)
			if err != nil {
				return err
			}
			discount = amount
			couponID = &coupon.ID
		}
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}

		payable := subtotal.Add(shippingFee).Sub(discount).Round(2)
		if payable.LessThan(decimal.Zero) {
			payable = decimal.Zero
		}

		expiresAt := now.Add(s.paymentWindow)
		order = &models.Order{
			OrderNo:          buildOrderNo(now),
			UserID:           input.UserID,
			FlowType:         flowType,
			Status:           constants.OrderStatusPendingPayment,
			PayStatus:        constants.OrderPayStatusUnpaid,
			Currency:         balanceDefaultCurrency,
			TotalAmount:      models.NewMoneyFromDecimal(subtotal),
			ShippingFee:      models.NewMoneyFromDecimal(shippingFee),
			DiscountAmount:   models.NewMoneyFromDecimal(discount),
			PayAmount:        models.NewMoneyFromDecimal(payable),
			CouponID:         couponID,
			ShippingMethodID: shipping.ID,
			AddressID:        address.ID,
			ReceiverName:     address.ReceiverName,
			ReceiverPhone:    address.ReceiverPhone,
			ReceiverAddress:  formatAddress(address),
			ClientIP:         strings.TrimSpace(input.ClientIP),
			ExpiresAt:        &expiresAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		orderRepo := s.orderRepo.WithTx(tx)
		if err := orderRepo.Create(order, items); err != nil {
			return ErrOrderCreateFailed
		}

		if couponID != nil {
			couponRepo := s.couponRepo.WithTx(tx)
			if err := couponRepo.CreateUsage(&models.CouponUsage{
				CouponID:       *couponID,
				UserID:         input.UserID,
				OrderID:        order.ID,
				DiscountAmount: models.NewMoneyFromDecimal(discount),
				CreatedAt:      now,
			}); err != nil {
				return err
			}
		}

		// 余额抵扣在订单落库后执行，流水引用订单ID
		balancePaid, err = s.balanceSvc.ApplyOrderBalance(tx, order, input.BalanceAmount.Decimal)
		if err != nil {
			return err
		}

		if err := orderRepo.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			Actor:     constants.OrderActorUser,
			Action:    "order_created",
			Remark:    strings.TrimSpace(input.Remark),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		return cartRepo.DeleteByUserAndProducts(input.UserID, productIDs)
	})
	if err != nil {
		return nil, err
	}

	// 任务投递失败不回滚订单，超时关单由对账兜底
	if s.queueClient != nil {
		if err := s.queueClient.EnqueueOrderCreatedNotify(order.ID); err != nil {
			logEnqueueFailure("order_created_notify", order.ID, err)
		}
		if err := s.queueClient.EnqueueOrderTimeoutCancel(order.ID, s.paymentWindow); err != nil {
			logEnqueueFailure("order_timeout_cancel", order.ID, err)
		}
	}

	fresh, err := s.orderRepo.GetByID(order.ID)
	if err == nil && fresh != nil {
		order = fresh
	}
	return &CheckoutResult{
		Order:        order,
		BalancePaid:  models.NewMoneyFromDecimal(balancePaid),
		PayAmount:    order.PayAmount,
		NeedsPayment: order.PayAmount.Decimal.GreaterThan(decimal.Zero),
	}, nil
}

type checkoutLine struct {
	product  *models.Product
	quantity int
}

func (s *CheckoutService) loadCheckoutLines(cartRepo repository.CartRepository, userID uint, cartItemIDs []uint) ([]checkoutLine, []uint, error) {
	lines := make([]checkoutLine, 0, len(cartItemIDs))
	productIDs := make([]uint, 0, len(cartItemIDs))
	seen := make(map[uint]bool, len(cartItemIDs))
	for _, itemID := range cartItemIDs {
		if seen[itemID] {
			continue
		}
		seen[itemID] = true
		item, err := cartRepo.GetItemByID(itemID)
		if err != nil {
			return nil, nil, err
		}
		if item == nil || item.UserID != userID {
			return nil, nil, ErrCartItemNotFound
		}
		if item.Quantity <= 0 {
			return nil, nil, ErrCartInvalidQuantity
		}
		if item.Product == nil {
			return nil, nil, ErrProductNotFound
		}
		if !item.Product.IsActive {
			return nil, nil, ErrProductInactive
		}
		lines = append(lines, checkoutLine{product: item.Product, quantity: item.Quantity})
		productIDs = append(productIDs, item.ProductID)
	}
	if len(lines) == 0 {
		return nil, nil, ErrCartEmpty
	}
	return lines, productIDs, nil
}

func (s *CheckoutService) applyCoupon(couponRepo repository.CouponRepository, code string, userID uint, subtotal decimal.Decimal, now time.Time) (*models.Coupon, decimal.Decimal, error) {
	coupon, err := couponRepo.GetByCode(code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if coupon == nil {
		return nil, decimal.Zero, ErrCouponNotFound
	}
	if !coupon.IsActive {
		return nil, decimal.Zero, ErrCouponInactive
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return nil, decimal.Zero, ErrCouponExpired
	}
	if coupon.EndsAt != nil && now.After(*coupon.EndsAt) {
		return nil, decimal.Zero, ErrCouponExpired
	}
	if subtotal.LessThan(coupon.MinAmount.Decimal) {
		return nil, decimal.Zero, ErrCouponMinNotReached
	}
	if coupon.PerUserLimit > 0 {
		used, err := couponRepo.CountUsageByUser(coupon.ID, userID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if used >= int64(coupon.PerUserLimit) {
			return nil, decimal.Zero, ErrCouponUserLimit
		}
	}

	// 总量上限以条件自增竞争，败者拿不到名额
	rows, err := couponRepo.IncrementUsedCount(coupon.ID, coupon.UsageLimit)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if rows == 0 {
		return nil, decimal.Zero, ErrCouponExhausted
	}

	discount := decimal.Zero
	switch coupon.Type {
	case "percent":
		discount = subtotal.Mul(coupon.Value.Decimal).Div(decimal.NewFromInt(100)).Round(2)
	default:
		discount = coupon.Value.Decimal.Round(2)
	}
	if maxDiscount := coupon.MaxDiscount.Decimal.Round(2); maxDiscount.GreaterThan(decimal.Zero) && discount.GreaterThan(maxDiscount) {
		discount = maxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return coupon, discount, nil
}

func logEnqueueFailure(task string, orderID uint, err error) {
	logger.Warnw("order_task_enqueue_failed",
		"task", task,
		"order_id", orderID,
		"error", err,
	)
}

func buildOrderNo(now time.Time) string {
	return fmt.Sprintf("O%s%06d", now.Format("20060102150405"), now.UnixNano()%1000000)
}

func formatAddress(address *models.Address) string {
	return strings.TrimSpace(address.Province + address.City + address.District + address.Detail)
}
