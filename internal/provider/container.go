package provider

import (
	"time"

	"github.com/qingmall/internal/cache"
	"github.com/qingmall/internal/config"
	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/logger"
	"github.com/qingmall/internal/models"
	"github.com/qingmall/internal/payment"
	"github.com/qingmall/internal/payment/balance"
	"github.com/qingmall/internal/payment/cash"
	"github.com/qingmall/internal/payment/epay"
	"github.com/qingmall/internal/payment/wechat"
	"github.com/qingmall/internal/queue"
	"github.com/qingmall/internal/repository"
	"github.com/qingmall/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config          *config.Config
	QueueClient     *queue.Client
	PaymentRegistry *payment.Registry

	// Repositories
	UserRepo     repository.UserRepository
	ProductRepo  repository.ProductRepository
	CartRepo     repository.CartRepository
	AddressRepo  repository.AddressRepository
	ShippingRepo repository.ShippingRepository
	CouponRepo   repository.CouponRepository
	OrderRepo    repository.OrderRepository
	PaymentRepo  repository.PaymentRepository
	RefundRepo   repository.RefundRepository
	BalanceRepo  repository.BalanceRepository
	WithdrawRepo repository.WithdrawRepository

	// Services
	UserAuthService *service.UserAuthService
	ProductService  *service.ProductService
	CartService     *service.CartService
	AddressService  *service.AddressService
	ShippingService *service.ShippingService
	BalanceService  *service.BalanceService
	WithdrawService *service.WithdrawService
	CheckoutService *service.CheckoutService
	OrderService    *service.OrderService
	PaymentService  *service.PaymentService
	RefundService   *service.RefundService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initPaymentRegistry()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.AddressRepo = repository.NewAddressRepository(db)
	c.ShippingRepo = repository.NewShippingRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.BalanceRepo = repository.NewBalanceRepository(db)
	c.WithdrawRepo = repository.NewWithdrawRepository(db)
}

// initPaymentRegistry 按配置装配支付渠道
func (c *Container) initPaymentRegistry() {
	registry := payment.NewRegistry()

	if c.Config.Payment.Cash.Enabled {
		registry.Register(cash.New())
	}
	if c.Config.Payment.Balance.Enabled {
		registry.Register(balance.New())
	}
	if c.Config.Payment.Epay.Enabled {
		gw, err := epay.New(&c.Config.Payment.Epay.Config)
		if err != nil {
			logger.Errorw("provider_init_epay_failed", "error", err)
		} else {
			registry.Register(gw)
		}
	}
	if c.Config.Payment.Wechat.Enabled {
		gw, err := wechat.New(&c.Config.Payment.Wechat.Config)
		if err != nil {
			logger.Errorw("provider_init_wechat_failed", "error", err)
		} else {
			registry.Register(gw)
		}
	}

	logger.Infow("payment_registry_ready", "methods", registry.Methods())
	c.PaymentRegistry = registry
}

func (c *Container) initServices() {
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.ProductService = service.NewProductService(c.ProductRepo)
	c.CartService = service.NewCartService(c.CartRepo, c.ProductRepo)
	c.AddressService = service.NewAddressService(c.AddressRepo)
	c.ShippingService = service.NewShippingService(c.ShippingRepo)
	c.BalanceService = service.NewBalanceService(c.BalanceRepo)
	c.WithdrawService = service.NewWithdrawService(c.WithdrawRepo, c.BalanceRepo)
	c.CheckoutService = service.NewCheckoutService(
		c.OrderRepo,
		c.ProductRepo,
		c.CartRepo,
		c.AddressRepo,
		c.ShippingRepo,
		c.CouponRepo,
		c.UserRepo,
		c.BalanceService,
		c.QueueClient,
	)
	if c.Config.Order.PaymentExpireMinutes > 0 {
		c.CheckoutService.SetPaymentWindow(paymentWindowFromMinutes(c.Config.Order.PaymentExpireMinutes))
	}
	c.OrderService = service.NewOrderService(c.OrderRepo, c.ProductRepo, c.CouponRepo, c.BalanceService)
	c.PaymentService = service.NewPaymentService(
		c.PaymentRepo,
		c.OrderRepo,
		c.BalanceService,
		c.OrderService,
		c.PaymentRegistry,
		c.QueueClient,
	)
	c.RefundService = service.NewRefundService(
		c.RefundRepo,
		c.PaymentRepo,
		c.OrderRepo,
		c.BalanceService,
		c.PaymentRegistry,
	)
}

func paymentWindowFromMinutes(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

// DefaultCurrency 站点结算币种
func (c *Container) DefaultCurrency() string {
	if c != nil && c.Config != nil && c.Config.Order.Currency != "" {
		return c.Config.Order.Currency
	}
	return constants.DefaultCurrency
}
