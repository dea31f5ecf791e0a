package payment

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"
	"time"
)

var (
	ErrMethodNotSupported   = errors.New("payment method not supported")
	ErrCallbackNotSupported = errors.New("payment callback not supported")
	ErrRefundNotSupported   = errors.New("payment refund not supported")
	ErrQueryNotSupported    = errors.New("payment query not supported")
)

// CreateInput 发起支付输入
type CreateInput struct {
	OrderNo   string // 订单号
	PaymentNo string // 支付单号（传给渠道的商户单号）
	PaymentID uint   // 支付单ID
	Amount    string // 金额（保留两位小数）
	Currency  string // 币种
	Subject   string // 商品描述
	ClientIP  string // 客户端IP
	Channel   string // 渠道子类型（易支付 type）
}

// CreateResult 发起支付返回
type CreateResult struct {
	Status      string                 // 渠道即时状态（initiated/pending/success）
	PayURL      string                 // 跳转支付地址
	QRCode      string                 // 扫码支付内容
	ProviderRef string                 // 渠道流水号
	Raw         map[string]interface{} // 渠道原始返回
}

// StatusResult 渠道侧支付状态查询返回
type StatusResult struct {
	Status      string                 // 映射后的支付状态
	ProviderRef string                 // 渠道流水号
	Amount      string                 // 渠道侧金额
	Currency    string                 // 渠道侧币种
	PaidAt      *time.Time             // 渠道侧支付完成时间
	Raw         map[string]interface{} // 渠道原始返回
}

// RefundInput 渠道退款输入
type RefundInput struct {
	PaymentNo   string // 原支付单号
	RefundNo    string // 退款单号
	ProviderRef string // 原渠道流水号
	Amount      string // 退款金额
	Total       string // 原支付总额
	Currency    string // 币种
	Reason      string // 退款原因
}

// RefundResult 渠道退款返回
type RefundResult struct {
	Status      string                 // 退款状态（processing/completed）
	ProviderRef string                 // 渠道退款流水号
	Raw         map[string]interface{} // 渠道原始返回
}

// CallbackRequest 渠道回调原始请求
type CallbackRequest struct {
	Headers map[string]string // 请求头
	Form    url.Values        // 表单参数（易支付）
	Body    []byte            // 请求体（微信）
	Query   url.Values        // 查询参数
}

// CallbackEvent 验签解析后的回调事件
type CallbackEvent struct {
	PaymentNo   string                 // 商户支付单号
	PaymentID   uint                   // 支付单ID（渠道透传字段携带时有值）
	ProviderRef string                 // 渠道流水号
	Status      string                 // 映射后的支付状态
	Amount      string                 // 渠道侧金额
	Currency    string                 // 渠道侧币种
	PaidAt      *time.Time             // 渠道侧支付完成时间
	Raw         map[string]interface{} // 渠道原始数据
}

// Gateway 支付渠道适配器。各渠道以统一接口接入，
// 新增渠道只需实现接口并注册，不修改调用方。
type Gateway interface {
	// Method 渠道标识（constants.PaymentMethod*）
	Method() string
	// Create 发起支付
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	// QueryStatus 主动查询渠道侧状态，用于对账补偿
	QueryStatus(ctx context.Context, paymentNo string) (*StatusResult, error)
	// ParseCallback 验签并解析异步回调。验签失败必须返回错误。
	ParseCallback(ctx context.Context, req CallbackRequest) (*CallbackEvent, error)
	// Refund 发起渠道退款
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
}

// Registry 支付渠道注册表
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register 注册渠道，同名覆盖
func (r *Registry) Register(gateway Gateway) {
	if gateway == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gateway.Method()] = gateway
}

// Get 按方式获取渠道
func (r *Registry) Get(method string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gateway, ok := r.gateways[method]
	if !ok {
		return nil, ErrMethodNotSupported
	}
	return gateway, nil
}

// Methods 已注册渠道列表（有序）
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.gateways))
	for method := range r.gateways {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
