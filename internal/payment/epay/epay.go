// Package epay 易支付聚合渠道。v1 走 MD5 签名，v2 走 RSA 签名，
// 以支付单号作为商户单号对接网关。
package epay

import (
	"context"
	"crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/payment"
)

const (
	VersionV1 = "v1"
	VersionV2 = "v2"
)

var (
	ErrConfigInvalid     = errors.New("epay config invalid")
	ErrRequestFailed     = errors.New("epay request failed")
	ErrResponseInvalid   = errors.New("epay response invalid")
	ErrChannelTypeNotOK  = errors.New("epay channel type invalid")
	ErrSignatureGenerate = errors.New("epay signature generate failed")
	ErrSignatureInvalid  = errors.New("epay signature invalid")
)

// Config 易支付配置
type Config struct {
	GatewayURL  string `json:"gateway_url" mapstructure:"gateway_url"`                 // 网关地址
	EpayVersion string `json:"epay_version" mapstructure:"epay_version"`               // 版本（v1/v2）
	MerchantID  string `json:"merchant_id" mapstructure:"merchant_id"`                 // 商户号
	MerchantKey string `json:"merchant_key" mapstructure:"merchant_key"`               // 商户密钥（v1）
	PrivateKey  string `json:"private_key" mapstructure:"private_key"`                 // 商户私钥（v2）
	PublicKey   string `json:"platform_public_key" mapstructure:"platform_public_key"` // 平台公钥（v2）
	SignType    string `json:"sign_type" mapstructure:"sign_type"`                     // 签名类型
	APIPath     string `json:"api_path" mapstructure:"api_path"`                       // 下单接口路径
	NotifyURL   string `json:"notify_url" mapstructure:"notify_url"`                   // 异步通知地址
	ReturnURL   string `json:"return_url" mapstructure:"return_url"`                   // 同步跳转地址
	Method      string `json:"method" mapstructure:"method"`                           // 支付方式（v2 method）
	Device      string `json:"device" mapstructure:"device"`                           // 设备类型（v1 device）
}

// Gateway 易支付渠道适配器
type Gateway struct {
	cfg        *Config
	httpClient *http.Client
}

// New 创建易支付渠道
func New(cfg *Config) (*Gateway, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Method 渠道标识
func (g *Gateway) Method() string {
	return constants.PaymentMethodEpay
}

// ValidateConfig 校验易支付配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return fmt.Errorf("%w: gateway_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return fmt.Errorf("%w: merchant_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.NotifyURL) == "" {
		return fmt.Errorf("%w: notify_url is required", ErrConfigInvalid)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.EpayVersion)) {
	case VersionV2:
		if strings.TrimSpace(cfg.PrivateKey) == "" {
			return fmt.Errorf("%w: private_key is required for v2", ErrConfigInvalid)
		}
		if strings.TrimSpace(cfg.PublicKey) == "" {
			return fmt.Errorf("%w: platform_public_key is required for v2", ErrConfigInvalid)
		}
	default:
		if strings.TrimSpace(cfg.MerchantKey) == "" {
			return fmt.Errorf("%w: merchant_key is required for v1", ErrConfigInvalid)
		}
	}
	return nil
}

// Create 发起易支付下单
func (g *Gateway) Create(ctx context.Context, input payment.CreateInput) (*payment.CreateResult, error) {
	if input.PaymentNo == "" || input.Amount == "" {
		return nil, ErrConfigInvalid
	}
	payType := resolvePayType(input.Channel)
	if payType == "" {
		return nil, ErrChannelTypeNotOK
	}
	subject := input.Subject
	if subject == "" {
		subject = input.OrderNo
	}
	switch g.cfg.EpayVersion {
	case VersionV2:
		return g.createV2(ctx, input, payType, subject)
	default:
		return g.createV1(ctx, input, payType, subject)
	}
}

func (g *Gateway) createV1(ctx context.Context, input payment.CreateInput, payType, subject string) (*payment.CreateResult, error) {
	params := map[string]string{
		"pid":          g.cfg.MerchantID,
		"type":         payType,
		"out_trade_no": input.PaymentNo,
		"notify_url":   g.cfg.NotifyURL,
		"return_url":   g.cfg.ReturnURL,
		"name":         subject,
		"money":        input.Amount,
		"clientip":     normalizeClientIP(input.ClientIP),
		"device":       g.cfg.Device,
	}
	if input.PaymentID != 0 {
		params["param"] = strconv.FormatUint(uint64(input.PaymentID), 10)
	}
	signContent := buildSignContent(params)
	params["sign"] = signMD5(signContent + g.cfg.MerchantKey)
	params["sign_type"] = g.cfg.SignType

	respBytes, err := g.postForm(ctx, buildEndpoint(g.cfg.GatewayURL, g.cfg.APIPath), params)
	if err != nil {
		return nil, ErrRequestFailed
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code      int    `json:"code"`
		Msg       string `json:"msg"`
		TradeNo   string `json:"trade_no"`
		PayURL    string `json:"payurl"`
		QRCode    string `json:"qrcode"`
		URLScheme string `json:"urlscheme"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	result := &payment.CreateResult{
		Status:      constants.PaymentStatusPending,
		PayURL:      strings.TrimSpace(resp.PayURL),
		QRCode:      strings.TrimSpace(resp.QRCode),
		ProviderRef: strings.TrimSpace(resp.TradeNo),
		Raw:         raw,
	}
	if result.PayURL == "" && resp.URLScheme != "" {
		result.PayURL = strings.TrimSpace(resp.URLScheme)
	}
	return result, nil
}

func (g *Gateway) createV2(ctx context.Context, input payment.CreateInput, payType, subject string) (*payment.CreateResult, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	params := map[string]string{
		"pid":          g.cfg.MerchantID,
		"method":       g.cfg.Method,
		"type":         payType,
		"out_trade_no": input.PaymentNo,
		"notify_url":   g.cfg.NotifyURL,
		"return_url":   g.cfg.ReturnURL,
		"name":         subject,
		"money":        input.Amount,
		"clientip":     normalizeClientIP(input.ClientIP),
		"timestamp":    timestamp,
	}
	if input.PaymentID != 0 {
		params["param"] = strconv.FormatUint(uint64(input.PaymentID), 10)
	}
	signContent := buildSignContent(params)
	sign, err := signRSA(signContent, g.cfg.PrivateKey)
	if err != nil {
		return nil, ErrSignatureGenerate
	}
	params["sign"] = sign
	params["sign_type"] = g.cfg.SignType

	respBytes, err := g.postForm(ctx, buildEndpoint(g.cfg.GatewayURL, g.cfg.APIPath), params)
	if err != nil {
		return nil, ErrRequestFailed
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code    int    `json:"code"`
		Msg     string `json:"msg"`
		TradeNo string `json:"trade_no"`
		PayType string `json:"pay_type"`
		PayInfo string `json:"pay_info"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	result := &payment.CreateResult{
		Status:      constants.PaymentStatusPending,
		ProviderRef: strings.TrimSpace(resp.TradeNo),
		Raw:         raw,
	}
	if strings.EqualFold(strings.TrimSpace(resp.PayType), constants.EpayPayTypeQRCode) {
		result.QRCode = strings.TrimSpace(resp.PayInfo)
	} else {
		result.PayURL = strings.TrimSpace(resp.PayInfo)
	}
	return result, nil
}

// QueryStatus 查询易支付订单状态（v1 api.php 接口）
func (g *Gateway) QueryStatus(ctx context.Context, paymentNo string) (*payment.StatusResult, error) {
	paymentNo = strings.TrimSpace(paymentNo)
	if paymentNo == "" {
		return nil, ErrConfigInvalid
	}
	if g.cfg.EpayVersion == VersionV2 {
		return nil, payment.ErrQueryNotSupported
	}
	query := url.Values{}
	query.Set("act", "order")
	query.Set("pid", g.cfg.MerchantID)
	query.Set("key", g.cfg.MerchantKey)
	query.Set("out_trade_no", paymentNo)
	endpoint := buildEndpoint(g.cfg.GatewayURL, "/api.php") + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, ErrRequestFailed
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrResponseInvalid
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)
	var parsed struct {
		Code    int    `json:"code"`
		Msg     string `json:"msg"`
		TradeNo string `json:"trade_no"`
		Money   string `json:"money"`
		Status  int    `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, ErrResponseInvalid
	}
	if parsed.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, parsed.Msg)
	}
	status := constants.PaymentStatusPending
	if parsed.Status == 1 {
		status = constants.PaymentStatusSuccess
	}
	return &payment.StatusResult{
		Status:      status,
		ProviderRef: strings.TrimSpace(parsed.TradeNo),
		Amount:      strings.TrimSpace(parsed.Money),
		Raw:         raw,
	}, nil
}

// ParseCallback 验签并解析易支付异步通知
func (g *Gateway) ParseCallback(ctx context.Context, req payment.CallbackRequest) (*payment.CallbackEvent, error) {
	form := req.Form
	if len(form) == 0 {
		form = req.Query
	}
	if len(form) == 0 {
		return nil, ErrSignatureInvalid
	}
	if err := g.verifyCallback(form); err != nil {
		return nil, err
	}

	params := make(map[string]string, len(form))
	raw := make(map[string]interface{}, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		params[key] = values[0]
		raw[key] = values[0]
	}

	status := constants.PaymentStatusPending
	if strings.EqualFold(strings.TrimSpace(params["trade_status"]), "TRADE_SUCCESS") {
		status = constants.PaymentStatusSuccess
	}
	event := &payment.CallbackEvent{
		PaymentNo:   strings.TrimSpace(params["out_trade_no"]),
		ProviderRef: strings.TrimSpace(params["trade_no"]),
		Status:      status,
		Amount:      strings.TrimSpace(params["money"]),
		Raw:         raw,
	}
	if param := strings.TrimSpace(params["param"]); param != "" {
		if parsed, err := strconv.ParseUint(param, 10, 64); err == nil && parsed != 0 {
			event.PaymentID = uint(parsed)
		}
	}
	return event, nil
}

func (g *Gateway) verifyCallback(form url.Values) error {
	sign := strings.TrimSpace(form.Get("sign"))
	if sign == "" {
		return ErrSignatureInvalid
	}
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	content := buildSignContent(params)
	switch g.cfg.EpayVersion {
	case VersionV2:
		return verifyRSA(content, sign, g.cfg.PublicKey)
	default:
		if !strings.EqualFold(signMD5(content+g.cfg.MerchantKey), sign) {
			return ErrSignatureInvalid
		}
	}
	return nil
}

// Refund 发起易支付退款（v1 api.php 接口）
func (g *Gateway) Refund(ctx context.Context, input payment.RefundInput) (*payment.RefundResult, error) {
	if g.cfg.EpayVersion == VersionV2 {
		return nil, payment.ErrRefundNotSupported
	}
	if input.PaymentNo == "" || input.Amount == "" {
		return nil, ErrConfigInvalid
	}
	params := map[string]string{
		"act":          "refund",
		"pid":          g.cfg.MerchantID,
		"key":          g.cfg.MerchantKey,
		"out_trade_no": input.PaymentNo,
		"money":        input.Amount,
	}
	if input.ProviderRef != "" {
		params["trade_no"] = input.ProviderRef
	}
	respBytes, err := g.postForm(ctx, buildEndpoint(g.cfg.GatewayURL, "/api.php"), params)
	if err != nil {
		return nil, ErrRequestFailed
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	return &payment.RefundResult{
		Status: constants.RefundStatusCompleted,
		Raw:    raw,
	}, nil
}

func (c *Config) normalize() {
	c.EpayVersion = strings.ToLower(strings.TrimSpace(c.EpayVersion))
	c.SignType = strings.TrimSpace(c.SignType)
	if c.SignType == "" {
		if c.EpayVersion == VersionV2 {
			c.SignType = "RSA"
		} else {
			c.SignType = "MD5"
		}
	}
	if c.APIPath == "" {
		if c.EpayVersion == VersionV2 {
			c.APIPath = "/api/pay/create"
		} else {
			c.APIPath = "/mapi.php"
		}
	}
	if c.Method == "" {
		c.Method = "web"
	}
	if c.Device == "" {
		c.Device = "pc"
	}
}

func resolvePayType(channelType string) string {
	switch strings.ToLower(strings.TrimSpace(channelType)) {
	case constants.PaymentChannelWechat, constants.PaymentChannelWxpay:
		return constants.PaymentChannelWxpay
	case constants.PaymentChannelAlipay, "":
		return constants.PaymentChannelAlipay
	case constants.PaymentChannelQqpay:
		return constants.PaymentChannelQqpay
	default:
		return ""
	}
}

// IsSupportedChannelType 判断易支付支持的通道类型
func IsSupportedChannelType(channelType string) bool {
	return resolvePayType(channelType) != ""
}

func buildEndpoint(gatewayURL, apiPath string) string {
	base := strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	path := strings.TrimSpace(apiPath)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func normalizeClientIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "127.0.0.1"
	}
	return raw
}

func (g *Gateway) postForm(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ErrRequestFailed
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func buildSignContent(params map[string]string) string {
	var keys []string
	for k, v := range params {
		if v == "" {
			continue
		}
		if k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return strings.Join(pairs, "&")
}

func signMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}

func signRSA(content, privateKey string) (string, error) {
	key, err := parseRSAPrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	hashed := sha256.Sum256([]byte(content))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func verifyRSA(content, signature, publicKey string) error {
	key, err := parseRSAPublicKey(publicKey)
	if err != nil {
		return ErrSignatureInvalid
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrSignatureInvalid
	}
	hashed := sha256.Sum256([]byte(content))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], raw); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func parseRSAPrivateKey(raw string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block != nil {
		if strings.Contains(block.Type, "PRIVATE KEY") {
			if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
				if rsaKey, ok := key.(*rsa.PrivateKey); ok {
					return rsaKey, nil
				}
			}
		}
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
	}

	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, ErrConfigInvalid
	}
	if key, err := x509.ParsePKCS8PrivateKey(decoded); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(decoded); err == nil {
		return key, nil
	}
	return nil, ErrConfigInvalid
}

func parseRSAPublicKey(raw string) (*rsa.PublicKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block != nil {
		if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
			if rsaKey, ok := key.(*rsa.PublicKey); ok {
				return rsaKey, nil
			}
		}
		if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
			return key, nil
		}
	}

	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, ErrConfigInvalid
	}
	if key, err := x509.ParsePKIXPublicKey(decoded); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(decoded); err == nil {
		return key, nil
	}
	return nil, ErrConfigInvalid
}

func decodeKeyBody(raw string) ([]byte, error) {
	lines := strings.Split(raw, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-----BEGIN ") || strings.HasPrefix(trimmed, "-----END ") {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return nil, ErrConfigInvalid
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.Join(parts, ""))
	if err != nil {
		return nil, ErrConfigInvalid
	}
	return decoded, nil
}
