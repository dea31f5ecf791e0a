package public

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/http/handlers/shared"
	"github.com/qingmall/internal/payment"
	"github.com/qingmall/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentCallback 支付渠道异步通知入口。
// 应答为渠道约定的纯文本：验签失败同样返回 200，避免渠道无限重试泄露探测信息。
func (h *Handler) PaymentCallback(c *gin.Context) {
	method := c.Param("method")
	log := shared.RequestLog(c).With("callback_method", method)

	req, err := buildCallbackRequest(c)
	if err != nil {
		log.Warnw("payment_callback_read_failed", "error", err)
		c.String(http.StatusOK, constants.CallbackAckFail)
		return
	}

	outcome, err := h.PaymentService.HandleCallback(c.Request.Context(), method, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCallbackInvalid),
			errors.Is(err, service.ErrPaymentAmountMismatch),
			errors.Is(err, service.ErrPaymentNotFound),
			errors.Is(err, service.ErrPaymentMethodInvalid):
			log.Warnw("payment_callback_rejected", "error", err)
		default:
			log.Errorw("payment_callback_failed", "error", err)
		}
		c.String(http.StatusOK, constants.CallbackAckFail)
		return
	}

	log.Infow("payment_callback_acked",
		"payment_id", outcome.Payment.ID,
		"payment_no", outcome.Payment.PaymentNo,
		"status", outcome.Payment.Status,
		"duplicate", outcome.Duplicate,
	)
	c.String(http.StatusOK, constants.CallbackAckSuccess)
}

func buildCallbackRequest(c *gin.Context) (payment.CallbackRequest, error) {
	var req payment.CallbackRequest

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return req, err
	}
	// 表单解析会消费请求体，保留原始内容供验签使用
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err := c.Request.ParseForm(); err != nil {
		return req, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	headers := make(map[string]string, len(c.Request.Header))
	for key := range c.Request.Header {
		headers[key] = c.GetHeader(key)
	}

	req.Headers = headers
	req.Form = c.Request.PostForm
	req.Body = body
	req.Query = c.Request.URL.Query()
	return req, nil
}
