package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/qingmall/internal/constants"
	"github.com/qingmall/internal/payment"
	"github.com/qingmall/internal/payment/balance"
	"github.com/qingmall/internal/payment/cash"
)

func TestRegistryGetUnknownMethod(t *testing.T) {
	registry := payment.NewRegistry()
	if _, err := registry.Get("bitcoin"); !errors.Is(err, payment.ErrMethodNotSupported) {
		t.Fatalf("err = %v, want ErrMethodNotSupported", err)
	}
}

func TestRegistryMethodsSorted(t *testing.T) {
	registry := payment.NewRegistry()
	registry.Register(cash.New())
	registry.Register(balance.New())
	registry.Register(nil)

	methods := registry.Methods()
	if len(methods) != 2 {
		t.Fatalf("methods = %v, want 2 entries", methods)
	}
	if methods[0] != constants.PaymentMethodBalance || methods[1] != constants.PaymentMethodCash {
		t.Fatalf("methods = %v, want sorted [balance cash]", methods)
	}

	gateway, err := registry.Get(constants.PaymentMethodCash)
	if err != nil {
		t.Fatalf("get cash failed: %v", err)
	}
	if gateway.Method() != constants.PaymentMethodCash {
		t.Fatalf("method = %s, want cash", gateway.Method())
	}
}

func TestCashGatewayBehavior(t *testing.T) {
	gateway := cash.New()
	ctx := context.Background()

	// 无外部支付方，发起即同步落定成功
	result, err := gateway.Create(ctx, payment.CreateInput{PaymentNo: "P1", Amount: "10.00"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Status != constants.PaymentStatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}

	if _, err := gateway.QueryStatus(ctx, "P1"); !errors.Is(err, payment.ErrQueryNotSupported) {
		t.Fatalf("query err = %v, want ErrQueryNotSupported", err)
	}
	if _, err := gateway.ParseCallback(ctx, payment.CallbackRequest{}); !errors.Is(err, payment.ErrCallbackNotSupported) {
		t.Fatalf("callback err = %v, want ErrCallbackNotSupported", err)
	}

	refund, err := gateway.Refund(ctx, payment.RefundInput{RefundNo: "R1", Amount: "10.00"})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refund.Status != constants.RefundStatusCompleted {
		t.Fatalf("refund status = %s, want completed", refund.Status)
	}
}

func TestBalanceGatewaySyncSuccess(t *testing.T) {
	gateway := balance.New()
	ctx := context.Background()

	result, err := gateway.Create(ctx, payment.CreateInput{PaymentNo: "P2", Amount: "5.00"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Status != constants.PaymentStatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
}
