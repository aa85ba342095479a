package payment

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestVerifySignature(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	client := NewClient("http://gateway", "test-secret", logger)

	valid := Sign("order_abc", "pay_123", "test-secret")

	tests := []struct {
		name       string
		orderRef   string
		paymentRef string
		signature  string
		want       bool
	}{
		{"valid signature", "order_abc", "pay_123", valid, true},
		{"wrong secret", "order_abc", "pay_123", Sign("order_abc", "pay_123", "other-secret"), false},
		{"tampered order ref", "order_xyz", "pay_123", valid, false},
		{"tampered payment ref", "order_abc", "pay_999", valid, false},
		{"empty signature", "order_abc", "pay_123", "", false},
		{"garbage signature", "order_abc", "pay_123", "not-a-signature", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.VerifySignature(tt.orderRef, tt.paymentRef, tt.signature); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}
