package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the webhook signature the gateway attaches to payment
// callbacks: hex-encoded HMAC-SHA256 over "<orderRef>|<paymentRef>" keyed
// with the shared secret.
func Sign(orderRef, paymentRef, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback signature in constant time.
func (c *Client) VerifySignature(orderRef, paymentRef, signature string) bool {
	expected := Sign(orderRef, paymentRef, c.secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
