package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func squareSign(key, url string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(url))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func stripeSign(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySquareWebhookSignature(t *testing.T) {
	payload := []byte(`{"event_id":"evt-1","type":"payment.updated"}`)
	url := "https://api.lingodesk.example/webhooks/square"
	key := "square-signature-key"

	sig := squareSign(key, url, payload)
	assert.True(t, VerifySquareWebhookSignature(payload, sig, url, key))

	// Wrong key, wrong url, tampered body.
	assert.False(t, VerifySquareWebhookSignature(payload, sig, url, "other-key"))
	assert.False(t, VerifySquareWebhookSignature(payload, sig, "https://elsewhere.example/hook", key))
	assert.False(t, VerifySquareWebhookSignature([]byte(`{"event_id":"evt-2"}`), sig, url, key))

	// Missing or malformed header.
	assert.False(t, VerifySquareWebhookSignature(payload, "", url, key))
	assert.False(t, VerifySquareWebhookSignature(payload, "not!base64!!", url, key))
	assert.False(t, VerifySquareWebhookSignature(payload, sig, url, ""))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	secret := "whsec_test"
	now := time.Now()

	header := stripeSign(secret, now.Unix(), payload)
	assert.True(t, VerifyStripeWebhookSignature(payload, header, secret, now))

	assert.False(t, VerifyStripeWebhookSignature(payload, header, "whsec_other", now))
	assert.False(t, VerifyStripeWebhookSignature([]byte(`{"id":"evt_2"}`), header, secret, now))
	assert.False(t, VerifyStripeWebhookSignature(payload, "", secret, now))
	assert.False(t, VerifyStripeWebhookSignature(payload, header, "", now))
}

func TestVerifyStripeWebhookSignatureTimestampTolerance(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Now()

	// Just inside the window.
	header := stripeSign(secret, now.Add(-4*time.Minute).Unix(), payload)
	assert.True(t, VerifyStripeWebhookSignature(payload, header, secret, now))

	// Too old and too far in the future.
	header = stripeSign(secret, now.Add(-6*time.Minute).Unix(), payload)
	assert.False(t, VerifyStripeWebhookSignature(payload, header, secret, now))
	header = stripeSign(secret, now.Add(6*time.Minute).Unix(), payload)
	assert.False(t, VerifyStripeWebhookSignature(payload, header, secret, now))
}

func TestVerifyStripeWebhookSignatureHeaderVariants(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Now()
	valid := stripeSign(secret, now.Unix(), payload)

	// A bad v1 candidate next to a good one still verifies.
	assert.True(t, VerifyStripeWebhookSignature(payload, valid+",v1=deadbeef", secret, now))

	// Non-hex candidate alone does not.
	header := fmt.Sprintf("t=%d,v1=zznothex", now.Unix())
	assert.False(t, VerifyStripeWebhookSignature(payload, header, secret, now))

	// Missing timestamp or missing candidates.
	assert.False(t, VerifyStripeWebhookSignature(payload, "v1=deadbeef", secret, now))
	assert.False(t, VerifyStripeWebhookSignature(payload, fmt.Sprintf("t=%d", now.Unix()), secret, now))
	assert.False(t, VerifyStripeWebhookSignature(payload, "t=notanumber,v1=deadbeef", secret, now))
}
