package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// StripeSignatureTolerance bounds how old a Stripe signature timestamp may be
// before the delivery is rejected as a possible replay.
const StripeSignatureTolerance = 5 * time.Minute

// VerifySquareWebhookSignature checks the X-Square-HmacSha256-Signature
// header: base64(HMAC-SHA256(key, notification_url + body)).
func VerifySquareWebhookSignature(payload []byte, signatureHeader, notificationURL, signatureKey string) bool {
	sig := strings.TrimSpace(signatureHeader)
	key := strings.TrimSpace(signatureKey)
	if sig == "" || key == "" {
		return false
	}

	expected, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

// VerifyStripeWebhookSignature checks the Stripe-Signature header, scheme v1:
// the header carries "t=<unix>,v1=<hex>" pairs and the signed payload is
// "<t>.<body>". The timestamp must be within tolerance of now.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, secret string, now time.Time) bool {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	var timestamp string
	var candidates []string
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			timestamp = parts[1]
		case "v1":
			candidates = append(candidates, parts[1])
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, cand := range candidates {
		decoded, err := hex.DecodeString(cand)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return true
		}
	}
	return false
}
