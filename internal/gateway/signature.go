package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// VerifySignature checks a hex encoded HMAC-SHA256 of payload. An optional
// "sha256=" prefix is accepted.
func VerifySignature(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimPrefix(strings.TrimSpace(signatureHeader), "sha256=")
	secret = strings.TrimSpace(secret)
	if sig == "" || secret == "" {
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}

// Sign returns the hex signature VerifySignature expects.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
