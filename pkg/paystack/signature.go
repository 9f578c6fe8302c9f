package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

// Sign returns hex(HMAC-SHA512(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the provided header value against the expected
// signature in constant time. An empty secret or header never verifies.
func VerifySignature(secret string, body []byte, provided string) bool {
	provided = strings.TrimSpace(provided)
	if secret == "" || provided == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
