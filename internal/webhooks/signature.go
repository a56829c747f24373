package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	HeaderSignature = "X-Crewroute-Signature"
	HeaderEvent     = "X-Crewroute-Event"
	HeaderDelivery  = "X-Crewroute-Delivery"

	signaturePrefix = "sha256="
)

// SignHMAC returns "sha256=" followed by the lowercase hex HMAC-SHA256 of body.
func SignHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a signature produced by SignHMAC. The prefix is optional.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(provided, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
