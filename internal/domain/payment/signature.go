package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader 回调签名所在的请求头
const SignatureHeader = "X-Paygate-Signature"

// Sign hex(HMAC-SHA512(secret, body))
func Sign(secret, body []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 常量时间比较，签名大小写不敏感
func VerifySignature(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha512.Size {
		return false
	}
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
