package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader returns the header a provider carries its webhook
// signature in, e.g. "X-Lemlist-Signature".
func SignatureHeader(provider string) string {
	if provider == "" {
		return ""
	}
	return "X-" + strings.ToUpper(provider[:1]) + provider[1:] + "-Signature"
}

// VerifySignature checks the HMAC-SHA256 of the exact raw request bytes
// against the header-supplied signature. The header value may carry a
// "sha256=" prefix. Comparison is constant-time. A missing secret or an
// empty header both fail verification.
//
// rawBody must be the bytes as transmitted; any re-serialization of parsed
// JSON breaks the MAC.
func VerifySignature(rawBody []byte, header, secret string) error {
	if secret == "" || header == "" {
		return ErrInvalidSignature
	}

	sig := strings.TrimPrefix(header, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the hex-encoded HMAC-SHA256 of body. The counterpart to
// VerifySignature, used to build valid signatures in tests.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
