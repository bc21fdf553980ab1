package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseSignatureHeader splits the x-signature header MercadoPago sends,
// which looks like "ts=1704908010,v1=618c85345248dd820d5fd456117c2ab2ef8eda45a0282ff693eac24131a5e839".
func ParseSignatureHeader(header string) (ts, v1 string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "ts":
			ts = strings.TrimSpace(kv[1])
		case "v1":
			v1 = strings.TrimSpace(kv[1])
		}
	}
	if ts == "" || v1 == "" {
		return "", "", fmt.Errorf("x-signature header missing ts or v1: %q", header)
	}
	return ts, v1, nil
}

// BuildSignatureManifest assembles the string MercadoPago signs. Empty parts
// are left out entirely, separators included, per their webhook docs.
func BuildSignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:")
		b.WriteString(strings.ToLower(dataID))
		b.WriteString(";")
	}
	if requestID != "" {
		b.WriteString("request-id:")
		b.WriteString(requestID)
		b.WriteString(";")
	}
	b.WriteString("ts:")
	b.WriteString(ts)
	b.WriteString(";")
	return b.String()
}

// CheckWebhookSignature verifies the x-signature header and reports a
// failure as ErrInvalidSignature for callers that propagate errors.
func CheckWebhookSignature(dataID, requestID, signatureHeader, secret string) error {
	if !VerifyWebhookSignature(dataID, requestID, signatureHeader, secret) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyWebhookSignature checks the x-signature header against the HMAC of
// the manifest. An empty secret returns false; the caller decides whether an
// unconfigured secret means skip or reject.
func VerifyWebhookSignature(dataID, requestID, signatureHeader, secret string) bool {
	if strings.TrimSpace(secret) == "" {
		return false
	}

	ts, v1, err := ParseSignatureHeader(signatureHeader)
	if err != nil {
		return false
	}

	expected, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(BuildSignatureManifest(dataID, requestID, ts)))
	return hmac.Equal(mac.Sum(nil), expected)
}
