package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signManifest(t *testing.T, manifest, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestParseSignatureHeader(t *testing.T) {
	ts, v1, err := ParseSignatureHeader("ts=1704908010,v1=abcdef0123")
	require.NoError(t, err)
	assert.Equal(t, "1704908010", ts)
	assert.Equal(t, "abcdef0123", v1)
}

func TestParseSignatureHeaderWithSpaces(t *testing.T) {
	ts, v1, err := ParseSignatureHeader(" ts=123 , v1=deadbeef ")
	require.NoError(t, err)
	assert.Equal(t, "123", ts)
	assert.Equal(t, "deadbeef", v1)
}

func TestParseSignatureHeaderMissingParts(t *testing.T) {
	_, _, err := ParseSignatureHeader("ts=123")
	assert.Error(t, err)

	_, _, err = ParseSignatureHeader("v1=deadbeef")
	assert.Error(t, err)

	_, _, err = ParseSignatureHeader("")
	assert.Error(t, err)
}

func TestBuildSignatureManifest(t *testing.T) {
	m := BuildSignatureManifest("12345", "req-1", "1704908010")
	assert.Equal(t, "id:12345;request-id:req-1;ts:1704908010;", m)
}

func TestBuildSignatureManifestOmitsEmptyParts(t *testing.T) {
	assert.Equal(t, "ts:99;", BuildSignatureManifest("", "", "99"))
	assert.Equal(t, "id:7;ts:99;", BuildSignatureManifest("7", "", "99"))
	assert.Equal(t, "request-id:r;ts:99;", BuildSignatureManifest("", "r", "99"))
}

func TestBuildSignatureManifestLowercasesDataID(t *testing.T) {
	m := BuildSignatureManifest("ABC123", "req", "1")
	assert.Equal(t, "id:abc123;request-id:req;ts:1;", m)
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "super-secret"
	manifest := BuildSignatureManifest("12345", "req-1", "1704908010")
	v1 := signManifest(t, manifest, secret)
	header := "ts=1704908010,v1=" + v1

	assert.True(t, VerifyWebhookSignature("12345", "req-1", header, secret))
}

func TestVerifyWebhookSignatureRejectsTampering(t *testing.T) {
	secret := "super-secret"
	manifest := BuildSignatureManifest("12345", "req-1", "1704908010")
	v1 := signManifest(t, manifest, secret)
	header := "ts=1704908010,v1=" + v1

	assert.False(t, VerifyWebhookSignature("54321", "req-1", header, secret), "different data id")
	assert.False(t, VerifyWebhookSignature("12345", "req-2", header, secret), "different request id")
	assert.False(t, VerifyWebhookSignature("12345", "req-1", header, "wrong-secret"))
	assert.False(t, VerifyWebhookSignature("12345", "req-1", "ts=9,v1="+v1, secret), "different ts")
}

func TestVerifyWebhookSignatureEmptySecret(t *testing.T) {
	assert.False(t, VerifyWebhookSignature("1", "r", "ts=1,v1=aa", ""))
}

func TestVerifyWebhookSignatureBadHex(t *testing.T) {
	assert.False(t, VerifyWebhookSignature("1", "r", "ts=1,v1=not-hex", "secret"))
}

func TestCheckWebhookSignature(t *testing.T) {
	secret := "super-secret"
	manifest := BuildSignatureManifest("12345", "req-1", "1704908010")
	header := "ts=1704908010,v1=" + signManifest(t, manifest, secret)

	assert.NoError(t, CheckWebhookSignature("12345", "req-1", header, secret))
	assert.ErrorIs(t, CheckWebhookSignature("54321", "req-1", header, secret), ErrInvalidSignature)
}
