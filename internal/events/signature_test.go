package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"emailsOpened","messageId":"msg_1"}`)
	secret := "whsec_test"

	sig := Sign(body, secret)

	assert.NoError(t, VerifySignature(body, sig, secret))
	assert.NoError(t, VerifySignature(body, "sha256="+sig, secret))

	// Uppercase hex from the provider still verifies
	assert.NoError(t, VerifySignature(body, strings.ToUpper(sig), secret))

	assert.ErrorIs(t, VerifySignature(body, sig, "other-secret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "", secret), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, sig, ""), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature([]byte("tampered"), sig, secret), ErrInvalidSignature)
}

// The MAC is over the exact transmitted bytes. Re-serializing parsed JSON
// produces different bytes and must break verification.
func TestVerifySignature_RawBytesSensitive(t *testing.T) {
	raw := []byte(`{"type": "emailsOpened",  "messageId": "msg_1"}`)
	secret := "whsec_test"
	sig := Sign(raw, secret)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	reserialized, err := json.Marshal(parsed)
	require.NoError(t, err)
	require.NotEqual(t, raw, reserialized)

	assert.NoError(t, VerifySignature(raw, sig, secret))
	assert.ErrorIs(t, VerifySignature(reserialized, sig, secret), ErrInvalidSignature)
}

func TestSignatureHeader(t *testing.T) {
	assert.Equal(t, "X-Lemlist-Signature", SignatureHeader("lemlist"))
	assert.Equal(t, "X-Postmark-Signature", SignatureHeader("postmark"))
	assert.Equal(t, "X-Heygen-Signature", SignatureHeader("heygen"))
	assert.Equal(t, "", SignatureHeader(""))
}
