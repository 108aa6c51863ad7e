package smartpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSecret(t *testing.T) {
	// B=1, BA=62, 9=61 under the A=0..9=61 alphabet.
	key, err := DecodeSecret("B")
	assert.NoError(t, err)
	assert.Equal(t, []byte{1}, key)

	key, err = DecodeSecret("BA")
	assert.NoError(t, err)
	assert.Equal(t, []byte{62}, key)

	key, err = DecodeSecret("9")
	assert.NoError(t, err)
	assert.Equal(t, []byte{61}, key)

	// Multi-byte value: "zz" = 51*62 + 51 = 3213.
	key, err = DecodeSecret("zz")
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(3213).Bytes(), key)

	_, err = DecodeSecret("")
	assert.Error(t, err)

	_, err = DecodeSecret("abc!def")
	assert.Error(t, err)

	_, err = DecodeSecret("abc_def")
	assert.Error(t, err)
}

func signBody(t *testing.T, secret, timestamp string, body []byte) string {
	t.Helper()
	key, err := DecodeSecret(secret)
	assert.NoError(t, err)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsecTESTsigningKEY42"
	timestamp := "1714378512"
	body := []byte(`{"eventData":{"data":{"id":"order_abc"}}}`)

	sig := signBody(t, secret, timestamp, body)
	assert.True(t, VerifySignature(secret, sig, timestamp, body))
}

func TestVerifySignatureSingleByteSensitivity(t *testing.T) {
	secret := "whsecTESTsigningKEY42"
	timestamp := "1714378512"
	body := []byte(`{"eventData":{"data":{"id":"order_abc"}}}`)
	sig := signBody(t, secret, timestamp, body)

	// Flip one body byte.
	mutated := append([]byte(nil), body...)
	mutated[10] ^= 0x01
	assert.False(t, VerifySignature(secret, sig, timestamp, mutated))

	// Change the timestamp.
	assert.False(t, VerifySignature(secret, sig, "1714378513", body))

	// Flip one signature hex digit.
	badSig := []byte(sig)
	if badSig[0] == 'a' {
		badSig[0] = 'b'
	} else {
		badSig[0] = 'a'
	}
	assert.False(t, VerifySignature(secret, string(badSig), timestamp, body))
}

func TestVerifySignatureRejectsBadSecret(t *testing.T) {
	assert.False(t, VerifySignature("", "deadbeef", "1714378512", []byte("{}")))
	assert.False(t, VerifySignature("not-base62!", "deadbeef", "1714378512", []byte("{}")))
}
