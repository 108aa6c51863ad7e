package smartpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// The webhook signing secret is issued in a base-62 alphabet where upper-case
// letters carry the lowest values: A=0 .. Z=25, a=26 .. z=51, 0=52 .. 9=61.
const base62Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var errInvalidSecret = errors.New("invalid_signing_secret")

var base62 = big.NewInt(62)

// DecodeSecret decodes a base-62 signing secret into the raw HMAC key bytes.
// The secret is read as a big-endian positional number.
func DecodeSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errInvalidSecret
	}

	value := new(big.Int)
	for i := 0; i < len(secret); i++ {
		idx := strings.IndexByte(base62Alphabet, secret[i])
		if idx < 0 {
			return nil, errInvalidSecret
		}
		value.Mul(value, base62)
		value.Add(value, big.NewInt(int64(idx)))
	}
	return value.Bytes(), nil
}

// VerifySignature checks a webhook delivery's HMAC-SHA256 signature computed
// over "timestamp.body" with the decoded secret as the key. The comparison is
// constant-time.
func VerifySignature(secret, signature, timestamp string, body []byte) bool {
	key, err := DecodeSecret(secret)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
