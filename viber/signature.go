package viber

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// SignatureHeader is the request header carrying the callback signature.
const SignatureHeader = "X-Viber-Content-Signature"

// ErrInvalidSignature is returned when a callback body does not authenticate
// under the bot token.
var ErrInvalidSignature = errors.New("viber: invalid content signature")

// Sign computes the hex HMAC-SHA256 of body under the bot auth token.
func Sign(token string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback body against the header signature.
// The comparison is constant time.
func VerifySignature(token string, body []byte, signature string) error {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), want) {
		return ErrInvalidSignature
	}
	return nil
}
