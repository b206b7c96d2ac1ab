package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signed request headers shared by the daemon and its clients. The signature
// is an HMAC-SHA256 over userID + timestamp + nonce, hex encoded.
const (
	HeaderUserID    = "X-Auth-UserId"
	HeaderTimestamp = "X-Auth-Timestamp"
	HeaderNonce     = "X-Auth-Nonce"
	HeaderSign      = "X-Auth-Sign"
)

// Sign computes the request signature for the given shared secret.
func Sign(secret, userID, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID + timestamp + nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
