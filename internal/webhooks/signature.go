package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Sign returns lowercase hex of HMAC-SHA256 over "<unix ts>.<body>".
func Sign(secret string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("%x", mac.Sum(nil))
}

// Verify checks a signature produced by Sign. Timestamps further than
// tolerance from now are rejected; a zero tolerance skips that check.
func Verify(secret string, tsHeader string, body []byte, provided string, tolerance time.Duration) bool {
	unix, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return false
	}
	ts := time.Unix(unix, 0)
	if tolerance > 0 {
		if d := time.Since(ts); d > tolerance || d < -tolerance {
			return false
		}
	}
	b, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, ts, body))
	return hmac.Equal(want, b)
}
