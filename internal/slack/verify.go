package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// maxSignatureAge bounds the accepted clock skew between Slack and this
// process; older requests are rejected as possible replays.
const maxSignatureAge = 5 * time.Minute

// VerifySignature checks the v0 request signature Slack attaches to every
// inbound HTTP call: HMAC-SHA256 over "v0:<timestamp>:<body>" keyed with the
// signing secret.
func VerifySignature(signingSecret, timestamp, signature string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid request timestamp %q", timestamp)
	}

	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > maxSignatureAge {
		return fmt.Errorf("request timestamp outside accepted window")
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("request signature mismatch")
	}
	return nil
}
