package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"
)

// replayWindow is how far a request timestamp may drift before the request
// is treated as a possible replay.
const replayWindow = 300 // seconds

// VerifySignature validates that a webhook request genuinely came from Slack.
// See: https://api.slack.com/authentication/verifying-requests-from-slack
//
// The timestamp check here is one-sided (only the past direction): a request
// older than five minutes is rejected as a replay. Any malformed input fails
// closed; verification never panics.
func VerifySignature(body []byte, timestamp, signature, signingSecret string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	if time.Now().Unix()-ts > replayWindow {
		return false
	}

	// Signature base string: v0:<timestamp>:<body>
	baseString := fmt.Sprintf("v0:%s:%s", timestamp, string(body))

	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte(baseString))
	expected := "v0=" + fmt.Sprintf("%x", h.Sum(nil))

	// Constant-time comparison prevents timing side-channels on signature
	// guessing.
	return hmac.Equal([]byte(expected), []byte(signature))
}

// IsFresh reports whether the timestamp falls inside the symmetric five-minute
// window (inclusive), past or future. Used as a fast-reject gate before the
// hash comparison.
func IsFresh(timestamp string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	diff := time.Now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= replayWindow
}
