package ledger

import (
	"crypto/rand"
	"fmt"
)

const (
	referralAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength = 8
	maxReferralRetries = 10
)

// NewReferralCode returns a random code. The alphabet has 32 symbols so byte%32 is unbiased.
func NewReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}
	return string(buf), nil
}
