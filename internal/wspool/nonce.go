package wspool

import (
	"strings"

	"github.com/google/uuid"
)

const nonceLength = 30
const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newNonce produces a 30-character alphanumeric nonce for a listen/unlisten
// frame, built from two uuid.v4 draws so it never repeats in practice.
func newNonce() string {
	var sb strings.Builder
	sb.Grow(nonceLength)
	for sb.Len() < nonceLength {
		u := uuid.New()
		for _, b := range u[:] {
			sb.WriteByte(nonceAlphabet[int(b)%len(nonceAlphabet)])
			if sb.Len() == nonceLength {
				break
			}
		}
	}
	return sb.String()
}

type topicKey string

func topicKeyOf(t interface{ String() string }) topicKey {
	return topicKey(t.String())
}
