package ebics

import (
	"github.com/leuf-systems/nexus/pkg/apperror"
)

// orderIDAlphabet is the EBICS-mandated order ID character set: six
// uppercase letters or digits, the first of which must be a letter.
const orderIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxOrderIDSequence is the number of distinct order IDs addressable with
// one leading letter and five trailing alphanumerics (26 * 36^5).
const maxOrderIDSequence = 26 * 36 * 36 * 36 * 36 * 36

// nextOrderID renders seq (0-based) as an EBICS order ID string. Callers
// must persist the incremented counter (domain.EbicsSubscriber.NextOrderID)
// before the wire request is sent, so a crash mid-transaction never reuses
// an order ID.
func nextOrderID(seq int64) (string, error) {
	if seq < 0 || seq >= maxOrderIDSequence {
		return "", apperror.ErrOrderIDExhausted()
	}

	const base = 36
	const letters = 26 // only the first base-36 digit is restricted to letters
	const trailing = 5

	first := orderIDAlphabet[seq/pow(base, trailing)%letters]
	rest := seq % pow(base, trailing)

	b := [6]byte{first}
	for i := 0; i < trailing; i++ {
		shift := trailing - 1 - i
		b[1+i] = orderIDAlphabet[rest/pow(base, shift)%base]
	}
	return string(b[:]), nil
}

func pow(base int64, exp int) int64 {
	result := int64(1)
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
