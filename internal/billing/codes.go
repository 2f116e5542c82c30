package billing

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet deliberately omits 0/O and 1/I so codes survive being read
// aloud or copied from a printed receipt.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of generated voucher codes. Nine characters over
// the 32-symbol alphabet gives 32^9 distinct codes, more than an 8-character
// code over the full alphanumeric alphabet would.
const CodeLength = 9

// GenerateCode returns a random voucher code. Uniqueness is not guaranteed
// here; the storage layer enforces it and callers regenerate on a duplicate.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate voucher code: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}
