package random

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Alphabet is the URL-safe character set short codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var ErrInvalidLength = errors.New("length must be positive")

var alphabetLen = big.NewInt(int64(len(Alphabet)))

// NewRandomString returns a string of the given length over Alphabet using
// crypto/rand. Each character is chosen uniformly.
func NewRandomString(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[n.Int64()]
	}

	return string(b), nil
}
