// Package otpgen generates random one-time passcodes from a configurable
// character set using crypto/rand.
package otpgen

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// AlphabetNumeric is the default character set for passcodes.
const AlphabetNumeric = "0123456789"

// AlphabetUnambiguous drops characters that are easy to misread when a user
// retypes a code from an email (0/O, 1/I/L).
const AlphabetUnambiguous = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

var (
	// ErrEmptyAlphabet indicates the generator was given no characters to pick from.
	ErrEmptyAlphabet = errors.New("otpgen: alphabet must not be empty")

	// ErrInvalidLength indicates a non-positive requested code length.
	ErrInvalidLength = errors.New("otpgen: length must be positive")
)

// Generator defines the contract for passcode generation.
type Generator interface {
	// Generate returns a random code of the given length drawn from the
	// given alphabet, or an error if the random source fails.
	Generate(alphabet string, length int) (string, error)
}

// Random generates cryptographically secure passcodes.
//
// Each character is selected uniformly at random from the alphabet, so the
// code carries len(alphabet)^length possible values.
type Random struct{}

// NewRandom returns a new Random generator.
func NewRandom() *Random {
	return &Random{}
}

// Generate produces a random code of the given length from the alphabet.
func (g *Random) Generate(alphabet string, length int) (string, error) {
	if alphabet == "" {
		return "", ErrEmptyAlphabet
	}
	if length <= 0 {
		return "", ErrInvalidLength
	}

	var sb strings.Builder
	sb.Grow(length)

	for i := 0; i < length; i++ {
		idx, err := randIntStrict(len(alphabet))
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[idx])
	}

	return sb.String(), nil
}

func randIntStrict(max int) (int, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(num.Int64()), nil
}
