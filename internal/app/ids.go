package app

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
)

// Withdrawal ids are shown to bank operators, so the alphabet drops the
// characters that read ambiguously (0/O, 1/I/L, U/V).
const withdrawalIDAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const withdrawalIDLength = 10

// NewWithdrawalIDGenerator returns a generator for "WD"-prefixed withdrawal
// ids. The random suffix makes collisions vanishingly unlikely even under
// concurrent load, unlike the second-granularity timestamps it replaces.
func NewWithdrawalIDGenerator() (func() string, error) {
	gen, err := nanoid.CustomASCII(withdrawalIDAlphabet, withdrawalIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to build withdrawal id generator: %w", err)
	}
	return func() string {
		return "WD" + gen()
	}, nil
}
