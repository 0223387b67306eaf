package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateTokenID returns the storage ID for a token row. Distinct from the
// printed token number, which the ledger derives from operator counters.
func GenerateTokenID() string {
	return uuid.New().String()
}

// GenerateChallanPin returns a 4-digit pin printed on the receipt for
// phone-in verification.
func GenerateChallanPin() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}
