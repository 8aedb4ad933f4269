package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const entryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateEntryCode returns a 10-character check-in token. The alphabet
// drops 0/O/1/I so codes survive being read aloud at the door.
func GenerateEntryCode() string {
	code := make([]byte, 10)
	max := big.NewInt(int64(len(entryCodeAlphabet)))
	for i := range code {
		n, _ := rand.Int(rand.Reader, max)
		code[i] = entryCodeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("EVT-%s", code)
}

// GenerateReceiptID returns a short receipt reference for gateway orders.
func GenerateReceiptID(registrationID string) string {
	if len(registrationID) > 32 {
		return "rcpt_" + registrationID[:32]
	}
	return "rcpt_" + registrationID
}
