package database

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/crypto"
)

// SystemAddress is the sender recorded on reward transactions. No account
// can hold or spend from it.
const SystemAddress Address = "SYSTEM"

// Address represents an account on the ledger. The node trusts the address
// it is handed; authentication happens before a request reaches the core.
type Address string

// ToAddress converts a string to an address and validates it is formatted
// correctly.
func ToAddress(s string) (Address, error) {
	a := Address(strings.TrimSpace(s))
	if !a.IsAddress() {
		return "", fmt.Errorf("%w: invalid address %q", ErrValidation, s)
	}

	return a, nil
}

// PublicKeyToAddress converts the public key to an address value.
func PublicKeyToAddress(pk ecdsa.PublicKey) Address {
	return Address(crypto.PubkeyToAddress(pk).String())
}

// IsAddress verifies whether the underlying data represents a usable
// account address.
func (a Address) IsAddress() bool {
	const minLength = 3
	const maxLength = 255

	if len(a) < minLength || len(a) > maxLength {
		return false
	}

	if a.IsSystem() {
		return false
	}

	return strings.IndexFunc(string(a), unicode.IsSpace) == -1
}

// IsSystem reports whether this is the reserved system address.
func (a Address) IsSystem() bool {
	return a == SystemAddress
}
