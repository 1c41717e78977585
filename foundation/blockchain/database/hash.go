package database

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Hash returns the sha256 of the JSON form of the value as a 0x prefixed hex
// string. Every block and transaction identity is produced here.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// IsHash reports whether s has the shape of a value returned by Hash.
func IsHash(s string) bool {
	data, err := hexutil.Decode(s)
	return err == nil && len(data) == sha256.Size
}
