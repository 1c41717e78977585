// Package nameservice reads a folder of account keys and maps the key file
// names to the addresses they control.
package nameservice

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

const keyExtension = ".ecdsa"

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	names map[database.Address]string
	addrs map[string]database.Address
}

// New constructs a name service from the keys found under root. A missing
// folder gives an empty service.
func New(root string) (*NameService, error) {
	ns := NameService{
		names: make(map[database.Address]string),
		addrs: make(map[string]database.Address),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(fileName) != keyExtension {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		name := strings.TrimSuffix(filepath.Base(fileName), keyExtension)
		address := database.PublicKeyToAddress(privateKey.PublicKey)

		ns.names[address] = name
		ns.addrs[name] = address

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ns, nil
		}
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the address, or the address itself when the
// name is unknown.
func (ns *NameService) Lookup(address database.Address) string {
	name, exists := ns.names[address]
	if !exists {
		return string(address)
	}
	return name
}

// Resolve returns the address behind a name. Anything that is not a known
// name is handed back as the address.
func (ns *NameService) Resolve(nameOrAddress string) database.Address {
	if address, exists := ns.addrs[nameOrAddress]; exists {
		return address
	}
	return database.Address(nameOrAddress)
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[database.Address]string {
	cpy := make(map[database.Address]string, len(ns.names))
	for address, name := range ns.names {
		cpy[address] = name
	}
	return cpy
}
