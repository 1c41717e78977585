package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair for the account",
	Args:  cobra.NoArgs,
	RunE:  generateRun,
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address of the account",
	Args:  cobra.NoArgs,
	RunE:  accountRun,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Print the name and address of every key under the account path",
	Args:  cobra.NoArgs,
	RunE:  accountsRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(accountsCmd)
}

func generateRun(cmd *cobra.Command, args []string) error {
	path := getPrivateKeyPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("account key %s already exists", path)
	}

	if err := os.MkdirAll(accountPath, 0755); err != nil {
		return fmt.Errorf("creating account path: %w", err)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return fmt.Errorf("saving key: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), database.PublicKeyToAddress(privateKey.PublicKey))
	return nil
}

func accountRun(cmd *cobra.Command, args []string) error {
	addr, err := address()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), addr)
	return nil
}

func accountsRun(cmd *cobra.Command, args []string) error {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	type entry struct {
		name    string
		address database.Address
	}

	var entries []entry
	for address, name := range ns.Copy() {
		entries = append(entries, entry{name: name, address: address})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", e.name, e.address)
	}

	return nil
}
