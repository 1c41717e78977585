// Package cmd contains the wallet commands.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/cadcoin/blockchain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	nodeURL     string
	fromAddress string
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node.")
	rootCmd.PersistentFlags().StringVar(&fromAddress, "from", "", "Address to act as instead of the account's key.")
}

var rootCmd = &cobra.Command{
	Use:           "wallet",
	Short:         "Simple wallet for the cadcoin node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	name := accountName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}

// address returns the address the command acts as. The --from flag wins
// over the account's private key.
func address() (database.Address, error) {
	if fromAddress != "" {
		return database.ToAddress(fromAddress)
	}

	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return "", fmt.Errorf("loading account key: %w", err)
	}

	return database.PublicKeyToAddress(privateKey.PublicKey), nil
}

// resolve turns the name of a key under the account path into the address
// it controls. Anything else is taken as an address.
func resolve(nameOrAddress string) (string, error) {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return "", err
	}

	return string(ns.Resolve(nameOrAddress)), nil
}

// =============================================================================

// nodeError is the error document the node responds with.
type nodeError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func client() *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimSuffix(nodeURL, "/")).
		SetHeader("Accept", "application/json")
}

// call executes the request and writes the indented response document to
// out. Any status outside 2xx becomes an error.
func call(out io.Writer, req *resty.Request, method string, path string) error {
	resp, err := req.SetError(&nodeError{}).Execute(method, path)
	if err != nil {
		return fmt.Errorf("calling node: %w", err)
	}

	if resp.IsError() {
		if ne, ok := resp.Error().(*nodeError); ok && ne.Error != "" {
			if len(ne.Fields) > 0 {
				return fmt.Errorf("%s: %s %v", resp.Status(), ne.Error, ne.Fields)
			}
			return fmt.Errorf("%s: %s", resp.Status(), ne.Error)
		}
		return fmt.Errorf("%s", resp.Status())
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body(), "", "  "); err != nil {
		_, err = out.Write(resp.Body())
		return err
	}
	buf.WriteByte('\n')

	_, err = buf.WriteTo(out)
	return err
}
