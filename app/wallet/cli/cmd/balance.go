package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var balanceSymbol string

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Print every asset balance of an address, or one with --symbol",
	Args:  cobra.MaximumNArgs(1),
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&balanceSymbol, "symbol", "s", "", "Only print the balance of this asset.")
}

func balanceRun(cmd *cobra.Command, args []string) error {
	var addr string
	switch len(args) {
	case 1:
		a, err := resolve(args[0])
		if err != nil {
			return err
		}
		addr = a
	default:
		a, err := address()
		if err != nil {
			return err
		}
		addr = string(a)
	}

	req := client().R().SetPathParam("address", addr)
	if balanceSymbol != "" {
		req.SetPathParam("symbol", balanceSymbol)
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/v1/balances/{address}/{symbol}")
	}

	return call(cmd.OutOrStdout(), req, http.MethodGet, "/v1/balances/{address}")
}
