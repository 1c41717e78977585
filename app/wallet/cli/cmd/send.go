package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var (
	sendTo     string
	sendAmount string
	sendSymbol string
	sendFee    string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Submit a transfer to the mempool",
	Args:  cobra.NoArgs,
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "Address receiving the amount.")
	sendCmd.Flags().StringVarP(&sendAmount, "amount", "v", "", "Amount to send.")
	sendCmd.Flags().StringVarP(&sendSymbol, "symbol", "s", "", "Asset to send, the native coin when empty.")
	sendCmd.Flags().StringVarP(&sendFee, "fee", "f", "", "Fee paid to the miner, the default fee when empty.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")
}

func sendRun(cmd *cobra.Command, args []string) error {
	from, err := address()
	if err != nil {
		return err
	}

	to, err := resolve(sendTo)
	if err != nil {
		return err
	}

	tx := map[string]string{
		"from":   string(from),
		"to":     to,
		"amount": sendAmount,
	}
	if sendSymbol != "" {
		tx["symbol"] = sendSymbol
	}
	if sendFee != "" {
		tx["fee"] = sendFee
	}

	req := client().R().SetBody(tx)
	return call(cmd.OutOrStdout(), req, http.MethodPost, "/v1/tx/submit")
}
