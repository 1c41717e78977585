package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var (
	coinName       string
	coinBackedBy   string
	coinCollateral string
	coinMaxSupply  string
	mintTo         string
	mintAmount     string
)

var stableCoinCmd = &cobra.Command{
	Use:     "stablecoin",
	Aliases: []string{"sc"},
	Short:   "Manage stablecoins",
}

var stableCoinListCmd = &cobra.Command{
	Use:   "list [symbol]",
	Short: "Print every stablecoin or a single one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			req := client().R().SetPathParam("symbol", args[0])
			return call(cmd.OutOrStdout(), req, http.MethodGet, "/v1/stablecoins/{symbol}")
		}
		return call(cmd.OutOrStdout(), client().R(), http.MethodGet, "/v1/stablecoins")
	},
}

var stableCoinCreateCmd = &cobra.Command{
	Use:   "create <symbol>",
	Short: "Register a new stablecoin owned by the account",
	Args:  cobra.ExactArgs(1),
	RunE:  stableCoinCreateRun,
}

var stableCoinAuthorizeCmd = &cobra.Command{
	Use:   "authorize <symbol> <minter>",
	Short: "Grant minting rights, the account must be the creator",
	Args:  cobra.ExactArgs(2),
	RunE:  stableCoinAuthorizeRun,
}

var stableCoinMintCmd = &cobra.Command{
	Use:   "mint <symbol>",
	Short: "Submit a mint, the account must be an authorized minter",
	Args:  cobra.ExactArgs(1),
	RunE:  stableCoinMintRun,
}

func init() {
	rootCmd.AddCommand(stableCoinCmd)
	stableCoinCmd.AddCommand(stableCoinListCmd, stableCoinCreateCmd, stableCoinAuthorizeCmd, stableCoinMintCmd)

	stableCoinCreateCmd.Flags().StringVarP(&coinName, "name", "n", "", "Display name of the coin.")
	stableCoinCreateCmd.Flags().StringVarP(&coinBackedBy, "backed-by", "b", "", "Reserve the coin claims to be backed by.")
	stableCoinCreateCmd.Flags().StringVarP(&coinCollateral, "collateral-ratio", "r", "", "Collateral ratio, informational only.")
	stableCoinCreateCmd.Flags().StringVarP(&coinMaxSupply, "max-supply", "m", "", "Cap on the total amount ever minted.")
	stableCoinCreateCmd.MarkFlagRequired("name")
	stableCoinCreateCmd.MarkFlagRequired("backed-by")
	stableCoinCreateCmd.MarkFlagRequired("max-supply")

	stableCoinMintCmd.Flags().StringVarP(&mintTo, "to", "t", "", "Address receiving the minted amount.")
	stableCoinMintCmd.Flags().StringVarP(&mintAmount, "amount", "v", "", "Amount to mint.")
	stableCoinMintCmd.MarkFlagRequired("to")
	stableCoinMintCmd.MarkFlagRequired("amount")
}

func stableCoinCreateRun(cmd *cobra.Command, args []string) error {
	creator, err := address()
	if err != nil {
		return err
	}

	coin := map[string]string{
		"symbol":     args[0],
		"name":       coinName,
		"backed_by":  coinBackedBy,
		"max_supply": coinMaxSupply,
		"creator":    string(creator),
	}
	if coinCollateral != "" {
		coin["collateral_ratio"] = coinCollateral
	}

	req := client().R().SetBody(coin)
	return call(cmd.OutOrStdout(), req, http.MethodPost, "/v1/stablecoins")
}

func stableCoinAuthorizeRun(cmd *cobra.Command, args []string) error {
	authorizer, err := address()
	if err != nil {
		return err
	}

	minter, err := resolve(args[1])
	if err != nil {
		return err
	}

	req := client().R().
		SetPathParam("symbol", args[0]).
		SetBody(map[string]string{
			"minter":     minter,
			"authorizer": string(authorizer),
		})
	return call(cmd.OutOrStdout(), req, http.MethodPost, "/v1/stablecoins/{symbol}/minters")
}

func stableCoinMintRun(cmd *cobra.Command, args []string) error {
	minter, err := address()
	if err != nil {
		return err
	}

	recipient, err := resolve(mintTo)
	if err != nil {
		return err
	}

	req := client().R().
		SetPathParam("symbol", args[0]).
		SetBody(map[string]string{
			"recipient": recipient,
			"amount":    mintAmount,
			"minter":    string(minter),
		})
	return call(cmd.OutOrStdout(), req, http.MethodPost, "/v1/stablecoins/{symbol}/mint")
}
