package cmd

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	blocksOffset  int
	blocksLimit   int
	validateDepth int
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Ask the node to mine a block for the account",
	Args:  cobra.NoArgs,
	RunE:  mineRun,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the chain summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.OutOrStdout(), client().R(), http.MethodGet, "/v1/chain/info")
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print the transactions waiting in the mempool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.OutOrStdout(), client().R(), http.MethodGet, "/v1/tx/pending")
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the mining attempts of the last day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.OutOrStdout(), client().R(), http.MethodGet, "/v1/mining/stats")
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks [index]",
	Short: "Print the newest blocks or the block at an index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  blocksRun,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Ask the node to validate the stored chain",
	Args:  cobra.NoArgs,
	RunE:  validateRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(validateCmd)
	blocksCmd.Flags().IntVar(&blocksOffset, "offset", 0, "Number of newest blocks to skip.")
	blocksCmd.Flags().IntVar(&blocksLimit, "limit", 10, "Number of blocks to print.")
	validateCmd.Flags().IntVarP(&validateDepth, "depth", "d", -1, "Number of newest blocks to check, 0 for the whole chain.")
}

func mineRun(cmd *cobra.Command, args []string) error {
	miner, err := address()
	if err != nil {
		return err
	}

	req := client().R().SetBody(map[string]string{"miner": string(miner)})
	return call(cmd.OutOrStdout(), req, http.MethodPost, "/v1/mining/mine")
}

func blocksRun(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
			return err
		}
		req := client().R().SetPathParam("index", args[0])
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/v1/blocks/{index}")
	}

	req := client().R().SetQueryParams(map[string]string{
		"offset": strconv.Itoa(blocksOffset),
		"limit":  strconv.Itoa(blocksLimit),
	})
	return call(cmd.OutOrStdout(), req, http.MethodGet, "/v1/blocks")
}

func validateRun(cmd *cobra.Command, args []string) error {
	req := client().R()
	if validateDepth >= 0 {
		req.SetQueryParam("depth", strconv.Itoa(validateDepth))
	}

	return call(cmd.OutOrStdout(), req, http.MethodGet, "/v1/chain/validate")
}
