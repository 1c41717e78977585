// Wallet is a command line client for the node.
package main

import "github.com/cadcoin/blockchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
