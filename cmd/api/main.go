package main

import "wallet-ledger/internal/cli"

func main() {
	cli.Execute()
}
