package main

import "trust-ledger/cmd"

func main() {
	cmd.Execute()
}
