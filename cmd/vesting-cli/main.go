package main

import "token-vesting/cmd/vesting-cli/cmd"

func main() {
	cmd.Execute()
}
